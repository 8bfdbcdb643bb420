package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cceh/winbuild/internal/metaerr"
)

// Packager invokes the directory-mode bundling tool.
type Packager struct {
	Tool    string
	DistDir string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// BundleInputs is the fully expanded packager input: every template and
// environment reference in the configured payload paths resolved to a
// concrete path.
type BundleInputs struct {
	Product      string
	Entry        string
	Binaries     []Payload
	Data         []Payload
	RuntimeHooks []string
	ExtraArgs    []string
}

// ResolveBundleInputs expands the configured payload paths.
func ResolveBundleInputs(cfg Config) (BundleInputs, error) {
	vars := cfg.pathVars()

	in := BundleInputs{
		Product:   cfg.Product.Name,
		Entry:     cfg.Product.Entry,
		ExtraArgs: cfg.Bundle.ExtraArgs,
	}
	for _, payload := range cfg.Bundle.Binaries {
		expanded, err := expandPayloads(payload, vars)
		if err != nil {
			return in, err
		}
		in.Binaries = append(in.Binaries, expanded)
	}
	for _, payload := range cfg.Bundle.Data {
		expanded, err := expandPayloads(payload, vars)
		if err != nil {
			return in, err
		}
		in.Data = append(in.Data, expanded)
	}
	for _, hook := range cfg.Bundle.RuntimeHooks {
		src, err := expandPayload(hook, vars)
		if err != nil {
			return in, err
		}
		in.RuntimeHooks = append(in.RuntimeHooks, src)
	}
	return in, nil
}

func expandPayloads(payload Payload, vars pathVars) (Payload, error) {
	src, err := expandPayload(payload.Src, vars)
	if err != nil {
		return Payload{}, err
	}
	dest := payload.Dest
	if dest == "" {
		dest = "."
	}
	return Payload{Src: src, Dest: dest}, nil
}

// VerifyInputs checks that every declared payload exists before the
// packager runs. All missing paths are reported at once.
func VerifyInputs(in BundleInputs) error {
	paths := []string{in.Entry}
	for _, payload := range in.Binaries {
		paths = append(paths, payload.Src)
	}
	for _, payload := range in.Data {
		paths = append(paths, payload.Src)
	}
	paths = append(paths, in.RuntimeHooks...)

	var missing []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return metaerr.WithMetadata(
			fmt.Errorf("missing bundle payloads: %s", strings.Join(missing, ", ")),
			"missing", len(missing),
		)
	}
	return nil
}

// BuildArgs builds the packager command line. PyInstaller separates the
// source and destination of --add-binary/--add-data entries with ';' on
// Windows and ':' everywhere else.
func (p *Packager) BuildArgs(in BundleInputs) []string {
	sep := payloadSep()

	args := []string{
		"--noconfirm",
		"--onedir",
		"--name", in.Product,
		"--distpath", p.DistDir,
	}
	args = append(args, in.ExtraArgs...)
	for _, payload := range in.Binaries {
		args = append(args, "--add-binary", payload.Src+sep+payload.Dest)
	}
	for _, payload := range in.Data {
		args = append(args, "--add-data", payload.Src+sep+payload.Dest)
	}
	for _, hook := range in.RuntimeHooks {
		args = append(args, "--runtime-hook", hook)
	}
	args = append(args, in.Entry)
	return args
}

// Run verifies the inputs, invokes the packager and checks that it
// produced a non-empty bundle directory.
func (p *Packager) Run(ctx context.Context, in BundleInputs) error {
	if _, err := exec.LookPath(p.Tool); err != nil {
		return fmt.Errorf("packager not found: %w", err)
	}
	if err := VerifyInputs(in); err != nil {
		return err
	}

	args := p.BuildArgs(in)
	slog.Debug("running packager", "tool", p.Tool, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, p.Tool, args...)
	cmd.Stdout = p.stdout()
	cmd.Stderr = p.stderr()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	return p.verifyBundle(in.Product)
}

// BundleDir is where the packager places the finished bundle.
func (p *Packager) BundleDir(product string) string {
	return filepath.Join(p.DistDir, product)
}

func (p *Packager) verifyBundle(product string) error {
	dir := p.BundleDir(product)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read bundle dir: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("bundle dir is empty: %s", dir)
	}
	return nil
}

func (p *Packager) stdout() io.Writer {
	if p.Stdout != nil {
		return p.Stdout
	}
	return os.Stdout
}

func (p *Packager) stderr() io.Writer {
	if p.Stderr != nil {
		return p.Stderr
	}
	return os.Stderr
}

func payloadSep() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}
