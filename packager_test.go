package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPackagerBuildArgs(t *testing.T) {
	p := Packager{Tool: "pyinstaller", DistDir: "dist"}
	in := BundleInputs{
		Product:      "ByzanzRTI",
		Entry:        "main.py",
		Binaries:     []Payload{{Src: "vendor/libusb/MinGW64/dll/libusb-1.0.dll", Dest: "."}},
		Data:         []Payload{{Src: "ui", Dest: "ui"}},
		RuntimeHooks: []string{"rthook_gphoto2.py"},
		ExtraArgs:    []string{"--windowed"},
	}

	sep := payloadSep()
	want := []string{
		"--noconfirm",
		"--onedir",
		"--name", "ByzanzRTI",
		"--distpath", "dist",
		"--windowed",
		"--add-binary", "vendor/libusb/MinGW64/dll/libusb-1.0.dll" + sep + ".",
		"--add-data", "ui" + sep + "ui",
		"--runtime-hook", "rthook_gphoto2.py",
		"main.py",
	}
	if d := cmp.Diff(want, p.BuildArgs(in)); d != "" {
		t.Errorf("BuildArgs() mismatch (-want/+got): %v", d)
	}
}

func TestResolveBundleInputs(t *testing.T) {
	cfg := defaultConfig()
	cfg.Bundle.Binaries = []Payload{
		{Src: "{{ .VendorDir }}/libusb/MinGW64/dll/libusb-1.0.dll"},
	}
	cfg.Bundle.Data = []Payload{
		{Src: "ui", Dest: "ui"},
	}

	in, err := ResolveBundleInputs(cfg)
	if err != nil {
		t.Fatalf("ResolveBundleInputs() failed: %v", err)
	}

	want := []Payload{
		{Src: "vendor/libusb/MinGW64/dll/libusb-1.0.dll", Dest: "."},
	}
	if d := cmp.Diff(want, in.Binaries); d != "" {
		t.Errorf("ResolveBundleInputs() binaries mismatch (-want/+got): %v", d)
	}
}

func TestVerifyInputs(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.py")
	hook := filepath.Join(dir, "rthook.py")
	dll := filepath.Join(dir, "libusb-1.0.dll")
	for _, name := range []string{entry, hook, dll} {
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string // description of this test case
		// Named input parameters for target function.
		in        BundleInputs
		wantInErr string
		wantErr   bool
	}{
		{
			name: "all present",
			in: BundleInputs{
				Entry:        entry,
				Binaries:     []Payload{{Src: dll, Dest: "."}},
				RuntimeHooks: []string{hook},
			},
		},
		{
			name: "missing binary",
			in: BundleInputs{
				Entry:    entry,
				Binaries: []Payload{{Src: filepath.Join(dir, "nope.dll"), Dest: "."}},
			},
			wantInErr: "nope.dll",
			wantErr:   true,
		},
		{
			name: "missing entry",
			in: BundleInputs{
				Entry: filepath.Join(dir, "gone.py"),
			},
			wantInErr: "gone.py",
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotErr := VerifyInputs(tt.in)
			if gotErr != nil {
				if !tt.wantErr {
					t.Errorf("VerifyInputs() failed: %v", gotErr)
				} else if tt.wantInErr != "" && !strings.Contains(gotErr.Error(), tt.wantInErr) {
					t.Errorf("VerifyInputs() error = %v, want mention of %v", gotErr, tt.wantInErr)
				}
				return
			}
			if tt.wantErr {
				t.Fatal("VerifyInputs() succeeded unexpectedly")
			}
		})
	}
}

// writeStubPackager writes a shell script that fakes a packager run by
// creating <distpath>/<name>/app. It relies on the argument order of
// BuildArgs: --noconfirm --onedir --name NAME --distpath DIST ...
func writeStubPackager(t *testing.T, dir string) string {
	t.Helper()

	tool := filepath.Join(dir, "stubinstaller")
	script := "#!/bin/sh\nmkdir -p \"$6/$4\" && echo bundled > \"$6/$4/app\"\n"
	if err := os.WriteFile(tool, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return tool
}

func TestPackagerRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the stub packager is a shell script")
	}

	dir := t.TempDir()
	tool := writeStubPackager(t, dir)

	entry := filepath.Join(dir, "main.py")
	if err := os.WriteFile(entry, []byte("print()"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := Packager{
		Tool:    tool,
		DistDir: filepath.Join(dir, "dist"),
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	in := BundleInputs{Product: "ByzanzRTI", Entry: entry}

	if err := p.Run(context.Background(), in); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	entries, err := os.ReadDir(p.BundleDir("ByzanzRTI"))
	if err != nil {
		t.Fatalf("read bundle dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("bundle dir is empty")
	}
}

func TestPackagerRunFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the stub packager is a shell script")
	}

	dir := t.TempDir()
	tool := filepath.Join(dir, "stubinstaller")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	entry := filepath.Join(dir, "main.py")
	if err := os.WriteFile(entry, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	p := Packager{
		Tool:    tool,
		DistDir: filepath.Join(dir, "dist"),
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := p.Run(context.Background(), BundleInputs{Product: "ByzanzRTI", Entry: entry}); err == nil {
		t.Fatal("Run() succeeded unexpectedly")
	}
}

func TestPackagerRunMissingPayload(t *testing.T) {
	// the test binary stands in for the packager so the tool lookup
	// passes; the missing payload must fail the run before any exec
	p := Packager{Tool: os.Args[0], DistDir: t.TempDir()}
	in := BundleInputs{Product: "ByzanzRTI", Entry: "does-not-exist.py"}

	err := p.Run(context.Background(), in)
	if err == nil {
		t.Fatal("Run() succeeded unexpectedly")
	}
	if !strings.Contains(err.Error(), "does-not-exist.py") {
		t.Errorf("Run() error = %v, want the missing payload reported", err)
	}
}
