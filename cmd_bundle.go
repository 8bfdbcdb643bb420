package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cluttrdev/cli"
	"github.com/pterm/pterm"

	"github.com/cceh/winbuild/internal/metaerr"
)

func newBundleCmd() *cli.Command {
	cfg := bundleCmd{}

	fs := flag.NewFlagSet("winbuild bundle", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "bundle",
		ShortHelp:  "Bundle the application without fetching dependencies.",
		ShortUsage: "winbuild bundle [OPTION]...",
		Flags:      fs,
		Exec:       cfg.Exec,
	}
}

type bundleCmd struct {
	rootCmd
}

func (c *bundleCmd) RegisterFlags(fs *flag.FlagSet) {
	c.rootCmd.RegisterFlags(fs)
}

func (c *bundleCmd) Exec(ctx context.Context, args []string) (err error) {
	c.initLogging()

	defer func() {
		if err != nil && c.logFile != os.Stderr {
			err = fmt.Errorf("%w\nSee %s for details", err, c.logFile.Name())
		}
	}()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	return runBundle(ctx, cfg, nil)
}

// runBundle expands the configured payloads and invokes the packager.
// The packager's own output goes straight to the terminal.
func runBundle(ctx context.Context, cfg Config, fetched []FetchResult) error {
	in, err := ResolveBundleInputs(cfg)
	if err != nil {
		return fmt.Errorf("resolve bundle inputs: %w", err)
	}

	packager := Packager{
		Tool:    cfg.Bundle.Tool,
		DistDir: expandPath(cfg.Bundle.DistDir),
	}

	pterm.Info.Println("Bundling", in.Product, "with", packager.Tool)
	if err := packager.Run(ctx, in); err != nil {
		slog.With("product", in.Product, "error", err).
			With(metaerr.GetMetadata(err)...).
			Error("failed to bundle application")
		return err
	}
	pterm.Success.Println("Bundled", in.Product, "into", packager.BundleDir(in.Product))

	output := openGitHubOutput()
	defer output.Close()
	output.Set("product", in.Product)
	output.Set("bundle_dir", packager.BundleDir(in.Product))
	for _, res := range fetched {
		if res.Version != "" {
			output.Set(res.Dep+"_version", res.Version)
		}
	}

	return nil
}
