package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cluttrdev/cli"
	"github.com/pterm/pterm"
)

func newCleanCmd() *cli.Command {
	cfg := cleanCmd{}

	fs := flag.NewFlagSet("winbuild clean", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "clean",
		ShortHelp:  "Remove build outputs, and on request the vendor cache.",
		ShortUsage: "winbuild clean [OPTION]...",
		Flags:      fs,
		Exec:       cfg.Exec,
	}
}

type cleanCmd struct {
	rootCmd

	vendor bool
}

func (c *cleanCmd) RegisterFlags(fs *flag.FlagSet) {
	c.rootCmd.RegisterFlags(fs)

	fs.BoolVar(&c.vendor, "vendor", false, "Also remove the vendor directory with the cached archives.")
}

func (c *cleanCmd) Exec(ctx context.Context, args []string) (err error) {
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

	// PyInstaller leaves a build workdir and a generated spec file next
	// to the entry point.
	targets := []string{
		expandPath(cfg.Bundle.DistDir),
		"build",
		cfg.Product.Name + ".spec",
	}
	if c.vendor {
		targets = append(targets, expandPath(cfg.Vendor.Dir))
	}

	for _, target := range targets {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("remove %s: %w", target, err)
		}
		pterm.Info.Println("Removed", target)
	}

	return nil
}
