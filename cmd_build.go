package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cluttrdev/cli"
)

func newBuildCmd() *cli.Command {
	cfg := buildCmd{}

	fs := flag.NewFlagSet("winbuild build", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "build",
		ShortHelp:  "Fetch the native dependencies and bundle the application.",
		ShortUsage: "winbuild build [OPTION]...",
		Flags:      fs,
		Exec:       cfg.Exec,
	}
}

type buildCmd struct {
	rootCmd

	update bool
}

func (c *buildCmd) RegisterFlags(fs *flag.FlagSet) {
	c.rootCmd.RegisterFlags(fs)

	fs.BoolVar(&c.update, "update", false, "Query the release feed even when a cached archive exists.")
}

func (c *buildCmd) Exec(ctx context.Context, args []string) (err error) {
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

	results, err := fetchDeps(ctx, c.rootCmd, cfg, cfg.Vendor.Deps, c.update)
	if err != nil {
		return err
	}

	return runBundle(ctx, cfg, results)
}
