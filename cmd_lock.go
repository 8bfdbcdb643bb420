package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cluttrdev/cli"
	"github.com/goccy/go-yaml"
	"github.com/pterm/pterm"

	"github.com/cceh/winbuild/internal/metaerr"
)

func newLockCmd() *cli.Command {
	cfg := lockCmd{}

	fs := flag.NewFlagSet("winbuild lock", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "lock",
		ShortHelp:  "Pin the vendored dependencies to exact release assets.",
		ShortUsage: "winbuild lock [OPTION]...",
		Flags:      fs,
		Exec:       cfg.Exec,
	}
}

type lockCmd struct {
	rootCmd
}

func (c *lockCmd) RegisterFlags(fs *flag.FlagSet) {
	c.rootCmd.RegisterFlags(fs)
}

func (c *lockCmd) Exec(ctx context.Context, args []string) (err error) {
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

	fetcher := Fetcher{
		Client: feedClient(),
		Dir:    expandPath(cfg.Vendor.Dir),
		Update: true,
	}

	spinner, _ := pterm.DefaultSpinner.Start("Resolving dependencies")
	lock, err := fetcher.Resolve(ctx, cfg.Vendor.Deps)
	if err != nil {
		slog.With("error", err).
			With(metaerr.GetMetadata(err)...).
			Error("failed to resolve dependencies")
		spinner.Fail()
		return err
	}
	spinner.Success()

	lockfile := c.lockFile()
	if err := writeLockFile(lockfile, lock); err != nil {
		return err
	}
	pterm.Success.Println("Wrote", lockfile)
	return nil
}

func readLockFile(name string) (Lock, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return Lock{}, err
	}
	var lock Lock
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return Lock{}, err
	}
	return lock, nil
}

func writeLockFile(name string, lock Lock) error {
	data, err := yaml.Marshal(lock)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}
