package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/cluttrdev/cli"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/cceh/winbuild/internal/metaerr"
)

func newFetchCmd() *cli.Command {
	cfg := fetchCmd{}

	fs := flag.NewFlagSet("winbuild fetch", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "fetch",
		ShortHelp:  "Fetch and extract the vendored native dependencies.",
		ShortUsage: "winbuild fetch [OPTION]... [NAME]...",
		Flags:      fs,
		Exec:       cfg.Exec,
	}
}

type fetchCmd struct {
	rootCmd

	update bool
}

func (c *fetchCmd) RegisterFlags(fs *flag.FlagSet) {
	c.rootCmd.RegisterFlags(fs)

	fs.BoolVar(&c.update, "update", false, "Query the release feed even when a cached archive exists.")
}

func (c *fetchCmd) Exec(ctx context.Context, args []string) (err error) {
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

	deps, err := selectDeps(cfg.Vendor.Deps, args)
	if err != nil {
		return err
	}

	_, err = fetchDeps(ctx, c.rootCmd, cfg, deps, c.update)
	return err
}

// fetchDeps runs the fetch pipeline for the given dependencies, one at
// a time in config order, aborting on the first failure.
func fetchDeps(ctx context.Context, root rootCmd, cfg Config, deps []DepSpec, update bool) ([]FetchResult, error) {
	fetcher := Fetcher{
		Client: feedClient(),
		Dir:    expandPath(cfg.Vendor.Dir),
		Update: update,
	}

	lock, hasLock := root.readLock()

	results := make([]FetchResult, 0, len(deps))
	for _, dep := range deps {
		spinner, _ := pterm.DefaultSpinner.Start("Fetching ", dep.Name)

		var locked *LockedDep
		if hasLock && !update {
			if entry, ok := lock.Dep(dep.Name); ok {
				locked = &entry
			}
		}

		res, err := fetcher.Fetch(ctx, dep, locked)
		if err != nil {
			slog.With("name", dep.Name, "error", err).
				With(metaerr.GetMetadata(err)...).
				Error("failed to fetch dependency")
			spinner.Fail("Failed to fetch ", dep.Name, ": ", err)
			return results, metaerr.WithMetadata(err, "name", dep.Name)
		}

		results = append(results, res)
		spinner.Success(fetchSummary(res))
	}
	return results, nil
}

func fetchSummary(res FetchResult) string {
	name := filepath.Base(res.Archive)
	size := humanize.Bytes(uint64(res.Size))
	if res.Downloaded {
		return fmt.Sprintf("Fetched %s (%s)", name, size)
	}
	return fmt.Sprintf("Reused cached %s (%s)", name, size)
}

func selectDeps(deps []DepSpec, names []string) ([]DepSpec, error) {
	if len(names) == 0 {
		return deps, nil
	}
	var selected []DepSpec
	for _, name := range names {
		index := slices.IndexFunc(deps, func(d DepSpec) bool {
			return d.Name == name
		})
		if index == -1 {
			return nil, fmt.Errorf("name %s not found", name)
		}
		selected = append(selected, deps[index])
	}
	return selected, nil
}
