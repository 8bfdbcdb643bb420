package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/cluttrdev/cli"
	"github.com/pterm/pterm"
)

func newCheckCmd() *cli.Command {
	cfg := checkCmd{}

	fs := flag.NewFlagSet("winbuild check", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "check",
		ShortHelp:  "Check the configuration, lockfile and bundle payloads.",
		ShortUsage: "winbuild check [OPTION]...",
		Flags:      fs,
		Exec:       cfg.Exec,
	}
}

type checkCmd struct {
	rootCmd
}

func (c *checkCmd) RegisterFlags(fs *flag.FlagSet) {
	c.rootCmd.RegisterFlags(fs)
}

func (c *checkCmd) Exec(ctx context.Context, args []string) (err error) {
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

	var problems []string

	for _, dep := range cfg.Vendor.Deps {
		if _, _, err := resolveDepSource(dep); err != nil {
			problems = append(problems, fmt.Sprintf("dependency %s: %v", dep.Name, err))
		}
	}

	if lock, ok := c.readLock(); ok {
		digest, err := lockDigest(lock.Deps)
		if err != nil {
			problems = append(problems, fmt.Sprintf("lockfile: %v", err))
		} else if digest != lock.Digest {
			problems = append(problems, "lockfile: digest does not match entries, rerun `winbuild lock`")
		}
		for _, dep := range cfg.Vendor.Deps {
			if _, ok := lock.Dep(dep.Name); !ok {
				problems = append(problems, fmt.Sprintf("lockfile: no entry for %s, rerun `winbuild lock`", dep.Name))
			}
		}
	}

	in, err := ResolveBundleInputs(cfg)
	if err != nil {
		problems = append(problems, fmt.Sprintf("bundle inputs: %v", err))
	} else if err := VerifyInputs(in); err != nil {
		problems = append(problems, err.Error())
	}

	if _, err := exec.LookPath(cfg.Bundle.Tool); err != nil {
		problems = append(problems, fmt.Sprintf("packager %s not found on PATH", cfg.Bundle.Tool))
	}

	if len(problems) > 0 {
		for _, problem := range problems {
			pterm.Warning.Println(problem)
		}
		return fmt.Errorf("found %d problem(s)", len(problems))
	}

	pterm.Success.Println("Configuration OK")
	return nil
}
