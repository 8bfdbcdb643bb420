package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cluttrdev/cli"
	"github.com/pterm/pterm"
)

const defaultConfigFile = ".winbuild.yaml"

// execute configures the root command and then runs it with the given context.
func execute(ctx context.Context) error {
	cmd := configure()
	opts := []cli.ParseOption{
		cli.WithEnvVarPrefix("WINBUILD"),
	}
	args := os.Args[1:]

	if err := cmd.Parse(args, opts...); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse arguments: %w", err)
	}

	return cmd.Run(ctx)
}

// configure returns the root command.
func configure() *cli.Command {
	var cfg rootCmd

	fs := flag.NewFlagSet("winbuild", flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &cli.Command{
		Name:       "winbuild",
		ShortHelp:  "Fetch native dependencies and bundle the Windows application.",
		ShortUsage: "winbuild [COMMAND] [OPTION]... [ARG]...",
		Subcommands: []*cli.Command{
			cli.DefaultVersionCommand(os.Stdout),
			newBuildCmd(),
			newFetchCmd(),
			newBundleCmd(),
			newLockCmd(),
			newCheckCmd(),
			newCleanCmd(),
		},
		Flags: fs,
		Exec:  cfg.Exec,
	}
}

func initLogging(w io.Writer, level string, format string) {
	if w == nil {
		w = os.Stderr
	}

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := slog.HandlerOptions{
		Level: lvl,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, &opts)
	case "json":
		handler = slog.NewJSONHandler(w, &opts)
	default:
		handler = slog.NewTextHandler(w, &opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

type rootCmd struct {
	ConfigFile string

	flags     *flag.FlagSet
	logFile   *os.File
	logLevel  string
	logFormat string
	debug     bool
}

func (c *rootCmd) RegisterFlags(fs *flag.FlagSet) {
	c.flags = fs

	fs.StringVar(&c.ConfigFile, "config", defaultConfigFile, "The configuration file.")

	fs.StringVar(&c.logLevel, "log-level", "info", "The log level.")
	fs.StringVar(&c.logFormat, "log-format", "text", "The log format ('text' or 'json').")
	fs.BoolVar(&c.debug, "debug", false, "Enable debug mode.")
}

// configFileProvided reports whether -config was set, on the command
// line or through the environment.
func (c *rootCmd) configFileProvided() bool {
	provided := false
	if c.flags != nil {
		c.flags.Visit(func(f *flag.Flag) {
			if f.Name == "config" {
				provided = true
			}
		})
	}
	return provided
}

func (c *rootCmd) Exec(ctx context.Context, args []string) error {
	return flag.ErrHelp
}

// loadConfig reads the configuration file on top of the defaults. The
// default config file may be absent, the defaults alone describe a
// complete pipeline; an explicitly configured file must exist, even
// when it names the default path.
func (c *rootCmd) loadConfig() (Config, error) {
	cfg, err := LoadConfigFile(c.ConfigFile, !c.configFileProvided())
	if err != nil {
		return cfg, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func (c *rootCmd) lockFile() string {
	return replaceFileExt(c.ConfigFile, ".lock")
}

func (c *rootCmd) readLock() (Lock, bool) {
	lock, err := readLockFile(c.lockFile())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cannot read lockfile", "file", c.lockFile(), "error", err)
		}
		return Lock{}, false
	}
	return lock, true
}

// initLogging routes logs to a state-dir file during interactive use
// and straight to stderr on CI runners.
func (c *rootCmd) initLogging() {
	if runningInCI() {
		pterm.DisableStyling()
	} else {
		if stateDir, err := userStateDir(); err == nil {
			_ = os.MkdirAll(stateDir, os.ModePerm)
			c.logFile, _ = os.OpenFile(filepath.Join(stateDir, "winbuild.log"), os.O_APPEND|os.O_WRONLY|os.O_CREATE, os.ModePerm)
		}
	}
	if c.logFile == nil {
		c.logFile = os.Stderr
	}

	level := c.logLevel
	if c.debug {
		level = "debug"
	}
	initLogging(c.logFile, level, c.logFormat)
}

func userStateDir() (string, error) {
	xdgStateHome, ok := os.LookupEnv("XDG_STATE_HOME")
	if !ok || xdgStateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		xdgStateHome = filepath.Join(home, ".local", "state")
	}

	return xdgStateHome, nil
}
