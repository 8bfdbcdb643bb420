package main

import (
	"fmt"
	"log/slog"
	"os"
)

// runningInCI reports whether we are inside a CI runner. GitHub Actions
// sets both variables, other systems at least set CI.
func runningInCI() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

// githubOutput appends name=value pairs to the file named by the
// GITHUB_OUTPUT environment variable, the contract GitHub Actions uses
// to pass step outputs. Outside of Actions it does nothing.
type githubOutput struct {
	file *os.File
}

func openGitHubOutput() *githubOutput {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		return &githubOutput{}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Warn("cannot open GITHUB_OUTPUT file", "path", path, "error", err)
		return &githubOutput{}
	}
	return &githubOutput{file: file}
}

func (o *githubOutput) Set(name string, value string) {
	if o.file == nil {
		return
	}
	if _, err := fmt.Fprintf(o.file, "%s=%s\n", name, value); err != nil {
		slog.Warn("cannot write GITHUB_OUTPUT", "name", name, "error", err)
	}
}

func (o *githubOutput) Close() {
	if o.file != nil {
		_ = o.file.Close()
	}
}
