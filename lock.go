package main

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"
)

// LockedDep pins one vendored dependency to the exact release asset a
// previous resolve picked.
type LockedDep struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Asset   string `yaml:"asset"`
	URL     string `yaml:"url"`
	Size    int64  `yaml:"size,omitempty"`
	SHA256  string `yaml:"sha256,omitempty"`
}

type Lock struct {
	Generated time.Time   `yaml:"generated"`
	Digest    string      `yaml:"digest"`
	Deps      []LockedDep `yaml:"deps"`
}

// Dep returns the locked entry for the named dependency, if any.
func (l Lock) Dep(name string) (LockedDep, bool) {
	for _, dep := range l.Deps {
		if dep.Name == name {
			return dep, true
		}
	}
	return LockedDep{}, false
}

func lockDigest(deps []LockedDep) (string, error) {
	data, err := json.Marshal(deps)
	if err != nil {
		return "", err
	}
	s, err := digest(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return "sha256:" + s, nil
}

func fileDigest(name string) (string, error) {
	file, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()
	return digest(file)
}

func digest(in io.Reader) (string, error) {
	hash := crypto.SHA256.New()
	if _, err := io.Copy(hash, in); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
