package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	_url "net/url"
	"os"
	"path/filepath"

	"github.com/cceh/winbuild/internal/metaerr"
)

// Download retrieves a release asset from the given url and saves it as
// `name` in the given directory. The response is streamed to a hidden
// .part file and renamed into place only once fully written, so an
// interrupted download never leaves a file that later runs would take
// for a complete cached archive.
// It returns the local path of the downloaded file and its sha256 digest.
func Download(ctx context.Context, client *http.Client, url string, dir string, name string) (path string, digest string, err error) {
	if name == "" {
		u, perr := _url.Parse(url)
		if perr != nil {
			return "", "", perr
		}
		name = filepath.Base(u.Path)
	}

	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", "", err
	}

	dst := filepath.Join(dir, name)
	part := filepath.Join(dir, "."+name+".part")

	file, err := os.Create(part)
	if err != nil {
		return "", "", fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		_ = file.Close()
		if err != nil {
			_ = os.Remove(part)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", "", metaerr.WithMetadata(
			fmt.Errorf("%d - %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			"url", url,
		)
	}

	hash := sha256.New()
	if _, err = io.Copy(io.MultiWriter(file, hash), resp.Body); err != nil {
		return "", "", fmt.Errorf("write output file: %w", err)
	}
	if err = file.Close(); err != nil {
		return "", "", err
	}
	if err = os.Rename(part, dst); err != nil {
		return "", "", err
	}

	return dst, hex.EncodeToString(hash.Sum(nil)), nil
}
