package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cceh/winbuild/internal/metaerr"
)

// Fetcher caches release archives in the vendor directory and extracts
// them for bundling.
type Fetcher struct {
	Client *http.Client
	// Dir is the vendor directory holding cached archives and their
	// extracted trees.
	Dir string
	// Update skips the offline cache resolution and queries the feed
	// even when a cached archive or lock entry exists.
	Update bool
}

// FetchResult reports what one Fetch did, for logging.
type FetchResult struct {
	Dep        string
	Version    string
	Archive    string
	Digest     string
	Size       int64
	Downloaded bool
	ExtractDir string
}

// Fetch makes sure the dependency's release archive is present in the
// vendor directory and extracts it into <dir>/<name>. The extraction
// runs even for a cached archive, so the extracted tree always matches
// the archive.
func (f *Fetcher) Fetch(ctx context.Context, dep DepSpec, locked *LockedDep) (FetchResult, error) {
	res, err := f.EnsureArchive(ctx, dep, locked)
	if err != nil {
		return res, err
	}

	res.ExtractDir = filepath.Join(f.Dir, dep.Name)
	if err := ExtractArchive(ctx, res.Archive, res.ExtractDir); err != nil {
		return res, err
	}
	return res, nil
}

// EnsureArchive returns a local archive for the dependency, downloading
// it only when no cached one can be used. Resolution order:
//
//   - a lock entry names the expected archive, so a cached copy is
//     verified against the pinned digest and reused without touching
//     the network; a missing copy is downloaded from the pinned URL
//   - without a lock entry, a single cached archive matching the
//     configured extension is reused as-is
//   - otherwise the release feed is queried and the selected asset
//     downloaded, unless a file of the same name already exists
func (f *Fetcher) EnsureArchive(ctx context.Context, dep DepSpec, locked *LockedDep) (FetchResult, error) {
	res := FetchResult{Dep: dep.Name}

	spec, ext, err := resolveDepSource(dep)
	if err != nil {
		return res, err
	}

	if !f.Update {
		if locked != nil {
			return f.ensureLockedArchive(ctx, *locked)
		}

		cached, err := findCachedArchives(f.Dir, ext)
		if err != nil {
			return res, err
		}
		switch len(cached) {
		case 1:
			info, err := os.Stat(cached[0])
			if err != nil {
				return res, err
			}
			res.Archive = cached[0]
			res.Size = info.Size()
			return res, nil
		case 0:
			// nothing cached, ask the feed
		default:
			return res, fmt.Errorf(
				"multiple cached archives match %s in %s, run `winbuild clean -vendor` or pin one with `winbuild lock`",
				ext, f.Dir,
			)
		}
	}

	rel, err := ResolveRelease(ctx, f.Client, spec, dep.Version, dep.TagPrefix)
	if err != nil {
		return res, fmt.Errorf("resolve release: %w", err)
	}
	asset, err := SelectAsset(rel.Assets, ext)
	if err != nil {
		return res, metaerr.WithMetadata(err, "release", rel.Tag)
	}
	res.Version = rel.Tag

	path := filepath.Join(f.Dir, asset.Name)
	if info, err := os.Stat(path); err == nil {
		res.Archive = path
		res.Size = info.Size()
		return res, nil
	}

	path, sum, err := Download(ctx, f.Client, asset.URL, f.Dir, asset.Name)
	if err != nil {
		return res, metaerr.WithMetadata(
			fmt.Errorf("download release asset: %w", err),
			"url", asset.URL,
		)
	}
	res.Archive = path
	res.Digest = sum
	res.Size = asset.Size
	if info, err := os.Stat(path); err == nil {
		res.Size = info.Size()
	}
	res.Downloaded = true
	return res, nil
}

func (f *Fetcher) ensureLockedArchive(ctx context.Context, locked LockedDep) (FetchResult, error) {
	res := FetchResult{Dep: locked.Name, Version: locked.Version}

	path := filepath.Join(f.Dir, locked.Asset)
	if info, err := os.Stat(path); err == nil {
		sum, err := fileDigest(path)
		if err != nil {
			return res, err
		}
		if locked.SHA256 != "" && sum != locked.SHA256 {
			return res, metaerr.WithMetadata(
				fmt.Errorf("cached archive does not match lockfile, remove it or rerun `winbuild lock`"),
				"archive", path, "want", locked.SHA256, "got", sum,
			)
		}
		res.Archive = path
		res.Digest = sum
		res.Size = info.Size()
		return res, nil
	}

	path, sum, err := Download(ctx, f.Client, locked.URL, f.Dir, locked.Asset)
	if err != nil {
		return res, metaerr.WithMetadata(
			fmt.Errorf("download release asset: %w", err),
			"url", locked.URL,
		)
	}
	if locked.SHA256 != "" && sum != locked.SHA256 {
		return res, metaerr.WithMetadata(
			fmt.Errorf("downloaded archive does not match lockfile"),
			"archive", path, "want", locked.SHA256, "got", sum,
		)
	}
	res.Archive = path
	res.Digest = sum
	res.Size = locked.Size
	if info, err := os.Stat(path); err == nil {
		res.Size = info.Size()
	}
	res.Downloaded = true
	return res, nil
}

// Resolve queries the feed for every dependency, makes sure the picked
// archives are cached, and returns a lockfile pinning them.
func (f *Fetcher) Resolve(ctx context.Context, deps []DepSpec) (Lock, error) {
	var locked []LockedDep
	for _, dep := range deps {
		data, err := f.resolve(ctx, dep)
		if err != nil {
			return Lock{}, metaerr.WithMetadata(err, "name", dep.Name)
		}
		locked = append(locked, data)
	}
	sort.SliceStable(locked, func(i, j int) bool {
		return locked[i].Name < locked[j].Name
	})

	digest, err := lockDigest(locked)
	if err != nil {
		return Lock{}, err
	}

	return Lock{
		Generated: time.Now().UTC(),
		Digest:    digest,
		Deps:      locked,
	}, nil
}

func (f *Fetcher) resolve(ctx context.Context, dep DepSpec) (LockedDep, error) {
	spec, ext, err := resolveDepSource(dep)
	if err != nil {
		return LockedDep{}, err
	}

	rel, err := ResolveRelease(ctx, f.Client, spec, dep.Version, dep.TagPrefix)
	if err != nil {
		return LockedDep{}, fmt.Errorf("resolve release: %w", err)
	}
	asset, err := SelectAsset(rel.Assets, ext)
	if err != nil {
		return LockedDep{}, metaerr.WithMetadata(err, "release", rel.Tag)
	}

	path := filepath.Join(f.Dir, asset.Name)
	var sum string
	if _, err := os.Stat(path); err == nil {
		sum, err = fileDigest(path)
		if err != nil {
			return LockedDep{}, err
		}
	} else {
		_, sum, err = Download(ctx, f.Client, asset.URL, f.Dir, asset.Name)
		if err != nil {
			return LockedDep{}, metaerr.WithMetadata(
				fmt.Errorf("download release asset: %w", err),
				"url", asset.URL,
			)
		}
	}

	return LockedDep{
		Name:    dep.Name,
		Version: rel.Tag,
		Asset:   asset.Name,
		URL:     asset.URL,
		Size:    asset.Size,
		SHA256:  sum,
	}, nil
}

func findCachedArchives(dir string, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, match := range matches {
		// hidden files are in-flight downloads
		if strings.HasPrefix(filepath.Base(match), ".") {
			continue
		}
		archives = append(archives, match)
	}
	return archives, nil
}
