package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AsaiYusuke/jsonpath"

	"github.com/cceh/winbuild/internal/metaerr"
)

// Release is one published release of an upstream project.
type Release struct {
	Tag    string
	Assets []Asset
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name string
	URL  string
	Size int64
}

func resolveDepSource(dep DepSpec) (FeedSpec, string, error) {
	spec, ext, err := resolveSourceSpec(dep.Source)
	if err != nil {
		return FeedSpec{}, "", err
	}
	if dep.Ext != "" {
		ext = dep.Ext
	}
	if ext == "" {
		return FeedSpec{}, "", fmt.Errorf("missing asset extension for dependency %q", dep.Name)
	}
	return spec, ext, nil
}

func resolveSourceSpec(s Source) (FeedSpec, string, error) {
	switch {
	case s.String != nil:
		return resolveSourceString(*s.String)
	case s.Spec != nil:
		return *s.Spec, "", nil
	}
	return FeedSpec{}, "", fmt.Errorf("invalid source config")
}

func resolveSourceString(spec string) (FeedSpec, string, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return FeedSpec{}, "", err
	}

	if u.Scheme == "github" || u.Host == "github.com" {
		return resolveGitHubFeed(*u)
	}

	return FeedSpec{}, "", fmt.Errorf("unsupported feed source: %s", spec)
}

func resolveGitHubFeed(u url.URL) (FeedSpec, string, error) {
	const (
		githubLatestURL      = "https://api.github.com/repos/%s/%s/releases/latest"
		githubReleasesURL    = "https://api.github.com/repos/%s/%s/releases"
		githubTagJSONPath    = "$.tag_name"
		githubAssetsJSONPath = "$.assets[*]"
	)

	var (
		owner string
		repo  string
	)
	if u.Scheme == "github" {
		// github://libusb/libusb?ext=.7z
		owner = u.Host
		repo = strings.TrimPrefix(u.Path, "/")
	} else if u.Host == "github.com" {
		// https://github.com/libusb/libusb?ext=.7z
		parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
		if len(parts) < 2 {
			return FeedSpec{}, "", fmt.Errorf("invalid url")
		}
		owner = parts[0]
		repo = parts[1]
	} else {
		return FeedSpec{}, "", fmt.Errorf("invalid url")
	}
	if owner == "" || repo == "" {
		return FeedSpec{}, "", fmt.Errorf("invalid url")
	}

	return FeedSpec{
		Name:           "github",
		LatestURL:      fmt.Sprintf(githubLatestURL, owner, repo),
		ReleasesURL:    fmt.Sprintf(githubReleasesURL, owner, repo),
		TagJSONPath:    githubTagJSONPath,
		AssetsJSONPath: githubAssetsJSONPath,
	}, u.Query().Get("ext"), nil
}

// ResolveRelease queries the feed once and returns the release selected
// by `version`: "latest" (or empty) uses the latest-release endpoint, a
// semver constraint walks the releases list and picks the newest
// matching tag. tagPrefix is stripped before constraint matching, for
// feeds that tag like "jq-1.7.1".
func ResolveRelease(ctx context.Context, client *http.Client, feed FeedSpec, version string, tagPrefix string) (Release, error) {
	if version == "" || version == "latest" {
		if feed.LatestURL != "" {
			return getLatestRelease(ctx, client, feed)
		}
		version = "*"
	}

	if feed.ReleasesURL == "" {
		return Release{}, fmt.Errorf("feed %q has no releases url, cannot match version constraint", feed.Name)
	}
	releases, err := getReleases(ctx, client, feed)
	if err != nil {
		return Release{}, err
	}

	tags := make([]string, 0, len(releases))
	for _, rel := range releases {
		tags = append(tags, rel.Tag)
	}
	tag, err := FindLatestVersion(tags, version, tagPrefix)
	if err != nil {
		return Release{}, err
	}
	for _, rel := range releases {
		if rel.Tag == tag {
			return rel, nil
		}
	}
	return Release{}, fmt.Errorf("no release for tag %s", tag)
}

func getLatestRelease(ctx context.Context, client *http.Client, feed FeedSpec) (Release, error) {
	src, _, err := getJSON(ctx, client, feed.LatestURL)
	if err != nil {
		return Release{}, metaerr.WithMetadata(err, "url", feed.LatestURL)
	}
	return parseRelease(src, feed)
}

func getReleases(ctx context.Context, client *http.Client, feed FeedSpec) ([]Release, error) {
	var releases []Release

	url := feed.ReleasesURL
	for {
		src, header, err := getJSON(ctx, client, url)
		if err != nil {
			return nil, metaerr.WithMetadata(err, "url", url)
		}

		items, ok := src.([]any)
		if !ok {
			return nil, fmt.Errorf("release list: unexpected document type %T", src)
		}
		for _, item := range items {
			rel, err := parseRelease(item, feed)
			if err != nil {
				return nil, err
			}
			releases = append(releases, rel)
		}

		nextLink := findNextLink(header.Values("Link"))
		if nextLink == "" {
			break
		}
		url = nextLink
	}

	return releases, nil
}

func getJSON(ctx context.Context, client *http.Client, url string) (any, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, metaerr.WithMetadata(
			fmt.Errorf("%d - %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			"body", string(body),
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}

	var src any
	if err := json.Unmarshal(body, &src); err != nil {
		return nil, nil, fmt.Errorf("unmarshal response body: %w", err)
	}
	return src, resp.Header, nil
}

// parseRelease pulls the tag and the asset list out of a single release
// object using the feed's JSONPath expressions. Asset objects must carry
// name, browser_download_url and size members (the GitHub release shape).
func parseRelease(src any, feed FeedSpec) (Release, error) {
	tags, err := jsonpath.Retrieve(feed.TagJSONPath, src)
	if err != nil {
		return Release{}, fmt.Errorf("tag query %s: %w", feed.TagJSONPath, err)
	}
	tag, ok := tags[0].(string)
	if !ok || tag == "" {
		return Release{}, fmt.Errorf("tag query %s: no tag in release", feed.TagJSONPath)
	}
	rel := Release{Tag: tag}

	assets, err := jsonpath.Retrieve(feed.AssetsJSONPath, src)
	switch err.(type) {
	case nil:
	case jsonpath.ErrorMemberNotExist, jsonpath.ErrorTypeUnmatched:
		// release without assets
		return rel, nil
	default:
		return Release{}, fmt.Errorf("assets query %s: %w", feed.AssetsJSONPath, err)
	}
	for _, src := range assets {
		if asset, ok := parseAsset(src); ok {
			rel.Assets = append(rel.Assets, asset)
		}
	}
	return rel, nil
}

func parseAsset(src any) (Asset, bool) {
	m, ok := src.(map[string]any)
	if !ok {
		return Asset{}, false
	}
	name, _ := m["name"].(string)
	url, _ := m["browser_download_url"].(string)
	if name == "" || url == "" {
		return Asset{}, false
	}
	asset := Asset{Name: name, URL: url}
	if size, ok := m["size"].(float64); ok {
		asset.Size = int64(size)
	}
	return asset, true
}

// SelectAsset returns the single asset whose filename ends in ext.
// Zero matches and multiple matches are both errors.
func SelectAsset(assets []Asset, ext string) (Asset, error) {
	var matches []Asset
	for _, asset := range assets {
		if strings.HasSuffix(asset.Name, ext) {
			matches = append(matches, asset)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Asset{}, metaerr.WithMetadata(
			fmt.Errorf("no release asset matching %s", ext),
			"assets", len(assets),
		)
	}
	names := make([]string, 0, len(matches))
	for _, asset := range matches {
		names = append(names, asset.Name)
	}
	return Asset{}, fmt.Errorf("ambiguous release assets matching %s: %s", ext, strings.Join(names, ", "))
}

func findNextLink(headers []string) string {
	for _, raw := range headers {
		// Header values may be comma delimited sequences
		for _, header := range strings.Split(raw, ",") {
			var linkURL, linkRel string

			// Link header values have the form: <url>; rel="next"; foo="bar"
			for _, part := range strings.Split(header, ";") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}

				// <url>
				if part[0] == '<' && part[len(part)-1] == '>' {
					linkURL = strings.Trim(part, "<>")
					continue
				}

				// rel="next"
				keyval := strings.SplitN(part, "=", 2)
				if len(keyval) != 2 {
					continue
				} else if strings.ToLower(keyval[0]) == "rel" {
					linkRel = strings.Trim(keyval[1], "\"")
				}
			}

			if strings.ToLower(linkRel) == "next" {
				return linkURL
			}
		}
	}
	return ""
}
