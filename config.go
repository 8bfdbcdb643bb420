package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/template"

	"github.com/goccy/go-yaml"
)

// Config holds the whole build pipeline configuration. The zero config
// file is valid: defaultConfig reproduces the fixed pipeline of the
// original build script, and a config file only overrides parts of it.
type Config struct {
	Product ProductSpec `yaml:"product"`
	Vendor  VendorSpec  `yaml:"vendor"`
	Bundle  BundleSpec  `yaml:"bundle"`
}

// ProductSpec identifies the application being bundled.
type ProductSpec struct {
	// Name is the bundle name; the output lands in <distDir>/<Name>.
	Name string `yaml:"name"`
	// Entry is the application entry point handed to the packager.
	Entry string `yaml:"entry"`
}

// VendorSpec holds the vendor directory and the native dependencies
// fetched into it.
type VendorSpec struct {
	Dir  string    `yaml:"dir"`
	Deps []DepSpec `yaml:"deps"`
}

// DepSpec describes one native dependency pulled from a release feed.
type DepSpec struct {
	Name    string `yaml:"name"`
	Source  Source `yaml:"source"`
	Version string `yaml:"version"`
	// Ext selects the release asset by filename extension. Usually set
	// through the source DSN (`github://owner/repo?ext=.7z`); an explicit
	// value here wins.
	Ext string `yaml:"ext"`
	// TagPrefix is stripped from release tags before semver matching,
	// for projects that tag like "libusb-1.0.29".
	TagPrefix string `yaml:"tagPrefix,omitempty"`
}

// Source is either a DSN string like "github://libusb/libusb?ext=.7z"
// or an explicit feed spec.
type Source struct {
	String *string
	Spec   *FeedSpec
}

// FeedSpec describes a release feed: where to query, and how to pull
// the version tag and the asset list out of the returned JSON.
type FeedSpec struct {
	Name string `yaml:"name"`
	// LatestURL returns the single newest release.
	LatestURL string `yaml:"latestUrl"`
	// ReleasesURL lists releases, newest first, possibly paginated via
	// a Link header. Used when a version constraint is configured.
	ReleasesURL string `yaml:"releasesUrl"`
	// TagJSONPath and AssetsJSONPath are evaluated against a single
	// release object.
	TagJSONPath    string `yaml:"tagJsonPath"`
	AssetsJSONPath string `yaml:"assetsJsonPath"`
}

// BundleSpec configures the packager invocation.
type BundleSpec struct {
	Tool         string    `yaml:"tool"`
	DistDir      string    `yaml:"distDir"`
	Binaries     []Payload `yaml:"binaries"`
	Data         []Payload `yaml:"data"`
	RuntimeHooks []string  `yaml:"runtimeHooks"`
	ExtraArgs    []string  `yaml:"extraArgs"`
}

// Payload is one --add-binary/--add-data source and its destination
// inside the bundle.
type Payload struct {
	Src  string `yaml:"src"`
	Dest string `yaml:"dest"`
}

// defaultConfig is the original pipeline: latest libusb Windows
// binaries from the GitHub release feed, MSYS2-provided libgphoto2
// libraries, PyInstaller in directory mode.
func defaultConfig() Config {
	source := "github://libusb/libusb?ext=.7z"
	return Config{
		Product: ProductSpec{
			Name:  "ByzanzRTI",
			Entry: "main.py",
		},
		Vendor: VendorSpec{
			Dir: "vendor",
			Deps: []DepSpec{
				{
					Name:    "libusb",
					Source:  Source{String: &source},
					Version: "latest",
				},
			},
		},
		Bundle: BundleSpec{
			Tool:    "pyinstaller",
			DistDir: "dist",
			Binaries: []Payload{
				{Src: "${MINGW_PREFIX}/bin/libgphoto2-6.dll", Dest: "."},
				{Src: "${MINGW_PREFIX}/bin/libgphoto2_port-12.dll", Dest: "."},
				{Src: "{{ .VendorDir }}/libusb/MinGW64/dll/libusb-1.0.dll", Dest: "."},
			},
			Data: []Payload{
				{Src: "ui", Dest: "ui"},
				{Src: "${MINGW_PREFIX}/lib/libgphoto2", Dest: "libgphoto2"},
				{Src: "${MINGW_PREFIX}/lib/libgphoto2_port", Dest: "libgphoto2_port"},
			},
			RuntimeHooks: []string{"rthook_gphoto2.py"},
			ExtraArgs:    []string{"--windowed"},
		},
	}
}

// LoadConfig reads configuration from a reader into `cfg`. Fields not
// present in the document keep whatever `cfg` already holds, so callers
// can decode over defaultConfig to get override semantics.
func LoadConfig(r io.Reader, cfg *Config) error {
	if r == nil {
		return nil
	}
	yaml.RegisterCustomUnmarshaler(func(t *Source, b []byte) error {
		var (
			v   any
			err error
		)
		if err = yaml.Unmarshal(b, &v); err != nil {
			return err
		}
		switch vv := v.(type) {
		case string:
			t.String = &vv
		case map[string]any:
			var tt FeedSpec
			if err = yaml.Unmarshal(b, &tt); err == nil {
				t.Spec = &tt
			}
		default:
			err = fmt.Errorf("invalid type: %v", reflect.TypeOf(v))
		}
		return err
	})
	return yaml.NewDecoder(r).Decode(cfg)
}

// LoadConfigFile loads the configuration file on top of the built-in
// defaults. A missing file is not an error when optional is true: the
// defaults alone describe a complete pipeline.
func LoadConfigFile(name string, optional bool) (Config, error) {
	cfg := defaultConfig()

	file, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) && optional {
			return cfg, nil
		}
		return cfg, err
	}
	defer func() {
		_ = file.Close()
	}()

	if err := LoadConfig(file, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", name, err)
	}
	return cfg, nil
}

// pathVars are the template variables available in payload paths.
type pathVars struct {
	Product   string
	VendorDir string
	DistDir   string
}

func (c *Config) pathVars() pathVars {
	return pathVars{
		Product:   c.Product.Name,
		VendorDir: c.Vendor.Dir,
		DistDir:   c.Bundle.DistDir,
	}
}

// expandPayload renders template variables and environment references
// in a payload path.
func expandPayload(path string, vars pathVars) (string, error) {
	rendered, err := renderTemplate(path, vars)
	if err != nil {
		return "", fmt.Errorf("render payload path: %w", err)
	}
	return expandPath(rendered), nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		path = filepath.Join("${HOME}", path[1:])
	}
	return os.ExpandEnv(path)
}

func renderTemplate(tmpl string, data any) (string, error) {
	tpl := template.New("")

	tpl = tpl.Funcs(template.FuncMap{
		"trimPrefix": func(prefix string, s string) string {
			return strings.TrimPrefix(s, prefix)
		},
	})

	tpl, err := tpl.Parse(tmpl)
	if err != nil {
		return "", err
	}

	var w bytes.Buffer
	if err := tpl.Execute(&w, data); err != nil {
		return "", err
	}

	return w.String(), nil
}

func replaceFileExt(path string, ext string) string {
	oldExt := filepath.Ext(path)
	return path[:len(path)-len(oldExt)] + ext
}
