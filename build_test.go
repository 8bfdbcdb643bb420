package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestBuildPipeline runs the full fetch-extract-bundle sequence against
// a fake release feed and a stub packager: one matching asset in the
// feed must end up as a populated bundle directory.
func TestBuildPipeline(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the stub packager is a shell script")
	}

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	w, err := zw.Create("MinGW64/dll/libusb-1.0.dll")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("dll-bytes")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	mux, srv := setupServer(t)
	mux.HandleFunc(
		"GET /repos/libusb/libusb/releases/latest",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tag_name": "v1.0.29",
				"assets": []map[string]any{
					{
						"name":                 "libusb-1.0.29.zip",
						"browser_download_url": srv.URL + "/dl/libusb-1.0.29.zip",
						"size":                 zipBuf.Len(),
					},
				},
			})
		},
	)
	mux.HandleFunc(
		"GET /dl/libusb-1.0.29.zip",
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(zipBuf.Bytes())
		},
	)

	workdir := t.TempDir()
	entry := filepath.Join(workdir, "main.py")
	if err := os.WriteFile(entry, []byte("print()"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := writeStubPackager(t, workdir)

	dep := DepSpec{
		Name: "libusb",
		Source: Source{Spec: &FeedSpec{
			Name:           "github",
			LatestURL:      srv.URL + "/repos/libusb/libusb/releases/latest",
			TagJSONPath:    "$.tag_name",
			AssetsJSONPath: "$.assets[*]",
		}},
		Version: "latest",
		Ext:     ".zip",
	}
	cfg := Config{
		Product: ProductSpec{Name: "ByzanzRTI", Entry: entry},
		Vendor:  VendorSpec{Dir: filepath.Join(workdir, "vendor"), Deps: []DepSpec{dep}},
		Bundle: BundleSpec{
			Tool:    tool,
			DistDir: filepath.Join(workdir, "dist"),
			Binaries: []Payload{
				{Src: "{{ .VendorDir }}/libusb/MinGW64/dll/libusb-1.0.dll", Dest: "."},
			},
		},
	}

	fetcher := Fetcher{Client: http.DefaultClient, Dir: cfg.Vendor.Dir}
	res, err := fetcher.Fetch(context.Background(), dep, nil)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	dll := filepath.Join(res.ExtractDir, "MinGW64", "dll", "libusb-1.0.dll")
	if _, err := os.Stat(dll); err != nil {
		t.Fatalf("extracted dll missing: %v", err)
	}

	in, err := ResolveBundleInputs(cfg)
	if err != nil {
		t.Fatalf("ResolveBundleInputs() failed: %v", err)
	}
	packager := Packager{
		Tool:    cfg.Bundle.Tool,
		DistDir: cfg.Bundle.DistDir,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := packager.Run(context.Background(), in); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	entries, err := os.ReadDir(packager.BundleDir("ByzanzRTI"))
	if err != nil {
		t.Fatalf("read bundle dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("bundle dir is empty")
	}
}
