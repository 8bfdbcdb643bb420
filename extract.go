package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/cceh/winbuild/internal/metaerr"
)

// ExtractArchive unpacks the whole archive into dir. Any previous
// contents of dir are removed first, so the result always mirrors the
// archive and never mixes in files from an older release.
func ExtractArchive(ctx context.Context, archive string, dir string) error {
	file, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	format, _, err := archives.Identify(ctx, filepath.Base(archive), file)
	if err != nil {
		return fmt.Errorf("identify archive format: %w", err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("unsupported archive format: %s", format.Extension())
	}
	// zip and 7z need random access, hand them the file itself
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean extraction dir: %w", err)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	err = extractor.Extract(ctx, file, func(ctx context.Context, f archives.FileInfo) error {
		return writeArchiveFile(dir, f)
	})
	if err != nil {
		return metaerr.WithMetadata(fmt.Errorf("extract archive: %w", err), "archive", archive)
	}
	return nil
}

func writeArchiveFile(dir string, f archives.FileInfo) error {
	dst, err := sanitizeArchivePath(dir, f.NameInArchive)
	if err != nil {
		return err
	}

	switch {
	case f.IsDir():
		return os.MkdirAll(dst, os.ModePerm)
	case f.LinkTarget != "":
		slog.Debug("skipping archive link entry", "name", f.NameInArchive, "target", f.LinkTarget)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	perm := f.Mode().Perm()
	if perm == 0 {
		// zip entries packed on Windows may carry no permission bits
		perm = 0o644
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// sanitizeArchivePath joins an archive member name onto dir and rejects
// names that would escape it.
func sanitizeArchivePath(dir string, name string) (string, error) {
	path := filepath.Join(dir, name)
	if path == filepath.Clean(dir) {
		return path, nil
	}
	if !strings.HasPrefix(path, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	return path, nil
}
