package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"specimport/internal/fileutil"
	"specimport/internal/services"
)

// junkNames are platform artifacts that must not influence extraction or
// root-folder normalization.
var junkNames = map[string]struct{}{
	"__MACOSX":    {},
	".DS_Store":   {},
	"Thumbs.db":   {},
	"desktop.ini": {},
}

func isJunkEntry(name string) bool {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == "" {
			continue
		}
		if _, ok := junkNames[part]; ok {
			return true
		}
		if strings.HasPrefix(part, "._") {
			return true
		}
	}
	return false
}

func extractZipBytes(ctx context.Context, data []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	return extractEntries(ctx, zr.File, destDir)
}

func extractZipFile(ctx context.Context, path, destDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	return extractEntries(ctx, zr.File, destDir)
}

func extractEntries(ctx context.Context, files []*zip.File, destDir string) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if isJunkEntry(file.Name) {
			continue
		}
		target, err := safeJoin(destDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %q: %w", file.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create parent for %q: %w", file.Name, err)
		}
		if err := writeEntry(file, target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(file *zip.File, target string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", file.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", file.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write %q: %w", file.Name, err)
	}
	return out.Close()
}

// safeJoin resolves an archive entry name under destDir, rejecting absolute
// paths and traversal outside the destination.
func safeJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return filepath.Join(destDir, cleaned), nil
}

// promoteSingleRoot flattens archives that wrap their payload in a single
// top-level directory, so relative entry-file paths do not carry the
// wrapper's name.
func promoteSingleRoot(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}
	wrapper := filepath.Join(dir, entries[0].Name())
	if err := fileutil.CopyTree(wrapper, dir); err != nil {
		return promoteErr(err)
	}
	return os.RemoveAll(wrapper)
}

// promoteErr classifies a failed promotion copy: verification mismatches
// surface as integrity failures, everything else stays a plain error for
// the preparation wrapper.
func promoteErr(err error) error {
	if errors.Is(err, fileutil.ErrVerification) {
		return services.Wrap(services.ErrIntegrity, "source", "promote", "verify archive payload copy", err)
	}
	return fmt.Errorf("promote archive root: %w", err)
}
