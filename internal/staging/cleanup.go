// Package staging reclaims leftover workspace state. Source preparation
// allocates buffer files and extraction directories under the configured
// staging directory; crashed or killed processes can leave them behind,
// and this package sweeps them based on age.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"specimport/internal/logging"
)

// CleanStaleResult contains the outcome of a stale staging cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a staging entry path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging entries older than maxAge. Both extraction
// directories and leaked buffer files are candidates; a live session touches
// its entries at preparation time, so anything past the cutoff belongs to a
// session that will never clean up after itself.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		entryPath := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entryPath, Error: err})
			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(entryPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entryPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale staging entry",
					logging.String("path", entryPath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
		} else {
			result.Removed = append(result.Removed, entryPath)
			if logger != nil {
				logger.Info("removed stale staging entry",
					logging.String("path", entryPath),
					logging.Duration("age", time.Since(info.ModTime())),
					logging.String(logging.FieldEventType, "staging_cleanup"),
				)
			}
		}
	}

	return result
}

// ListEntries returns the staging entries with their metadata.
func ListEntries(stagingDir string) ([]EntryInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []EntryInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		entryPath := filepath.Join(stagingDir, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size, _ = dirSize(entryPath)
		}

		infos = append(infos, EntryInfo{
			Name:    entry.Name(),
			Path:    entryPath,
			Dir:     entry.IsDir(),
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return infos, nil
}

// EntryInfo contains metadata about a staging entry.
type EntryInfo struct {
	Name    string
	Path    string
	Dir     bool
	ModTime time.Time
	Size    int64
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Ignore errors, best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
