// Package resolve locates the entry-point file of a staged API specification.
// Resolution either pins a single entry file or surfaces an ordered candidate
// list for the caller to disambiguate; ambiguity is a suspension, not an
// error.
package resolve

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"specimport/internal/logging"
	"specimport/internal/services"
	"specimport/internal/sniff"
)

// Resolution is the discriminated result of a scan: either Entry is set and
// the session may proceed to parsing, or Candidates holds two or more
// plausible entry files awaiting a caller choice.
type Resolution struct {
	Entry      string
	Candidates []string
}

// Ambiguous reports whether the caller must choose an entry file.
func (r Resolution) Ambiguous() bool {
	return r.Entry == "" && len(r.Candidates) > 0
}

// specExtensions are the file suffixes considered plausible spec files.
var specExtensions = map[string]struct{}{
	".raml": {},
	".yaml": {},
	".yml":  {},
	".json": {},
}

// skippedDirs are directory names never descended into during a scan.
var skippedDirs = map[string]struct{}{
	".git":     {},
	"__MACOSX": {},
}

// Resolver scans working directories for spec entry points.
type Resolver struct {
	logger *slog.Logger
}

// New constructs a Resolver.
func New(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logging.NewComponentLogger(logger, "resolve")}
}

// Pin verifies that a caller-supplied entry file exists under workDir. A
// missing file is a usage error; there is no silent fallback to scanning.
func (r *Resolver) Pin(workDir, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return services.Wrap(services.ErrUsage, "resolve", "pin", "entry file name is empty", nil)
	}
	full := filepath.Join(workDir, filepath.FromSlash(name))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return services.Wrap(services.ErrUsage, "resolve", "pin", "entry file "+name+" not found in working directory", err)
	}
	return nil
}

// Scan walks workDir looking for spec files. Exactly one strong match (a
// file whose header identifies a supported dialect) pins automatically; zero
// or several strong matches surface the full candidate list. Unreadable and
// binary files are skipped, never fatal.
func (r *Resolver) Scan(workDir string) (Resolution, error) {
	var candidates []string
	var strong []string

	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are tolerated.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != workDir {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := specExtensions[ext]; !ok {
			return nil
		}
		typ, plausible := probe(path)
		if !plausible {
			return nil
		}
		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		candidates = append(candidates, rel)
		if typ.Recognized() {
			strong = append(strong, rel)
		}
		return nil
	})
	if err != nil {
		return Resolution{}, services.Wrap(services.ErrResolution, "resolve", "scan", "walk working directory", err)
	}

	sort.Strings(candidates)
	sort.Strings(strong)

	switch {
	case len(strong) == 1:
		r.logger.Debug("entry file pinned", logging.String("entry", strong[0]))
		return Resolution{Entry: strong[0]}, nil
	case len(candidates) == 0:
		return Resolution{}, services.Wrap(services.ErrResolution, "resolve", "scan", "no spec files found in working directory", nil)
	case len(candidates) == 1:
		// A single plausible file resolves automatically even without a
		// recognizable header.
		r.logger.Debug("entry file pinned", logging.String("entry", candidates[0]))
		return Resolution{Entry: candidates[0]}, nil
	default:
		r.logger.Debug("entry point ambiguous", logging.Int("candidates", len(candidates)))
		return Resolution{Candidates: candidates}, nil
	}
}

// probe decides whether a file is a plausible spec candidate and sniffs its
// type. Binary or unreadable files are not candidates.
func probe(path string) (sniff.Type, bool) {
	f, err := os.Open(path)
	if err != nil {
		return sniff.Type{}, false
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	f.Close()
	if err != nil && err != io.EOF {
		return sniff.Type{}, false
	}
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return sniff.Type{}, false
	}
	typ, err := sniff.DetectFile(path)
	if err != nil {
		return sniff.Type{}, false
	}
	return typ, true
}
