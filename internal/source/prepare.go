package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"specimport/internal/logging"
	"specimport/internal/services"
)

// Source is the input to one import session: either an in-memory buffer or
// a filesystem path. Exactly one of the fields is set.
type Source struct {
	Bytes []byte
	Path  string
}

// FromBytes wraps an in-memory spec payload.
func FromBytes(data []byte) Source {
	return Source{Bytes: data}
}

// FromPath wraps a caller-owned filesystem location.
func FromPath(path string) Source {
	return Source{Path: path}
}

// Options adjusts how a source is staged.
type Options struct {
	// Archive forces zip handling even when the payload lacks the zip
	// signature. Buffers that carry the signature are treated as archives
	// regardless.
	Archive bool
	// EntryFile is a caller-known entry file name, relative to the working
	// directory. It is recorded, not verified; resolution checks existence.
	EntryFile string
}

// Prepared is the staged form of a source: a working directory plus an
// optional entry file. When the preparer created temporary resources,
// Prepared owns their deletion.
type Prepared struct {
	WorkDir   string
	EntryFile string

	ownsTemp   bool
	tempIsFile bool
	tempPath   string

	mu      sync.Mutex
	cleaned bool
}

// OwnsTemp reports whether cleanup will delete anything.
func (p *Prepared) OwnsTemp() bool {
	return p.ownsTemp
}

// Cleanup removes the temporary file or directory created during
// preparation. It is idempotent and a no-op for caller-owned paths.
func (p *Prepared) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cleaned || !p.ownsTemp {
		p.cleaned = true
		return nil
	}
	p.cleaned = true
	if p.tempIsFile {
		if err := os.Remove(p.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove temp file: %w", err)
		}
		return nil
	}
	if err := os.RemoveAll(p.tempPath); err != nil {
		return fmt.Errorf("remove temp directory: %w", err)
	}
	return nil
}

// Preparer stages sources under a configured staging root.
type Preparer struct {
	stagingDir string
	logger     *slog.Logger
}

// NewPreparer constructs a Preparer. The staging directory is created on
// first use.
func NewPreparer(stagingDir string, logger *slog.Logger) *Preparer {
	return &Preparer{
		stagingDir: strings.TrimSpace(stagingDir),
		logger:     logging.NewComponentLogger(logger, "source"),
	}
}

// Prepare normalizes src into a working directory. Any temporary resource
// created before a failure is removed before the error is returned.
func (p *Preparer) Prepare(ctx context.Context, src Source, opts Options) (*Prepared, error) {
	switch {
	case src.Bytes != nil:
		if opts.Archive || isZipBuffer(src.Bytes) {
			return p.prepareArchiveBytes(ctx, src.Bytes, opts)
		}
		return p.prepareBuffer(src.Bytes)
	case src.Path != "":
		return p.preparePath(ctx, src.Path, opts)
	default:
		return nil, services.Wrap(services.ErrUsage, "source", "prepare", "empty source", nil)
	}
}

// isZipBuffer checks for the local-file-header signature PK\x03\x04.
func isZipBuffer(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04})
}

func (p *Preparer) prepareBuffer(data []byte) (*Prepared, error) {
	if err := p.ensureStaging(); err != nil {
		return nil, err
	}
	file, err := os.CreateTemp(p.stagingDir, "buffer-*.spec")
	if err != nil {
		return nil, services.Wrap(services.ErrPreparation, "source", "prepare", "create temp file", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, services.Wrap(services.ErrPreparation, "source", "prepare", "write temp file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return nil, services.Wrap(services.ErrPreparation, "source", "prepare", "close temp file", err)
	}

	path := file.Name()
	p.logger.Debug("buffered source staged",
		logging.String("path", path),
		logging.Int("bytes", len(data)),
	)
	return &Prepared{
		WorkDir:    filepath.Dir(path),
		EntryFile:  filepath.Base(path),
		ownsTemp:   true,
		tempIsFile: true,
		tempPath:   path,
	}, nil
}

func (p *Preparer) prepareArchiveBytes(ctx context.Context, data []byte, opts Options) (*Prepared, error) {
	dir, err := p.newTempDir()
	if err != nil {
		return nil, err
	}
	if err := extractZipBytes(ctx, data, dir); err != nil {
		os.RemoveAll(dir)
		return nil, services.Wrap(services.ErrPreparation, "source", "extract", "decompress archive", err)
	}
	if err := promoteSingleRoot(dir); err != nil {
		os.RemoveAll(dir)
		return nil, services.Wrap(services.ErrPreparation, "source", "extract", "normalize archive root", err)
	}
	p.logger.Debug("archive extracted", logging.String("workdir", dir))
	return &Prepared{
		WorkDir:   dir,
		EntryFile: opts.EntryFile,
		ownsTemp:  true,
		tempPath:  dir,
	}, nil
}

func (p *Preparer) preparePath(ctx context.Context, path string, opts Options) (*Prepared, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrPreparation, "source", "prepare", "stat source path", err)
	}

	if info.IsDir() {
		return &Prepared{WorkDir: path, EntryFile: opts.EntryFile}, nil
	}

	if opts.Archive {
		dir, err := p.newTempDir()
		if err != nil {
			return nil, err
		}
		if err := extractZipFile(ctx, path, dir); err != nil {
			os.RemoveAll(dir)
			return nil, services.Wrap(services.ErrPreparation, "source", "extract", "decompress archive", err)
		}
		if err := promoteSingleRoot(dir); err != nil {
			os.RemoveAll(dir)
			return nil, services.Wrap(services.ErrPreparation, "source", "extract", "normalize archive root", err)
		}
		p.logger.Debug("archive extracted", logging.String("workdir", dir))
		return &Prepared{
			WorkDir:   dir,
			EntryFile: opts.EntryFile,
			ownsTemp:  true,
			tempPath:  dir,
		}, nil
	}

	// A plain file is its own entry point; its parent is the working
	// directory and nothing on disk is owned by the session.
	return &Prepared{
		WorkDir:   filepath.Dir(path),
		EntryFile: filepath.Base(path),
	}, nil
}

func (p *Preparer) ensureStaging() error {
	if p.stagingDir == "" {
		return services.Wrap(services.ErrPreparation, "source", "prepare", "staging directory not configured", nil)
	}
	if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrPreparation, "source", "prepare", "create staging directory", err)
	}
	return nil
}

func (p *Preparer) newTempDir() (string, error) {
	if err := p.ensureStaging(); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(p.stagingDir, "extract-")
	if err != nil {
		return "", services.Wrap(services.ErrPreparation, "source", "prepare", "create temp directory", err)
	}
	return dir, nil
}
