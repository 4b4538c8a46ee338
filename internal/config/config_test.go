package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"specimport/internal/config"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Parser.ParseTimeout != 180000 {
		t.Fatalf("expected default parse timeout, got %d", cfg.Parser.ParseTimeout)
	}
	if cfg.Parser.IdleTimeout != 60000 {
		t.Fatalf("expected default idle timeout, got %d", cfg.Parser.IdleTimeout)
	}
	if cfg.Parser.WorkerBinary != "specimport-worker" {
		t.Fatalf("unexpected worker binary %q", cfg.Parser.WorkerBinary)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + dir + `/staging"

[parser]
parse_timeout_ms = 5000
idle_timeout_ms = 1000
validate_specs = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s, resolved %s exists=%v", path, resolved, exists)
	}
	if got := cfg.ParseTimeout(); got != 5*time.Second {
		t.Fatalf("parse timeout: got %v", got)
	}
	if got := cfg.IdleTimeout(); got != time.Second {
		t.Fatalf("idle timeout: got %v", got)
	}
	if !cfg.Parser.ValidateSpecs {
		t.Fatal("expected validate_specs to be set")
	}
}

func TestValidateRejectsBadFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad log format")
	}
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Parser.ParseTimeout = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative timeout")
	}
}
