package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"specimport/internal/logging"
)

func TestNewJSONWritesExpectedKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "import.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("prepared source", logging.String("path", "/tmp/x"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("decode log line: %v (content %q)", err, content)
	}
	if entry["msg"] != "prepared source" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts key in json output")
	}
	if entry["path"] != "/tmp/x" {
		t.Fatalf("unexpected path attr: %v", entry["path"])
	}
}

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "import.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "suppressed") {
		t.Fatalf("info entry should have been filtered: %q", content)
	}
	if !strings.Contains(string(content), "kept") {
		t.Fatalf("warn entry missing: %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewComponentLoggerAttachesComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "import.log")

	base, err := logging.New(logging.Options{
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger := logging.NewComponentLogger(base, "resolver")
	logger.Info("scan complete")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"component":"resolver"`) {
		t.Fatalf("expected component attr in output: %q", content)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Error("dropped", logging.Error(os.ErrNotExist))
}
