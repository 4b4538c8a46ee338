package source

import (
	"errors"
	"fmt"
	"testing"

	"specimport/internal/fileutil"
	"specimport/internal/services"
)

func TestIsJunkEntry(t *testing.T) {
	cases := map[string]bool{
		"api.raml":                  false,
		"schemas/user.json":         false,
		"__MACOSX/api.raml":         true,
		"docs/.DS_Store":            true,
		"Thumbs.db":                 true,
		"desktop.ini":               true,
		"docs/._api.raml":           true,
		"nested/__MACOSX/x":         true,
		"not__MACOSX/file.yaml":     false,
		"schemas/desktop.ini":       true,
		"._wrapper/inner/spec.yaml": true,
	}
	for name, want := range cases {
		if got := isJunkEntry(name); got != want {
			t.Errorf("isJunkEntry(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPromoteErrClassifiesVerificationFailures(t *testing.T) {
	err := promoteErr(fmt.Errorf("copy api.raml: %w", fileutil.ErrVerification))
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity classification, got %v", err)
	}

	plain := promoteErr(errors.New("permission denied"))
	if errors.Is(plain, services.ErrIntegrity) {
		t.Fatalf("plain copy failures must not be integrity errors: %v", plain)
	}
}
