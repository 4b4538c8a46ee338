package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUsage marks calls made out of order or with arguments that name
	// resources which do not exist (for example a caller-supplied entry
	// file missing from the working directory).
	ErrUsage = errors.New("usage error")

	// ErrPreparation marks failures while staging a source on disk, such as
	// a corrupt archive or an unreadable input.
	ErrPreparation = errors.New("preparation error")

	// ErrResolution marks a working directory that yields no entry-point
	// candidate at all.
	ErrResolution = errors.New("resolution error")

	// ErrParse marks a failure reported by (or a crash of) the parser worker.
	ErrParse = errors.New("parse error")

	// ErrTimeout marks the hard parse timeout being exceeded.
	ErrTimeout = errors.New("timeout")

	// ErrIntegrity marks a checksum or size mismatch detected while copying
	// source material.
	ErrIntegrity = errors.New("integrity error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrParse
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
