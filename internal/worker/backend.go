package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"

	"specimport/internal/parser"
	"specimport/internal/sniff"
)

// NormalizingBackend converts a spec document into the dialect-independent
// model envelope: the document decoded from its source syntax and re-encoded
// as canonical JSON, tagged with the detected type. It stands in for a full
// grammar-level parser, which stays a pluggable collaborator.
type NormalizingBackend struct{}

// Parse implements Backend.
func (NormalizingBackend) Parse(ctx context.Context, req parser.Request) (string, []string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(req.Source)
	if err != nil {
		return "", nil, fmt.Errorf("read source: %w", err)
	}

	typ := req.From
	if !typ.Recognized() {
		detected, err := sniff.DetectFile(req.Source)
		if err == nil && detected.Recognized() {
			typ = detected
		}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("decode %s document: %w", typ.ContentType, err)
	}

	var notes []string
	if req.Validate {
		notes = validationNotes(doc, typ)
	}

	envelope := map[string]any{
		"specification": doc,
		"from":          typ,
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return "", nil, fmt.Errorf("encode model: %w", err)
	}
	return string(encoded), notes, nil
}

// validationNotes reports shallow structural omissions. They are advisory;
// a note never fails the parse.
func validationNotes(doc any, typ sniff.Type) []string {
	root, ok := doc.(map[string]any)
	if !ok {
		return []string{"document root is not a mapping"}
	}

	var notes []string
	switch typ.Family {
	case sniff.FamilyRAML10, sniff.FamilyRAML08:
		if _, ok := root["title"]; !ok {
			notes = append(notes, "missing required title node")
		}
	case sniff.FamilyOAS30, sniff.FamilyOAS20:
		if _, ok := root["info"]; !ok {
			notes = append(notes, "missing required info object")
		}
		if _, ok := root["paths"]; !ok {
			notes = append(notes, "document declares no paths")
		}
	}
	return notes
}
