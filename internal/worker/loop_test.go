package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"specimport/internal/logging"
	"specimport/internal/parser"
	"specimport/internal/sniff"
)

type scriptedBackend struct {
	model string
	notes []string
	err   error
	panic bool
}

func (b scriptedBackend) Parse(ctx context.Context, req parser.Request) (string, []string, error) {
	if b.panic {
		panic("exploded")
	}
	return b.model, b.notes, b.err
}

func runLoop(t *testing.T, backend Backend, requests ...parser.Request) []parser.Response {
	t.Helper()
	var in bytes.Buffer
	enc := json.NewEncoder(&in)
	for _, req := range requests {
		if err := enc.Encode(req); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := Run(context.Background(), &in, &out, backend, logging.NewNop()); err != nil {
		t.Fatal(err)
	}

	var responses []parser.Response
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp parser.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestRunRepliesWithModel(t *testing.T) {
	responses := runLoop(t, scriptedBackend{model: "the-model"}, parser.Request{Source: "/x"})
	if len(responses) != 1 || text(responses[0].API) != "the-model" {
		t.Fatalf("unexpected responses %+v", responses)
	}
}

func TestRunEmptyModelStillTerminates(t *testing.T) {
	responses := runLoop(t, scriptedBackend{model: ""}, parser.Request{Source: "/x"})
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %+v", responses)
	}
	if !responses[0].Terminal() {
		t.Fatalf("empty model must still terminate the request: %+v", responses[0])
	}
	if responses[0].API == nil || *responses[0].API != "" {
		t.Fatalf("expected present empty api field, got %+v", responses[0])
	}
}

func TestRunEmitsNotesBeforeTerminalReply(t *testing.T) {
	backend := scriptedBackend{model: "m", notes: []string{"note one", "note two"}}
	responses := runLoop(t, backend, parser.Request{Source: "/x", Validate: true})
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %+v", responses)
	}
	if text(responses[0].Validation) != "note one" || text(responses[1].Validation) != "note two" {
		t.Fatalf("notes out of order: %+v", responses)
	}
	if !responses[2].Terminal() || text(responses[2].API) != "m" {
		t.Fatalf("expected terminal model reply, got %+v", responses[2])
	}
}

func TestRunConvertsBackendErrors(t *testing.T) {
	responses := runLoop(t, scriptedBackend{err: errors.New("bad include")}, parser.Request{Source: "/x"})
	if len(responses) != 1 || text(responses[0].Error) != "bad include" {
		t.Fatalf("unexpected responses %+v", responses)
	}
}

func TestRunContainsBackendPanics(t *testing.T) {
	responses := runLoop(t, scriptedBackend{panic: true}, parser.Request{Source: "/x"})
	if len(responses) != 1 || !strings.Contains(text(responses[0].Error), "parser panic") {
		t.Fatalf("expected panic converted to error reply, got %+v", responses)
	}
}

func TestNormalizingBackendProducesEnvelope(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.raml")
	if err := os.WriteFile(path, []byte("#%RAML 1.0\ntitle: Orders\nversion: v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := parser.Request{
		Source: path,
		From:   sniff.Type{Family: sniff.FamilyRAML10, ContentType: sniff.ContentTypeRAML},
	}
	model, notes, err := NormalizingBackend{}.Parse(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Fatalf("unexpected notes %v", notes)
	}

	var envelope struct {
		Specification map[string]any `json:"specification"`
		From          sniff.Type     `json:"from"`
	}
	if err := json.Unmarshal([]byte(model), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Specification["title"] != "Orders" {
		t.Fatalf("unexpected specification %+v", envelope.Specification)
	}
	if envelope.From.Family != sniff.FamilyRAML10 {
		t.Fatalf("unexpected from %+v", envelope.From)
	}
}

func TestNormalizingBackendValidationNotes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.yaml")
	if err := os.WriteFile(path, []byte("openapi: \"3.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := parser.Request{
		Source:   path,
		From:     sniff.Type{Family: sniff.FamilyOAS30, ContentType: sniff.ContentTypeYAML},
		Validate: true,
	}
	_, notes, err := NormalizingBackend{}.Parse(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected info and paths notes, got %v", notes)
	}
}

func TestNormalizingBackendMissingSource(t *testing.T) {
	req := parser.Request{Source: filepath.Join(t.TempDir(), "absent.raml")}
	if _, _, err := (NormalizingBackend{}).Parse(context.Background(), req); err == nil {
		t.Fatal("expected error for missing source")
	}
}
