package sniff

import (
	"bytes"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Families understood by the pipeline. The zero value means the sniffer
// could not recognize the dialect.
const (
	FamilyRAML10 = "RAML10"
	FamilyRAML08 = "RAML08"
	FamilyOAS30  = "OAS30"
	FamilyOAS20  = "OAS20"
)

// Content types attached to detected families.
const (
	ContentTypeRAML = "application/raml+yaml"
	ContentTypeJSON = "application/json"
	ContentTypeYAML = "application/yaml"
)

// Type pairs a spec family with the mime content type of the entry file.
type Type struct {
	Family      string `json:"type"`
	ContentType string `json:"contentType"`
}

// Recognized reports whether the sniffer identified a supported dialect.
func (t Type) Recognized() bool {
	return t.Family != ""
}

// headerWindow bounds how much of a file is read for detection. Large specs
// carry their version marker in the first handful of lines.
const headerWindow = 16 * 1024

// DetectFile reads the head of the file at path and infers its type.
// Unreadable or binary content yields an unrecognized Type, not an error;
// only filesystem failures are reported.
func DetectFile(path string) (Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return Type{}, err
	}
	defer f.Close()
	return Detect(f)
}

// Detect infers the spec type from the reader's leading bytes.
func Detect(r io.Reader) (Type, error) {
	head, err := readHeader(r)
	if err != nil {
		return Type{}, err
	}
	if len(head) == 0 || bytes.IndexByte(head, 0) >= 0 {
		return Type{}, nil
	}

	if family, ok := ramlFamily(head); ok {
		return Type{Family: family, ContentType: ContentTypeRAML}, nil
	}

	contentType := ContentTypeYAML
	if looksLikeJSON(head) {
		contentType = ContentTypeJSON
	}

	if family, ok := oasFamily(head); ok {
		return Type{Family: family, ContentType: contentType}, nil
	}
	return Type{}, nil
}

// readHeader pulls up to headerWindow bytes through a BOM-stripping decoder
// so UTF-8 and UTF-16 encoded specs sniff identically.
func readHeader(r io.Reader) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded := transform.NewReader(io.LimitReader(r, headerWindow), decoder)
	head, err := io.ReadAll(decoded)
	if err != nil {
		// Malformed encodings are a sniffing miss, not a failure.
		return nil, nil
	}
	return head, nil
}

// ramlFamily matches the RAML version comment on the first meaningful line.
func ramlFamily(head []byte) (string, bool) {
	line := firstMeaningfulLine(head)
	if !strings.HasPrefix(line, "#%RAML") {
		return "", false
	}
	version := strings.TrimSpace(strings.TrimPrefix(line, "#%RAML"))
	switch {
	case strings.HasPrefix(version, "1.0"):
		return FamilyRAML10, true
	case strings.HasPrefix(version, "0.8"):
		return FamilyRAML08, true
	default:
		// Future RAML versions are treated as the newest supported dialect.
		return FamilyRAML10, true
	}
}

// oasFamily decodes the document root and reads the openapi/swagger keys.
// The yaml decoder accepts JSON input as well, so one path covers both
// syntaxes. A truncated header window can make the decode fail on documents
// that are otherwise fine; in that case fall back to a line scan for the
// version keys.
func oasFamily(head []byte) (string, bool) {
	var root struct {
		OpenAPI string `yaml:"openapi"`
		Swagger string `yaml:"swagger"`
	}
	if err := yaml.Unmarshal(head, &root); err != nil {
		return oasFamilyFromLines(head)
	}
	switch {
	case strings.HasPrefix(root.OpenAPI, "3"):
		return FamilyOAS30, true
	case strings.HasPrefix(root.Swagger, "2"):
		return FamilyOAS20, true
	default:
		return "", false
	}
}

func oasFamilyFromLines(head []byte) (string, bool) {
	for _, line := range strings.Split(string(head), "\n") {
		trimmed := strings.TrimSpace(strings.Trim(line, ", \t\r"))
		trimmed = strings.ReplaceAll(trimmed, "\"", "")
		trimmed = strings.ReplaceAll(trimmed, "'", "")
		switch {
		case strings.HasPrefix(trimmed, "openapi:") && strings.HasPrefix(strings.TrimSpace(trimmed[len("openapi:"):]), "3"):
			return FamilyOAS30, true
		case strings.HasPrefix(trimmed, "swagger:") && strings.HasPrefix(strings.TrimSpace(trimmed[len("swagger:"):]), "2"):
			return FamilyOAS20, true
		}
	}
	return "", false
}

// looksLikeJSON mirrors the usual content-based format check: JSON documents
// open with an object or array, YAML does not.
func looksLikeJSON(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\n\r")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func firstMeaningfulLine(head []byte) string {
	for _, line := range strings.Split(string(head), "\n") {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
