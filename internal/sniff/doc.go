// Package sniff infers the dialect of an API specification file from its
// content. File extensions are never trusted: the RAML version comment and
// the OpenAPI/Swagger root keys are read from the document itself.
package sniff
