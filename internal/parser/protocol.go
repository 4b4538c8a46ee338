package parser

import "specimport/internal/sniff"

// Request is one parse request sent to the worker, one JSON document per
// line on the worker's stdin.
type Request struct {
	Source   string     `json:"source"`
	From     sniff.Type `json:"from"`
	Validate bool       `json:"validate"`
}

// Response is one message from the worker on its stdout. Exactly one of the
// fields is present per line. Validation messages are informational and
// non-terminal; API and Error terminate the request. Pointer fields keep
// presence distinct from emptiness, so an empty model still terminates.
type Response struct {
	API        *string `json:"api,omitempty"`
	Validation *string `json:"validation,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// APIReply builds a terminal success response carrying the model.
func APIReply(model string) Response { return Response{API: &model} }

// ValidationReply builds a non-terminal informational response.
func ValidationReply(note string) Response { return Response{Validation: &note} }

// ErrorReply builds a terminal failure response.
func ErrorReply(message string) Response { return Response{Error: &message} }

// Terminal reports whether the response completes the in-flight request.
func (r Response) Terminal() bool {
	return r.API != nil || r.Error != nil
}
