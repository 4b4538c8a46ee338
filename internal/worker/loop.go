package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"specimport/internal/logging"
	"specimport/internal/parser"
)

// Backend performs the actual spec-to-model transformation for one request.
// Implementations may report informational notes alongside the model; notes
// are delivered to the supervisor before the terminal reply.
type Backend interface {
	Parse(ctx context.Context, req parser.Request) (model string, notes []string, err error)
}

// Run consumes requests from in until EOF, replying on out. Backend panics
// are converted to error replies so a bad document cannot take down the
// request loop prematurely; the supervisor decides whether to keep the
// worker.
func Run(ctx context.Context, in io.Reader, out io.Writer, backend Backend, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req parser.Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("malformed request line", logging.Error(err))
			continue
		}
		handle(ctx, enc, backend, req, logger)
	}
	return scanner.Err()
}

func handle(ctx context.Context, enc *json.Encoder, backend Backend, req parser.Request, logger *slog.Logger) {
	model, notes, err := safeParse(ctx, backend, req)
	for _, note := range notes {
		if note == "" {
			continue
		}
		_ = enc.Encode(parser.ValidationReply(note))
	}
	if err != nil {
		logger.Warn("parse failed", logging.String("source", req.Source), logging.Error(err))
		_ = enc.Encode(parser.ErrorReply(err.Error()))
		return
	}
	_ = enc.Encode(parser.APIReply(model))
}

func safeParse(ctx context.Context, backend Backend, req parser.Request) (model string, notes []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return backend.Parse(ctx, req)
}
