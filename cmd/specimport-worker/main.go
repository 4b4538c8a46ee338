package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"specimport/internal/logging"
	"specimport/internal/worker"
)

// specimport-worker is the isolated parser process. It reads JSON parse
// requests on stdin, writes replies on stdout, and logs to stderr so the
// supervisor can forward diagnostics. It exits when stdin closes.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(logging.Options{
		Level:       os.Getenv("SPECIMPORT_WORKER_LOG_LEVEL"),
		Format:      "json",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := worker.Run(ctx, os.Stdin, os.Stdout, worker.NormalizingBackend{}, logger); err != nil {
		logger.Error("request loop failed", logging.Error(err))
		os.Exit(1)
	}
}
