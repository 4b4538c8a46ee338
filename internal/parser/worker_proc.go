package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"specimport/internal/logging"
)

// procWorker wraps one specimport-worker process. Requests travel as JSON
// lines on stdin; replies come back as JSON lines on stdout; stderr is
// forwarded to the supervisor's logger.
type procWorker struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	sendMu sync.Mutex
	enc    *json.Encoder

	msgs chan Response
	done chan struct{}
	quit chan struct{}

	killOnce sync.Once
}

func spawnProcess(binary string, logger *slog.Logger) (*procWorker, error) {
	cmd := exec.Command(binary)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	w := &procWorker{
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		msgs:  make(chan Response, 8),
		done:  make(chan struct{}),
		quit:  make(chan struct{}),
	}

	go w.readMessages(stdout)
	go forwardStderr(stderr, logger)
	go func() {
		_ = cmd.Wait()
		close(w.done)
	}()

	return w, nil
}

func (w *procWorker) send(req Request) error {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	return w.enc.Encode(req)
}

func (w *procWorker) messages() <-chan Response { return w.msgs }

func (w *procWorker) exited() <-chan struct{} { return w.done }

func (w *procWorker) kill() {
	w.killOnce.Do(func() {
		close(w.quit)
		_ = w.stdin.Close()
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
	})
}

func (w *procWorker) readMessages(stdout io.Reader) {
	defer close(w.msgs)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		select {
		case w.msgs <- resp:
		case <-w.quit:
			return
		}
	}
}

func forwardStderr(stderr io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			logger.Debug("worker stderr", logging.String("line", line))
		}
	}
}
