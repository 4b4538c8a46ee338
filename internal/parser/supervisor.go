package parser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"specimport/internal/logging"
	"specimport/internal/services"
	"specimport/internal/sniff"
)

// worker is the supervisor's view of one isolated parser process. The
// messages channel closes when the worker's output stream ends; exited
// closes when the process is gone. kill must be safe to call repeatedly.
type worker interface {
	send(Request) error
	messages() <-chan Response
	exited() <-chan struct{}
	kill()
}

// spawnFunc creates a fresh worker. Injectable for tests.
type spawnFunc func() (worker, error)

// Option configures the Supervisor.
type Option func(*Supervisor)

// WithSpawn injects a custom worker factory (primarily for tests).
func WithSpawn(spawn spawnFunc) Option {
	return func(s *Supervisor) {
		if spawn != nil {
			s.spawn = spawn
		}
	}
}

const (
	// DefaultParseTimeout bounds a single parse call.
	DefaultParseTimeout = 180 * time.Second
	// DefaultIdleTimeout bounds how long an idle worker is kept alive
	// after a successful parse.
	DefaultIdleTimeout = 60 * time.Second
)

// Supervisor runs parse requests in a dedicated worker process, reusing it
// across calls while it stays alive and reclaiming it after idling.
type Supervisor struct {
	parseTimeout time.Duration
	idleTimeout  time.Duration
	logger       *slog.Logger
	spawn        spawnFunc

	runMu sync.Mutex // serializes RunParse; the session is single-flight

	mu        sync.Mutex // guards current and idleTimer
	current   worker
	idleTimer *time.Timer
	closed    bool
}

// New constructs a Supervisor that spawns workerBinary for isolation.
// Non-positive timeouts fall back to the defaults.
func New(workerBinary string, parseTimeout, idleTimeout time.Duration, logger *slog.Logger, opts ...Option) *Supervisor {
	if parseTimeout <= 0 {
		parseTimeout = DefaultParseTimeout
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	componentLogger := logging.NewComponentLogger(logger, "parser")
	s := &Supervisor{
		parseTimeout: parseTimeout,
		idleTimeout:  idleTimeout,
		logger:       componentLogger,
		spawn: func() (worker, error) {
			return spawnProcess(workerBinary, componentLogger)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunParse sends one parse request to the worker and waits for its terminal
// reply. A missing reply within the parse timeout kills the worker and
// fails with a timeout error; a worker crash fails the call without
// affecting the host.
func (s *Supervisor) RunParse(ctx context.Context, sourcePath string, typ sniff.Type, validate bool) (string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	w, err := s.acquireWorker()
	if err != nil {
		return "", err
	}

	req := Request{Source: sourcePath, From: typ, Validate: validate}
	if err := w.send(req); err != nil {
		s.discard(w)
		return "", services.Wrap(services.ErrParse, "parser", "send", "deliver request to worker", err)
	}

	timer := time.NewTimer(s.parseTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-w.messages():
			if !ok {
				s.discard(w)
				return "", services.Wrap(services.ErrParse, "parser", "run", "worker output closed before a terminal reply", nil)
			}
			switch {
			case msg.Error != nil:
				// An error reply still leaves a healthy worker; it is
				// kept for the next request under the same idle window
				// as a success.
				s.scheduleIdleReclaim(w)
				return "", services.Wrap(services.ErrParse, "parser", "run", *msg.Error, nil)
			case msg.API != nil:
				s.scheduleIdleReclaim(w)
				return *msg.API, nil
			case msg.Validation != nil:
				s.logger.Info("worker validation note", logging.String("note", *msg.Validation))
			}
		case <-w.exited():
			s.discard(w)
			return "", services.Wrap(services.ErrParse, "parser", "run", "worker exited during parse", nil)
		case <-timer.C:
			s.discard(w)
			return "", services.Wrap(services.ErrTimeout, "parser", "run", "parse did not complete within the configured timeout", nil)
		case <-ctx.Done():
			s.discard(w)
			return "", services.Wrap(services.ErrParse, "parser", "run", "parse cancelled", ctx.Err())
		}
	}
}

// Close kills any live worker and stops timers. Idempotent.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopIdleTimerLocked()
	if s.current != nil {
		s.current.kill()
		s.current = nil
	}
}

// acquireWorker returns the live worker, spawning a fresh one when none
// remains. Any pending idle reclamation is cancelled first.
func (s *Supervisor) acquireWorker() (worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, services.Wrap(services.ErrUsage, "parser", "run", "supervisor is closed", nil)
	}
	s.stopIdleTimerLocked()

	if s.current != nil {
		select {
		case <-s.current.exited():
			s.current.kill()
			s.current = nil
		default:
			return s.current, nil
		}
	}

	w, err := s.spawn()
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "parser", "spawn", "start worker", err)
	}
	s.current = w
	s.logger.Debug("worker spawned")
	return w, nil
}

// discard kills w and forgets it so the next call respawns. Messages a
// killed worker may still emit go to an abandoned channel and can never
// complete a later request.
func (s *Supervisor) discard(w worker) {
	w.kill()
	s.mu.Lock()
	if s.current == w {
		s.current = nil
	}
	s.stopIdleTimerLocked()
	s.mu.Unlock()
}

// scheduleIdleReclaim arms the idle timer after a terminal reply. If no
// further request arrives within the window, the worker is killed to free
// resources.
func (s *Supervisor) scheduleIdleReclaim(w worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopIdleTimerLocked()
	if s.closed || s.current != w {
		return
	}
	// The closure checks that it still owns the idleTimer slot before
	// acting: a timer that fires while acquireWorker is reclaiming the
	// worker for a new request has already been disarmed (Stop too late
	// to help) and must not kill an in-flight parse.
	var t *time.Timer
	t = time.AfterFunc(s.idleTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.idleTimer != t || s.current != w {
			return
		}
		s.idleTimer = nil
		w.kill()
		s.current = nil
		s.logger.Debug("idle worker reclaimed")
	})
	s.idleTimer = t
}

func (s *Supervisor) stopIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
