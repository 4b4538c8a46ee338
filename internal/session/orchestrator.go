package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"specimport/internal/config"
	"specimport/internal/logging"
	"specimport/internal/parser"
	"specimport/internal/resolve"
	"specimport/internal/services"
	"specimport/internal/sniff"
	"specimport/internal/source"
)

// State is the explicit session state. Operations invalid in the current
// state fail with a usage error instead of relying on field presence.
type State int

const (
	// StateIdle means no source is staged. Prepare starts a session;
	// a finished parse returns here.
	StateIdle State = iota
	// StatePrepared means the working directory exists but no entry file
	// is pinned yet. Ambiguous resolution keeps the session here.
	StatePrepared
	// StateResolved means the entry file is pinned and the session may
	// parse.
	StateResolved
	// StateCleaned is the absorbing terminal state after Cancel or
	// Cleanup.
	StateCleaned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateResolved:
		return "resolved"
	case StateCleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

// Result is the output of a successful parse. The session does not retain
// it.
type Result struct {
	Model string
	Type  sniff.Type
}

// Runner abstracts the supervised parse for testability. The production
// implementation is parser.Supervisor.
type Runner interface {
	RunParse(ctx context.Context, sourcePath string, typ sniff.Type, validate bool) (string, error)
	Close()
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the parse runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.supervisor = r
		}
	}
}

// Orchestrator drives prepare, resolve, and parse for one session at a
// time. Concurrent sessions require separate Orchestrator instances.
type Orchestrator struct {
	id         string
	preparer   *source.Preparer
	resolver   *resolve.Resolver
	supervisor Runner
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	prepared *source.Prepared
}

// New constructs an Orchestrator from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	id := services.NewSessionID()
	componentLogger := logging.NewComponentLogger(logger, "session").With(logging.String(logging.FieldSessionID, id))
	o := &Orchestrator{
		id:         id,
		preparer:   source.NewPreparer(cfg.Paths.StagingDir, logger),
		resolver:   resolve.New(logger),
		supervisor: parser.New(cfg.Parser.WorkerBinary, cfg.ParseTimeout(), cfg.IdleTimeout(), logger),
		logger:     componentLogger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the session identifier used in logs.
func (o *Orchestrator) ID() string {
	return o.id
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Prepare stages src as the session's working directory. Only valid from
// StateIdle; a failed preparation leaves the session in StateIdle with no
// temporary resources behind.
func (o *Orchestrator) Prepare(ctx context.Context, src source.Source, opts source.Options) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return services.Wrap(services.ErrUsage, "session", "prepare", "prepare called in state "+o.state.String(), nil)
	}

	prepared, err := o.preparer.Prepare(services.WithSessionID(ctx, o.id), src, opts)
	if err != nil {
		return err
	}
	o.prepared = prepared
	o.state = StatePrepared
	o.logger.Debug("session prepared",
		logging.String("workdir", prepared.WorkDir),
		logging.String("entry", prepared.EntryFile),
	)
	return nil
}

// Resolve pins the entry file. When mainFile is non-empty it must exist
// under the working directory (a missing file is a usage error, and the
// session's temporary resources are released before the error returns).
// With no entry known, the working directory is scanned; an ambiguous scan
// returns the candidate list and keeps the session in StatePrepared until
// the caller supplies a choice or cancels.
func (o *Orchestrator) Resolve(ctx context.Context, mainFile string) (resolve.Resolution, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resolveLocked(ctx, mainFile)
}

func (o *Orchestrator) resolveLocked(ctx context.Context, mainFile string) (resolve.Resolution, error) {
	switch o.state {
	case StatePrepared, StateResolved:
	default:
		return resolve.Resolution{}, services.Wrap(services.ErrUsage, "session", "resolve", "resolve called in state "+o.state.String(), nil)
	}

	if mainFile != "" {
		if err := o.resolver.Pin(o.prepared.WorkDir, mainFile); err != nil {
			o.failLocked()
			return resolve.Resolution{}, err
		}
		o.prepared.EntryFile = mainFile
		o.state = StateResolved
		return resolve.Resolution{Entry: mainFile}, nil
	}

	if o.prepared.EntryFile != "" {
		if err := o.resolver.Pin(o.prepared.WorkDir, o.prepared.EntryFile); err != nil {
			o.failLocked()
			return resolve.Resolution{}, err
		}
		o.state = StateResolved
		return resolve.Resolution{Entry: o.prepared.EntryFile}, nil
	}

	res, err := o.resolver.Scan(o.prepared.WorkDir)
	if err != nil {
		o.failLocked()
		return resolve.Resolution{}, err
	}
	if res.Ambiguous() {
		o.logger.Debug("resolution suspended", logging.Int("candidates", len(res.Candidates)))
		return res, nil
	}
	o.prepared.EntryFile = res.Entry
	o.state = StateResolved
	return res, nil
}

// Parse sniffs the pinned entry file and runs the supervised parse. A
// non-empty mainFile resolves the session first, covering the ambiguous
// case where the caller's choice and the parse arrive together. Whatever
// the outcome, the session's temporary resources are released and the
// state returns to StateIdle; the worker stays alive for reuse until the
// idle timeout reclaims it.
func (o *Orchestrator) Parse(ctx context.Context, mainFile string, validate bool) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if mainFile != "" && (o.state == StatePrepared || o.state == StateResolved) {
		if _, err := o.resolveLocked(ctx, mainFile); err != nil {
			return Result{}, err
		}
	}
	if o.state != StateResolved {
		return Result{}, services.Wrap(services.ErrUsage, "session", "parse", "parse called in state "+o.state.String(), nil)
	}

	prepared := o.prepared
	defer func() {
		o.releaseLocked()
		o.state = StateIdle
	}()

	entryPath := filepath.Join(prepared.WorkDir, filepath.FromSlash(prepared.EntryFile))
	typ, err := sniff.DetectFile(entryPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPreparation, "session", "parse", "read entry file", err)
	}

	model, err := o.supervisor.RunParse(services.WithSessionID(ctx, o.id), entryPath, typ, validate)
	if err != nil {
		return Result{}, err
	}
	o.logger.Debug("parse complete", logging.String("family", typ.Family))
	return Result{Model: model, Type: typ}, nil
}

// Cancel discards the session without parsing, releasing temporary
// resources. Used when entry-point disambiguation is declined. The session
// ends in StateCleaned.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StatePrepared, StateResolved:
		o.releaseLocked()
		o.state = StateCleaned
		o.logger.Debug("session cancelled")
		return nil
	default:
		return services.Wrap(services.ErrUsage, "session", "cancel", "cancel called in state "+o.state.String(), nil)
	}
}

// Cleanup tears the session down completely: the worker is killed, timers
// cancelled, and temporary resources deleted. Safe to call from any state,
// any number of times.
func (o *Orchestrator) Cleanup() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.releaseLocked()
	o.supervisor.Close()
	o.state = StateCleaned
	return nil
}

// failLocked releases temporary resources after a hard prepare/resolve
// failure so callers never need a manual recovery path. The session
// returns to StateIdle.
func (o *Orchestrator) failLocked() {
	o.releaseLocked()
	o.state = StateIdle
}

func (o *Orchestrator) releaseLocked() {
	if o.prepared == nil {
		return
	}
	if err := o.prepared.Cleanup(); err != nil {
		o.logger.Warn("temp cleanup failed", logging.Error(err))
	}
	o.prepared = nil
}
