package parser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"specimport/internal/logging"
	"specimport/internal/services"
	"specimport/internal/sniff"
)

// fakeWorker scripts replies without spawning a process.
type fakeWorker struct {
	mu       sync.Mutex
	killed   bool
	requests []Request

	msgs chan Response
	done chan struct{}
	// onSend, when set, runs for each request delivered to the worker.
	onSend func(*fakeWorker, Request)
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{
		msgs: make(chan Response, 8),
		done: make(chan struct{}),
	}
}

func (f *fakeWorker) send(req Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	killed := f.killed
	f.mu.Unlock()
	if killed {
		return errors.New("worker gone")
	}
	if f.onSend != nil {
		f.onSend(f, req)
	}
	return nil
}

func (f *fakeWorker) messages() <-chan Response { return f.msgs }

func (f *fakeWorker) exited() <-chan struct{} { return f.done }

func (f *fakeWorker) kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.killed {
		return
	}
	f.killed = true
	close(f.done)
}

func (f *fakeWorker) isKilled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

func newTestSupervisor(t *testing.T, parseTimeout, idleTimeout time.Duration, spawn spawnFunc) *Supervisor {
	t.Helper()
	s := New("unused", parseTimeout, idleTimeout, logging.NewNop(), WithSpawn(spawn))
	t.Cleanup(s.Close)
	return s
}

func TestRunParseSuccess(t *testing.T) {
	w := newFakeWorker()
	w.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- APIReply(`{"specification":{}}`)
	}
	s := newTestSupervisor(t, time.Second, time.Minute, func() (worker, error) { return w, nil })

	model, err := s.RunParse(context.Background(), "/tmp/api.raml", sniff.Type{Family: sniff.FamilyRAML10, ContentType: sniff.ContentTypeRAML}, false)
	if err != nil {
		t.Fatal(err)
	}
	if model != `{"specification":{}}` {
		t.Fatalf("unexpected model %q", model)
	}
	if len(w.requests) != 1 || w.requests[0].Source != "/tmp/api.raml" {
		t.Fatalf("unexpected requests %+v", w.requests)
	}
}

func TestRunParseValidationNotesAreNonTerminal(t *testing.T) {
	w := newFakeWorker()
	w.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- ValidationReply("minor style issue")
		f.msgs <- ValidationReply("another note")
		f.msgs <- APIReply("model")
	}
	s := newTestSupervisor(t, time.Second, time.Minute, func() (worker, error) { return w, nil })

	model, err := s.RunParse(context.Background(), "x", sniff.Type{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if model != "model" {
		t.Fatalf("unexpected model %q", model)
	}
}

func TestRunParseWorkerError(t *testing.T) {
	w := newFakeWorker()
	w.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- ErrorReply("unresolvable include")
	}
	s := newTestSupervisor(t, time.Second, time.Minute, func() (worker, error) { return w, nil })

	_, err := s.RunParse(context.Background(), "x", sniff.Type{}, false)
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestRunParseTimeoutKillsWorker(t *testing.T) {
	w := newFakeWorker() // never replies
	s := newTestSupervisor(t, 30*time.Millisecond, time.Minute, func() (worker, error) { return w, nil })

	start := time.Now()
	_, err := s.RunParse(context.Background(), "x", sniff.Type{}, false)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout fired too late: %v", elapsed)
	}
	if !w.isKilled() {
		t.Fatal("worker must not be alive after a timeout")
	}
}

func TestRunParseWorkerCrashRespawnsNextCall(t *testing.T) {
	crashing := newFakeWorker()
	crashing.onSend = func(f *fakeWorker, req Request) {
		close(f.msgs)
	}
	healthy := newFakeWorker()
	healthy.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- APIReply("recovered")
	}

	var spawned int
	spawn := func() (worker, error) {
		spawned++
		if spawned == 1 {
			return crashing, nil
		}
		return healthy, nil
	}
	s := newTestSupervisor(t, time.Second, time.Minute, spawn)

	if _, err := s.RunParse(context.Background(), "x", sniff.Type{}, false); !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error from crash, got %v", err)
	}
	model, err := s.RunParse(context.Background(), "x", sniff.Type{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if model != "recovered" {
		t.Fatalf("unexpected model %q", model)
	}
	if spawned != 2 {
		t.Fatalf("expected a respawn, spawn count %d", spawned)
	}
}

func TestIdleReclamationKillsWorker(t *testing.T) {
	w := newFakeWorker()
	w.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- APIReply("done")
	}
	s := newTestSupervisor(t, time.Second, 20*time.Millisecond, func() (worker, error) { return w, nil })

	if _, err := s.RunParse(context.Background(), "x", sniff.Type{}, false); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !w.isKilled() {
		if time.Now().After(deadline) {
			t.Fatal("idle worker was not reclaimed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIdleReclamationAfterWorkerErrorReply(t *testing.T) {
	w := newFakeWorker()
	w.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- ErrorReply("unresolvable include")
	}
	s := newTestSupervisor(t, time.Second, 20*time.Millisecond, func() (worker, error) { return w, nil })

	if _, err := s.RunParse(context.Background(), "x", sniff.Type{}, false); !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !w.isKilled() {
		if time.Now().After(deadline) {
			t.Fatal("worker was not reclaimed after an error reply")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStaleIdleTimerDoesNotKillActiveParse(t *testing.T) {
	// A near-zero idle window makes the reclamation timer fire around
	// every reacquisition. Whether a parse reuses the previous worker or
	// gets a fresh one, a timer armed for an earlier idle period must
	// never take down the request in flight.
	spawn := func() (worker, error) {
		f := newFakeWorker()
		f.onSend = func(f *fakeWorker, req Request) {
			if req.Source == "slow" {
				go func() {
					time.Sleep(20 * time.Millisecond)
					f.msgs <- APIReply("late")
				}()
				return
			}
			f.msgs <- APIReply("fast")
		}
		return f, nil
	}
	s := newTestSupervisor(t, time.Second, time.Nanosecond, spawn)

	for i := 0; i < 20; i++ {
		if _, err := s.RunParse(context.Background(), "quick", sniff.Type{}, false); err != nil {
			t.Fatal(err)
		}
		model, err := s.RunParse(context.Background(), "slow", sniff.Type{}, false)
		if err != nil {
			t.Fatalf("iteration %d: in-flight parse lost its worker: %v", i, err)
		}
		if model != "late" {
			t.Fatalf("iteration %d: unexpected model %q", i, model)
		}
	}
}

func TestWorkerReusedWhileAlive(t *testing.T) {
	w := newFakeWorker()
	w.onSend = func(f *fakeWorker, req Request) {
		f.msgs <- APIReply("ok")
	}
	var spawned int
	s := newTestSupervisor(t, time.Second, time.Minute, func() (worker, error) {
		spawned++
		return w, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := s.RunParse(context.Background(), "x", sniff.Type{}, false); err != nil {
			t.Fatal(err)
		}
	}
	if spawned != 1 {
		t.Fatalf("expected a single spawn across calls, got %d", spawned)
	}
}

func TestCloseIsIdempotentAndRejectsFurtherCalls(t *testing.T) {
	w := newFakeWorker()
	s := New("unused", time.Second, time.Minute, logging.NewNop(), WithSpawn(func() (worker, error) { return w, nil }))

	s.Close()
	s.Close()

	if _, err := s.RunParse(context.Background(), "x", sniff.Type{}, false); !errors.Is(err, services.ErrUsage) {
		t.Fatalf("expected usage error after close, got %v", err)
	}
}

func TestRunParseContextCancellation(t *testing.T) {
	w := newFakeWorker() // never replies
	s := newTestSupervisor(t, time.Minute, time.Minute, func() (worker, error) { return w, nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := s.RunParse(ctx, "x", sniff.Type{}, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if !w.isKilled() {
		t.Fatal("cancellation must kill the worker")
	}
}
