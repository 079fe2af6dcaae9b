package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(maxRestarts int) Policy {
	return Policy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1,
		MaxRestarts:    maxRestarts,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSupervisorRestartsFailingWorker(t *testing.T) {
	s := NewSupervisor(fastPolicy(0))
	var calls atomic.Int32
	run := func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("boom")
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.Start(WorkerSpec{Name: "agent-1", Group: "passive"}, run); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	waitFor(t, "third call", func() bool { return calls.Load() >= 3 })

	statuses := s.Statuses()
	if len(statuses) != 1 || statuses[0].Restarts != 2 || !statuses[0].Running {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	s.StopAll()
	if running := s.Running(); len(running) != 0 {
		t.Fatalf("expected no workers after stop all, got=%v", running)
	}
}

func TestSupervisorTransientWorkerExitsCleanly(t *testing.T) {
	s := NewSupervisor(fastPolicy(0))
	var calls atomic.Int32
	if err := s.Start(WorkerSpec{Name: "clean", Restart: RestartTransient}, func(context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	waitFor(t, "worker exit", func() bool { return len(s.Running()) == 0 })
	if calls.Load() != 1 {
		t.Fatalf("expected a single run, got=%d", calls.Load())
	}
	if err := s.Failure("clean"); err != nil {
		t.Fatalf("expected no failure for a clean exit, got %v", err)
	}
}

func TestSupervisorTemporaryWorkerKeepsFailure(t *testing.T) {
	s := NewSupervisor(fastPolicy(0))
	boom := errors.New("boom")
	if err := s.Start(WorkerSpec{Name: "once", Restart: RestartTemporary}, func(context.Context) error {
		return boom
	}); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	waitFor(t, "worker exit", func() bool { return len(s.Running()) == 0 })
	if err := s.Failure("once"); !errors.Is(err, boom) {
		t.Fatalf("expected recorded failure, got %v", err)
	}
}

func TestSupervisorStopsWorkerByName(t *testing.T) {
	s := NewSupervisor(fastPolicy(0))
	stopped := make(chan struct{})
	if err := s.Start(WorkerSpec{Name: "named"}, func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	s.Stop("named")
	select {
	case <-stopped:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected worker to stop after named stop")
	}
	if running := s.Running(); len(running) != 0 {
		t.Fatalf("expected no workers after named stop, got=%v", running)
	}
}

func TestSupervisorRejectsDuplicateWorker(t *testing.T) {
	s := NewSupervisor(Policy{})
	block := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	if err := s.Start(WorkerSpec{Name: "dup"}, block); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	if err := s.Start(WorkerSpec{Name: "dup"}, block); !errors.Is(err, ErrWorkerExists) {
		t.Fatalf("expected ErrWorkerExists, got %v", err)
	}
	s.StopAll()
}

func TestSupervisorPermanentFailureHook(t *testing.T) {
	type failure struct {
		name     string
		restarts int
		err      string
	}
	failures := make(chan failure, 1)
	s := NewSupervisor(fastPolicy(1), WithHooks(Hooks{
		OnPermanentFailure: func(name string, err error, restarts int) {
			failures <- failure{name: name, restarts: restarts, err: err.Error()}
		},
	}))
	if err := s.Start(WorkerSpec{Name: "permanent"}, func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	select {
	case got := <-failures:
		if got.name != "permanent" || got.restarts != 1 || got.err != "boom" {
			t.Fatalf("unexpected failure: %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected permanent failure hook callback")
	}
	waitFor(t, "worker exit", func() bool { return len(s.Running()) == 0 })
	statuses := s.Statuses()
	if len(statuses) != 1 || !statuses[0].PermanentFailed {
		t.Fatalf("expected permanent failure status, got %+v", statuses)
	}
}

func TestSupervisorOneForAllStopsSiblings(t *testing.T) {
	policy := fastPolicy(1)
	policy.Strategy = StrategyOneForAll
	s := NewSupervisor(policy)
	siblingStopped := make(chan struct{})
	if err := s.Start(WorkerSpec{Name: "sibling"}, func(ctx context.Context) error {
		<-ctx.Done()
		close(siblingStopped)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("start sibling: %v", err)
	}
	if err := s.Start(WorkerSpec{Name: "failing"}, func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("start failing worker: %v", err)
	}
	select {
	case <-siblingStopped:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected sibling to be stopped after permanent failure")
	}
}

func TestParseRestartPolicy(t *testing.T) {
	if p, err := ParseRestartPolicy(""); err != nil || p != RestartTransient {
		t.Fatalf("expected transient default, got %q %v", p, err)
	}
	if p, err := ParseRestartPolicy("permanent"); err != nil || p != RestartPermanent {
		t.Fatalf("unexpected parse: %q %v", p, err)
	}
	if _, err := ParseRestartPolicy("sometimes"); err == nil {
		t.Fatal("expected unknown policy to fail")
	}
}
