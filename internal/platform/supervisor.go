// Package platform hosts the goroutines that serve agents. Each agent runs as
// one supervised worker; the supervisor restarts failed workers with
// exponential backoff according to their restart policy.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var ErrWorkerExists = errors.New("worker already running")

type RestartPolicy string

const (
	RestartPermanent RestartPolicy = "permanent"
	RestartTransient RestartPolicy = "transient"
	RestartTemporary RestartPolicy = "temporary"
)

// ParseRestartPolicy maps a config name to a RestartPolicy. Empty means
// transient.
func ParseRestartPolicy(name string) (RestartPolicy, error) {
	switch RestartPolicy(name) {
	case "":
		return RestartTransient, nil
	case RestartPermanent, RestartTransient, RestartTemporary:
		return RestartPolicy(name), nil
	default:
		return "", fmt.Errorf("unsupported restart policy: %s", name)
	}
}

func (p RestartPolicy) restarts(err error) bool {
	switch p {
	case RestartTemporary:
		return false
	case RestartTransient:
		return err != nil
	default:
		return true
	}
}

type Strategy string

const (
	// StrategyOneForOne restarts only the failed worker.
	StrategyOneForOne Strategy = "one_for_one"
	// StrategyOneForAll stops every worker once one fails permanently.
	StrategyOneForAll Strategy = "one_for_all"
)

type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// MaxRestarts bounds restarts per worker; 0 means unbounded.
	MaxRestarts    int
	Strategy       Strategy
}

func normalizePolicy(p Policy) Policy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 10 * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = max(200*time.Millisecond, p.InitialBackoff)
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = 2
	}
	if p.Strategy != StrategyOneForAll {
		p.Strategy = StrategyOneForOne
	}
	return p
}

type WorkerSpec struct {
	Name    string
	Group   string
	Restart RestartPolicy
}

type WorkerStatus struct {
	Name            string        `json:"name"`
	Group           string        `json:"group,omitempty"`
	Restart         RestartPolicy `json:"restart"`
	Restarts        int           `json:"restarts"`
	LastError       string        `json:"last_error,omitempty"`
	PermanentFailed bool          `json:"permanent_failed"`
	Running         bool          `json:"running"`
}

type Hooks struct {
	OnRestart          func(name string, err error, restarts int)
	OnPermanentFailure func(name string, err error, restarts int)
}

type Option func(*Supervisor)

func WithHooks(h Hooks) Option {
	return func(s *Supervisor) { s.hooks = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

type Supervisor struct {
	policy Policy
	hooks  Hooks
	logger *slog.Logger

	mu      sync.Mutex
	workers map[string]*worker
	exited  map[string]exitRecord
}

type exitRecord struct {
	status WorkerStatus
	err    error
}

type worker struct {
	spec   WorkerSpec
	cancel context.CancelFunc
	done   chan struct{}

	restarts  int
	lastErr   error
	permanent bool
}

func NewSupervisor(policy Policy, opts ...Option) *Supervisor {
	s := &Supervisor{
		policy:  normalizePolicy(policy),
		logger:  slog.New(slog.DiscardHandler),
		workers: make(map[string]*worker),
		exited:  make(map[string]exitRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches run under spec. The worker's context is cancelled by Stop or
// StopAll; a worker that returns on its own is restarted per spec.Restart.
func (s *Supervisor) Start(spec WorkerSpec, run func(ctx context.Context) error) error {
	if spec.Name == "" {
		return errors.New("worker name is required")
	}
	if run == nil {
		return errors.New("worker runner is required")
	}
	if spec.Restart == "" {
		spec.Restart = RestartTransient
	}

	s.mu.Lock()
	if _, ok := s.workers[spec.Name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorkerExists, spec.Name)
	}
	delete(s.exited, spec.Name)
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{spec: spec, cancel: cancel, done: make(chan struct{})}
	s.workers[spec.Name] = w
	s.mu.Unlock()

	go s.loop(ctx, w, run)
	return nil
}

func (s *Supervisor) loop(ctx context.Context, w *worker, run func(ctx context.Context) error) {
	defer s.retire(w)

	backoff := s.policy.InitialBackoff
	for {
		err := run(ctx)
		if ctx.Err() != nil || !w.spec.Restart.restarts(err) {
			s.mu.Lock()
			w.lastErr = err
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		w.lastErr = err
		if s.policy.MaxRestarts > 0 && w.restarts >= s.policy.MaxRestarts {
			w.permanent = true
			restarts := w.restarts
			s.mu.Unlock()
			s.logger.Warn("worker failed permanently", "worker", w.spec.Name, "restarts", restarts, "error", err)
			if s.hooks.OnPermanentFailure != nil {
				s.hooks.OnPermanentFailure(w.spec.Name, err, restarts)
			}
			if s.policy.Strategy == StrategyOneForAll {
				go s.stopOthers(w.spec.Name)
			}
			return
		}
		w.restarts++
		restarts := w.restarts
		s.mu.Unlock()

		s.logger.Debug("restarting worker", "worker", w.spec.Name, "restarts", restarts, "error", err)
		if s.hooks.OnRestart != nil {
			s.hooks.OnRestart(w.spec.Name, err, restarts)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*s.policy.BackoffFactor), s.policy.MaxBackoff)
	}
}

func (s *Supervisor) retire(w *worker) {
	s.mu.Lock()
	if current, ok := s.workers[w.spec.Name]; ok && current == w {
		delete(s.workers, w.spec.Name)
		if w.permanent || w.restarts > 0 || isFailure(w.lastErr) {
			s.exited[w.spec.Name] = exitRecord{status: statusOf(w, false), err: w.lastErr}
		}
	}
	s.mu.Unlock()
	close(w.done)
}

func isFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func statusOf(w *worker, running bool) WorkerStatus {
	st := WorkerStatus{
		Name:            w.spec.Name,
		Group:           w.spec.Group,
		Restart:         w.spec.Restart,
		Restarts:        w.restarts,
		PermanentFailed: w.permanent,
		Running:         running,
	}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	return st
}

func (s *Supervisor) stopOthers(name string) {
	s.mu.Lock()
	others := make([]*worker, 0, len(s.workers))
	for n, w := range s.workers {
		if n != name {
			others = append(others, w)
		}
	}
	s.mu.Unlock()
	stopWorkers(others)
}

func stopWorkers(ws []*worker) {
	for _, w := range ws {
		w.cancel()
	}
	for _, w := range ws {
		<-w.done
	}
}

// Stop cancels one worker and waits for it to return.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	w, ok := s.workers[name]
	delete(s.exited, name)
	s.mu.Unlock()
	if ok {
		stopWorkers([]*worker{w})
	}
}

// StopAll cancels every worker and waits for all of them to return.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	all := make([]*worker, 0, len(s.workers))
	for _, w := range s.workers {
		all = append(all, w)
	}
	s.mu.Unlock()
	stopWorkers(all)
}

// Running lists the names of live workers.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses reports live workers and workers that exited after a failure.
func (s *Supervisor) Statuses() []WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkerStatus, 0, len(s.workers)+len(s.exited))
	for _, w := range s.workers {
		out = append(out, statusOf(w, true))
	}
	for name, rec := range s.exited {
		if _, live := s.workers[name]; !live {
			out = append(out, rec.status)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Failure returns the last error of the named worker if it exited after a
// failure, or nil.
func (s *Supervisor) Failure(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.exited[name]
	if !ok || rec.err == nil {
		return nil
	}
	return fmt.Errorf("worker %s: %w", name, rec.err)
}
