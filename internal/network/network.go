// Package network drives a graph of agents generation by generation. Every
// agent is served by its own supervised worker; the network confirms the
// active agents, awaits their reports, then runs the End phase in which
// agents absorb what arrived during the generation.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"spikenet/internal/agents/device"
	"spikenet/internal/agents/neuron"
	"spikenet/internal/agents/synapse"
	"spikenet/internal/arena"
	"spikenet/internal/connectivity"
	"spikenet/internal/connector"
	"spikenet/internal/operation"
	"spikenet/internal/platform"
	"spikenet/internal/population"
	"spikenet/internal/signal"
)

var (
	ErrRunning           = errors.New("network is running")
	ErrNotRunning        = errors.New("network is not running")
	ErrPopulationExists  = errors.New("population already exists")
	ErrUnknownPopulation = errors.New("unknown population")
	ErrNoMonitor         = errors.New("agent has no monitor")
	ErrWorkerLost        = errors.New("agent worker failed permanently")
)

type Config struct {
	// Dt is the step of one generation.
	Dt float64

	// ChannelCapacity bounds synapse, direct and monitor edges; 0 is unbounded.
	ChannelCapacity int

	// ReportTimeout bounds the wait for each active report.
	ReportTimeout time.Duration

	// Parallelism bounds the goroutines of the configuration and End phases.
	Parallelism int

	Restart    platform.RestartPolicy
	Supervisor platform.Policy
	Logger     *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.1,
		ReportTimeout: 10 * time.Second,
		Restart:       platform.RestartTransient,
		Supervisor: platform.Policy{
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			BackoffFactor:  2,
			MaxRestarts:    3,
		},
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Dt <= 0 {
		cfg.Dt = def.Dt
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = def.ReportTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.GOMAXPROCS(0)
	}
	if cfg.Restart == "" {
		cfg.Restart = def.Restart
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// SpikeRecord lists the firing times of one recorded agent.
type SpikeRecord struct {
	Agent      operation.Handle
	Population string
	Times      []float64
}

// TickReport summarizes one generation.
type TickReport struct {
	Generation   int
	Time         float64
	Ran          int
	Fired        []operation.Handle
	// Severed counts active agents that could not be confirmed or vanished
	// before reporting.
	Severed      int
	// SeveredEdges counts edges to passive agents found gone while the
	// active agents confirmed them.
	SeveredEdges int
}

type Network struct {
	cfg    Config
	logger *slog.Logger
	arena  *arena.Arena
	sup    *platform.Supervisor

	mu          sync.Mutex
	populations map[string]*population.Population
	order       []string
	memberOf    map[operation.Handle]string
	synapses    []operation.Handle
	monitors    map[operation.Handle]operation.Handle
	recording   map[operation.Handle]bool
	spikes      map[operation.Handle][]float64
	generation  int
	running     bool

	clockMu sync.Mutex
	now     float64

	severedEdges atomic.Int64

	lostMu sync.Mutex
	lost   map[string]error
}

func New(cfg Config) *Network {
	cfg = normalizeConfig(cfg)
	n := &Network{
		cfg:         cfg,
		logger:      cfg.Logger,
		arena:       arena.New(),
		populations: make(map[string]*population.Population),
		memberOf:    make(map[operation.Handle]string),
		monitors:    make(map[operation.Handle]operation.Handle),
		recording:   make(map[operation.Handle]bool),
		spikes:      make(map[operation.Handle][]float64),
		lost:        make(map[string]error),
	}
	n.sup = platform.NewSupervisor(cfg.Supervisor,
		platform.WithLogger(cfg.Logger),
		platform.WithHooks(platform.Hooks{
			OnRestart:          n.workerRestarted,
			OnPermanentFailure: n.workerLost,
		}),
	)
	return n
}

func (n *Network) workerRestarted(name string, err error, restarts int) {
	n.logger.Warn("agent worker restarted", "agent", name, "restarts", restarts, "error", err)
}

// workerLost marks an agent whose worker gave up. Tick fails it at once
// instead of waiting out the report timeout.
func (n *Network) workerLost(name string, err error, restarts int) {
	n.lostMu.Lock()
	n.lost[name] = err
	n.lostMu.Unlock()
	n.logger.Error("agent worker lost", "agent", name, "restarts", restarts, "error", err)
}

func (n *Network) lostWorker(h operation.Handle) error {
	n.lostMu.Lock()
	defer n.lostMu.Unlock()
	return n.lost[h.String()]
}

func (n *Network) countSevered(_ float64, severed []error) {
	n.severedEdges.Add(int64(len(severed)))
}

func (n *Network) Arena() *arena.Arena { return n.arena }

func (n *Network) Dt() float64 { return n.cfg.Dt }

// Create builds size neurons of model and registers them as a population.
func (n *Network) Create(name, model string, size int, params map[string]float64) (*population.Population, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil, ErrRunning
	}
	if name == "" {
		return nil, errors.New("population name is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("population %s: invalid size %d", name, size)
	}
	if _, exists := n.populations[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPopulationExists, name)
	}

	logger := n.logger.With("population", name)
	handles := make([]operation.Handle, 0, size)
	for i := 0; i < size; i++ {
		agent, err := neuron.Build(model, params, neuron.WithLogger(logger))
		if err != nil {
			for _, h := range handles {
				_ = n.arena.Remove(h)
			}
			return nil, fmt.Errorf("population %s: %w", name, err)
		}
		handles = append(handles, n.arena.InsertActive(agent))
	}
	pop := population.New(name, model, handles)
	n.populations[name] = pop
	n.order = append(n.order, name)
	for _, h := range handles {
		n.memberOf[h] = name
	}
	n.logger.Debug("population created", "population", name, "model", model, "size", size)
	return pop, nil
}

func (n *Network) Population(name string) (*population.Population, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pop, ok := n.populations[name]
	return pop, ok
}

// Populations returns every population in creation order.
func (n *Network) Populations() []*population.Population {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*population.Population, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.populations[name])
	}
	return out
}

func (n *Network) pair(pre, post string) (*population.Population, *population.Population, error) {
	prePop, ok := n.populations[pre]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPopulation, pre)
	}
	postPop, ok := n.populations[post]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPopulation, post)
	}
	return prePop, postPop, nil
}

// Connect places one Dirac-V synapse on every pair conn selects and returns
// the synapse handles.
func (n *Network) Connect(pre, post string, conn connector.Connector, params synapse.Params) ([]operation.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil, ErrRunning
	}
	prePop, postPop, err := n.pair(pre, post)
	if err != nil {
		return nil, err
	}
	logger := n.logger.With("projection", pre+"->"+post)
	var out []operation.Handle
	for _, p := range conn.Pairs(prePop, postPop) {
		h, err := params.BuildToActive(n.arena, p.Pre, p.Post,
			synapse.WithLogger(logger), synapse.WithCapacity(n.cfg.ChannelCapacity))
		if err != nil {
			return out, fmt.Errorf("connect %s -> %s: %w", p.Pre, p.Post, err)
		}
		out = append(out, h)
	}
	n.synapses = append(n.synapses, out...)
	n.logger.Debug("projection connected", "pre", pre, "post", post, "connector", conn.Name(), "synapses", len(out))
	return out, nil
}

// ConnectDirect wires one-way edges with no synapse between the pairs conn
// selects. The payload is whichever one the pre members generate and the
// post members accept.
func (n *Network) ConnectDirect(pre, post string, conn connector.Connector) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return 0, ErrRunning
	}
	prePop, postPop, err := n.pair(pre, post)
	if err != nil {
		return 0, err
	}
	edges := 0
	for _, p := range conn.Pairs(prePop, postPop) {
		if err := n.linkDirect(p.Pre, p.Post); err != nil {
			return edges, fmt.Errorf("connect %s -> %s: %w", p.Pre, p.Post, err)
		}
		edges++
	}
	return edges, nil
}

func (n *Network) linkDirect(pre, post operation.Handle) error {
	for _, try := range []func(*arena.Arena, operation.Handle, operation.Handle, int) (bool, error){
		linkOneWay[signal.S0],
		linkOneWay[signal.DiracV],
		linkOneWay[signal.PostSynDiracV],
	} {
		ok, err := try(n.arena, pre, post, n.cfg.ChannelCapacity)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: no shared one-way payload", arena.ErrIncompatibleAgent)
}

// linkOneWay wires pre -> post for payload F. It reports false when either
// side lacks the capability.
func linkOneWay[F any](a *arena.Arena, pre, post operation.Handle, capacity int) (bool, error) {
	if err := arena.Inspect(a, pre, func(connectivity.Generator[F]) error { return nil }); err != nil {
		return false, ignoreIncompatible(err)
	}
	if err := arena.Inspect(a, post, func(connectivity.Acceptor[F]) error { return nil }); err != nil {
		return false, ignoreIncompatible(err)
	}
	kind, err := a.Kind(post)
	if err != nil {
		return false, err
	}
	linker := connectivity.NewBoundedLinker[F](capacity)
	if err := arena.Inspect(a, pre, func(g connectivity.Generator[F]) error {
		if kind == arena.KindActive {
			g.AddActiveTarget(a.Ref(post), linker)
		} else {
			g.AddPassiveTarget(a.Ref(post), linker)
		}
		return nil
	}); err != nil {
		return false, err
	}
	if err := arena.Inspect(a, post, func(acc connectivity.Acceptor[F]) error {
		acc.AddSource(a.Ref(pre), linker)
		return nil
	}); err != nil {
		return false, err
	}
	return true, nil
}

func ignoreIncompatible(err error) error {
	if errors.Is(err, arena.ErrIncompatibleAgent) {
		return nil
	}
	return err
}

// Monitor attaches a recorder device to every member of the population.
func (n *Network) Monitor(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return ErrRunning
	}
	pop, ok := n.populations[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPopulation, name)
	}
	for _, h := range pop.Handles() {
		if _, exists := n.monitors[h]; exists {
			continue
		}
		rec, err := n.attachRecorder(h)
		if err != nil {
			return fmt.Errorf("monitor %s: %w", h, err)
		}
		n.monitors[h] = rec
	}
	return nil
}

func (n *Network) attachRecorder(member operation.Handle) (operation.Handle, error) {
	if err := arena.Inspect(n.arena, member, func(connectivity.Generator[signal.S0]) error { return nil }); err == nil {
		return attach[signal.S0](n.arena, member, n.cfg.ChannelCapacity)
	}
	if err := arena.Inspect(n.arena, member, func(connectivity.Generator[signal.DiracV]) error { return nil }); err == nil {
		return attach[signal.DiracV](n.arena, member, n.cfg.ChannelCapacity)
	}
	return 0, fmt.Errorf("%w: nothing to monitor", arena.ErrIncompatibleAgent)
}

func attach[F any](a *arena.Arena, member operation.Handle, capacity int) (operation.Handle, error) {
	h := a.InsertPassive(device.NewRecorder[F]())
	if _, err := linkOneWay[F](a, member, h, capacity); err != nil {
		_ = a.Remove(h)
		return 0, err
	}
	return h, nil
}

// MonitorRecords returns what the monitor of member has drained so far.
func MonitorRecords[T any](n *Network, member operation.Handle) ([]T, error) {
	n.mu.Lock()
	h, ok := n.monitors[member]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMonitor, member)
	}
	var out []T
	err := arena.Inspect(n.arena, h, func(r *device.Recorder[T]) error {
		out = r.Records()
		return nil
	})
	return out, err
}

// RecordSpikes records the firing times of every member of the population.
func (n *Network) RecordSpikes(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	pop, ok := n.populations[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPopulation, name)
	}
	for _, h := range pop.Handles() {
		n.recording[h] = true
	}
	return nil
}

// SpikeRecords returns the recorded firing times ordered by agent.
func (n *Network) SpikeRecords() []SpikeRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SpikeRecord, 0, len(n.recording))
	for h := range n.recording {
		out = append(out, SpikeRecord{
			Agent:      h,
			Population: n.memberOf[h],
			Times:      append([]float64(nil), n.spikes[h]...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

func (n *Network) Generation() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.generation
}

func (n *Network) Synapses() []operation.Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]operation.Handle(nil), n.synapses...)
}

// Running reports whether Start succeeded and Stop has not been called.
func (n *Network) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

func (n *Network) clock() (float64, float64) {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()
	return n.cfg.Dt, n.now
}

func (n *Network) setClock(now float64) {
	n.clockMu.Lock()
	n.now = now
	n.clockMu.Unlock()
}

// forEach runs fn on every agent under its lock, at most Parallelism at a
// time.
func (n *Network) forEach(ctx context.Context, handles []operation.Handle, fn func(operation.Configurable) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n.cfg.Parallelism)
	for _, h := range handles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := n.arena.With(h, fn); err != nil {
				return fmt.Errorf("%s: %w", h, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Steps converts simulated time into a number of generations.
func (n *Network) Steps(duration float64) int {
	if duration <= 0 {
		return 0
	}
	return int(math.Round(duration / n.cfg.Dt))
}

// SynapseState is the weight of one synapse at the time of the call.
type SynapseState struct {
	Handle operation.Handle
	Flag   synapse.Flag
	Weight float64
}

func (n *Network) SynapseWeights() ([]SynapseState, error) {
	handles := n.Synapses()
	out := make([]SynapseState, 0, len(handles))
	for _, h := range handles {
		if err := arena.Inspect(n.arena, h, func(s *synapse.DiracV) error {
			out = append(out, SynapseState{Handle: h, Flag: s.Flag(), Weight: s.Weight()})
			return nil
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}

// MonitorLen counts what the monitor of member has drained so far.
func (n *Network) MonitorLen(member operation.Handle) (int, error) {
	n.mu.Lock()
	h, ok := n.monitors[member]
	n.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoMonitor, member)
	}
	var count int
	err := arena.Inspect(n.arena, h, func(r interface{ Len() int }) error {
		count = r.Len()
		return nil
	})
	return count, err
}

// Monitored lists the agents that have a monitor attached, in handle order.
func (n *Network) Monitored() []operation.Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]operation.Handle, 0, len(n.monitors))
	for h := range n.monitors {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
