package synapse

import (
	"errors"
	"math"
	"testing"

	"spikenet/internal/agents/neuron"
	"spikenet/internal/arena"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

type wiredPair struct {
	arena *arena.Arena
	pre   *neuron.LIF
	post  *neuron.LIF
	syn   *DiracV
}

// newWiredPair connects two strongly driven LIF neurons through one synapse
// and configures every agent for Feedforward. Both neurons fire on their
// first step.
func newWiredPair(t *testing.T, p Params, opts ...Option) wiredPair {
	t.Helper()
	lp := neuron.DefaultLIFParams()
	lp.IE = 100
	a := arena.New()
	pre := neuron.NewLIF(lp)
	post := neuron.NewLIF(lp)
	hPre := a.InsertActive(pre)
	hPost := a.InsertActive(post)
	hSyn, err := p.BuildToActive(a, hPre, hPost, opts...)
	if err != nil {
		t.Fatalf("build synapse: %v", err)
	}
	var syn *DiracV
	if err := arena.Inspect(a, hSyn, func(s *DiracV) error {
		syn = s
		return nil
	}); err != nil {
		t.Fatalf("inspect synapse: %v", err)
	}

	handles := a.Handles()
	for _, h := range handles {
		_ = a.With(h, func(c operation.Configurable) error {
			c.ConfigMode(operation.Feedforward)
			return nil
		})
	}
	for _, h := range handles {
		if err := a.With(h, func(c operation.Configurable) error { return c.ConfigChannels() }); err != nil {
			t.Fatalf("config channels %s: %v", h, err)
		}
	}
	return wiredPair{arena: a, pre: pre, post: post, syn: syn}
}

func TestDiracVDelaysAndWeightsSpikes(t *testing.T) {
	p := DefaultParams()
	p.W = 0.5
	p.Delay = 2
	pair := newWiredPair(t, p)

	if pair.pre.Evolve(1, 1) != operation.FiredYes {
		t.Fatal("expected pre to fire on its first step")
	}
	if targets := pair.pre.PassiveTargets(); len(targets) != 1 {
		t.Fatalf("expected the synapse as passive target, got %v", targets)
	}
	pair.syn.Respond()
	pair.post.End()
	if pair.post.Pending() != 1 {
		t.Fatalf("expected 1 pending spike at post, got %d", pair.post.Pending())
	}
	if pair.syn.Weight() != 0.5 {
		t.Fatalf("static synapse changed weight: %v", pair.syn.Weight())
	}
}

func TestDiracVSTDPPotentiatesOnPostFiring(t *testing.T) {
	p := DefaultParams()
	p.Flag = STDP
	pair := newWiredPair(t, p)

	pair.pre.Evolve(1, 1)
	pair.post.Evolve(1, 1)
	pair.syn.Respond()
	if got := pair.syn.Weight(); got != 1 {
		t.Fatalf("post firing time applied before the generation ended: %v", got)
	}

	pair.post.End()
	pair.syn.Respond()

	// pre spike acts at 2, post fired at 1
	want := 1 + p.StdpPostAmount*math.Exp((2-1)/p.TauStdpPost)
	if got := pair.syn.Weight(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected weight %v, got %v", want, got)
	}
}

func TestDiracVAppliesFeedbackBeforePreSpikes(t *testing.T) {
	p := DefaultParams()
	p.Flag = STDP
	pair := newWiredPair(t, p)

	pair.post.Evolve(1, 1)
	pair.post.End()
	pair.pre.Evolve(1, 2)
	pair.syn.Respond()

	// post fired at 1 is recorded first, so the pre spike acting at 3 depresses
	want := 1 + p.StdpPreAmount*math.Exp((1-3)/p.TauStdpPre)
	if got := pair.syn.Weight(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected weight %v, got %v", want, got)
	}
}

func TestDiracVStaticIgnoresFeedback(t *testing.T) {
	pair := newWiredPair(t, DefaultParams())
	pair.pre.Evolve(1, 1)
	pair.post.Evolve(1, 1)
	pair.syn.Respond()
	if pair.syn.Weight() != 1 {
		t.Fatalf("expected static weight 1, got %v", pair.syn.Weight())
	}
}

func TestNewDiracVClampsInitialWeight(t *testing.T) {
	p := DefaultParams()
	p.W = 5
	if got := NewDiracV(p).Weight(); got != p.WMax {
		t.Fatalf("expected weight clamped to %v, got %v", p.WMax, got)
	}
}

func TestParamsFromMapAndFlags(t *testing.T) {
	p, err := ParamsFromMap(map[string]float64{"w": 0.3, "delay": 0.5}, STDP)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.W != 0.3 || p.Delay != 0.5 || p.Flag != STDP || p.WMax != 2 {
		t.Fatalf("unexpected params: %+v", p)
	}
	for _, params := range []map[string]float64{
		{"tau": 1},
		{"delay": -1},
		{"w_min": 3},
		{"tau_stdp_pre": 0},
	} {
		if _, err := ParamsFromMap(params, Static); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("%v: expected ErrInvalidParams, got %v", params, err)
		}
	}

	if f, err := ParseFlag(" STDP "); err != nil || f != STDP {
		t.Fatalf("expected stdp, got %v %v", f, err)
	}
	if f, err := ParseFlag(""); err != nil || f != Static {
		t.Fatalf("expected static default, got %v %v", f, err)
	}
	if _, err := ParseFlag("hebbian"); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestBuildRejectsIncompatibleEnds(t *testing.T) {
	a := arena.New()
	counter := a.InsertActive(neuron.NewCounter(neuron.CounterParams{}))
	lif := a.InsertActive(neuron.NewLIF(neuron.DefaultLIFParams()))

	if _, err := DefaultParams().BuildToActive(a, counter, lif); !errors.Is(err, arena.ErrIncompatibleAgent) {
		t.Fatalf("expected ErrIncompatibleAgent for counter pre, got %v", err)
	}
	if _, err := DefaultParams().BuildToPassive(a, lif, lif); !errors.Is(err, arena.ErrIncompatibleAgent) {
		t.Fatalf("expected ErrIncompatibleAgent for active post, got %v", err)
	}
	if _, err := DefaultParams().BuildToActive(a, lif, 99); !errors.Is(err, arena.ErrUnknownHandle) {
		t.Fatalf("expected ErrUnknownHandle, got %v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("failed builds left agents behind: %d", a.Len())
	}
}

func TestBuildWithCapacityBoundsEdges(t *testing.T) {
	pair := newWiredPair(t, DefaultParams(), WithCapacity(1))
	spike := signal.PostSynDiracV{V: 15, T: 2, W: 1}
	if err := pair.syn.post.Feedforward(spike); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := pair.syn.post.Feedforward(spike); !errors.Is(err, operation.ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed on a full edge, got %v", err)
	}

	unbounded := newWiredPair(t, DefaultParams())
	for i := 0; i < 3; i++ {
		if err := unbounded.syn.post.Feedforward(spike); err != nil {
			t.Fatalf("unbounded send %d: %v", i, err)
		}
	}
}

func TestDiracVModeRequiresBothEndsToAgree(t *testing.T) {
	s := NewDiracV(DefaultParams())
	s.in.ConfigMode(operation.Feedforward)
	s.post.ConfigMode(operation.Idle)
	if _, err := s.Mode(); !errors.Is(err, operation.ErrInconsistentMode) {
		t.Fatalf("expected ErrInconsistentMode, got %v", err)
	}
	s.post.ConfigMode(operation.Feedforward)
	if mode, err := s.Mode(); err != nil || mode != operation.Feedforward {
		t.Fatalf("expected feedforward, got %s %v", mode, err)
	}
}
