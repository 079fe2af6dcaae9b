package neuron

import (
	"errors"
	"testing"

	"spikenet/internal/arena"
	"spikenet/internal/connectivity"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

func configureAll(t *testing.T, a *arena.Arena, mode operation.RunMode) {
	t.Helper()
	handles := a.Handles()
	for _, h := range handles {
		_ = a.With(h, func(c operation.Configurable) error {
			c.ConfigMode(mode)
			return nil
		})
	}
	for _, h := range handles {
		if err := a.With(h, func(c operation.Configurable) error { return c.ConfigChannels() }); err != nil {
			t.Fatalf("config channels %s: %v", h, err)
		}
	}
}

func TestCounterFiresEveryEventCondGenerations(t *testing.T) {
	c := NewCounter(CounterParams{EventCond: 3})
	var fired []int
	for i := 1; i <= 9; i++ {
		if c.Evolve(0.1, float64(i)*0.1) == operation.FiredYes {
			fired = append(fired, i)
		}
	}
	if len(fired) != 3 || fired[0] != 3 || fired[1] != 6 || fired[2] != 9 {
		t.Fatalf("expected firing at [3 6 9], got %v", fired)
	}
	if c.Gen() != 9 || c.Proc() != 9 {
		t.Fatalf("expected gen and proc 9, got %d %d", c.Gen(), c.Proc())
	}

	silent := NewCounter(CounterParams{})
	for i := 0; i < 5; i++ {
		if silent.Evolve(0.1, 0) == operation.FiredYes {
			t.Fatal("counter with event_cond 0 fired")
		}
	}
}

func TestCounterParamsFromMap(t *testing.T) {
	p, err := CounterParamsFromMap(map[string]float64{"gen": 4, "event_cond": 2})
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.Gen != 4 || p.Proc != 0 || p.EventCond != 2 {
		t.Fatalf("unexpected params: %+v", p)
	}
	if _, err := CounterParamsFromMap(map[string]float64{"event_cond": -1}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestCounterAbsorbsDirectInputOnlyAtEnd(t *testing.T) {
	a := arena.New()
	src := NewCounter(CounterParams{EventCond: 1})
	dst := NewCounter(CounterParams{})
	hs := a.InsertActive(src)
	hd := a.InsertActive(dst)
	linker := connectivity.NewLinker[signal.S0]()
	src.AddActiveTarget(a.Ref(hd), linker)
	dst.AddSource(a.Ref(hs), linker)
	configureAll(t, a, operation.Feedforward)

	if mode, err := dst.Mode(); err != nil || mode != operation.Feedforward {
		t.Fatalf("expected feedforward, got %s %v", mode, err)
	}

	src.Evolve(0.1, 0.1)
	dst.Evolve(0.1, 0.1)
	if got := len(dst.Stock()); got != 0 {
		t.Fatalf("expected nothing absorbed before End, got %d", got)
	}
	dst.End()
	stock := dst.Stock()
	if len(stock) != 1 || stock[0] != (Received{Msg: 1, Proc: 1}) {
		t.Fatalf("unexpected stock after End: %v", stock)
	}

	if err := a.Remove(hd); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if src.Evolve(0.1, 0.2) != operation.FiredYes {
		t.Fatal("expected source to keep firing after its target is gone")
	}
}

func TestCounterIdleEdgesCarryNothing(t *testing.T) {
	a := arena.New()
	src := NewCounter(CounterParams{EventCond: 1})
	dst := NewCounter(CounterParams{})
	hs := a.InsertActive(src)
	hd := a.InsertActive(dst)
	linker := connectivity.NewLinker[signal.S0]()
	src.AddActiveTarget(a.Ref(hd), linker)
	dst.AddSource(a.Ref(hs), linker)
	configureAll(t, a, operation.Idle)

	src.Evolve(0.1, 0.1)
	dst.End()
	if got := len(dst.Stock()); got != 0 {
		t.Fatalf("expected idle edge to deliver nothing, got %d", got)
	}
	if linker.Live() {
		t.Fatal("expected idle linker to hold no channel")
	}
	if targets := src.PassiveTargets(); len(targets) != 0 {
		t.Fatalf("expected no passive targets, got %v", targets)
	}
}

func TestCounterFeedsGenerationBackAtEnd(t *testing.T) {
	c := NewCounter(CounterParams{EventCond: 1})
	c.ConfigMode(operation.Feedforward)
	if err := c.ConfigChannels(); err != nil {
		t.Fatalf("config channels: %v", err)
	}
	c.Evolve(1, 1)
	if len(c.unsent) != 1 || c.unsent[0] != 1 {
		t.Fatalf("expected generation 1 held for End, got %v", c.unsent)
	}
	c.End()
	if len(c.unsent) != 0 {
		t.Fatalf("expected End to flush feedback, got %v", c.unsent)
	}
}
