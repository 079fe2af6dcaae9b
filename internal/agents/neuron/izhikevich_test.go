package neuron

import (
	"errors"
	"math"
	"testing"

	"spikenet/internal/operation"
)

func TestIzhikevichParamsFromMap(t *testing.T) {
	p, err := IzhikevichParamsFromMap(map[string]float64{"d": 8, "i_e": 5})
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.D != 8 || p.IE != 5 || p.A != 0.02 || p.VTh != 30 {
		t.Fatalf("unexpected params: %+v", p)
	}
	for _, params := range []map[string]float64{
		{"a": 0},
		{"c": 40},
		{"tau_m": 10},
	} {
		if _, err := IzhikevichParamsFromMap(params); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("%v: expected ErrInvalidParams, got %v", params, err)
		}
	}
}

func TestIzhikevichRestsAndFiresUnderCurrent(t *testing.T) {
	rest := NewIzhikevich(DefaultIzhikevichParams())
	for i := 1; i <= 400; i++ {
		if rest.Evolve(0.5, float64(i)*0.5) == operation.FiredYes {
			t.Fatalf("resting neuron fired at step %d", i)
		}
	}
	if math.Abs(rest.V()+70) > 1 {
		t.Fatalf("expected v near rest, got %v", rest.V())
	}

	p := DefaultIzhikevichParams()
	p.IE = 10
	driven := NewIzhikevich(p)
	for i := 1; i <= 400; i++ {
		now := float64(i) * 0.5
		if driven.Evolve(0.5, now) == operation.FiredYes {
			if driven.V() != p.C {
				t.Fatalf("expected reset to c after firing at %v, got %v", now, driven.V())
			}
		}
	}
	if times := driven.FiringTimes(); len(times) < 2 {
		t.Fatalf("expected repeated firing under current, got %v", times)
	}
}

func TestIzhikevichFeedsFiringTimeBackAtEnd(t *testing.T) {
	p := DefaultIzhikevichParams()
	p.V = 29
	z := NewIzhikevich(p)
	z.ConfigMode(operation.Feedforward)
	if err := z.ConfigChannels(); err != nil {
		t.Fatalf("config channels: %v", err)
	}
	if z.Evolve(1, 1) != operation.FiredYes {
		t.Fatal("expected a neuron starting near threshold to fire")
	}
	if len(z.unsent) != 1 {
		t.Fatalf("expected one firing time held for End, got %v", z.unsent)
	}
	z.End()
	if len(z.unsent) != 0 {
		t.Fatalf("expected End to flush firing times, got %v", z.unsent)
	}
}
