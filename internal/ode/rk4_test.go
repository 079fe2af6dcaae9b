package ode

import (
	"math"
	"testing"
)

func TestRK4ExponentialDecay(t *testing.T) {
	decay := func(y float64) float64 { return -y }
	got := Integrate(decay, 1, 0.01, 100)
	want := math.Exp(-1)
	if math.Abs(got-want) > 1e-8 {
		t.Fatalf("unexpected decay: got=%.10f want=%.10f", got, want)
	}
}

func TestRK4ConstantSlope(t *testing.T) {
	slope := func(float64) float64 { return 2.5 }
	if got := RK4(slope, 10, 0.2); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("unexpected increment: got=%f want=0.5", got)
	}
}

func TestRK4ZeroStep(t *testing.T) {
	if got := RK4(func(y float64) float64 { return y * y }, 3, 0); got != 0 {
		t.Fatalf("expected zero increment, got=%f", got)
	}
}
