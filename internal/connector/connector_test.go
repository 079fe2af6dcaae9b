package connector

import (
	"errors"
	"testing"

	"spikenet/internal/operation"
	"spikenet/internal/population"
)

func pop(name string, handles ...operation.Handle) *population.Population {
	return population.New(name, "counter", handles)
}

func TestAllToAllPairsEveryMember(t *testing.T) {
	pairs := AllToAll{}.Pairs(pop("a", 1, 2), pop("b", 3, 4, 5))
	if len(pairs) != 6 {
		t.Fatalf("expected 6 pairs, got %d", len(pairs))
	}
	if pairs[0] != (Pair{Pre: 1, Post: 3}) || pairs[5] != (Pair{Pre: 2, Post: 5}) {
		t.Fatalf("unexpected pair order: %v", pairs)
	}
}

func TestLinearPairsByIndexUpToShorter(t *testing.T) {
	pairs := Linear{}.Pairs(pop("a", 1, 2, 3), pop("b", 7, 8))
	want := []Pair{{Pre: 1, Post: 7}, {Pre: 2, Post: 8}}
	if len(pairs) != len(want) {
		t.Fatalf("expected %v, got %v", want, pairs)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("pair %d: got %v want %v", i, pairs[i], want[i])
		}
	}
	if got := (Linear{}).Pairs(pop("a"), pop("b", 1)); len(got) != 0 {
		t.Fatalf("expected no pairs from an empty population, got %v", got)
	}
}

func TestResolve(t *testing.T) {
	for _, name := range Names() {
		c, err := Resolve(name)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if c.Name() != name {
			t.Fatalf("resolved %s to %s", name, c.Name())
		}
	}
	if _, err := Resolve("one_to_one_random"); !errors.Is(err, ErrUnknownConnector) {
		t.Fatalf("expected ErrUnknownConnector, got %v", err)
	}
}
