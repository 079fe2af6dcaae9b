// Package connector generates the member pairs a projection between two
// populations connects.
package connector

import (
	"errors"
	"fmt"
	"sort"

	"spikenet/internal/operation"
	"spikenet/internal/population"
)

var ErrUnknownConnector = errors.New("unknown connector")

// Pair is one edge to build: from Pre to Post.
type Pair struct {
	Pre  operation.Handle
	Post operation.Handle
}

type Connector interface {
	Name() string
	Pairs(pre, post *population.Population) []Pair
}

// AllToAll connects every pre member to every post member.
type AllToAll struct{}

func (AllToAll) Name() string { return "all_to_all" }

func (AllToAll) Pairs(pre, post *population.Population) []Pair {
	out := make([]Pair, 0, pre.Len()*post.Len())
	for _, i := range pre.Handles() {
		for _, j := range post.Handles() {
			out = append(out, Pair{Pre: i, Post: j})
		}
	}
	return out
}

// Linear connects the i-th pre member to the i-th post member, up to the
// smaller population.
type Linear struct{}

func (Linear) Name() string { return "linear" }

func (Linear) Pairs(pre, post *population.Population) []Pair {
	n := min(pre.Len(), post.Len())
	out := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		a, _ := pre.At(i)
		b, _ := post.At(i)
		out = append(out, Pair{Pre: a, Post: b})
	}
	return out
}

var connectors = map[string]Connector{
	AllToAll{}.Name(): AllToAll{},
	Linear{}.Name():   Linear{},
}

// Resolve maps a config name to a Connector.
func Resolve(name string) (Connector, error) {
	c, ok := connectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnector, name)
	}
	return c, nil
}

func Names() []string {
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
