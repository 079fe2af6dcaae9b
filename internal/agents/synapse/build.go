package synapse

import (
	"fmt"

	"spikenet/internal/arena"
	"spikenet/internal/connectivity"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

type (
	preGenerator = connectivity.Generator[signal.DiracV]
	postAcceptor = connectivity.TwoWayAcceptor[signal.PostSynDiracV, signal.FiringTime]
)

// BuildToActive allocates a synapse from pre to an active post agent,
// creates both linkers and registers every end of the two edges.
func (p Params) BuildToActive(a *arena.Arena, pre, post operation.Handle, opts ...Option) (operation.Handle, error) {
	return p.build(a, pre, post, arena.KindActive, opts)
}

// BuildToPassive is BuildToActive for a passive post agent.
func (p Params) BuildToPassive(a *arena.Arena, pre, post operation.Handle, opts ...Option) (operation.Handle, error) {
	return p.build(a, pre, post, arena.KindPassive, opts)
}

func (p Params) build(a *arena.Arena, pre, post operation.Handle, postKind arena.Kind, opts []Option) (operation.Handle, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	kind, err := a.Kind(post)
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	if kind != postKind {
		return 0, fmt.Errorf("%w: post %s is %s, want %s", arena.ErrIncompatibleAgent, post, kind, postKind)
	}
	if err := arena.Inspect(a, pre, func(preGenerator) error { return nil }); err != nil {
		return 0, fmt.Errorf("pre: %w", err)
	}
	if err := arena.Inspect(a, post, func(postAcceptor) error { return nil }); err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}

	syn := NewDiracV(p, opts...)
	capacity := applyOptions(opts).capacity
	preLinker := connectivity.NewBoundedLinker[signal.DiracV](capacity)
	postLinker := connectivity.NewBoundedTwoWayLinker[signal.PostSynDiracV, signal.FiringTime](capacity)
	if postKind == arena.KindActive {
		syn.AddActiveTwoWayTarget(a.Ref(post), postLinker)
	} else {
		syn.AddPassiveTwoWayTarget(a.Ref(post), postLinker)
	}
	syn.AddSource(a.Ref(pre), preLinker)

	h := a.InsertPassive(syn)
	ref := a.Ref(h)
	if err := arena.Inspect(a, pre, func(g preGenerator) error {
		g.AddPassiveTarget(ref, preLinker)
		return nil
	}); err != nil {
		_ = a.Remove(h)
		return 0, fmt.Errorf("pre: %w", err)
	}
	if err := arena.Inspect(a, post, func(acc postAcceptor) error {
		acc.AddPassiveTwoWaySource(ref, postLinker)
		return nil
	}); err != nil {
		_ = a.Remove(h)
		return 0, fmt.Errorf("post: %w", err)
	}
	return h, nil
}
