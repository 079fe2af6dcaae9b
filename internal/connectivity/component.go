package connectivity

import (
	"errors"
	"fmt"
	"iter"

	"spikenet/internal/operation"
)

type endpoint interface {
	ConfigMode(mode operation.RunMode)
	ConfigChannels() error
	RunningTarget() (operation.Ref, bool)
	Target() operation.Ref
}

type fanEntry[E endpoint] struct {
	ep      E
	passive bool
}

// fan holds the endpoints of one component in registration order and applies
// the two-phase configuration to all of them.
type fan[E endpoint] struct {
	mode    operation.RunMode
	modeSet bool
	entries []fanEntry[E]
}

func (f *fan[E]) add(ep E, passive bool) {
	f.entries = append(f.entries, fanEntry[E]{ep: ep, passive: passive})
}

func (f *fan[E]) ConfigMode(mode operation.RunMode) {
	f.mode = mode
	f.modeSet = true
	for _, e := range f.entries {
		e.ep.ConfigMode(mode)
	}
}

func (f *fan[E]) ConfigChannels() error {
	if !f.modeSet {
		return fmt.Errorf("%w: component", operation.ErrNotConfigured)
	}
	var errs []error
	for _, e := range f.entries {
		if err := e.ep.ConfigChannels(); err != nil {
			errs = append(errs, fmt.Errorf("edge %s: %w", e.ep.Target().ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *fan[E]) Mode() operation.RunMode {
	return f.mode
}

func (f *fan[E]) Len() int {
	return len(f.entries)
}

// RunningTargets returns the passive agents on configured edges, in
// registration order.
func (f *fan[E]) RunningTargets() []operation.Ref {
	var out []operation.Ref
	for _, e := range f.entries {
		if !e.passive {
			continue
		}
		if ref, ok := e.ep.RunningTarget(); ok {
			out = append(out, ref)
		}
	}
	return out
}

func (f *fan[E]) each(fn func(E) error) error {
	var errs []error
	for _, e := range f.entries {
		if err := fn(e.ep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func concat[E endpoint, T any](f *fan[E], drain func(E) (iter.Seq[T], bool)) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, e := range f.entries {
			seq, ok := drain(e.ep)
			if !ok {
				continue
			}
			for v := range seq {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// MultiOut fans one-way messages out to every registered acceptor.
type MultiOut[F any] struct {
	fan[*OutSet[F]]
}

func NewMultiOut[F any]() *MultiOut[F] {
	return &MultiOut[F]{}
}

func (m *MultiOut[F]) AddActiveTarget(post operation.Ref, linker *Linker[F]) {
	m.add(NewOutSet(post, linker), false)
}

func (m *MultiOut[F]) AddPassiveTarget(post operation.Ref, linker *Linker[F]) {
	m.add(NewOutSet(post, linker), true)
}

// Feedforward sends v on every edge. Edges fail independently; the returned
// error joins the per-edge failures.
func (m *MultiOut[F]) Feedforward(v F) error {
	return m.each(func(o *OutSet[F]) error { return o.Feedforward(v) })
}

// MultiIn collects one-way messages from every registered generator.
type MultiIn[F any] struct {
	fan[*InSet[F]]
}

func NewMultiIn[F any]() *MultiIn[F] {
	return &MultiIn[F]{}
}

func (m *MultiIn[F]) AddSource(pre operation.Ref, linker *Linker[F]) {
	m.add(NewInSet(pre, linker), false)
}

// FfwAccepted drains every edge in registration order. The sequence is
// single-pass; the next call drains whatever arrived since.
func (m *MultiIn[F]) FfwAccepted() iter.Seq[F] {
	return concat(&m.fan, func(i *InSet[F]) (iter.Seq[F], bool) { return i.FfwAcceptedIter() })
}

// PostSynFore is the generator side of two-way edges: a synapse feeding its
// post-synaptic agents and listening for their plasticity feedback.
type PostSynFore[F, B any] struct {
	fan[*TwoWayOutSet[F, B]]
}

func NewPostSynFore[F, B any]() *PostSynFore[F, B] {
	return &PostSynFore[F, B]{}
}

func (p *PostSynFore[F, B]) AddActiveTwoWayTarget(post operation.Ref, linker *TwoWayLinker[F, B]) {
	p.add(NewTwoWayOutSet(post, linker), false)
}

func (p *PostSynFore[F, B]) AddPassiveTwoWayTarget(post operation.Ref, linker *TwoWayLinker[F, B]) {
	p.add(NewTwoWayOutSet(post, linker), true)
}

func (p *PostSynFore[F, B]) Feedforward(v F) error {
	return p.each(func(o *TwoWayOutSet[F, B]) error { return o.Feedforward(v) })
}

func (p *PostSynFore[F, B]) FbwAccepted() iter.Seq[B] {
	return concat(&p.fan, func(o *TwoWayOutSet[F, B]) (iter.Seq[B], bool) { return o.FbwAcceptedIter() })
}

// PostSynBack is the acceptor side of two-way edges: an agent receiving from
// its synapses and sending plasticity feedback back to them.
type PostSynBack[F, B any] struct {
	fan[*TwoWayInSet[F, B]]
}

func NewPostSynBack[F, B any]() *PostSynBack[F, B] {
	return &PostSynBack[F, B]{}
}

func (p *PostSynBack[F, B]) AddActiveTwoWaySource(pre operation.Ref, linker *TwoWayLinker[F, B]) {
	p.add(NewTwoWayInSet(pre, linker), false)
}

func (p *PostSynBack[F, B]) AddPassiveTwoWaySource(pre operation.Ref, linker *TwoWayLinker[F, B]) {
	p.add(NewTwoWayInSet(pre, linker), true)
}

func (p *PostSynBack[F, B]) FfwAccepted() iter.Seq[F] {
	return concat(&p.fan, func(i *TwoWayInSet[F, B]) (iter.Seq[F], bool) { return i.FfwAcceptedIter() })
}

func (p *PostSynBack[F, B]) Feedbackward(v B) error {
	return p.each(func(i *TwoWayInSet[F, B]) error { return i.Feedbackward(v) })
}

// SingleIn is a fan-in limited to one source. Registering a second source
// replaces the first.
type SingleIn[F any] struct {
	fan[*InSet[F]]
}

func NewSingleIn[F any]() *SingleIn[F] {
	return &SingleIn[F]{}
}

func (s *SingleIn[F]) AddSource(pre operation.Ref, linker *Linker[F]) {
	if len(s.entries) > 0 {
		s.entries[0].ep.ConfigMode(operation.Idle)
		s.entries = s.entries[:0]
	}
	in := NewInSet(pre, linker)
	if s.modeSet {
		in.ConfigMode(s.mode)
	}
	s.add(in, false)
}

// Source returns the registered source, if any.
func (s *SingleIn[F]) Source() (operation.Ref, bool) {
	if len(s.entries) == 0 {
		return operation.Ref{}, false
	}
	return s.entries[0].ep.Target(), true
}

func (s *SingleIn[F]) FfwAccepted() iter.Seq[F] {
	return concat(&s.fan, func(i *InSet[F]) (iter.Seq[F], bool) { return i.FfwAcceptedIter() })
}
