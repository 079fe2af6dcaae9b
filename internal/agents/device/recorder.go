// Package device implements passive sinks attached to neurons for
// observation.
package device

import (
	"spikenet/internal/connectivity"
	"spikenet/internal/operation"
)

// Recorder is a passive sink that keeps every payload it drains, in arrival
// order.
type Recorder[T any] struct {
	*operation.OpeChs[operation.Ack]

	in      *connectivity.MultiIn[T]
	records []T
}

func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{
		OpeChs: operation.NewOpeChs[operation.Ack](),
		in:     connectivity.NewMultiIn[T](),
	}
}

func (r *Recorder[T]) AddSource(pre operation.Ref, linker *connectivity.Linker[T]) {
	r.in.AddSource(pre, linker)
}

func (r *Recorder[T]) ConfigMode(mode operation.RunMode) { r.in.ConfigMode(mode) }

func (r *Recorder[T]) ConfigChannels() error { return r.in.ConfigChannels() }

func (r *Recorder[T]) Mode() (operation.RunMode, error) { return r.in.Mode(), nil }

func (r *Recorder[T]) Respond() {
	for v := range r.in.FfwAccepted() {
		r.records = append(r.records, v)
	}
}

func (r *Recorder[T]) PassiveBackOpeChs() operation.PassiveBackOpeChs { return r.Back() }

func (r *Recorder[T]) CloseOpeChs() { r.Close() }

// Records returns a copy of everything drained so far.
func (r *Recorder[T]) Records() []T {
	out := make([]T, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder[T]) Len() int { return len(r.records) }

// Sources counts the registered upstream edges.
func (r *Recorder[T]) Sources() int { return r.in.Len() }

var (
	_ operation.Passive          = (*Recorder[int])(nil)
	_ connectivity.Acceptor[int] = (*Recorder[int])(nil)
)
