// Package connectivity wires agents together: a Linker owns one edge's
// channels, OutSet/InSet are the two ends of an edge, and the fan components
// hold every edge of one kind attached to an agent.
package connectivity

import "spikenet/internal/operation"

// Registration capabilities. Method names differ per edge kind so that one
// agent can be a generator of one kind and an acceptor of another.

// Generator can be the pre end of one-way edges carrying F.
type Generator[F any] interface {
	AddActiveTarget(post operation.Ref, linker *Linker[F])
	AddPassiveTarget(post operation.Ref, linker *Linker[F])
}

// Acceptor can be the post end of one-way edges carrying F.
type Acceptor[F any] interface {
	AddSource(pre operation.Ref, linker *Linker[F])
}

// TwoWayGenerator can be the pre end of two-way edges.
type TwoWayGenerator[F, B any] interface {
	AddActiveTwoWayTarget(post operation.Ref, linker *TwoWayLinker[F, B])
	AddPassiveTwoWayTarget(post operation.Ref, linker *TwoWayLinker[F, B])
}

// TwoWayAcceptor can be the post end of two-way edges.
type TwoWayAcceptor[F, B any] interface {
	AddActiveTwoWaySource(pre operation.Ref, linker *TwoWayLinker[F, B])
	AddPassiveTwoWaySource(pre operation.Ref, linker *TwoWayLinker[F, B])
}

var (
	_ Generator[int]            = (*MultiOut[int])(nil)
	_ Acceptor[int]             = (*MultiIn[int])(nil)
	_ Acceptor[int]             = (*SingleIn[int])(nil)
	_ TwoWayGenerator[int, int] = (*PostSynFore[int, int])(nil)
	_ TwoWayAcceptor[int, int]  = (*PostSynBack[int, int])(nil)
)
