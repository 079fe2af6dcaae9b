package operation

import (
	"fmt"
	"strconv"
)

// Handle identifies an agent inside its owning arena.
type Handle uint64

func (h Handle) String() string {
	return "agent-" + strconv.FormatUint(uint64(h), 10)
}

// Registry resolves handles to live agents.
type Registry interface {
	Alive(h Handle) bool
	PassiveBackOpeChs(h Handle) (PassiveBackOpeChs, error)
}

// Ref is a non-owning reference to a remote agent. Resolving a Ref whose agent
// has been removed yields ErrPeerGone.
type Ref struct {
	id  Handle
	reg Registry
}

func NewRef(id Handle, reg Registry) Ref {
	return Ref{id: id, reg: reg}
}

func (r Ref) ID() Handle {
	return r.id
}

func (r Ref) Alive() bool {
	return r.reg != nil && r.reg.Alive(r.id)
}

// PassiveBackOpeChs resolves the control plane of a passive target.
func (r Ref) PassiveBackOpeChs() (PassiveBackOpeChs, error) {
	if !r.Alive() {
		return PassiveBackOpeChs{}, fmt.Errorf("%w: %s", ErrPeerGone, r.id)
	}
	return r.reg.PassiveBackOpeChs(r.id)
}
