// Package arena owns every agent of a network. Agents are addressed by
// operation.Handle; edges hold handles rather than pointers, so removing an
// agent from the arena is all it takes for its peers to observe it as gone.
package arena

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"spikenet/internal/operation"
)

var (
	ErrUnknownHandle     = errors.New("unknown agent handle")
	ErrIncompatibleAgent = errors.New("incompatible agent")
)

// Kind tags the capability set an agent was inserted with.
type Kind int

const (
	KindActive Kind = iota + 1
	KindPassive
)

func (k Kind) String() string {
	switch k {
	case KindActive:
		return "active"
	case KindPassive:
		return "passive"
	default:
		return "unknown"
	}
}

type entry struct {
	mu      sync.Mutex
	kind    Kind
	active  operation.Active
	passive operation.Passive
}

func (e *entry) configurable() operation.Configurable {
	if e.kind == KindActive {
		return e.active
	}
	return e.passive
}

// Arena allocates handles and guards each agent with its own mutex.
type Arena struct {
	mu      sync.RWMutex
	next    operation.Handle
	entries map[operation.Handle]*entry
}

func New() *Arena {
	return &Arena{entries: make(map[operation.Handle]*entry)}
}

func (a *Arena) insert(e *entry) operation.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.entries[a.next] = e
	return a.next
}

// InsertActive takes ownership of an active agent.
func (a *Arena) InsertActive(agent operation.Active) operation.Handle {
	return a.insert(&entry{kind: KindActive, active: agent})
}

// InsertPassive takes ownership of a passive agent.
func (a *Arena) InsertPassive(agent operation.Passive) operation.Handle {
	return a.insert(&entry{kind: KindPassive, passive: agent})
}

func (a *Arena) lookup(h operation.Handle) (*entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return e, nil
}

// Ref returns a non-owning reference resolved against this arena.
func (a *Arena) Ref(h operation.Handle) operation.Ref {
	return operation.NewRef(h, a)
}

func (a *Arena) Alive(h operation.Handle) bool {
	_, err := a.lookup(h)
	return err == nil
}

// PassiveBackOpeChs resolves the driver-side control plane of a passive
// agent. A missing handle is reported as ErrPeerGone.
func (a *Arena) PassiveBackOpeChs(h operation.Handle) (operation.PassiveBackOpeChs, error) {
	e, err := a.lookup(h)
	if err != nil {
		return operation.PassiveBackOpeChs{}, fmt.Errorf("%w: %w", operation.ErrPeerGone, err)
	}
	if e.kind != KindPassive {
		return operation.PassiveBackOpeChs{}, fmt.Errorf("%w: %s is %s", ErrIncompatibleAgent, h, e.kind)
	}
	return e.passive.PassiveBackOpeChs(), nil
}

func (a *Arena) Kind(h operation.Handle) (Kind, error) {
	e, err := a.lookup(h)
	if err != nil {
		return 0, err
	}
	return e.kind, nil
}

// Locker returns the mutex guarding the agent's state.
func (a *Arena) Locker(h operation.Handle) (sync.Locker, error) {
	e, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	return &e.mu, nil
}

func (a *Arena) Active(h operation.Handle) (operation.Active, error) {
	e, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.kind != KindActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrIncompatibleAgent, h, e.kind)
	}
	return e.active, nil
}

func (a *Arena) Passive(h operation.Handle) (operation.Passive, error) {
	e, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.kind != KindPassive {
		return nil, fmt.Errorf("%w: %s is %s", ErrIncompatibleAgent, h, e.kind)
	}
	return e.passive, nil
}

// With runs fn with the agent's lock held.
func (a *Arena) With(h operation.Handle, fn func(operation.Configurable) error) error {
	e, err := a.lookup(h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.configurable())
}

// Inspect runs fn on the concrete agent under its lock. It fails with
// ErrIncompatibleAgent when the agent is not a T.
func Inspect[T any](a *Arena, h operation.Handle, fn func(T) error) error {
	return a.With(h, func(c operation.Configurable) error {
		agent, ok := c.(T)
		if !ok {
			return fmt.Errorf("%w: %s is %T", ErrIncompatibleAgent, h, c)
		}
		return fn(agent)
	})
}

// Remove drops the agent. It is unregistered first, so peers resolving its
// handle see ErrPeerGone, then idled under its lock and its control plane
// closed, which releases anyone blocked on it.
func (a *Arena) Remove(h operation.Handle) error {
	a.mu.Lock()
	e, ok := a.entries[h]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(a.entries, h)
	a.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.configurable()
	c.ConfigMode(operation.Idle)
	if e.kind == KindActive {
		e.active.CloseOpeChs()
	} else {
		e.passive.CloseOpeChs()
	}
	return nil
}

// Handles lists live handles in allocation order.
func (a *Arena) Handles() []operation.Handle {
	a.mu.RLock()
	out := make([]operation.Handle, 0, len(a.entries))
	for h := range a.entries {
		out = append(out, h)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HandlesOf lists live handles of one kind in allocation order.
func (a *Arena) HandlesOf(kind Kind) []operation.Handle {
	a.mu.RLock()
	out := make([]operation.Handle, 0, len(a.entries))
	for h, e := range a.entries {
		if e.kind == kind {
			out = append(out, h)
		}
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

var _ operation.Registry = (*Arena)(nil)
