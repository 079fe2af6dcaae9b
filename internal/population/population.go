// Package population groups agents created from one model so they can be
// connected and configured together.
package population

import (
	"errors"
	"fmt"

	"spikenet/internal/arena"
	"spikenet/internal/operation"
)

// Population is an ordered set of agent handles. It owns no agents; the
// arena does.
type Population struct {
	name    string
	model   string
	handles []operation.Handle
}

func New(name, model string, handles []operation.Handle) *Population {
	return &Population{
		name:    name,
		model:   model,
		handles: append([]operation.Handle(nil), handles...),
	}
}

func (p *Population) Name() string  { return p.name }
func (p *Population) Model() string { return p.model }
func (p *Population) Len() int      { return len(p.handles) }

// At returns the i-th member.
func (p *Population) At(i int) (operation.Handle, bool) {
	if i < 0 || i >= len(p.handles) {
		return 0, false
	}
	return p.handles[i], true
}

func (p *Population) Handles() []operation.Handle {
	return append([]operation.Handle(nil), p.handles...)
}

// Contains reports whether h is a member.
func (p *Population) Contains(h operation.Handle) bool {
	for _, m := range p.handles {
		if m == h {
			return true
		}
	}
	return false
}

// Drop forgets h, e.g. after the agent was removed from the arena.
func (p *Population) Drop(h operation.Handle) {
	kept := p.handles[:0]
	for _, m := range p.handles {
		if m != h {
			kept = append(kept, m)
		}
	}
	p.handles = kept
}

// ConfigMode records mode on every member.
func (p *Population) ConfigMode(a *arena.Arena, mode operation.RunMode) error {
	return p.each(a, func(c operation.Configurable) error {
		c.ConfigMode(mode)
		return nil
	})
}

// ConfigChannels materializes the channels of every member.
func (p *Population) ConfigChannels(a *arena.Arena) error {
	return p.each(a, func(c operation.Configurable) error { return c.ConfigChannels() })
}

// Mode returns the mode shared by every member, or ErrInconsistentMode.
func (p *Population) Mode(a *arena.Arena) (operation.RunMode, error) {
	modes := make([]operation.NamedMode, 0, len(p.handles))
	err := p.each(a, func(c operation.Configurable) error {
		m, err := c.Mode()
		if err != nil {
			return err
		}
		modes = append(modes, operation.NamedMode{Name: fmt.Sprintf("%s[%d]", p.name, len(modes)), Mode: m})
		return nil
	})
	if err != nil {
		return operation.Idle, err
	}
	return operation.AggregateMode(modes...)
}

func (p *Population) each(a *arena.Arena, fn func(operation.Configurable) error) error {
	var errs []error
	for _, h := range p.handles {
		if err := a.With(h, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", p.name, h, err))
		}
	}
	return errors.Join(errs...)
}
