package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"spikenet/internal/chans"
)

// Configurable is the two-phase configuration contract: ConfigMode records the
// requested mode everywhere (tearing channels down on Idle), ConfigChannels
// then materializes them. Mode fails with ErrInconsistentMode when owned
// components disagree.
type Configurable interface {
	ConfigMode(mode RunMode)
	ConfigChannels() error
	Mode() (RunMode, error)
}

// Active agents are driven by the external clock and report Fired each
// generation.
type Active interface {
	Configurable
	// Evolve advances the agent by one step and pushes its outgoing messages.
	Evolve(dt, time float64) Fired
	// End absorbs whatever arrived during the generation that just closed.
	End()
	// PassiveTargets lists the passive agents that must be confirmed and
	// awaited after Evolve. Idle edges are omitted.
	PassiveTargets() []Ref
	ConfirmSender() chans.Sender[Broadcast]
	ConfirmReceiver() chans.Receiver[Broadcast]
	ReportSender() chans.Sender[Fired]
	ReportReceiver() chans.Receiver[Fired]
	CloseOpeChs()
}

// Passive agents only do work after a confirm from an active neighbour and
// must answer on their report line before the generation is complete.
type Passive interface {
	Configurable
	Respond()
	ConfirmSender() chans.Sender[Broadcast]
	ConfirmReceiver() chans.Receiver[Broadcast]
	ReportSender() chans.Sender[Ack]
	PassiveBackOpeChs() PassiveBackOpeChs
	CloseOpeChs()
}

// Outcome is the result of one active generation. Severed collects edges that
// were found gone while confirming passive targets; it never aborts the tick.
type Outcome struct {
	Fired   Fired
	Ran     bool
	Severed error
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func lockOrNoop(l sync.Locker) sync.Locker {
	if l == nil {
		return noLock{}
	}
	return l
}

// RunFiring executes one generation of an active agent: evolve under the
// agent's lock, confirm every running passive target, await each target's
// report, then publish the agent's own report. An idle agent short-circuits
// with no confirm sent and no report published.
func RunFiring(ctx context.Context, a Active, dt, time float64, lock sync.Locker) (Outcome, error) {
	return runFiring(ctx, a, dt, time, lock, nil)
}

func runFiring(ctx context.Context, a Active, dt, time float64, lock sync.Locker, onSevered SeveredFunc) (Outcome, error) {
	lock = lockOrNoop(lock)

	lock.Lock()
	mode, err := a.Mode()
	if err != nil {
		lock.Unlock()
		return Outcome{}, err
	}
	if !mode.Running() {
		lock.Unlock()
		return Outcome{}, nil
	}
	fired := a.Evolve(dt, time)
	targets := a.PassiveTargets()
	lock.Unlock()

	severed, err := confirmAndAwait(ctx, targets)
	if err != nil {
		return Outcome{}, err
	}
	if len(severed) > 0 && onSevered != nil {
		onSevered(time, severed)
	}
	if err := a.ReportSender().Send(fired); err != nil {
		return Outcome{}, fmt.Errorf("publish report: %w", ChannelError(err))
	}
	return Outcome{Fired: fired, Ran: true, Severed: errors.Join(severed...)}, nil
}

func confirmAndAwait(ctx context.Context, targets []Ref) ([]error, error) {
	var severed []error
	pending := make([]PassiveBackOpeChs, 0, len(targets))
	for _, target := range targets {
		chs, err := target.PassiveBackOpeChs()
		if err != nil {
			severed = append(severed, err)
			continue
		}
		if err := chs.Confirm.Send(Broadcast{}); err != nil {
			severed = append(severed, fmt.Errorf("confirm %s: %w", target.ID(), ChannelError(err)))
			continue
		}
		pending = append(pending, chs)
	}
	for _, chs := range pending {
		if _, err := chs.Report.Recv(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			severed = append(severed, fmt.Errorf("await report: %w", ChannelError(err)))
		}
	}
	return severed, nil
}

// Forwarder is implemented by passive agents that feed other passive agents.
// RunPassive confirms and awaits those targets before reporting, so the
// barrier extends along passive chains. The chains must be acyclic.
type Forwarder interface {
	PassiveTargets() []Ref
}

// RunPassive executes one confirm -> respond -> report cycle. It blocks on the
// confirm line without holding the agent's lock. A disconnected control plane
// resolves to ErrPeerGone.
func RunPassive(ctx context.Context, p Passive, lock sync.Locker) error {
	lock = lockOrNoop(lock)

	if _, err := p.ConfirmReceiver().Recv(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ChannelError(err)
	}

	var targets []Ref
	lock.Lock()
	mode, modeErr := p.Mode()
	if modeErr == nil && mode.Running() {
		p.Respond()
		if f, ok := p.(Forwarder); ok {
			targets = f.PassiveTargets()
		}
	}
	lock.Unlock()

	if len(targets) > 0 {
		if _, err := confirmAndAwait(ctx, targets); err != nil {
			return err
		}
	}

	// the confirmer is waiting either way; answer before surfacing modeErr
	if err := p.ReportSender().Send(Ack{}); err != nil {
		return errors.Join(modeErr, fmt.Errorf("publish report: %w", ChannelError(err)))
	}
	return modeErr
}

// ServePassive runs RunPassive until ctx is done, the agent is torn down or
// its mode turns out inconsistent.
func ServePassive(ctx context.Context, p Passive, lock sync.Locker) error {
	for {
		if err := RunPassive(ctx, p, lock); err != nil {
			return err
		}
	}
}

// Clock supplies the step parameters of the generation being confirmed.
type Clock func() (dt, time float64)

// SeveredFunc receives the edges found gone during one generation. It runs
// before the agent's report is published, so the confirmer sees the count
// once the report arrives.
type SeveredFunc func(time float64, severed []error)

// ServeActive runs an active agent as a worker: each confirm triggers one
// RunFiring with the current clock. Severed edges are handed to onSevered
// (which may be nil), logged and absorbed. A fatal error ends the worker
// without a report, so whoever confirmed it must await the report with a
// bounded context.
func ServeActive(ctx context.Context, a Active, lock sync.Locker, clock Clock, onSevered SeveredFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for {
		if _, err := a.ConfirmReceiver().Recv(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return ChannelError(err)
		}
		dt, now := clock()
		outcome, err := runFiring(ctx, a, dt, now, lock, onSevered)
		if err != nil {
			return err
		}
		if outcome.Severed != nil {
			logger.Debug("severed edges absorbed", "time", now, "error", outcome.Severed)
		}
	}
}
