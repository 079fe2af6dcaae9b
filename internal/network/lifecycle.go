package network

import (
	"context"
	"errors"
	"fmt"

	"spikenet/internal/arena"
	"spikenet/internal/logging"
	"spikenet/internal/operation"
	"spikenet/internal/platform"
)

// Start configures every agent for Feedforward in two phases, checks that
// the modes agree, then launches one supervised worker per agent.
func (n *Network) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return ErrRunning
	}

	handles := n.arena.Handles()
	if err := n.forEach(ctx, handles, func(c operation.Configurable) error {
		c.ConfigMode(operation.Feedforward)
		return nil
	}); err != nil {
		return n.abortStart(fmt.Errorf("config mode: %w", err))
	}
	if err := n.forEach(ctx, handles, func(c operation.Configurable) error {
		return c.ConfigChannels()
	}); err != nil {
		return n.abortStart(fmt.Errorf("config channels: %w", err))
	}
	if err := n.checkModes(ctx, handles); err != nil {
		return n.abortStart(err)
	}

	n.lostMu.Lock()
	clear(n.lost)
	n.lostMu.Unlock()
	for _, h := range handles {
		if err := n.launch(h); err != nil {
			n.sup.StopAll()
			return n.abortStart(err)
		}
	}
	n.running = true
	n.logger.Info("network started",
		"agents", len(handles),
		"populations", len(n.populations),
		"synapses", len(n.synapses),
		"dt", n.cfg.Dt,
	)
	return nil
}

func (n *Network) checkModes(ctx context.Context, handles []operation.Handle) error {
	var errs []error
	for _, name := range n.order {
		if _, err := n.populations[name].Mode(n.arena); err != nil {
			errs = append(errs, fmt.Errorf("population %s: %w", name, err))
		}
	}
	if err := n.forEach(ctx, handles, func(c operation.Configurable) error {
		mode, err := c.Mode()
		if err != nil {
			return err
		}
		if mode != operation.Feedforward {
			return fmt.Errorf("%w: %s after start", operation.ErrInconsistentMode, mode)
		}
		return nil
	}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// abortStart idles every agent so the network can be reconfigured.
func (n *Network) abortStart(cause error) error {
	idleErr := n.idleAll()
	return errors.Join(cause, idleErr)
}

func (n *Network) idleAll() error {
	return n.forEach(context.Background(), n.arena.Handles(), func(c operation.Configurable) error {
		c.ConfigMode(operation.Idle)
		return nil
	})
}

func (n *Network) launch(h operation.Handle) error {
	kind, err := n.arena.Kind(h)
	if err != nil {
		return err
	}
	lock, err := n.arena.Locker(h)
	if err != nil {
		return err
	}
	spec := platform.WorkerSpec{Name: h.String(), Group: kind.String(), Restart: n.cfg.Restart}

	if kind == arena.KindActive {
		agent, err := n.arena.Active(h)
		if err != nil {
			return err
		}
		logger := n.logger.With("agent", h.String())
		return n.sup.Start(spec, func(ctx context.Context) error {
			return settle(operation.ServeActive(ctx, agent, lock, n.clock, n.countSevered, logger))
		})
	}

	agent, err := n.arena.Passive(h)
	if err != nil {
		return err
	}
	return n.sup.Start(spec, func(ctx context.Context) error {
		return settle(operation.ServePassive(ctx, agent, lock))
	})
}

// settle maps the ways a worker legitimately ends onto a clean exit.
func settle(err error) error {
	if errors.Is(err, operation.ErrPeerGone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick runs one generation: every running active agent is confirmed, its
// report awaited, and then every agent that reported absorbs its inputs.
func (n *Network) Tick(ctx context.Context) (TickReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return TickReport{}, ErrNotRunning
	}

	gen := n.generation + 1
	now := float64(gen) * n.cfg.Dt
	n.setClock(now)
	report := TickReport{Generation: gen, Time: now}
	n.severedEdges.Store(0)

	type confirmed struct {
		handle operation.Handle
		agent  operation.Active
	}
	var (
		pending []confirmed
		errs    []error
	)
	for _, h := range n.arena.HandlesOf(arena.KindActive) {
		agent, err := n.arena.Active(h)
		if err != nil {
			report.Severed++
			continue
		}
		running := false
		_ = n.arena.With(h, func(c operation.Configurable) error {
			mode, err := c.Mode()
			running = err == nil && mode.Running()
			return nil
		})
		if !running {
			continue
		}
		if cause := n.lostWorker(h); cause != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h, errors.Join(ErrWorkerLost, cause)))
			continue
		}
		if err := agent.ConfirmSender().Send(operation.Broadcast{}); err != nil {
			report.Severed++
			n.logger.Debug("confirm failed", "agent", h.String(), "error", operation.ChannelError(err))
			continue
		}
		pending = append(pending, confirmed{handle: h, agent: agent})
	}

	reported := make([]operation.Handle, 0, len(pending))
	for _, c := range pending {
		waitCtx, cancel := context.WithTimeout(ctx, n.cfg.ReportTimeout)
		fired, err := c.agent.ReportReceiver().Recv(waitCtx)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			if !n.arena.Alive(c.handle) {
				report.Severed++
				continue
			}
			errs = append(errs, n.reportFailure(c.handle, err))
			continue
		}
		report.Ran++
		reported = append(reported, c.handle)
		if fired {
			report.Fired = append(report.Fired, c.handle)
			if n.recording[c.handle] {
				n.spikes[c.handle] = append(n.spikes[c.handle], now)
			}
		}
	}

	report.SeveredEdges = int(n.severedEdges.Swap(0))

	if err := n.forEach(ctx, reported, func(c operation.Configurable) error {
		if agent, ok := c.(operation.Active); ok {
			agent.End()
		}
		return nil
	}); err != nil {
		errs = append(errs, fmt.Errorf("end phase: %w", err))
	}

	n.generation = gen
	n.logger.Log(ctx, logging.LevelTrace, "tick",
		"generation", gen,
		"time", now,
		"ran", report.Ran,
		"fired", len(report.Fired),
		"severed", report.Severed,
		"severed_edges", report.SeveredEdges,
	)
	return report, errors.Join(errs...)
}

func (n *Network) reportFailure(h operation.Handle, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("report timed out after %s", n.cfg.ReportTimeout)
	} else {
		err = operation.ChannelError(err)
	}
	if cause := n.sup.Failure(h.String()); cause != nil {
		return fmt.Errorf("%s: %w", h, errors.Join(err, cause))
	}
	return fmt.Errorf("%s: %w", h, err)
}

// Run ticks until duration of simulated time has elapsed. It returns the
// number of generations run.
func (n *Network) Run(ctx context.Context, duration float64) (int, error) {
	steps := n.Steps(duration)
	for i := 0; i < steps; i++ {
		if _, err := n.Tick(ctx); err != nil {
			return i, fmt.Errorf("generation %d: %w", n.Generation(), err)
		}
	}
	return steps, nil
}

// Stop ends every worker and idles every agent. The network can be started
// again afterwards.
func (n *Network) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}
	n.sup.StopAll()
	n.running = false
	err := n.idleAll()
	n.logger.Info("network stopped", "generation", n.generation)
	return err
}

// Remove drops an agent and its monitor while the network is configured or
// running. Peers observe the removal as a gone edge on their next send.
func (n *Network) Remove(h operation.Handle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.remove(h); err != nil {
		return err
	}
	if mon, ok := n.monitors[h]; ok {
		delete(n.monitors, h)
		if err := n.remove(mon); err != nil {
			return fmt.Errorf("monitor of %s: %w", h, err)
		}
	}
	for member, mon := range n.monitors {
		if mon == h {
			delete(n.monitors, member)
		}
	}
	if name, ok := n.memberOf[h]; ok {
		n.populations[name].Drop(h)
		delete(n.memberOf, h)
	}
	delete(n.recording, h)
	delete(n.spikes, h)
	kept := n.synapses[:0]
	for _, s := range n.synapses {
		if s != h {
			kept = append(kept, s)
		}
	}
	n.synapses = kept
	return nil
}

func (n *Network) remove(h operation.Handle) error {
	if err := n.arena.Remove(h); err != nil {
		return err
	}
	n.sup.Stop(h.String())
	return nil
}

// Workers reports the supervised workers of a running network.
func (n *Network) Workers() []platform.WorkerStatus {
	return n.sup.Statuses()
}
