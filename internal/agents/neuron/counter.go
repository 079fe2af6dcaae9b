package neuron

import (
	"errors"
	"fmt"
	"log/slog"

	"spikenet/internal/connectivity"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

// Received is one message a counter absorbed, stamped with the counter's
// process step at absorption.
type Received struct {
	Msg  int
	Proc int
}

// Counter is a test neuron: it counts generations and fires every EventCond
// of them. On firing it forwards its generation number on its fan-out; at
// the end of the generation it feeds it back on its two-way edges.
type Counter struct {
	*operation.OpeChs[operation.Fired]

	out      *connectivity.MultiOut[signal.S0]
	postSyn  *connectivity.PostSynBack[signal.S1, signal.StdpBkwd0]
	deviceIn *connectivity.MultiIn[signal.S0]

	gen       int
	proc      int
	eventCond int
	stock     []Received
	unsent    []int
	logger    *slog.Logger
}

type CounterParams struct {
	Gen       int
	Proc      int
	// EventCond is the firing period; 0 never fires.
	EventCond int
}

func CounterParamsFromMap(params map[string]float64) (CounterParams, error) {
	if err := checkKeys("counter", params, "gen", "proc", "event_cond"); err != nil {
		return CounterParams{}, err
	}
	p := CounterParams{
		Gen:       int(param(params, "gen", 0)),
		Proc:      int(param(params, "proc", 0)),
		EventCond: int(param(params, "event_cond", 0)),
	}
	if p.EventCond < 0 {
		return CounterParams{}, fmt.Errorf("%w: counter event_cond must be >= 0", ErrInvalidParams)
	}
	return p, nil
}

func NewCounter(p CounterParams, opts ...Option) *Counter {
	o := buildOptions(opts)
	return &Counter{
		OpeChs:    operation.NewOpeChs[operation.Fired](),
		out:       connectivity.NewMultiOut[signal.S0](),
		postSyn:   connectivity.NewPostSynBack[signal.S1, signal.StdpBkwd0](),
		deviceIn:  connectivity.NewMultiIn[signal.S0](),
		gen:       p.Gen,
		proc:      p.Proc,
		eventCond: p.EventCond,
		logger:    o.logger,
	}
}

func (c *Counter) AddActiveTarget(post operation.Ref, linker *connectivity.Linker[signal.S0]) {
	c.out.AddActiveTarget(post, linker)
}

func (c *Counter) AddPassiveTarget(post operation.Ref, linker *connectivity.Linker[signal.S0]) {
	c.out.AddPassiveTarget(post, linker)
}

func (c *Counter) AddSource(pre operation.Ref, linker *connectivity.Linker[signal.S0]) {
	c.deviceIn.AddSource(pre, linker)
}

func (c *Counter) AddActiveTwoWaySource(pre operation.Ref, linker *connectivity.TwoWayLinker[signal.S1, signal.StdpBkwd0]) {
	c.postSyn.AddActiveTwoWaySource(pre, linker)
}

func (c *Counter) AddPassiveTwoWaySource(pre operation.Ref, linker *connectivity.TwoWayLinker[signal.S1, signal.StdpBkwd0]) {
	c.postSyn.AddPassiveTwoWaySource(pre, linker)
}

func (c *Counter) ConfigMode(mode operation.RunMode) {
	c.postSyn.ConfigMode(mode)
	c.deviceIn.ConfigMode(mode)
	c.out.ConfigMode(mode)
	if !mode.Running() {
		c.unsent = nil
	}
}

func (c *Counter) ConfigChannels() error {
	return errors.Join(
		c.postSyn.ConfigChannels(),
		c.deviceIn.ConfigChannels(),
		c.out.ConfigChannels(),
	)
}

func (c *Counter) Mode() (operation.RunMode, error) {
	return operation.AggregateMode(
		operation.NamedMode{Name: "out", Mode: c.out.Mode()},
		operation.NamedMode{Name: "post_syn", Mode: c.postSyn.Mode()},
		operation.NamedMode{Name: "device_in", Mode: c.deviceIn.Mode()},
	)
}

func (c *Counter) Evolve(_, _ float64) operation.Fired {
	c.proc++
	c.gen++
	if c.eventCond == 0 || c.proc%c.eventCond != 0 {
		return operation.FiredNo
	}
	c.generate()
	return operation.FiredYes
}

// End absorbs what arrived during the generation. Inputs are never drained
// in Evolve, where concurrently running neighbours may still be sending.
func (c *Counter) End() {
	for _, gen := range c.unsent {
		if err := c.postSyn.Feedbackward(signal.StdpBkwd0{Msg: gen}); err != nil {
			c.logger.Debug("counter feedbackward", "gen", gen, "error", err)
		}
	}
	c.unsent = c.unsent[:0]
	c.accept()
}

func (c *Counter) PassiveTargets() []operation.Ref {
	return append(c.out.RunningTargets(), c.postSyn.RunningTargets()...)
}

func (c *Counter) CloseOpeChs() {
	c.Close()
}

func (c *Counter) generate() {
	if err := c.out.Feedforward(signal.S0{MsgGen: c.gen}); err != nil {
		c.logger.Debug("counter feedforward", "gen", c.gen, "error", err)
	}
	c.unsent = append(c.unsent, c.gen)
}

func (c *Counter) accept() {
	for s := range c.postSyn.FfwAccepted() {
		c.stock = append(c.stock, Received{Msg: s.MsgGen, Proc: c.proc})
	}
	for s := range c.deviceIn.FfwAccepted() {
		c.stock = append(c.stock, Received{Msg: s.MsgGen, Proc: c.proc})
	}
}

// Stock returns every message absorbed so far.
func (c *Counter) Stock() []Received {
	out := make([]Received, len(c.stock))
	copy(out, c.stock)
	return out
}

func (c *Counter) Gen() int  { return c.gen }
func (c *Counter) Proc() int { return c.proc }

var (
	_ operation.Active                                         = (*Counter)(nil)
	_ connectivity.Generator[signal.S0]                        = (*Counter)(nil)
	_ connectivity.Acceptor[signal.S0]                         = (*Counter)(nil)
	_ connectivity.TwoWayAcceptor[signal.S1, signal.StdpBkwd0] = (*Counter)(nil)
)
