// Package synapse implements passive synapses: they wake when a neighbour
// confirms them, forward delayed and weighted spikes, and adapt their weight.
package synapse

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"spikenet/internal/connectivity"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

var ErrInvalidParams = errors.New("invalid synapse parameters")

// Flag selects whether the weight is plastic.
type Flag int

const (
	Static Flag = iota
	STDP
)

func (f Flag) String() string {
	if f == STDP {
		return "stdp"
	}
	return "static"
}

func ParseFlag(name string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "static":
		return Static, nil
	case "stdp":
		return STDP, nil
	default:
		return Static, fmt.Errorf("%w: unknown flag %q", ErrInvalidParams, name)
	}
}

type Params struct {
	W              float64
	WMax           float64
	WMin           float64
	Delay          float64
	StdpPreAmount  float64
	TauStdpPre     float64
	StdpPostAmount float64
	TauStdpPost    float64
	Flag           Flag
}

func DefaultParams() Params {
	return Params{
		W:              1,
		WMax:           2,
		WMin:           0,
		Delay:          1,
		StdpPreAmount:  -0.05,
		TauStdpPre:     20,
		StdpPostAmount: 0.05,
		TauStdpPost:    20,
		Flag:           Static,
	}
}

var paramKeys = []string{
	"w", "w_max", "w_min", "delay",
	"stdp_pre_amount", "tau_stdp_pre", "stdp_post_amount", "tau_stdp_post",
}

// ParamsFromMap overlays params on DefaultParams.
func ParamsFromMap(params map[string]float64, flag Flag) (Params, error) {
	known := make(map[string]struct{}, len(paramKeys))
	for _, k := range paramKeys {
		known[k] = struct{}{}
	}
	for k := range params {
		if _, ok := known[k]; !ok {
			return Params{}, fmt.Errorf("%w: dirac_v has no parameter %q", ErrInvalidParams, k)
		}
	}
	get := func(name string, def float64) float64 {
		if v, ok := params[name]; ok {
			return v
		}
		return def
	}
	def := DefaultParams()
	p := Params{
		W:              get("w", def.W),
		WMax:           get("w_max", def.WMax),
		WMin:           get("w_min", def.WMin),
		Delay:          get("delay", def.Delay),
		StdpPreAmount:  get("stdp_pre_amount", def.StdpPreAmount),
		TauStdpPre:     get("tau_stdp_pre", def.TauStdpPre),
		StdpPostAmount: get("stdp_post_amount", def.StdpPostAmount),
		TauStdpPost:    get("tau_stdp_post", def.TauStdpPost),
		Flag:           flag,
	}
	return p, p.Validate()
}

func (p Params) Validate() error {
	switch {
	case p.WMin > p.WMax:
		return fmt.Errorf("%w: w_min exceeds w_max", ErrInvalidParams)
	case p.Delay < 0:
		return fmt.Errorf("%w: delay must be >= 0", ErrInvalidParams)
	case p.TauStdpPre <= 0 || p.TauStdpPost <= 0:
		return fmt.Errorf("%w: stdp time constants must be > 0", ErrInvalidParams)
	}
	return nil
}

type options struct {
	logger   *slog.Logger
	capacity int
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCapacity bounds both edges of a built synapse; 0 is unbounded.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DiracV relays spikes from one pre neuron to one post agent. Each relayed
// spike is delayed by Delay and carries the weight at relay time. With STDP
// the weight moves on every pre spike and every post firing time fed back.
type DiracV struct {
	*operation.OpeChs[operation.Ack]

	in   *connectivity.SingleIn[signal.DiracV]
	post *connectivity.PostSynFore[signal.PostSynDiracV, signal.FiringTime]

	params      Params
	w           float64
	preHistory  []float64
	postHistory []float64
	logger      *slog.Logger
}

func NewDiracV(p Params, opts ...Option) *DiracV {
	o := applyOptions(opts)
	return &DiracV{
		OpeChs: operation.NewOpeChs[operation.Ack](),
		in:     connectivity.NewSingleIn[signal.DiracV](),
		post:   connectivity.NewPostSynFore[signal.PostSynDiracV, signal.FiringTime](),
		params: p,
		w:      clamp(p.W, p.WMin, p.WMax),
		logger: o.logger,
	}
}

func (s *DiracV) AddSource(pre operation.Ref, linker *connectivity.Linker[signal.DiracV]) {
	s.in.AddSource(pre, linker)
}

func (s *DiracV) AddActiveTwoWayTarget(post operation.Ref, linker *connectivity.TwoWayLinker[signal.PostSynDiracV, signal.FiringTime]) {
	s.post.AddActiveTwoWayTarget(post, linker)
}

func (s *DiracV) AddPassiveTwoWayTarget(post operation.Ref, linker *connectivity.TwoWayLinker[signal.PostSynDiracV, signal.FiringTime]) {
	s.post.AddPassiveTwoWayTarget(post, linker)
}

func (s *DiracV) ConfigMode(mode operation.RunMode) {
	s.in.ConfigMode(mode)
	s.post.ConfigMode(mode)
}

func (s *DiracV) ConfigChannels() error {
	return errors.Join(s.in.ConfigChannels(), s.post.ConfigChannels())
}

func (s *DiracV) Mode() (operation.RunMode, error) {
	return operation.AggregateMode(
		operation.NamedMode{Name: "pre", Mode: s.in.Mode()},
		operation.NamedMode{Name: "post", Mode: s.post.Mode()},
	)
}

// Respond applies fed-back firing times before relaying pre spikes. Post
// agents feed back only at the end of a generation, so the weight sequence
// does not depend on which neighbour confirmed first.
func (s *DiracV) Respond() {
	for ft := range s.post.FbwAccepted() {
		if s.params.Flag != STDP {
			continue
		}
		s.postHistory = append(s.postHistory, ft.T)
		s.stdpOnPost(ft.T)
	}
	for spike := range s.in.FfwAccepted() {
		acting := spike.T + s.params.Delay
		s.preHistory = append(s.preHistory, acting)
		s.stdpOnPre(acting)
		if err := s.post.Feedforward(signal.PostSynDiracV{V: spike.V, T: acting, W: s.w}); err != nil {
			s.logger.Debug("synapse feedforward", "time", acting, "error", err)
		}
	}
}

// PassiveTargets lists the passive post agent on a running edge, if any.
func (s *DiracV) PassiveTargets() []operation.Ref {
	return s.post.RunningTargets()
}

func (s *DiracV) PassiveBackOpeChs() operation.PassiveBackOpeChs {
	return s.Back()
}

func (s *DiracV) CloseOpeChs() {
	s.Close()
}

func (s *DiracV) stdpOnPre(preT float64) {
	if len(s.postHistory) == 0 {
		return
	}
	last := s.postHistory[len(s.postHistory)-1]
	s.updateW(s.w + s.params.StdpPreAmount*math.Exp((last-preT)/s.params.TauStdpPre))
}

func (s *DiracV) stdpOnPost(postT float64) {
	if len(s.preHistory) == 0 {
		return
	}
	last := s.preHistory[len(s.preHistory)-1]
	s.updateW(s.w + s.params.StdpPostAmount*math.Exp((last-postT)/s.params.TauStdpPost))
}

func (s *DiracV) updateW(w float64) {
	s.w = clamp(w, s.params.WMin, s.params.WMax)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func (s *DiracV) Weight() float64 { return s.w }

func (s *DiracV) Flag() Flag { return s.params.Flag }

var (
	_ operation.Forwarder                                                   = (*DiracV)(nil)
	_ operation.Passive                                                     = (*DiracV)(nil)
	_ connectivity.Acceptor[signal.DiracV]                                  = (*DiracV)(nil)
	_ connectivity.TwoWayGenerator[signal.PostSynDiracV, signal.FiringTime] = (*DiracV)(nil)
)
