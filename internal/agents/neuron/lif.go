package neuron

import (
	"fmt"

	"spikenet/internal/connectivity"
	"spikenet/internal/ode"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

// LIFParams configures a leaky integrate-and-fire neuron. Times are in ms,
// voltages in mV, resistance in MOhm and current in nA.
type LIFParams struct {
	VRest     float64
	RM        float64
	TauM      float64
	TauRefrac float64
	V         float64
	VTh       float64
	IE        float64
}

func DefaultLIFParams() LIFParams {
	return LIFParams{
		VRest:     -70,
		RM:        10,
		TauM:      10,
		TauRefrac: 2,
		V:         -70,
		VTh:       -55,
		IE:        0,
	}
}

func LIFParamsFromMap(params map[string]float64) (LIFParams, error) {
	if err := checkKeys("lif", params, "v_rest", "r_m", "tau_m", "tau_refrac", "v", "v_th", "i_e"); err != nil {
		return LIFParams{}, err
	}
	def := DefaultLIFParams()
	vRest := param(params, "v_rest", def.VRest)
	p := LIFParams{
		VRest:     vRest,
		RM:        param(params, "r_m", def.RM),
		TauM:      param(params, "tau_m", def.TauM),
		TauRefrac: param(params, "tau_refrac", def.TauRefrac),
		V:         param(params, "v", vRest),
		VTh:       param(params, "v_th", def.VTh),
		IE:        param(params, "i_e", def.IE),
	}
	return p, p.Validate()
}

func (p LIFParams) Validate() error {
	if p.TauM <= 0 {
		return fmt.Errorf("%w: lif tau_m must be > 0", ErrInvalidParams)
	}
	if p.TauRefrac < 0 {
		return fmt.Errorf("%w: lif tau_refrac must be >= 0", ErrInvalidParams)
	}
	if p.VTh <= p.VRest {
		return fmt.Errorf("%w: lif v_th must exceed v_rest", ErrInvalidParams)
	}
	return nil
}

// LIF is a leaky integrate-and-fire neuron. Incoming post-synaptic spikes
// are held until their arrival time and added to the membrane voltage in the
// step they fall due; spikes falling due while refractory are dropped.
type LIF struct {
	*operation.OpeChs[operation.Fired]
	*diracPorts

	params  LIFParams
	v       float64
	refrac  float64
	dropped int
}

func NewLIF(p LIFParams, opts ...Option) *LIF {
	o := buildOptions(opts)
	return &LIF{
		OpeChs:     operation.NewOpeChs[operation.Fired](),
		diracPorts: newDiracPorts(o.logger),
		params:     p,
		v:          p.V,
	}
}

func (l *LIF) Evolve(dt, time float64) operation.Fired {
	due := l.takeDue(time)

	if l.refrac > 0 {
		l.refrac = max(l.refrac-dt, 0)
		if len(due) > 0 {
			l.dropped += len(due)
			l.logger.Debug("lif dropped refractory events", "time", time, "count", len(due))
		}
		return operation.FiredNo
	}

	p := l.params
	leak := func(v float64) float64 {
		return (-(v - p.VRest) + p.IE*p.RM) / p.TauM
	}
	l.v += ode.RK4(leak, l.v, dt)
	for _, s := range due {
		l.v += s.Effect()
	}
	if l.v < p.VTh {
		return operation.FiredNo
	}

	l.v = p.VRest
	l.refrac = p.TauRefrac
	l.fire(time, p.VTh-p.VRest)
	return operation.FiredYes
}

func (l *LIF) CloseOpeChs() {
	l.Close()
}

func (l *LIF) V() float64 { return l.v }

// Dropped counts spikes discarded because they fell due while refractory.
func (l *LIF) Dropped() int { return l.dropped }

var (
	_ operation.Active                                                     = (*LIF)(nil)
	_ connectivity.Generator[signal.DiracV]                                = (*LIF)(nil)
	_ connectivity.Acceptor[signal.PostSynDiracV]                          = (*LIF)(nil)
	_ connectivity.TwoWayAcceptor[signal.PostSynDiracV, signal.FiringTime] = (*LIF)(nil)
)
