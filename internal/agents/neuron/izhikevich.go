package neuron

import (
	"fmt"

	"spikenet/internal/connectivity"
	"spikenet/internal/ode"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

// IzhikevichParams configures the two-variable Izhikevich neuron. A is the
// recovery rate, B the recovery sensitivity, C the reset voltage and D the
// recovery jump after a spike. Voltages are in mV.
type IzhikevichParams struct {
	A   float64
	B   float64
	C   float64
	D   float64
	V   float64
	VTh float64
	IE  float64
}

func DefaultIzhikevichParams() IzhikevichParams {
	return IzhikevichParams{
		A:   0.02,
		B:   0.2,
		C:   -65,
		D:   6,
		V:   -70,
		VTh: 30,
		IE:  0,
	}
}

func IzhikevichParamsFromMap(params map[string]float64) (IzhikevichParams, error) {
	if err := checkKeys("izhikevich", params, "a", "b", "c", "d", "v", "v_th", "i_e"); err != nil {
		return IzhikevichParams{}, err
	}
	def := DefaultIzhikevichParams()
	p := IzhikevichParams{
		A:   param(params, "a", def.A),
		B:   param(params, "b", def.B),
		C:   param(params, "c", def.C),
		D:   param(params, "d", def.D),
		V:   param(params, "v", def.V),
		VTh: param(params, "v_th", def.VTh),
		IE:  param(params, "i_e", def.IE),
	}
	return p, p.Validate()
}

func (p IzhikevichParams) Validate() error {
	if p.A <= 0 {
		return fmt.Errorf("%w: izhikevich a must be > 0", ErrInvalidParams)
	}
	if p.C >= p.VTh {
		return fmt.Errorf("%w: izhikevich c must be below v_th", ErrInvalidParams)
	}
	return nil
}

// Izhikevich integrates
//
//	v' = 0.04v^2 + 5v + 140 - u + I
//	u' = a(bv - u)
//
// where I is the external current plus every post-synaptic spike falling due
// in the step. Crossing VTh resets v to C and raises u by D.
type Izhikevich struct {
	*operation.OpeChs[operation.Fired]
	*diracPorts

	params IzhikevichParams
	v      float64
	u      float64
}

func NewIzhikevich(p IzhikevichParams, opts ...Option) *Izhikevich {
	o := buildOptions(opts)
	return &Izhikevich{
		OpeChs:     operation.NewOpeChs[operation.Fired](),
		diracPorts: newDiracPorts(o.logger),
		params:     p,
		v:          p.V,
		u:          p.B * p.V,
	}
}

func (z *Izhikevich) Evolve(dt, time float64) operation.Fired {
	var iSyn float64
	for _, s := range z.takeDue(time) {
		iSyn += s.Effect()
	}

	p := z.params
	u := z.u
	z.v += ode.RK4(func(v float64) float64 {
		return 0.04*v*v + 5*v + 140 - u + iSyn + p.IE
	}, z.v, dt)
	v := z.v
	z.u += ode.RK4(func(u float64) float64 {
		return p.A * (p.B*v - u)
	}, z.u, dt)

	if z.v <= p.VTh {
		return operation.FiredNo
	}
	z.v = p.C
	z.u += p.D
	z.fire(time, p.VTh-p.C)
	return operation.FiredYes
}

func (z *Izhikevich) CloseOpeChs() {
	z.Close()
}

func (z *Izhikevich) V() float64 { return z.v }

func (z *Izhikevich) U() float64 { return z.u }

var (
	_ operation.Active                                                     = (*Izhikevich)(nil)
	_ connectivity.Generator[signal.DiracV]                                = (*Izhikevich)(nil)
	_ connectivity.Acceptor[signal.PostSynDiracV]                          = (*Izhikevich)(nil)
	_ connectivity.TwoWayAcceptor[signal.PostSynDiracV, signal.FiringTime] = (*Izhikevich)(nil)
)
