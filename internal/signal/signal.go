// Package signal defines the payloads carried on agent edges.
package signal

// S0 is the counter neuron's forward message: the generation it fired in.
type S0 struct {
	MsgGen int
}

// S1 is the forward message counter neurons accept on two-way edges.
type S1 struct {
	MsgGen int
}

// StdpBkwd0 is the counter neuron's feedback on two-way edges.
type StdpBkwd0 struct {
	Msg int
}

// DiracV is a spike emitted by a neuron: an instantaneous voltage V at time T.
type DiracV struct {
	V float64
	T float64
}

// PostSynDiracV is a spike after a synapse has applied its delay and weight.
type PostSynDiracV struct {
	V float64
	T float64
	W float64
}

// Effect returns the voltage the spike contributes to its post agent.
func (p PostSynDiracV) Effect() float64 {
	return p.V * p.W
}

// FiringTime is a post neuron's feedback to its synapses.
type FiringTime struct {
	T float64
}
