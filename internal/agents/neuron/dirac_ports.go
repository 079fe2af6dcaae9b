package neuron

import (
	"errors"
	"log/slog"
	"sort"

	"spikenet/internal/connectivity"
	"spikenet/internal/operation"
	"spikenet/internal/signal"
)

// diracPorts holds the edges and spike bookkeeping shared by the neurons that
// emit Dirac-V spikes: a fan-out to synapses and devices, two-way inputs from
// synapses and one-way inputs from devices.
type diracPorts struct {
	out      *connectivity.MultiOut[signal.DiracV]
	postSyn  *connectivity.PostSynBack[signal.PostSynDiracV, signal.FiringTime]
	deviceIn *connectivity.MultiIn[signal.PostSynDiracV]

	firingTimes []float64
	unsent      []float64
	pending     []signal.PostSynDiracV
	logger      *slog.Logger
}

func newDiracPorts(logger *slog.Logger) *diracPorts {
	return &diracPorts{
		out:      connectivity.NewMultiOut[signal.DiracV](),
		postSyn:  connectivity.NewPostSynBack[signal.PostSynDiracV, signal.FiringTime](),
		deviceIn: connectivity.NewMultiIn[signal.PostSynDiracV](),
		logger:   logger,
	}
}

func (d *diracPorts) AddActiveTarget(post operation.Ref, linker *connectivity.Linker[signal.DiracV]) {
	d.out.AddActiveTarget(post, linker)
}

func (d *diracPorts) AddPassiveTarget(post operation.Ref, linker *connectivity.Linker[signal.DiracV]) {
	d.out.AddPassiveTarget(post, linker)
}

func (d *diracPorts) AddSource(pre operation.Ref, linker *connectivity.Linker[signal.PostSynDiracV]) {
	d.deviceIn.AddSource(pre, linker)
}

func (d *diracPorts) AddActiveTwoWaySource(pre operation.Ref, linker *connectivity.TwoWayLinker[signal.PostSynDiracV, signal.FiringTime]) {
	d.postSyn.AddActiveTwoWaySource(pre, linker)
}

func (d *diracPorts) AddPassiveTwoWaySource(pre operation.Ref, linker *connectivity.TwoWayLinker[signal.PostSynDiracV, signal.FiringTime]) {
	d.postSyn.AddPassiveTwoWaySource(pre, linker)
}

func (d *diracPorts) ConfigMode(mode operation.RunMode) {
	d.postSyn.ConfigMode(mode)
	d.deviceIn.ConfigMode(mode)
	d.out.ConfigMode(mode)
	if !mode.Running() {
		d.pending = nil
		d.unsent = nil
	}
}

func (d *diracPorts) ConfigChannels() error {
	return errors.Join(
		d.postSyn.ConfigChannels(),
		d.deviceIn.ConfigChannels(),
		d.out.ConfigChannels(),
	)
}

func (d *diracPorts) Mode() (operation.RunMode, error) {
	return operation.AggregateMode(
		operation.NamedMode{Name: "out", Mode: d.out.Mode()},
		operation.NamedMode{Name: "post_syn", Mode: d.postSyn.Mode()},
		operation.NamedMode{Name: "device_in", Mode: d.deviceIn.Mode()},
	)
}

func (d *diracPorts) PassiveTargets() []operation.Ref {
	return append(d.out.RunningTargets(), d.postSyn.RunningTargets()...)
}

// fire records a firing at time and forwards a spike of height v. The firing
// time is fed back in End.
func (d *diracPorts) fire(time, v float64) {
	d.firingTimes = append(d.firingTimes, time)
	if err := d.out.Feedforward(signal.DiracV{V: v, T: time}); err != nil {
		d.logger.Debug("neuron feedforward", "time", time, "error", err)
	}
	d.unsent = append(d.unsent, time)
}

// End feeds this generation's firing times back to the input synapses, which
// drain them at the start of their next response, and moves what arrived
// during the generation into the pending buffer.
func (d *diracPorts) End() {
	for _, t := range d.unsent {
		if err := d.postSyn.Feedbackward(signal.FiringTime{T: t}); err != nil {
			d.logger.Debug("neuron feedbackward", "time", t, "error", err)
		}
	}
	d.unsent = d.unsent[:0]
	for s := range d.postSyn.FfwAccepted() {
		d.pending = append(d.pending, s)
	}
	for s := range d.deviceIn.FfwAccepted() {
		d.pending = append(d.pending, s)
	}
}

// takeDue removes and returns the pending spikes whose time is <= now, in
// time order.
func (d *diracPorts) takeDue(now float64) []signal.PostSynDiracV {
	if len(d.pending) == 0 {
		return nil
	}
	sort.SliceStable(d.pending, func(i, j int) bool { return d.pending[i].T < d.pending[j].T })
	n := sort.Search(len(d.pending), func(i int) bool { return d.pending[i].T > now })
	due := append([]signal.PostSynDiracV(nil), d.pending[:n]...)
	d.pending = append(d.pending[:0], d.pending[n:]...)
	return due
}

// FiringTimes returns every time the neuron fired.
func (d *diracPorts) FiringTimes() []float64 {
	out := make([]float64, len(d.firingTimes))
	copy(out, d.firingTimes)
	return out
}

// Pending counts spikes held for a future step.
func (d *diracPorts) Pending() int { return len(d.pending) }
