package connectivity

import (
	"fmt"
	"iter"

	"spikenet/internal/chans"
	"spikenet/internal/operation"
)

// OutSet is the producer end of a one-way edge.
type OutSet[F any] struct {
	target operation.Ref
	linker *Linker[F]
	chs    operation.DeviceMode[chans.Sender[F]]
}

func NewOutSet[F any](target operation.Ref, linker *Linker[F]) *OutSet[F] {
	return &OutSet[F]{target: target, linker: linker}
}

func (o *OutSet[F]) Target() operation.Ref { return o.target }

func (o *OutSet[F]) ConfigMode(mode operation.RunMode) {
	if !mode.Running() {
		o.chs = operation.DeviceMode[chans.Sender[F]]{}
	}
	o.linker.ConfigPre(mode)
}

func (o *OutSet[F]) ConfigChannels() error {
	chs, err := o.linker.MakePre()
	if err != nil {
		return err
	}
	o.chs = chs
	return nil
}

func (o *OutSet[F]) Idle() bool { return o.chs.Idle() }

// Feedforward sends v without blocking. It is a no-op while idle.
func (o *OutSet[F]) Feedforward(v F) error {
	tx, ok := o.chs.Channels()
	if !ok {
		return nil
	}
	return sendTo(o.target, tx, v)
}

// RunningTarget returns the remote agent to be confirmed this generation, or
// false when the edge is idle.
func (o *OutSet[F]) RunningTarget() (operation.Ref, bool) {
	if o.chs.Idle() {
		return operation.Ref{}, false
	}
	return o.target, true
}

// InSet is the consumer end of a one-way edge.
type InSet[F any] struct {
	source operation.Ref
	linker *Linker[F]
	chs    operation.DeviceMode[chans.Receiver[F]]
}

func NewInSet[F any](source operation.Ref, linker *Linker[F]) *InSet[F] {
	return &InSet[F]{source: source, linker: linker}
}

func (i *InSet[F]) Target() operation.Ref { return i.source }

func (i *InSet[F]) ConfigMode(mode operation.RunMode) {
	if !mode.Running() {
		i.chs = operation.DeviceMode[chans.Receiver[F]]{}
	}
	i.linker.ConfigPost(mode)
}

func (i *InSet[F]) ConfigChannels() error {
	chs, err := i.linker.MakePost()
	if err != nil {
		return err
	}
	i.chs = chs
	return nil
}

func (i *InSet[F]) Idle() bool { return i.chs.Idle() }

// FfwAcceptedIter drains everything queued on the edge, or returns false when
// idle. An empty sequence means nothing arrived since the last drain.
func (i *InSet[F]) FfwAcceptedIter() (iter.Seq[F], bool) {
	rx, ok := i.chs.Channels()
	if !ok {
		return nil, false
	}
	return rx.TryIter(), true
}

func (i *InSet[F]) RunningTarget() (operation.Ref, bool) {
	if i.chs.Idle() {
		return operation.Ref{}, false
	}
	return i.source, true
}

// TwoWayOutSet is the producer end of a two-way edge: it sends feedforward
// messages and drains the feedback line.
type TwoWayOutSet[F, B any] struct {
	target operation.Ref
	linker *TwoWayLinker[F, B]
	chs    operation.DeviceMode[PreChs[F, B]]
}

func NewTwoWayOutSet[F, B any](target operation.Ref, linker *TwoWayLinker[F, B]) *TwoWayOutSet[F, B] {
	return &TwoWayOutSet[F, B]{target: target, linker: linker}
}

func (o *TwoWayOutSet[F, B]) Target() operation.Ref { return o.target }

func (o *TwoWayOutSet[F, B]) ConfigMode(mode operation.RunMode) {
	if !mode.Running() {
		o.chs = operation.DeviceMode[PreChs[F, B]]{}
	}
	o.linker.ConfigPre(mode)
}

func (o *TwoWayOutSet[F, B]) ConfigChannels() error {
	chs, err := o.linker.MakePre()
	if err != nil {
		return err
	}
	o.chs = chs
	return nil
}

func (o *TwoWayOutSet[F, B]) Idle() bool { return o.chs.Idle() }

func (o *TwoWayOutSet[F, B]) Feedforward(v F) error {
	chs, ok := o.chs.Channels()
	if !ok {
		return nil
	}
	return sendTo(o.target, chs.Ffw, v)
}

func (o *TwoWayOutSet[F, B]) FbwAcceptedIter() (iter.Seq[B], bool) {
	chs, ok := o.chs.Channels()
	if !ok {
		return nil, false
	}
	return chs.Fbw.TryIter(), true
}

func (o *TwoWayOutSet[F, B]) RunningTarget() (operation.Ref, bool) {
	if o.chs.Idle() {
		return operation.Ref{}, false
	}
	return o.target, true
}

// TwoWayInSet is the consumer end of a two-way edge: it drains feedforward
// messages and sends feedback.
type TwoWayInSet[F, B any] struct {
	source operation.Ref
	linker *TwoWayLinker[F, B]
	chs    operation.DeviceMode[PostChs[F, B]]
}

func NewTwoWayInSet[F, B any](source operation.Ref, linker *TwoWayLinker[F, B]) *TwoWayInSet[F, B] {
	return &TwoWayInSet[F, B]{source: source, linker: linker}
}

func (i *TwoWayInSet[F, B]) Target() operation.Ref { return i.source }

func (i *TwoWayInSet[F, B]) ConfigMode(mode operation.RunMode) {
	if !mode.Running() {
		i.chs = operation.DeviceMode[PostChs[F, B]]{}
	}
	i.linker.ConfigPost(mode)
}

func (i *TwoWayInSet[F, B]) ConfigChannels() error {
	chs, err := i.linker.MakePost()
	if err != nil {
		return err
	}
	i.chs = chs
	return nil
}

func (i *TwoWayInSet[F, B]) Idle() bool { return i.chs.Idle() }

func (i *TwoWayInSet[F, B]) FfwAcceptedIter() (iter.Seq[F], bool) {
	chs, ok := i.chs.Channels()
	if !ok {
		return nil, false
	}
	return chs.Ffw.TryIter(), true
}

func (i *TwoWayInSet[F, B]) Feedbackward(v B) error {
	chs, ok := i.chs.Channels()
	if !ok {
		return nil
	}
	return sendTo(i.source, chs.Fbw, v)
}

func (i *TwoWayInSet[F, B]) RunningTarget() (operation.Ref, bool) {
	if i.chs.Idle() {
		return operation.Ref{}, false
	}
	return i.source, true
}

func sendTo[T any](target operation.Ref, tx chans.Sender[T], v T) error {
	if !target.Alive() {
		return fmt.Errorf("%w: %s", operation.ErrPeerGone, target.ID())
	}
	if err := tx.Send(v); err != nil {
		return fmt.Errorf("send to %s: %w", target.ID(), operation.ChannelError(err))
	}
	return nil
}
