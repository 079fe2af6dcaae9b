package operation

import "spikenet/internal/chans"

// OpeChs is an agent's control plane: a confirm line that wakes the agent and
// a typed report line it answers on once the generation's work is done.
type OpeChs[R any] struct {
	confirmTx chans.Sender[Broadcast]
	confirmRx chans.Receiver[Broadcast]
	reportTx  chans.Sender[R]
	reportRx  chans.Receiver[R]
}

func NewOpeChs[R any]() *OpeChs[R] {
	confirmTx, confirmRx := chans.New[Broadcast]()
	reportTx, reportRx := chans.New[R]()
	return &OpeChs[R]{
		confirmTx: confirmTx,
		confirmRx: confirmRx,
		reportTx:  reportTx,
		reportRx:  reportRx,
	}
}

func (o *OpeChs[R]) ConfirmSender() chans.Sender[Broadcast]     { return o.confirmTx }
func (o *OpeChs[R]) ConfirmReceiver() chans.Receiver[Broadcast] { return o.confirmRx }
func (o *OpeChs[R]) ReportSender() chans.Sender[R]              { return o.reportTx }
func (o *OpeChs[R]) ReportReceiver() chans.Receiver[R]          { return o.reportRx }

// Back returns the half of the control plane held by whoever drives the agent.
func (o *OpeChs[R]) Back() BackOpeChs[R] {
	return BackOpeChs[R]{Confirm: o.confirmTx, Report: o.reportRx}
}

// Close disconnects both lines; anyone blocked on them observes PeerGone.
func (o *OpeChs[R]) Close() {
	o.confirmTx.Close()
	o.reportTx.Close()
}

// BackOpeChs is the driver-side view of an agent's control plane.
type BackOpeChs[R any] struct {
	Confirm chans.Sender[Broadcast]
	Report  chans.Receiver[R]
}

type PassiveBackOpeChs = BackOpeChs[Ack]
