package connectivity

import (
	"fmt"
	"sync"

	"spikenet/internal/chans"
	"spikenet/internal/operation"
)

type side int

const (
	sidePre side = iota
	sidePost
)

func (s side) String() string {
	if s == sidePre {
		return "pre"
	}
	return "post"
}

type sideMode struct {
	mode operation.RunMode
	set  bool
}

// linkState tracks the mode each endpoint recorded on a linker.
type linkState struct {
	pre  sideMode
	post sideMode
}

func (s *linkState) record(which side, mode operation.RunMode) {
	if which == sidePre {
		s.pre = sideMode{mode: mode, set: true}
		return
	}
	s.post = sideMode{mode: mode, set: true}
}

// ready reports whether the edge may materialize for the requesting side.
// false with a nil error means the edge is idle.
func (s *linkState) ready(which side) (bool, error) {
	self, other := s.pre, s.post
	if which == sidePost {
		self, other = s.post, s.pre
	}
	if !self.set {
		return false, fmt.Errorf("%w: %s side", operation.ErrNotConfigured, which)
	}
	if !self.mode.Running() {
		return false, nil
	}
	if !other.set {
		return false, fmt.Errorf("%w: %s side", operation.ErrNotConfigured, which^1)
	}
	if !other.mode.Running() {
		return false, nil
	}
	if self.mode != other.mode {
		return false, fmt.Errorf("%w: pre=%s post=%s", operation.ErrInconsistentMode, s.pre.mode, s.post.mode)
	}
	return true, nil
}

func (s *linkState) mode() operation.RunMode {
	if s.pre.set && s.post.set && s.pre.mode == s.post.mode {
		return s.pre.mode
	}
	return operation.Idle
}

// Linker owns the channel pair of one one-way edge. It is shared by the two
// endpoints it connects; either may reconfigure or tear it down.
type Linker[F any] struct {
	mu       sync.Mutex
	capacity int
	state    linkState
	live     bool
	tx       chans.Sender[F]
	rx       chans.Receiver[F]
}

func NewLinker[F any]() *Linker[F] {
	return &Linker[F]{}
}

// NewBoundedLinker returns a linker whose channel holds at most capacity
// undelivered messages; sends beyond it fail with ErrSendFailed.
func NewBoundedLinker[F any](capacity int) *Linker[F] {
	return &Linker[F]{capacity: capacity}
}

func (l *Linker[F]) ConfigPre(mode operation.RunMode)  { l.config(sidePre, mode) }
func (l *Linker[F]) ConfigPost(mode operation.RunMode) { l.config(sidePost, mode) }

func (l *Linker[F]) config(which side, mode operation.RunMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.record(which, mode)
	if !mode.Running() {
		l.teardownLocked()
	}
}

// ConfigIdle drops the channel pair immediately and forgets both recorded
// modes, so neither side materializes again until both are reconfigured.
// Undelivered messages are discarded.
func (l *Linker[F]) ConfigIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = linkState{}
	l.teardownLocked()
}

func (l *Linker[F]) teardownLocked() {
	if !l.live {
		return
	}
	l.tx.Close()
	l.tx, l.rx = chans.Sender[F]{}, chans.Receiver[F]{}
	l.live = false
}

func (l *Linker[F]) ensureLocked() {
	if l.live {
		return
	}
	l.tx, l.rx = chans.NewBounded[F](l.capacity)
	l.live = true
}

// MakePre hands out the producer side of the edge.
func (l *Linker[F]) MakePre() (operation.DeviceMode[chans.Sender[F]], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, err := l.state.ready(sidePre)
	if err != nil || !ok {
		return operation.DeviceMode[chans.Sender[F]]{}, err
	}
	l.ensureLocked()
	return operation.ConfiguredDevice(l.tx), nil
}

// MakePost hands out the consumer side of the edge.
func (l *Linker[F]) MakePost() (operation.DeviceMode[chans.Receiver[F]], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, err := l.state.ready(sidePost)
	if err != nil || !ok {
		return operation.DeviceMode[chans.Receiver[F]]{}, err
	}
	l.ensureLocked()
	return operation.ConfiguredDevice(l.rx), nil
}

// Mode returns the mode both endpoints agreed on, or Idle.
func (l *Linker[F]) Mode() operation.RunMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.mode()
}

// Live reports whether the channel pair currently exists.
func (l *Linker[F]) Live() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

// PreChs is the producer view of a two-way edge.
type PreChs[F, B any] struct {
	Ffw chans.Sender[F]
	Fbw chans.Receiver[B]
}

// PostChs is the consumer view of a two-way edge.
type PostChs[F, B any] struct {
	Ffw chans.Receiver[F]
	Fbw chans.Sender[B]
}

// TwoWayLinker owns a feedforward pair and a feedback pair for one edge. The
// feedback line carries plasticity signals from the post agent to the pre
// agent.
type TwoWayLinker[F, B any] struct {
	mu       sync.Mutex
	capacity int
	state    linkState
	live     bool
	pre      PreChs[F, B]
	post     PostChs[F, B]
}

func NewTwoWayLinker[F, B any]() *TwoWayLinker[F, B] {
	return &TwoWayLinker[F, B]{}
}

func NewBoundedTwoWayLinker[F, B any](capacity int) *TwoWayLinker[F, B] {
	return &TwoWayLinker[F, B]{capacity: capacity}
}

func (l *TwoWayLinker[F, B]) ConfigPre(mode operation.RunMode)  { l.config(sidePre, mode) }
func (l *TwoWayLinker[F, B]) ConfigPost(mode operation.RunMode) { l.config(sidePost, mode) }

func (l *TwoWayLinker[F, B]) config(which side, mode operation.RunMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.record(which, mode)
	if !mode.Running() {
		l.teardownLocked()
	}
}

func (l *TwoWayLinker[F, B]) ConfigIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = linkState{}
	l.teardownLocked()
}

func (l *TwoWayLinker[F, B]) teardownLocked() {
	if !l.live {
		return
	}
	l.pre.Ffw.Close()
	l.post.Fbw.Close()
	l.pre, l.post = PreChs[F, B]{}, PostChs[F, B]{}
	l.live = false
}

func (l *TwoWayLinker[F, B]) ensureLocked() {
	if l.live {
		return
	}
	ffwTx, ffwRx := chans.NewBounded[F](l.capacity)
	fbwTx, fbwRx := chans.NewBounded[B](l.capacity)
	l.pre = PreChs[F, B]{Ffw: ffwTx, Fbw: fbwRx}
	l.post = PostChs[F, B]{Ffw: ffwRx, Fbw: fbwTx}
	l.live = true
}

func (l *TwoWayLinker[F, B]) MakePre() (operation.DeviceMode[PreChs[F, B]], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, err := l.state.ready(sidePre)
	if err != nil || !ok {
		return operation.DeviceMode[PreChs[F, B]]{}, err
	}
	l.ensureLocked()
	return operation.ConfiguredDevice(l.pre), nil
}

func (l *TwoWayLinker[F, B]) MakePost() (operation.DeviceMode[PostChs[F, B]], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, err := l.state.ready(sidePost)
	if err != nil || !ok {
		return operation.DeviceMode[PostChs[F, B]]{}, err
	}
	l.ensureLocked()
	return operation.ConfiguredDevice(l.post), nil
}

func (l *TwoWayLinker[F, B]) Mode() operation.RunMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.mode()
}

func (l *TwoWayLinker[F, B]) Live() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}
