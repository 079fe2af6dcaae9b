package operation

import (
	"fmt"
	"strings"
)

// RunMode is the lifecycle state shared by every wireable endpoint.
type RunMode int

const (
	Idle RunMode = iota
	Feedforward
)

func (m RunMode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Feedforward:
		return "feedforward"
	default:
		return fmt.Sprintf("run_mode(%d)", int(m))
	}
}

// Running reports whether m is any non-idle variant.
func (m RunMode) Running() bool {
	return m != Idle
}

// ParseRunMode maps a config name to a RunMode.
func ParseRunMode(name string) (RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "idle":
		return Idle, nil
	case "feedforward", "running":
		return Feedforward, nil
	default:
		return Idle, fmt.Errorf("unsupported run mode: %s", name)
	}
}

// DeviceMode holds the materialized channel state of one endpoint. The zero
// value is idle.
type DeviceMode[T any] struct {
	chs        T
	configured bool
}

func ConfiguredDevice[T any](chs T) DeviceMode[T] {
	return DeviceMode[T]{chs: chs, configured: true}
}

func (d DeviceMode[T]) Idle() bool {
	return !d.configured
}

// Channels returns the live handles, or false when idle.
func (d DeviceMode[T]) Channels() (T, bool) {
	return d.chs, d.configured
}

// NamedMode labels a sub-component mode for inconsistency reports.
type NamedMode struct {
	Name string
	Mode RunMode
}

// AggregateMode returns the shared mode of a composite agent's components, or
// ErrInconsistentMode naming every component when they disagree.
func AggregateMode(modes ...NamedMode) (RunMode, error) {
	if len(modes) == 0 {
		return Idle, nil
	}
	first := modes[0].Mode
	for _, m := range modes[1:] {
		if m.Mode != first {
			parts := make([]string, 0, len(modes))
			for _, nm := range modes {
				parts = append(parts, fmt.Sprintf("%s=%s", nm.Name, nm.Mode))
			}
			return Idle, fmt.Errorf("%w: %s", ErrInconsistentMode, strings.Join(parts, " "))
		}
	}
	return first, nil
}
