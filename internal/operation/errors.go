package operation

import (
	"errors"
	"fmt"

	"spikenet/internal/chans"
)

var (
	ErrInconsistentMode = errors.New("inconsistent mode")
	ErrNotConfigured    = errors.New("not yet mode-configured")
	ErrPeerGone         = errors.New("peer gone")
	ErrSendFailed       = errors.New("send failed")
)

// ChannelError maps a channel failure onto the kernel taxonomy: a
// disconnected pair means the peer is gone, anything else is a failed send.
func ChannelError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chans.ErrDisconnected):
		return fmt.Errorf("%w: %w", ErrPeerGone, err)
	case errors.Is(err, ErrPeerGone), errors.Is(err, ErrSendFailed):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
}
