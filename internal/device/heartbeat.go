package device

import (
	"context"
	"time"
)

// heartbeat re-sends a device's status on a fixed interval, skipping beats
// when a status went out within the debounce window.
type heartbeat struct {
	interval time.Duration
	debounce time.Duration
	last     func() time.Time
	beat     func()
	now      func() time.Time
}

func (h heartbeat) run(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h heartbeat) tick() bool {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	if last := h.last(); !last.IsZero() && now().Sub(last) < h.debounce {
		return false
	}
	h.beat()
	return true
}
