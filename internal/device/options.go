package device

import (
	"fmt"
	"time"
)

// Class selects the behaviour of a device.
type Class string

// Device classes.
const (
	// ClassProcessor runs jobs: start, stop, pause, resume, abort, end.
	ClassProcessor Class = "processor"

	// ClassTransfer moves carriers between slots: pick, place, transfer.
	ClassTransfer Class = "transfer"
)

// ParseClass validates a class name from configuration.
func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case ClassProcessor, ClassTransfer:
		return Class(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
	}
}

// SettlePolicy decides what happens when a pending settle phase is
// cancelled.
type SettlePolicy string

// Settle policies.
const (
	// SettleDrop publishes nothing for the cancelled phase.
	SettleDrop SettlePolicy = "drop"

	// SettleEmit publishes the state as it stood when the phase was cancelled.
	SettleEmit SettlePolicy = "emit"
)

// Timing holds the opaque operation durations of a device.
type Timing struct {
	PauseDelay  time.Duration
	ResumeDelay time.Duration
	AbortDelay  time.Duration
	MoveDelay   time.Duration
	PickDelay   time.Duration
	PlaceDelay  time.Duration
	InitDelay   time.Duration

	// StopDelay settles Stopping to Completed. Zero waits for Complete.
	StopDelay time.Duration

	// JobDuration completes a running job on its own. Zero disables it.
	JobDuration time.Duration
}

// Options are shared by every actor a Registry creates.
type Options struct {
	Timing       Timing
	SettlePolicy SettlePolicy

	// HeartbeatInterval re-sends status periodically. Zero disables it.
	// HeartbeatDebounce skips a beat if a status was published this recently.
	HeartbeatInterval time.Duration
	HeartbeatDebounce time.Duration

	// PublishRetries is the number of extra delivery attempts per snapshot.
	// PublishTimeout bounds one attempt.
	PublishRetries int
	RetryBackoff   time.Duration
	PublishTimeout time.Duration
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Timing: Timing{
			PauseDelay:  time.Second,
			ResumeDelay: time.Second,
			AbortDelay:  time.Second,
			StopDelay:   time.Second,
			MoveDelay:   1500 * time.Millisecond,
			PickDelay:   time.Second,
			PlaceDelay:  time.Second,
			InitDelay:   time.Second,
		},
		SettlePolicy:      SettleDrop,
		HeartbeatInterval: time.Second,
		HeartbeatDebounce: 2 * time.Second,
		RetryBackoff:      200 * time.Millisecond,
		PublishTimeout:    5 * time.Second,
	}
}

// Spec declares one device.
type Spec struct {
	ID    string
	Class Class
	// Slots are the dropoff/pickup ports of a transfer device.
	Slots []string
}
