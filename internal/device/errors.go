package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when no actor exists for an id.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating an actor for an id already in use.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidSpec is returned for a device spec that cannot be started.
	ErrInvalidSpec = errors.New("device: invalid spec")

	// ErrUnknownClass is returned for a device class that is not implemented.
	ErrUnknownClass = errors.New("device: unknown class")

	// ErrActorStopped is returned when submitting to an actor that has shut down.
	ErrActorStopped = errors.New("device: actor stopped")
)
