package rcp

import "errors"

// Routing errors. A command that fails routing is dropped; device state is
// never touched.
var (
	// ErrUnsupportedCommand is returned for an unknown command name or message type.
	ErrUnsupportedCommand = errors.New("rcp: unsupported command")

	// ErrMalformedPayload is returned when a payload is not valid JSON or
	// fails its command schema.
	ErrMalformedPayload = errors.New("rcp: malformed payload")

	// ErrInvalidTopic is returned for topics outside the namespace or with
	// the wrong shape.
	ErrInvalidTopic = errors.New("rcp: invalid topic")
)
