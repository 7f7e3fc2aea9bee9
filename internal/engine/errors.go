package engine

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running engine.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrNotStarted is returned by Stop on an engine that never started.
	ErrNotStarted = errors.New("engine: not started")
)
