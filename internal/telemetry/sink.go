package telemetry

import (
	"context"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// Logger is the logging interface used by the sinks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// consume calls fn for every snapshot until updates closes or ctx ends.
func consume(ctx context.Context, updates <-chan rcp.Status, fn func(rcp.Status)) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			fn(st)
		}
	}
}
