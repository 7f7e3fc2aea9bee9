package history

import (
	"context"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// writeTimeout bounds one insert so a locked database cannot stall the
// subscription for long.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the recorder.
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

// Recorder writes broadcast snapshots to a Repository and prunes old rows.
type Recorder struct {
	repo       Repository
	retention  time.Duration
	pruneEvery time.Duration
	logger     Logger
}

// NewRecorder creates a recorder. A zero retention disables pruning.
func NewRecorder(repo Repository, retention time.Duration) *Recorder {
	return &Recorder{
		repo:       repo,
		retention:  retention,
		pruneEvery: time.Hour,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run records every snapshot from updates until the channel closes or ctx
// ends. Write failures are logged and skipped.
func (r *Recorder) Run(ctx context.Context, updates <-chan rcp.Status) {
	var prune <-chan time.Time
	if r.retention > 0 {
		ticker := time.NewTicker(r.pruneEvery)
		defer ticker.Stop()
		prune = ticker.C
		r.prune(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			r.record(ctx, st)
		case <-prune:
			r.prune(ctx)
		}
	}
}

func (r *Recorder) record(ctx context.Context, st rcp.Status) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, st); err != nil {
		r.logger.Warn("status history write failed",
			"device_id", st.ID,
			"sequence", st.Sequence,
			"error", err,
		)
	}
}

func (r *Recorder) prune(ctx context.Context) {
	n, err := r.repo.Prune(ctx, r.retention)
	if err != nil {
		r.logger.Warn("status history prune failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("status history pruned", "deleted", n, "retention", r.retention)
	}
}
