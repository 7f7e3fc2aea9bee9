package history

import (
	"context"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

const (
	// DefaultLimit is the page size when a caller passes no limit.
	DefaultLimit = 50

	// MaxLimit caps a single history query.
	MaxLimit = 200
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Entry is one recorded status snapshot.
type Entry struct {
	// ID is the auto-incremented row id; later emissions have larger ids.
	ID int64 `json:"id"`

	DeviceID string     `json:"deviceId"`
	Status   rcp.Status `json:"status"`

	// CreatedAt is when the snapshot was recorded (UTC).
	CreatedAt time.Time `json:"createdAt"`
}

// Repository stores and retrieves status history.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record appends a snapshot.
	Record(ctx context.Context, st rcp.Status) error

	// GetHistory returns up to limit entries for a device, newest first.
	// A limit <= 0 means DefaultLimit; larger than MaxLimit is clamped.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Prune deletes entries older than the retention window and returns
	// how many were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// clampLimit applies the default and maximum page size.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
