package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// ErrDeviceIDRequired is returned for queries and records without a device id.
var ErrDeviceIDRequired = errors.New("history: device id is required")

// SQLiteRepository implements Repository on the status_history table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts st with its identifying columns broken out for queries and
// the full snapshot as JSON.
func (r *SQLiteRepository) Record(ctx context.Context, st rcp.Status) error {
	if st.ID == "" {
		return ErrDeviceIDRequired
	}

	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO status_history
		 (device_id, sequence, event_seq, mode, working_state, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID,
		st.Sequence,
		st.EventSeq,
		string(st.Mode),
		string(st.WorkingState),
		string(body),
		r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

// GetHistory returns the newest entries for deviceID.
func (r *SQLiteRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, status, created_at
		 FROM status_history
		 WHERE device_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry     Entry
			body      string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &entry.Status); err != nil {
			return nil, fmt.Errorf("unmarshalling status: %w", err)
		}
		if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries recorded before now-olderThan.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM status_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting status history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// parseTimestamp accepts the stored layout and plain RFC 3339.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return ts, nil
}
