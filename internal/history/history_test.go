package history

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
	"github.com/nerrad567/rcp-core/internal/infrastructure/database"
	"github.com/nerrad567/rcp-core/internal/rcp"
	"github.com/nerrad567/rcp-core/migrations"
)

// setupTestRepo opens a temporary database with the real schema applied.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

// fixedClock lets a test move the repository's notion of now.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func status(id string, seq int64, ws rcp.WorkingState) rcp.Status {
	st := rcp.NewStatus(id)
	st.Sequence = seq
	st.EventSeq = seq
	st.Mode = rcp.ModeAuto
	st.WorkingState = ws
	return st
}

// =============================================================================
// SQLiteRepository
// =============================================================================

func TestRecord(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	st := status("robot-1", 3, rcp.StateRunning)
	st.JobID = "J1"
	if err := repo.Record(ctx, st); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "robot-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	got := entries[0]
	if got.DeviceID != "robot-1" {
		t.Errorf("DeviceID = %q, want robot-1", got.DeviceID)
	}
	if got.Status.Sequence != 3 || got.Status.WorkingState != rcp.StateRunning || got.Status.JobID != "J1" {
		t.Errorf("Status = %+v, want sequence 3 Running J1", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want non-zero")
	}
}

func TestRecord_RequiresID(t *testing.T) {
	repo := setupTestRepo(t)
	if err := repo.Record(context.Background(), rcp.Status{}); !errors.Is(err, ErrDeviceIDRequired) {
		t.Errorf("Record() error = %v, want ErrDeviceIDRequired", err)
	}
	if _, err := repo.GetHistory(context.Background(), "", 0); !errors.Is(err, ErrDeviceIDRequired) {
		t.Errorf("GetHistory() error = %v, want ErrDeviceIDRequired", err)
	}
}

func TestGetHistory_NewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for seq, ws := range []rcp.WorkingState{rcp.StateIdle, rcp.StateRunning, rcp.StatePausing, rcp.StateCompleted} {
		if err := repo.Record(ctx, status("robot-1", int64(seq), ws)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := repo.Record(ctx, status("arm-1", 0, rcp.StateIdle)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "robot-1", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if entries[0].Status.Sequence != 3 || entries[1].Status.Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 3, 2", entries[0].Status.Sequence, entries[1].Status.Sequence)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{10, 10},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPrune(t *testing.T) {
	repo := setupTestRepo(t)
	clock := &fixedClock{}
	repo.now = clock.Now
	ctx := context.Background()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	clock.Set(now.Add(-40 * 24 * time.Hour))
	if err := repo.Record(ctx, status("robot-1", 0, rcp.StateIdle)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	clock.Set(now.Add(-12 * time.Hour))
	if err := repo.Record(ctx, status("robot-1", 1, rcp.StateRunning)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	clock.Set(now)
	deleted, err := repo.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	entries, _ := repo.GetHistory(ctx, "robot-1", 0)
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}
	if want := now.Add(-12 * time.Hour); !entries[0].CreatedAt.Equal(want) {
		t.Errorf("remaining CreatedAt = %s, want %s", entries[0].CreatedAt, want)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) should fail")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-10-19T12:00:00.250Z", time.Date(2026, 10, 19, 12, 0, 0, 250e6, time.UTC), false},
		{"2026-10-19T12:00:00Z", time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Recorder
// =============================================================================

// failingRepo rejects every write.
type failingRepo struct {
	mu    sync.Mutex
	calls int
}

func (f *failingRepo) Record(context.Context, rcp.Status) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("disk full")
}

func (f *failingRepo) GetHistory(context.Context, string, int) ([]Entry, error) { return nil, nil }
func (f *failingRepo) Prune(context.Context, time.Duration) (int64, error)   { return 0, nil }

func TestRecorder_Run(t *testing.T) {
	repo := setupTestRepo(t)
	rec := NewRecorder(repo, 24*time.Hour)

	updates := make(chan rcp.Status, 3)
	updates <- status("robot-1", 0, rcp.StateIdle)
	updates <- status("robot-1", 1, rcp.StateRunning)
	updates <- status("arm-1", 0, rcp.StateIdle)
	close(updates)

	done := make(chan struct{})
	go func() {
		rec.Run(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the channel closed")
	}

	entries, err := repo.GetHistory(context.Background(), "robot-1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("robot-1 entries = %d, want 2", len(entries))
	}
}

func TestRecorder_ContinuesAfterFailure(t *testing.T) {
	repo := &failingRepo{}
	rec := NewRecorder(repo, 0)

	updates := make(chan rcp.Status, 2)
	updates <- status("robot-1", 0, rcp.StateIdle)
	updates <- status("robot-1", 1, rcp.StateIdle)
	close(updates)

	rec.Run(context.Background(), updates)

	if repo.calls != 2 {
		t.Errorf("Record calls = %d, want 2", repo.calls)
	}
}

func TestRecorder_StopsWithContext(t *testing.T) {
	rec := NewRecorder(&failingRepo{}, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rec.Run(ctx, make(chan rcp.Status))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
