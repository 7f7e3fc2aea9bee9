package device

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

func snapshotAt(seq int64) rcp.Status {
	st := rcp.NewStatus("dev")
	st.Sequence = seq
	return st
}

func sequences(sts []rcp.Status) []int64 {
	out := make([]int64, 0, len(sts))
	for _, st := range sts {
		out = append(out, st.Sequence)
	}
	return out
}

func flush(t *testing.T, p *Publisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestPublisher_PreservesOrder(t *testing.T) {
	tr := &MockTransport{delay: time.Millisecond}
	p := newPublisher("dev", tr, testOptions(), nil, nil)

	for i := 0; i < 20; i++ {
		p.Enqueue(snapshotAt(int64(i)))
	}
	flush(t, p)

	got := sequences(tr.Delivered())
	want := make([]int64, 20)
	for i := range want {
		want[i] = int64(i)
	}
	if !slices.Equal(got, want) {
		t.Errorf("delivered = %v, want %v", got, want)
	}
	if published, failed := p.Stats(); published != 20 || failed != 0 {
		t.Errorf("Stats() = %d/%d, want 20/0", published, failed)
	}
	if p.LastPublished().IsZero() {
		t.Error("LastPublished() is zero after delivery")
	}
}

func TestPublisher_FailureStopsPass(t *testing.T) {
	tr := &MockTransport{
		delay: time.Millisecond,
		failFn: func(st rcp.Status, _ int) error {
			if st.Sequence == 1 {
				return errPublish
			}
			return nil
		},
	}
	p := newPublisher("dev", tr, testOptions(), nil, nil)

	// Hold the drain on the first item so the rest queue behind it.
	p.mu.Lock()
	p.queue = append(p.queue, snapshotAt(0), snapshotAt(1), snapshotAt(2))
	p.draining = true
	p.mu.Unlock()
	go p.drain()
	flush(t, p)

	if got := sequences(tr.Delivered()); !slices.Equal(got, []int64{0}) {
		t.Errorf("delivered = %v, want [0]", got)
	}
	if n := p.Pending(); n != 1 {
		t.Errorf("Pending() = %d, want 1", n)
	}

	// The failed item is gone; the next Enqueue resumes with what is left.
	p.Enqueue(snapshotAt(3))
	flush(t, p)
	if got := sequences(tr.Delivered()); !slices.Equal(got, []int64{0, 2, 3}) {
		t.Errorf("delivered = %v, want [0 2 3]", got)
	}
	if _, failed := p.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestPublisher_Retry(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		failFirst int
		wantSent  bool
	}{
		{"no retry, one failure", 0, 1, false},
		{"one retry, one failure", 1, 1, true},
		{"two retries, three failures", 2, 3, false},
		{"three retries, two failures", 3, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &MockTransport{
				failFn: func(_ rcp.Status, attempt int) error {
					if attempt <= tt.failFirst {
						return errPublish
					}
					return nil
				},
			}
			opts := testOptions()
			opts.PublishRetries = tt.retries
			opts.RetryBackoff = time.Millisecond
			p := newPublisher("dev", tr, opts, nil, nil)

			p.Enqueue(snapshotAt(0))
			flush(t, p)

			if sent := len(tr.Delivered()) == 1; sent != tt.wantSent {
				t.Errorf("delivered = %v, want %v", sent, tt.wantSent)
			}
		})
	}
}

func TestPublisher_FlushHonoursContext(t *testing.T) {
	tr := &MockTransport{delay: 500 * time.Millisecond}
	p := newPublisher("dev", tr, testOptions(), nil, nil)
	p.Enqueue(snapshotAt(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Flush(ctx); err == nil {
		t.Error("Flush() error = nil, want deadline exceeded")
	}
	flush(t, p)
}

func TestPublisher_NilTransport(t *testing.T) {
	p := newPublisher("dev", nil, testOptions(), nil, nil)
	p.Enqueue(snapshotAt(0))
	flush(t, p)

	if published, _ := p.Stats(); published != 1 {
		t.Errorf("published = %d, want 1", published)
	}
}
