package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// MockTransport is a test implementation of Transport that records every
// snapshot it is given, in delivery order.
type MockTransport struct {
	mu        sync.Mutex
	delivered []rcp.Status
	attempts  int
	// For testing error paths
	failFn func(st rcp.Status, attempt int) error
	delay  time.Duration
}

func (m *MockTransport) PublishStatus(_ context.Context, st rcp.Status) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.failFn != nil {
		if err := m.failFn(st, m.attempts); err != nil {
			return err
		}
	}
	m.delivered = append(m.delivered, st.Clone())
	return nil
}

func (m *MockTransport) Delivered() []rcp.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rcp.Status, len(m.delivered))
	copy(out, m.delivered)
	return out
}

func (m *MockTransport) States() []rcp.WorkingState {
	var out []rcp.WorkingState
	for _, st := range m.Delivered() {
		out = append(out, st.WorkingState)
	}
	return out
}

var errPublish = errors.New("broker unavailable")

// testOptions returns short timings and no heartbeat.
func testOptions() Options {
	opts := DefaultOptions()
	opts.Timing = Timing{
		PauseDelay:  10 * time.Millisecond,
		ResumeDelay: 10 * time.Millisecond,
		AbortDelay:  10 * time.Millisecond,
		StopDelay:   10 * time.Millisecond,
		MoveDelay:   10 * time.Millisecond,
		PickDelay:   10 * time.Millisecond,
		PlaceDelay:  10 * time.Millisecond,
		InitDelay:   10 * time.Millisecond,
	}
	opts.HeartbeatInterval = 0
	opts.PublishTimeout = time.Second
	return opts
}

// newTestActor starts an actor and stops it when the test ends.
func newTestActor(t *testing.T, spec Spec, opts Options) (*Actor, *MockTransport) {
	t.Helper()

	tr := &MockTransport{}
	a, err := newActor(spec, actorDeps{
		transport: tr,
		fanout:    NewBroadcaster(),
		opts:      opts,
	})
	if err != nil {
		t.Fatalf("newActor() error = %v", err)
	}
	a.start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a, tr
}

func processorSpec() Spec {
	return Spec{ID: "robot-1", Class: ClassProcessor}
}

func transferSpec() Spec {
	return Spec{ID: "arm-1", Class: ClassTransfer, Slots: []string{"in", "out", "buffer_1", "buffer_2"}}
}

// submit queues cmds and waits until the actor has processed them and the
// publisher has drained.
func submit(t *testing.T, a *Actor, cmds ...rcp.Command) {
	t.Helper()
	for _, c := range cmds {
		if err := a.Submit(c); err != nil {
			t.Fatalf("Submit(%s) error = %v", c.Name(), err)
		}
	}
	settleActor(t, a)
}

func settleActor(t *testing.T, a *Actor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// toAuto puts a fresh actor into Auto mode. The returned status is the one
// published for the change.
func toAuto(t *testing.T, a *Actor, tr *MockTransport) rcp.Status {
	t.Helper()
	submit(t, a, rcp.ModeChange{Target: rcp.ModeAuto})
	got := tr.Delivered()
	if len(got) == 0 {
		t.Fatal("mode change was not published")
	}
	return got[len(got)-1]
}

func last(t *testing.T, tr *MockTransport) rcp.Status {
	t.Helper()
	got := tr.Delivered()
	if len(got) == 0 {
		t.Fatal("nothing published")
	}
	return got[len(got)-1]
}
