package device

import (
	"testing"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe(4)
	ch2, cancel2 := b.Subscribe(4)
	defer cancel1()
	defer cancel2()

	b.Publish(snapshotAt(7))

	for i, ch := range []<-chan rcp.Status{ch1, ch2} {
		select {
		case st := <-ch:
			if st.Sequence != 7 {
				t.Errorf("subscriber %d got Sequence %d, want 7", i, st.Sequence)
			}
		default:
			t.Errorf("subscriber %d got nothing", i)
		}
	}
}

func TestBroadcaster_SubscribersGetCopies(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe(1)
	ch2, cancel2 := b.Subscribe(1)
	defer cancel1()
	defer cancel2()

	st := snapshotAt(1)
	st.Custom = map[string]any{"position": "home"}
	b.Publish(st)

	got1 := <-ch1
	got1.Custom["position"] = "in"
	if got2 := <-ch2; got2.Custom["position"] != "home" {
		t.Errorf("second subscriber saw %v, want home", got2.Custom["position"])
	}
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(snapshotAt(1))
	b.Publish(snapshotAt(2))
	b.Publish(snapshotAt(3))

	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if st := <-ch; st.Sequence != 1 {
		t.Errorf("kept Sequence %d, want 1", st.Sequence)
	}
}

func TestBroadcaster_Cancel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	if n := b.Subscribers(); n != 1 {
		t.Fatalf("Subscribers() = %d, want 1", n)
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel open after cancel")
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
	b.Publish(snapshotAt(1))
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}

	late, lateCancel := b.Subscribe(1)
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Error("subscription after Close is open")
	}
}
