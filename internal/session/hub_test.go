package session

import (
	"testing"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

func TestEventHubPublishSubscribe(t *testing.T) {
	hub := newEventHub()
	ch, unsubscribe := hub.subscribe()
	defer unsubscribe()

	hub.publish(models.SessionEvent{Type: models.SessionEventPhase, SessionID: "s_1"})

	select {
	case ev := <-ch:
		if ev.Type != models.SessionEventPhase || ev.SessionID != "s_1" {
			t.Errorf("Received wrong event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for published event")
	}
}

func TestEventHubFanOut(t *testing.T) {
	hub := newEventHub()
	ch1, unsub1 := hub.subscribe()
	ch2, unsub2 := hub.subscribe()
	defer unsub1()
	defer unsub2()

	hub.publish(models.SessionEvent{Type: models.SessionEventCycle})

	for i, ch := range []<-chan models.SessionEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != models.SessionEventCycle {
				t.Errorf("Subscriber %d received wrong event: %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d timed out", i)
		}
	}
}

func TestEventHubUnsubscribeClosesChannel(t *testing.T) {
	hub := newEventHub()
	ch, unsubscribe := hub.subscribe()
	unsubscribe()
	unsubscribe()

	if _, open := <-ch; open {
		t.Error("Expected channel to close on unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	hub.publish(models.SessionEvent{Type: models.SessionEventPhase})
}

func TestEventHubSlowSubscriberDropsEvents(t *testing.T) {
	hub := newEventHub()
	ch, unsubscribe := hub.subscribe()
	defer unsubscribe()

	// Overfill the buffer; publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.publish(models.SessionEvent{Type: models.SessionEventCycle, CycleCount: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected publish to never block on a slow subscriber")
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("Expected buffer to hold %d events, got %d", subscriberBuffer, got)
	}
}

func TestEventHubCloseTerminatesStreams(t *testing.T) {
	hub := newEventHub()
	ch, _ := hub.subscribe()

	hub.close()
	hub.close()

	if _, open := <-ch; open {
		t.Error("Expected channel to close when hub closes")
	}

	// A late subscriber gets an already-closed channel.
	late, unsubscribe := hub.subscribe()
	defer unsubscribe()
	if _, open := <-late; open {
		t.Error("Expected closed channel for subscription after close")
	}
}
