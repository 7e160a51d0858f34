package session

import (
	"log/slog"
	"sync"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this loses events rather than blocking the
// orchestration callbacks.
const subscriberBuffer = 32

// eventHub fans one session's outbound events out to any number of
// presentation-layer subscribers.
type eventHub struct {
	mu     sync.Mutex
	subs   map[int]chan models.SessionEvent
	nextID int
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan models.SessionEvent)}
}

// publish delivers the event to every subscriber without ever blocking.
func (h *eventHub) publish(ev models.SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("eventHub: dropping event for slow subscriber", "subscriber", id, "event", ev.Type, "sessionID", ev.SessionID)
		}
	}
}

// subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. Subscribing to a closed hub returns a closed channel.
func (h *eventHub) subscribe() (<-chan models.SessionEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.SessionEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

// close terminates every subscriber stream. Idempotent.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
