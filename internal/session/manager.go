// Package session manages the registry of live orchestration sessions and
// bridges controller callbacks onto per-session event streams.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MossHollow/InterludeEngine/internal/copygen"
	"github.com/MossHollow/InterludeEngine/internal/models"
	"github.com/MossHollow/InterludeEngine/internal/orchestration"
	"github.com/MossHollow/InterludeEngine/internal/poller"
	"github.com/MossHollow/InterludeEngine/internal/telemetry"
)

// copygenTimeout bounds the optional copy-deck generation at session start.
const copygenTimeout = 3 * time.Second

// StartRequest describes one startSession call from the presentation layer.
type StartRequest struct {
	WorkID         string                 `json:"work_id"`
	PigDisplayName string                 `json:"pig_display_name"`
	Emotion        models.EmotionCategory `json:"emotion,omitempty"`
}

// entry is one live session.
type entry struct {
	id         string
	controller *orchestration.Controller
	hub        *eventHub
	createdAt  time.Time
}

// Manager owns every live session. It is the single mutator of session
// lifecycle; the API layer only calls through it.
type Manager struct {
	cfg     orchestration.Config
	checker poller.StatusChecker
	sink    telemetry.Sink
	copy    *copygen.Client

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a session manager. The sink and copy generator may be nil.
func NewManager(cfg orchestration.Config, checker poller.StatusChecker, sink telemetry.Sink, copyGen *copygen.Client) *Manager {
	slog.Debug("Creating session Manager", "copygen_enabled", copyGen != nil)
	return &Manager{
		cfg:      cfg,
		checker:  checker,
		sink:     sink,
		copy:     copyGen,
		sessions: make(map[string]*entry),
	}
}

// Start creates and starts a new orchestration session, returning its snapshot.
func (m *Manager) Start(ctx context.Context, req StartRequest) (orchestration.Snapshot, error) {
	if req.WorkID == "" {
		return orchestration.Snapshot{}, models.ErrEmptyWorkID
	}

	id := uuid.NewString()
	hub := newEventHub()
	deck := m.buildDeck(ctx, req)

	ctrl, err := orchestration.NewController(
		id, req.WorkID, req.PigDisplayName, req.Emotion,
		m.cfg, deck, m.checker, m.sink,
		m.callbacksFor(id, hub),
	)
	if err != nil {
		slog.Error("Manager.Start: controller construction failed", "error", err, "workID", req.WorkID)
		return orchestration.Snapshot{}, err
	}

	m.mu.Lock()
	m.sessions[id] = &entry{id: id, controller: ctrl, hub: hub, createdAt: time.Now()}
	m.mu.Unlock()

	if err := ctrl.Start(); err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		hub.close()
		return orchestration.Snapshot{}, err
	}
	slog.Info("Manager.Start: session started", "sessionID", id, "workID", req.WorkID)
	return ctrl.Snapshot(), nil
}

// buildDeck returns the copy deck for a new session, preferring generated
// copy when a generator is configured. Generation failures fall back to the
// static deck silently.
func (m *Manager) buildDeck(ctx context.Context, req StartRequest) orchestration.CopyDeck {
	deck := orchestration.DefaultCopyDeck(req.PigDisplayName)
	if m.copy == nil {
		return deck
	}
	genCtx, cancel := context.WithTimeout(ctx, copygenTimeout)
	defer cancel()
	lines, err := m.copy.GenerateActiveLines(genCtx, req.PigDisplayName, req.Emotion, len(deck.Active))
	if err != nil {
		slog.Warn("Manager.buildDeck: copy generation failed, using static deck", "error", err, "workID", req.WorkID)
		return deck
	}
	deck.Active = lines
	return deck
}

// callbacksFor bridges controller callbacks onto the session's event hub.
func (m *Manager) callbacksFor(id string, hub *eventHub) orchestration.SessionCallbacks {
	return orchestration.SessionCallbacks{
		OnPhaseChange: func(phase models.Phase, contextualCopy string) {
			hub.publish(models.SessionEvent{
				Type: models.SessionEventPhase, SessionID: id,
				Phase: phase, ContextualCopy: contextualCopy, Time: time.Now(),
			})
		},
		OnCycleTick: func(stage models.BreathStage, cycleCount int) {
			hub.publish(models.SessionEvent{
				Type: models.SessionEventCycle, SessionID: id,
				Stage: stage, CycleCount: cycleCount, Time: time.Now(),
			})
		},
		OnTupleSubPhase: func(tupleIndex int, subPhase models.TupleSubPhase, visibleText string) {
			hub.publish(models.SessionEvent{
				Type: models.SessionEventTuple, SessionID: id,
				TupleIndex: tupleIndex, SubPhase: subPhase, VisibleText: visibleText, Time: time.Now(),
			})
		},
		OnReady: func(payload *models.EnrichmentPayload) {
			hub.publish(models.SessionEvent{
				Type: models.SessionEventReady, SessionID: id,
				Payload: payload, Time: time.Now(),
			})
			hub.close()
		},
		OnTimedOut: func() {
			hub.publish(models.SessionEvent{
				Type: models.SessionEventTimedOut, SessionID: id, Time: time.Now(),
			})
			hub.close()
		},
	}
}

// get looks up a live session.
func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return e, nil
}

// Snapshot returns the current view of a session.
func (m *Manager) Snapshot(id string) (orchestration.Snapshot, error) {
	e, err := m.get(id)
	if err != nil {
		return orchestration.Snapshot{}, err
	}
	return e.controller.Snapshot(), nil
}

// RequestSkip forwards a skip request. Returns whether it was honored.
func (m *Manager) RequestSkip(id string) (bool, error) {
	e, err := m.get(id)
	if err != nil {
		return false, err
	}
	return e.controller.RequestSkip(), nil
}

// AcknowledgeDialogue forwards a dialogue proceed action. Returns whether it
// was honored.
func (m *Manager) AcknowledgeDialogue(id string) (bool, error) {
	e, err := m.get(id)
	if err != nil {
		return false, err
	}
	return e.controller.AcknowledgeDialogue(), nil
}

// Subscribe attaches to a session's event stream.
func (m *Manager) Subscribe(id string) (<-chan models.SessionEvent, func(), error) {
	e, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsub := e.hub.subscribe()
	return ch, unsub, nil
}

// Teardown stops a session and removes it from the registry. Tearing down an
// unknown session returns ErrSessionNotFound; tearing down twice therefore
// surfaces as not-found, never as a double-stop.
func (m *Manager) Teardown(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return models.ErrSessionNotFound
	}
	e.controller.Teardown()
	e.hub.close()
	slog.Info("Manager.Teardown: session removed", "sessionID", id)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepTerminal removes terminal sessions older than the retention window so
// the registry cannot grow unboundedly. Returns the number removed.
func (m *Manager) SweepTerminal(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	m.mu.Lock()
	var victims []*entry
	for id, e := range m.sessions {
		if e.controller.Phase().IsTerminal() && e.createdAt.Before(cutoff) {
			victims = append(victims, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range victims {
		e.controller.Teardown()
		e.hub.close()
	}
	if len(victims) > 0 {
		slog.Info("Manager.SweepTerminal: removed terminal sessions", "count", len(victims))
	}
	return len(victims)
}
