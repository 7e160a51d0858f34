package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
	"github.com/MossHollow/InterludeEngine/internal/orchestration"
	"github.com/MossHollow/InterludeEngine/internal/telemetry"
)

// stubChecker returns a fixed status result for every check.
type stubChecker struct {
	mu     sync.Mutex
	result *models.StatusResult
}

func (c *stubChecker) CheckStatus(ctx context.Context, workID string) (*models.StatusResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, nil
}

func pendingStub() *stubChecker {
	return &stubChecker{result: &models.StatusResult{Status: models.WorkStatusPending}}
}

func readyStub(payload *models.EnrichmentPayload) *stubChecker {
	return &stubChecker{result: &models.StatusResult{Status: models.WorkStatusComplete, Payload: payload}}
}

func fastConfig() orchestration.Config {
	return orchestration.Config{
		HeldSafeDuration:           5 * time.Millisecond,
		MinimumDwell:               20 * time.Millisecond,
		SoftTimeout:                200 * time.Millisecond,
		HardTimeout:                400 * time.Millisecond,
		PollInterval:               5 * time.Millisecond,
		SkipDelay:                  20 * time.Millisecond,
		CompleteTransitionDuration: 5 * time.Millisecond,
		CopyRotateInterval:         10 * time.Millisecond,
		MinBreathCycles:            0,
		DialogueTiming:             orchestration.DefaultDialogueTiming(),
	}
}

func newTestManager(checker *stubChecker) *Manager {
	return NewManager(fastConfig(), checker, telemetry.NewInMemorySink(), nil)
}

func TestManagerStartRequiresWorkID(t *testing.T) {
	mgr := newTestManager(pendingStub())
	_, err := mgr.Start(context.Background(), StartRequest{})
	if !errors.Is(err, models.ErrEmptyWorkID) {
		t.Errorf("Expected ErrEmptyWorkID, got %v", err)
	}
}

func TestManagerStartSession(t *testing.T) {
	mgr := newTestManager(pendingStub())
	snap, err := mgr.Start(context.Background(), StartRequest{WorkID: "w_1", PigDisplayName: "Truffle"})
	if err != nil {
		t.Fatalf("Expected no error starting session, got %v", err)
	}
	defer mgr.Teardown(snap.SessionID)

	if snap.SessionID == "" {
		t.Error("Expected non-empty session ID")
	}
	if snap.WorkID != "w_1" {
		t.Errorf("Expected work ID w_1, got %s", snap.WorkID)
	}
	if snap.Phase != models.PhaseHeldSafe {
		t.Errorf("Expected held_safe phase at start, got %s", snap.Phase)
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", mgr.Count())
	}
}

func TestManagerSnapshotUnknownSession(t *testing.T) {
	mgr := newTestManager(pendingStub())
	if _, err := mgr.Snapshot("nope"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManagerSubscribeReceivesEvents(t *testing.T) {
	payload := &models.EnrichmentPayload{Poem: "p"}
	mgr := newTestManager(readyStub(payload))
	snap, err := mgr.Start(context.Background(), StartRequest{WorkID: "w_1"})
	if err != nil {
		t.Fatalf("Expected no error starting session, got %v", err)
	}
	defer mgr.Teardown(snap.SessionID)

	events, unsubscribe, err := mgr.Subscribe(snap.SessionID)
	if err != nil {
		t.Fatalf("Expected no error subscribing, got %v", err)
	}
	defer unsubscribe()

	// The ready checker drives the session to a ready event, which also
	// closes the stream.
	deadline := time.After(2 * time.Second)
	sawReady := false
	for !sawReady {
		select {
		case ev, open := <-events:
			if !open {
				t.Fatal("Stream closed before ready event")
			}
			if ev.SessionID != snap.SessionID {
				t.Errorf("Expected events for session %s, got %s", snap.SessionID, ev.SessionID)
			}
			if ev.Type == models.SessionEventReady {
				if ev.Payload != payload {
					t.Errorf("Expected ready payload, got %+v", ev.Payload)
				}
				sawReady = true
			}
		case <-deadline:
			t.Fatal("Timed out waiting for ready event")
		}
	}

	select {
	case _, open := <-events:
		if open {
			// Drain any trailing buffered event; the channel must close soon.
			for ev := range events {
				_ = ev
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Expected stream to close after terminal event")
	}
}

func TestManagerSkipUnknownSession(t *testing.T) {
	mgr := newTestManager(pendingStub())
	if _, err := mgr.RequestSkip("nope"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if _, err := mgr.AcknowledgeDialogue("nope"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManagerTeardown(t *testing.T) {
	mgr := newTestManager(pendingStub())
	snap, err := mgr.Start(context.Background(), StartRequest{WorkID: "w_1"})
	if err != nil {
		t.Fatalf("Expected no error starting session, got %v", err)
	}

	if err := mgr.Teardown(snap.SessionID); err != nil {
		t.Errorf("Expected no error tearing down, got %v", err)
	}
	if mgr.Count() != 0 {
		t.Errorf("Expected 0 live sessions after teardown, got %d", mgr.Count())
	}
	if err := mgr.Teardown(snap.SessionID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second teardown, got %v", err)
	}
}

func TestManagerSweepTerminal(t *testing.T) {
	payload := &models.EnrichmentPayload{Poem: "p"}
	mgr := newTestManager(readyStub(payload))
	snap, err := mgr.Start(context.Background(), StartRequest{WorkID: "w_1"})
	if err != nil {
		t.Fatalf("Expected no error starting session, got %v", err)
	}

	events, unsubscribe, err := mgr.Subscribe(snap.SessionID)
	if err != nil {
		t.Fatalf("Expected no error subscribing, got %v", err)
	}
	defer unsubscribe()

	// Wait for the session to reach its terminal phase.
	deadline := time.After(2 * time.Second)
waiting:
	for {
		select {
		case ev, open := <-events:
			if !open {
				break waiting
			}
			if ev.Type == models.SessionEventReady {
				break waiting
			}
		case <-deadline:
			t.Fatal("Timed out waiting for terminal event")
		}
	}

	// A live, non-terminal session must never be swept.
	if removed := mgr.SweepTerminal(time.Hour); removed != 0 {
		t.Errorf("Expected retention window to protect the session, got %d removed", removed)
	}
	if removed := mgr.SweepTerminal(0); removed != 1 {
		t.Errorf("Expected 1 session swept, got %d", removed)
	}
	if mgr.Count() != 0 {
		t.Errorf("Expected 0 live sessions after sweep, got %d", mgr.Count())
	}
}

func TestManagerSweepLeavesActiveSessions(t *testing.T) {
	mgr := newTestManager(pendingStub())
	snap, err := mgr.Start(context.Background(), StartRequest{WorkID: "w_1"})
	if err != nil {
		t.Fatalf("Expected no error starting session, got %v", err)
	}
	defer mgr.Teardown(snap.SessionID)

	if removed := mgr.SweepTerminal(0); removed != 0 {
		t.Errorf("Expected active session to survive sweep, got %d removed", removed)
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", mgr.Count())
	}
}
