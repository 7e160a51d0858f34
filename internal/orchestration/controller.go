package orchestration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
	"github.com/MossHollow/InterludeEngine/internal/poller"
)

// SessionCallbacks is the explicit context object through which the controller
// talks to the presentation layer. Any callback may be nil. Callbacks are
// always invoked outside the controller lock and never after Teardown returns.
type SessionCallbacks struct {
	// OnPhaseChange fires on every top-level phase change and on each
	// contextual-copy rotation while Active.
	OnPhaseChange func(phase models.Phase, contextualCopy string)
	// OnCycleTick fires on each breath stage transition (breath mode only).
	OnCycleTick func(stage models.BreathStage, cycleCount int)
	// OnTupleSubPhase fires on each dialogue sub-phase change (dialogue mode only).
	OnTupleSubPhase func(tupleIndex int, subPhase models.TupleSubPhase, visibleText string)
	// OnReady fires exactly once with the enrichment payload (possibly nil after a skip).
	OnReady func(payload *models.EnrichmentPayload)
	// OnTimedOut fires exactly once if the hard timeout forces termination.
	OnTimedOut func()
}

// TelemetryRecorder receives fire-and-forget structured events. Failures to
// deliver never affect orchestration correctness.
type TelemetryRecorder interface {
	Record(ctx context.Context, ev models.TelemetryEvent) error
}

// Mode names which sub-engine currently owns the waiting experience.
type Mode string

const (
	ModeBreath   Mode = "breath"
	ModeDialogue Mode = "dialogue"
)

// Snapshot is a point-in-time view of a session for reconnecting clients.
type Snapshot struct {
	SessionID    string               `json:"session_id"`
	WorkID       string               `json:"work_id"`
	Phase        models.Phase         `json:"phase"`
	Mode         Mode                 `json:"mode"`
	ElapsedMS    int64                `json:"elapsed_ms"`
	StillWorking bool                 `json:"still_working"`
	SignalReady  bool                 `json:"signal_ready"`
	CycleCount   int                  `json:"cycle_count"`
	TupleIndex   int                  `json:"tuple_index"`
	SubPhase     models.TupleSubPhase `json:"sub_phase,omitempty"`
}

// Controller is the Interlude Phase Controller: the top-level state machine
// driving one orchestration session. It starts the status poller and dwell
// accounting together on activation, forwards ticks to whichever sub-engine is
// active, and alone decides when the top-level phase advances.
//
// All phase transitions are evaluated under one mutex in response to a timer
// firing or a poller update, so two transitions never race.
type Controller struct {
	sessionID string
	workID    string
	pigName   string
	emotion   models.EmotionCategory
	cfg       Config
	deck      CopyDeck
	callbacks SessionCallbacks
	telemetry TelemetryRecorder

	timer *SimpleTimer
	poll  *poller.Poller

	mu           sync.Mutex
	started      bool
	tornDown     bool
	phase        models.Phase
	startedAt    time.Time
	activeAt     time.Time
	signal       models.CompletionSignal
	breath       *BreathEngine
	dialogue     *DialogueSequencer
	dialogueDone bool
	stillWorking bool
	readyFired   bool
	timedOut     bool
	copyIdx      int
}

// NewController builds a controller for one session. The checker is the only
// handle to the enrichment collaborator; telemetry may be nil.
func NewController(sessionID, workID, pigDisplayName string, emotion models.EmotionCategory, cfg Config, deck CopyDeck, checker poller.StatusChecker, telemetry TelemetryRecorder, callbacks SessionCallbacks) (*Controller, error) {
	if workID == "" {
		return nil, models.ErrEmptyWorkID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deck.Validate(); err != nil {
		slog.Warn("Controller: invalid copy deck, using default", "error", err, "sessionID", sessionID)
		deck = DefaultCopyDeck(pigDisplayName)
	}
	if !models.IsValidEmotionCategory(emotion) {
		emotion = models.EmotionNeutral
	}
	c := &Controller{
		sessionID: sessionID,
		workID:    workID,
		pigName:   pigDisplayName,
		emotion:   emotion,
		cfg:       cfg,
		deck:      deck,
		callbacks: callbacks,
		telemetry: telemetry,
		timer:     NewSimpleTimer(),
	}
	c.poll = poller.New(checker, poller.Config{
		Interval:    cfg.PollInterval,
		Jitter:      cfg.PollJitter,
		HardTimeout: cfg.HardTimeout,
	})
	slog.Debug("Creating Controller", "sessionID", sessionID, "workID", workID, "emotion", emotion)
	return c, nil
}

// Start enters the held-safe phase and arms the session-wide timers. The dwell
// thresholds count from this instant.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.started || c.tornDown {
		c.mu.Unlock()
		return errors.New("controller already started")
	}
	c.started = true
	c.startedAt = time.Now()
	c.phase = models.PhaseHeldSafe

	c.timer.ScheduleAfter(c.cfg.HeldSafeDuration, "held-safe expiry", c.activate)
	c.timer.ScheduleAfter(c.cfg.MinimumDwell, "minimum dwell evaluation", c.evaluateNow)
	c.timer.ScheduleAfter(c.cfg.SoftTimeout, "soft timeout", c.softTimeout)
	c.timer.ScheduleAfter(c.cfg.HardTimeout, "hard timeout", c.hardTimeout)
	heldCopy := c.deck.HeldSafe
	c.mu.Unlock()

	slog.Info("Controller.Start: session entering held-safe", "sessionID", c.sessionID, "workID", c.workID)
	c.emitPhase(models.PhaseHeldSafe, heldCopy)
	c.record("phase_held_safe", nil)
	return nil
}

// activate transitions held-safe to active and starts the poller and the
// default breath-cycle engine together.
func (c *Controller) activate() {
	c.mu.Lock()
	if c.tornDown || c.phase != models.PhaseHeldSafe {
		c.mu.Unlock()
		return
	}
	c.phase = models.PhaseActive
	c.activeAt = time.Now()

	engine, err := NewBreathEngine(models.BreathTimingFor(c.emotion), BreathCallbacks{
		OnStageChange:   c.forwardCycleTick,
		OnCycleComplete: c.onBreathCycleComplete,
	})
	if err != nil {
		// Unreachable with the built-in timing table; keep the session alive without ticks.
		slog.Error("Controller.activate: breath engine construction failed", "error", err, "sessionID", c.sessionID)
	} else {
		c.breath = engine
	}
	c.timer.ScheduleAfter(c.cfg.CopyRotateInterval, "copy rotation", c.rotateCopy)
	firstCopy := c.deck.Active[0]
	c.copyIdx = 1
	c.mu.Unlock()

	slog.Info("Controller.activate: session active", "sessionID", c.sessionID, "emotion", c.emotion)
	c.emitPhase(models.PhaseActive, firstCopy)
	c.record("phase_active", map[string]string{"emotion": string(c.emotion)})

	if err := c.poll.Start(c.workID, c.onPollUpdate, c.onPollerHardTimeout); err != nil {
		slog.Error("Controller.activate: poller start failed", "error", err, "sessionID", c.sessionID)
	}
	if engine != nil {
		engine.Start()
	}
}

// rotateCopy advances the rotating copy line while Active. Purely
// presentational; carries no control-flow weight.
func (c *Controller) rotateCopy() {
	c.mu.Lock()
	if c.tornDown || c.phase != models.PhaseActive {
		c.mu.Unlock()
		return
	}
	line := c.deck.Active[c.copyIdx%len(c.deck.Active)]
	c.copyIdx++
	if c.stillWorking {
		// Alternate the reassurance line in once the soft timeout has passed.
		if c.copyIdx%2 == 0 {
			line = c.deck.StillWorking
		}
	}
	c.timer.ScheduleAfter(c.cfg.CopyRotateInterval, "copy rotation", c.rotateCopy)
	c.mu.Unlock()

	c.emitPhase(models.PhaseActive, line)
}

// softTimeout raises the still-working indicator without altering control flow.
func (c *Controller) softTimeout() {
	c.mu.Lock()
	if c.tornDown || c.phase != models.PhaseActive || c.stillWorking {
		c.mu.Unlock()
		return
	}
	c.stillWorking = true
	line := c.deck.StillWorking
	c.mu.Unlock()

	slog.Info("Controller.softTimeout: still working", "sessionID", c.sessionID)
	c.emitPhase(models.PhaseActive, line)
	c.record("soft_timeout", nil)
}

// onPollUpdate receives every poller response, successful or not. The signal
// is terminal once ready and never reverts.
func (c *Controller) onPollUpdate(signal models.CompletionSignal) {
	c.mu.Lock()
	if c.tornDown || c.phase.IsTerminal() {
		c.mu.Unlock()
		return
	}
	c.signal = signal

	// A completed payload carrying dialogue tuples swaps the waiting
	// experience from breath to dialogue mode, once, while still Active.
	var startDialogue *DialogueSequencer
	if signal.Ready && signal.Payload.HasDialogue() && c.dialogue == nil && c.phase == models.PhaseActive {
		seq, err := NewDialogueSequencer(signal.Payload.Dialogue, c.cfg.DialogueTiming, DialogueCallbacks{
			OnSubPhase: c.forwardTupleSubPhase,
			OnComplete: c.onDialogueComplete,
		})
		if err != nil {
			// Protocol violation: fall back to breath mode rather than an
			// undefined sequencer state.
			slog.Error("Controller.onPollUpdate: dialogue rejected, staying in breath mode", "error", err, "sessionID", c.sessionID)
			c.mu.Unlock()
			c.record("dialogue_protocol_violation", map[string]string{"error": err.Error()})
			c.evaluateNow()
			return
		}
		c.dialogue = seq
		startDialogue = seq
		if c.breath != nil {
			c.breath.Stop()
		}
		slog.Info("Controller.onPollUpdate: switching to dialogue mode", "sessionID", c.sessionID)
	}
	act := c.evaluateLocked()
	c.mu.Unlock()

	if startDialogue != nil {
		startDialogue.Start()
	}
	if act != nil {
		act()
	}
}

// evaluateNow re-runs the transition evaluation outside any event context.
func (c *Controller) evaluateNow() {
	c.mu.Lock()
	act := c.evaluateLocked()
	c.mu.Unlock()
	if act != nil {
		act()
	}
}

// evaluateLocked decides whether the session may leave Active. Caller must
// hold c.mu; the returned closure (if any) must run after unlocking.
//
// Exit requires all of: minimum dwell met, and either the active sub-engine
// has finished its contract (dialogue complete, or enough breath cycles with
// the signal ready). Hard timeout overrides everything; it is the one place
// the minimum-dwell invariant deliberately yields to bounding total wait time.
func (c *Controller) evaluateLocked() func() {
	if c.tornDown || c.phase != models.PhaseActive {
		return nil
	}
	status := c.cfg.Thresholds().Evaluate(time.Since(c.startedAt))
	if status.HardTimeoutReached {
		return c.forceTimeoutLocked()
	}
	if !status.MinimumMet {
		return nil
	}

	var done bool
	if c.dialogue != nil {
		done = c.dialogueDone
	} else {
		cycles := 0
		if c.breath != nil {
			cycles = c.breath.CycleCount()
		}
		done = c.signal.Ready && cycles >= c.cfg.MinBreathCycles
	}
	if !done {
		return nil
	}
	return c.beginCompleteTransitionLocked()
}

// beginCompleteTransitionLocked stops every sub-system and enters the
// fixed-duration settle phase. Caller must hold c.mu.
func (c *Controller) beginCompleteTransitionLocked() func() {
	c.phase = models.PhaseCompleteTransition
	c.stopEnginesLocked()
	c.timer.ScheduleAfter(c.cfg.CompleteTransitionDuration, "complete transition expiry", c.finishReady)
	line := c.deck.CompleteTransition

	return func() {
		slog.Info("Controller: entering complete transition", "sessionID", c.sessionID)
		c.emitPhase(models.PhaseCompleteTransition, line)
		c.record("phase_complete_transition", nil)
	}
}

// finishReady makes the session terminal and delivers the payload exactly once.
func (c *Controller) finishReady() {
	c.mu.Lock()
	if c.tornDown || c.phase != models.PhaseCompleteTransition || c.readyFired {
		c.mu.Unlock()
		return
	}
	c.phase = models.PhaseReady
	c.readyFired = true
	payload := c.signal.Payload
	onReady := c.callbacks.OnReady
	c.mu.Unlock()

	slog.Info("Controller.finishReady: session ready", "sessionID", c.sessionID, "payload_set", payload != nil)
	c.emitPhase(models.PhaseReady, "")
	if onReady != nil {
		onReady(payload)
	}
	c.record("phase_ready", nil)
}

// RequestSkip handles a user skip. Permitted only after the configured delay
// from activation while Active; earlier requests are ignored. With the signal
// already ready a skip behaves identically to natural completion; otherwise
// the session goes straight to Ready and the backend work finishes out of
// band — the controller detaches its observation but never cancels the work.
// Returns whether the skip was honored.
func (c *Controller) RequestSkip() bool {
	c.mu.Lock()
	if c.tornDown || c.phase != models.PhaseActive {
		c.mu.Unlock()
		slog.Debug("Controller.RequestSkip: ignored outside Active", "sessionID", c.sessionID)
		return false
	}
	if time.Since(c.activeAt) < c.cfg.SkipDelay {
		c.mu.Unlock()
		slog.Debug("Controller.RequestSkip: ignored before skip delay", "sessionID", c.sessionID, "skipDelay", c.cfg.SkipDelay)
		return false
	}

	if c.signal.Ready {
		act := c.beginCompleteTransitionLocked()
		c.mu.Unlock()
		slog.Info("Controller.RequestSkip: honored with signal ready", "sessionID", c.sessionID)
		c.record("session_skipped", map[string]string{"signal_ready": "true"})
		if act != nil {
			act()
		}
		return true
	}

	c.phase = models.PhaseReady
	c.readyFired = true
	c.stopEnginesLocked()
	payload := c.signal.Payload
	onReady := c.callbacks.OnReady
	c.mu.Unlock()

	slog.Info("Controller.RequestSkip: honored before signal ready", "sessionID", c.sessionID)
	c.emitPhase(models.PhaseReady, "")
	if onReady != nil {
		onReady(payload)
	}
	c.record("session_skipped", map[string]string{"signal_ready": "false"})
	return true
}

// AcknowledgeDialogue forwards the user's proceed action to the dialogue
// sequencer. A no-op outside dialogue mode. Returns whether it was honored.
func (c *Controller) AcknowledgeDialogue() bool {
	c.mu.Lock()
	seq := c.dialogue
	c.mu.Unlock()
	if seq == nil {
		slog.Debug("Controller.AcknowledgeDialogue: no sequencer active", "sessionID", c.sessionID)
		return false
	}
	return seq.Acknowledge()
}

// hardTimeout fires from the controller's own wall-clock timer.
func (c *Controller) hardTimeout() {
	c.mu.Lock()
	act := c.forceTimeoutLocked()
	c.mu.Unlock()
	if act != nil {
		act()
	}
}

// onPollerHardTimeout fires if the poller exhausts its cumulative budget
// first. Both paths converge on the same idempotent transition.
func (c *Controller) onPollerHardTimeout() {
	c.hardTimeout()
}

// forceTimeoutLocked transitions Active to TimedOut, stopping everything.
// Caller must hold c.mu; the returned closure must run after unlocking.
func (c *Controller) forceTimeoutLocked() func() {
	if c.tornDown || c.phase != models.PhaseActive || c.timedOut {
		return nil
	}
	c.phase = models.PhaseTimedOut
	c.timedOut = true
	c.stopEnginesLocked()
	line := c.deck.TimedOut
	onTimedOut := c.callbacks.OnTimedOut

	return func() {
		slog.Warn("Controller: hard timeout, session timed out", "sessionID", c.sessionID, "workID", c.workID)
		c.emitPhase(models.PhaseTimedOut, line)
		if onTimedOut != nil {
			onTimedOut()
		}
		c.record("hard_timeout", nil)
	}
}

// Teardown cancels every timer, the in-flight poll, and the active sub-engine
// as a unit. Idempotent: tearing down twice, or after a terminal phase, is a
// no-op. No callbacks fire after Teardown returns.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	c.stopEnginesLocked()
	c.mu.Unlock()

	slog.Info("Controller.Teardown: session torn down", "sessionID", c.sessionID)
	c.record("session_teardown", nil)
}

// stopEnginesLocked stops the timers, poller, and sub-engines. Caller must
// hold c.mu. Safe against already-stopped components.
func (c *Controller) stopEnginesLocked() {
	c.timer.Stop()
	c.poll.Stop()
	if c.breath != nil {
		c.breath.Stop()
	}
	if c.dialogue != nil {
		c.dialogue.Stop()
	}
}

// forwardCycleTick bridges breath stage changes to the presentation callback.
func (c *Controller) forwardCycleTick(stage models.BreathStage, cycleCount int) {
	c.mu.Lock()
	suppress := c.tornDown || c.phase != models.PhaseActive
	cb := c.callbacks.OnCycleTick
	c.mu.Unlock()
	if suppress || cb == nil {
		return
	}
	cb(stage, cycleCount)
}

// onBreathCycleComplete re-evaluates the exit condition after each full cycle.
func (c *Controller) onBreathCycleComplete(count int) {
	slog.Debug("Controller: breath cycle complete", "sessionID", c.sessionID, "count", count)
	c.evaluateNow()
}

// forwardTupleSubPhase bridges dialogue sub-phase changes to the presentation callback.
func (c *Controller) forwardTupleSubPhase(tupleIndex int, subPhase models.TupleSubPhase, visibleText string) {
	c.mu.Lock()
	suppress := c.tornDown || c.phase != models.PhaseActive
	cb := c.callbacks.OnTupleSubPhase
	c.mu.Unlock()
	if suppress || cb == nil {
		return
	}
	cb(tupleIndex, subPhase, visibleText)
}

// onDialogueComplete records sequencer completion and re-evaluates.
func (c *Controller) onDialogueComplete() {
	c.mu.Lock()
	c.dialogueDone = true
	act := c.evaluateLocked()
	c.mu.Unlock()

	slog.Info("Controller: dialogue sequence complete", "sessionID", c.sessionID)
	if act != nil {
		act()
	}
}

// emitPhase invokes the phase-change callback if the session is still
// observable. Never called under c.mu.
func (c *Controller) emitPhase(phase models.Phase, contextualCopy string) {
	c.mu.Lock()
	suppress := c.tornDown
	cb := c.callbacks.OnPhaseChange
	c.mu.Unlock()
	if suppress || cb == nil {
		return
	}
	cb(phase, contextualCopy)
}

// record sends a fire-and-forget telemetry event. Delivery failures are logged
// and otherwise ignored.
func (c *Controller) record(name string, detail map[string]string) {
	if c.telemetry == nil {
		return
	}
	ev := models.TelemetryEvent{
		Name:      name,
		SessionID: c.sessionID,
		ElapsedMS: time.Since(c.startedAt).Milliseconds(),
		Detail:    detail,
		Time:      time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.telemetry.Record(ctx, ev); err != nil {
			slog.Warn("Controller.record: telemetry delivery failed", "error", err, "event", name, "sessionID", c.sessionID)
		}
	}()
}

// Phase returns the current top-level phase.
func (c *Controller) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a point-in-time view of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:    c.sessionID,
		WorkID:       c.workID,
		Phase:        c.phase,
		Mode:         ModeBreath,
		StillWorking: c.stillWorking,
		SignalReady:  c.signal.Ready,
	}
	if c.started {
		snap.ElapsedMS = time.Since(c.startedAt).Milliseconds()
	}
	if c.breath != nil {
		snap.CycleCount = c.breath.CycleCount()
	}
	if c.dialogue != nil {
		snap.Mode = ModeDialogue
		snap.TupleIndex = c.dialogue.TupleIndex()
		snap.SubPhase = c.dialogue.SubPhase()
	}
	return snap
}
