package orchestration

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// BreathCallbacks are the upward notifications a BreathEngine emits. Either
// callback may be nil. Callbacks are invoked outside the engine lock.
type BreathCallbacks struct {
	// OnStageChange fires on every stage transition, including the initial inhale.
	OnStageChange func(stage models.BreathStage, cycleCount int)
	// OnCycleComplete fires once per full traversal of the four stages.
	OnCycleComplete func(count int)
}

// BreathEngine is the four-stage looping timer driving the breathing animation:
// inhale, hold, exhale, hold, repeating until stopped. It knows nothing about
// completion signals or dwell time; the controller decides when enough cycles
// have elapsed and stops it.
type BreathEngine struct {
	timing    models.BreathTiming
	callbacks BreathCallbacks

	mu         sync.Mutex
	stage      models.BreathStage
	cycleCount int
	running    bool
	stopped    bool
	timer      *time.Timer
}

// NewBreathEngine creates an engine for the given timing profile.
// The profile is immutable for the life of the engine.
func NewBreathEngine(timing models.BreathTiming, callbacks BreathCallbacks) (*BreathEngine, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("Creating BreathEngine", "inhale", timing.Inhale, "hold1", timing.Hold1, "exhale", timing.Exhale, "hold2", timing.Hold2)
	return &BreathEngine{timing: timing, callbacks: callbacks}, nil
}

// Start begins the cycle at the inhale stage. Starting an already started or
// stopped engine is a no-op.
func (e *BreathEngine) Start() {
	e.mu.Lock()
	if e.running || e.stopped {
		e.mu.Unlock()
		slog.Debug("BreathEngine Start ignored", "running", e.running, "stopped", e.stopped)
		return
	}
	e.running = true
	e.stage = models.BreathStageInhale
	e.timer = time.AfterFunc(e.timing.StageDuration(e.stage), e.advance)
	onStage := e.callbacks.OnStageChange
	count := e.cycleCount
	e.mu.Unlock()

	slog.Info("BreathEngine started", "stage", models.BreathStageInhale)
	if onStage != nil {
		onStage(models.BreathStageInhale, count)
	}
}

// advance moves to the next stage when the current stage's timer fires.
func (e *BreathEngine) advance() {
	e.mu.Lock()
	if e.stopped || !e.running {
		e.mu.Unlock()
		return
	}
	completedCycle := e.stage == models.BreathStageHold2
	e.stage = e.stage.Next()
	if completedCycle {
		e.cycleCount++
	}
	stage := e.stage
	count := e.cycleCount
	e.timer = time.AfterFunc(e.timing.StageDuration(stage), e.advance)
	onStage := e.callbacks.OnStageChange
	onCycle := e.callbacks.OnCycleComplete
	e.mu.Unlock()

	slog.Debug("BreathEngine stage transition", "stage", stage, "cycleCount", count)
	if onStage != nil {
		onStage(stage, count)
	}
	if completedCycle && onCycle != nil {
		onCycle(count)
	}
}

// Stop cancels the pending stage timer. Stopping mid-stage is permitted; no
// further callbacks fire after Stop returns. Idempotent.
func (e *BreathEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	e.running = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	slog.Info("BreathEngine stopped", "cycleCount", e.cycleCount)
}

// Stage returns the current breath stage.
func (e *BreathEngine) Stage() models.BreathStage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

// CycleCount returns the number of fully completed cycles.
func (e *BreathEngine) CycleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycleCount
}
