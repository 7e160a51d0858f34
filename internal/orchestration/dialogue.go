package orchestration

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// DialogueTiming holds the fixed reveal schedule for one dialogue tuple.
type DialogueTiming struct {
	// InnerVoiceHold is how long the inner-voice line stays visible before hiding.
	InnerVoiceHold time.Duration
	// RegulateGap is the pause between hiding the inner voice and revealing the regulate line.
	RegulateGap time.Duration
	// AmuseDelay is the pause between the regulate and amuse reveals.
	AmuseDelay time.Duration
	// ProceedDelay is the pause before the proceed affordance becomes available.
	ProceedDelay time.Duration
	// AdvanceDelay is the pause after acknowledgment before the next tuple loads.
	AdvanceDelay time.Duration
}

// DefaultDialogueTiming returns the production reveal schedule.
func DefaultDialogueTiming() DialogueTiming {
	return DialogueTiming{
		InnerVoiceHold: 3500 * time.Millisecond,
		RegulateGap:    600 * time.Millisecond,
		AmuseDelay:     2500 * time.Millisecond,
		ProceedDelay:   2 * time.Second,
		AdvanceDelay:   800 * time.Millisecond,
	}
}

// DialogueCallbacks are the upward notifications a DialogueSequencer emits.
// Either callback may be nil. Callbacks are invoked outside the sequencer lock.
type DialogueCallbacks struct {
	// OnSubPhase fires on every sub-phase change with the text that just became visible.
	OnSubPhase func(tupleIndex int, subPhase models.TupleSubPhase, visibleText string)
	// OnComplete fires exactly once, after the last tuple is acknowledged.
	OnComplete func()
}

// revealStep is one entry of the per-tuple choreography: wait delay, then
// enter subPhase. The schedule is data executed by a single loop rather than
// nested timer closures.
type revealStep struct {
	delay    time.Duration
	subPhase models.TupleSubPhase
}

// DialogueSequencer plays an ordered list of exactly three 3-part dialogue
// tuples through a five-stage reveal choreography, advancing between tuples
// only on explicit user acknowledgment.
type DialogueSequencer struct {
	tuples       []models.DialogueTuple
	steps        []revealStep
	advanceDelay time.Duration
	callbacks    DialogueCallbacks

	mu         sync.Mutex
	tupleIndex int
	subPhase   models.TupleSubPhase
	completed  bool
	stopped    bool
	timer      *time.Timer
}

// NewDialogueSequencer validates the tuple list against the fixed-shape
// contract and builds the sequencer. A list whose length is not 3, or any
// tuple with an empty part, is a protocol violation and fails fast here.
func NewDialogueSequencer(tuples []models.DialogueTuple, timing DialogueTiming, callbacks DialogueCallbacks) (*DialogueSequencer, error) {
	if err := models.ValidateDialogue(tuples); err != nil {
		slog.Error("DialogueSequencer construction rejected", "error", err, "tuples", len(tuples))
		return nil, err
	}
	steps := []revealStep{
		{delay: 0, subPhase: models.TupleSubPhaseInnerVoice},
		{delay: timing.InnerVoiceHold + timing.RegulateGap, subPhase: models.TupleSubPhaseRegulate},
		{delay: timing.AmuseDelay, subPhase: models.TupleSubPhaseAmuse},
		{delay: timing.ProceedDelay, subPhase: models.TupleSubPhaseProceed},
	}
	slog.Debug("Creating DialogueSequencer", "tuples", len(tuples))
	return &DialogueSequencer{
		tuples:       tuples,
		steps:        steps,
		advanceDelay: timing.AdvanceDelay,
		callbacks:    callbacks,
		subPhase:     models.TupleSubPhaseIdle,
	}, nil
}

// Start begins the choreography for the first tuple. Starting an already
// started or stopped sequencer is a no-op.
func (s *DialogueSequencer) Start() {
	s.mu.Lock()
	if s.stopped || s.completed || s.subPhase != models.TupleSubPhaseIdle {
		s.mu.Unlock()
		slog.Debug("DialogueSequencer Start ignored", "subPhase", s.subPhase, "stopped", s.stopped)
		return
	}
	s.mu.Unlock()
	slog.Info("DialogueSequencer started", "tuples", len(s.tuples))
	s.runStep(0)
}

// runStep enters the choreography step at index i for the current tuple and
// schedules the next one.
func (s *DialogueSequencer) runStep(i int) {
	s.mu.Lock()
	if s.stopped || s.completed {
		s.mu.Unlock()
		return
	}
	step := s.steps[i]
	s.subPhase = step.subPhase
	idx := s.tupleIndex
	text := s.visibleTextLocked(step.subPhase)
	if i+1 < len(s.steps) {
		next := i + 1
		s.timer = time.AfterFunc(s.steps[next].delay, func() { s.runStep(next) })
	} else {
		// Proceed reached: the sequencer never auto-advances past it.
		s.timer = nil
	}
	onSubPhase := s.callbacks.OnSubPhase
	s.mu.Unlock()

	slog.Debug("DialogueSequencer sub-phase", "tupleIndex", idx, "subPhase", step.subPhase)
	if onSubPhase != nil {
		onSubPhase(idx, step.subPhase, text)
	}
}

// visibleTextLocked returns the tuple text that becomes visible in the given
// sub-phase. Caller must hold s.mu.
func (s *DialogueSequencer) visibleTextLocked(sub models.TupleSubPhase) string {
	t := s.tuples[s.tupleIndex]
	switch sub {
	case models.TupleSubPhaseInnerVoice:
		return t.InnerVoice
	case models.TupleSubPhaseRegulate:
		return t.Regulate
	case models.TupleSubPhaseAmuse:
		return t.Amuse
	default:
		return ""
	}
}

// Acknowledge records the user's proceed action. It is honored only while the
// proceed affordance is available; earlier or repeated acknowledgments are
// no-ops. Returns whether the acknowledgment was honored.
func (s *DialogueSequencer) Acknowledge() bool {
	s.mu.Lock()
	if s.stopped || s.completed || s.subPhase != models.TupleSubPhaseProceed {
		sub := s.subPhase
		s.mu.Unlock()
		slog.Debug("DialogueSequencer Acknowledge ignored", "subPhase", sub, "completed", s.completed)
		return false
	}
	s.subPhase = models.TupleSubPhaseTransitioning
	idx := s.tupleIndex
	last := idx == len(s.tuples)-1
	s.timer = time.AfterFunc(s.advanceDelay, func() { s.advanceTuple(last) })
	onSubPhase := s.callbacks.OnSubPhase
	s.mu.Unlock()

	slog.Info("DialogueSequencer acknowledged", "tupleIndex", idx, "last", last)
	if onSubPhase != nil {
		// Regulate and amuse lines hide while transitioning.
		onSubPhase(idx, models.TupleSubPhaseTransitioning, "")
	}
	return true
}

// advanceTuple loads the next tuple or signals overall completion.
func (s *DialogueSequencer) advanceTuple(last bool) {
	s.mu.Lock()
	if s.stopped || s.completed {
		s.mu.Unlock()
		return
	}
	if last {
		s.completed = true
		s.tupleIndex = len(s.tuples)
		onComplete := s.callbacks.OnComplete
		s.mu.Unlock()
		slog.Info("DialogueSequencer completed")
		if onComplete != nil {
			onComplete()
		}
		return
	}
	s.tupleIndex++
	s.mu.Unlock()
	s.runStep(0)
}

// Stop cancels any pending choreography timer. Idempotent; no callbacks fire
// after Stop returns.
func (s *DialogueSequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	slog.Info("DialogueSequencer stopped", "tupleIndex", s.tupleIndex, "completed", s.completed)
}

// Done reports whether every tuple has been acknowledged.
func (s *DialogueSequencer) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// TupleIndex returns the index of the tuple currently playing. Once complete
// it equals the tuple count.
func (s *DialogueSequencer) TupleIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tupleIndex
}

// SubPhase returns the current reveal sub-phase.
func (s *DialogueSequencer) SubPhase() models.TupleSubPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subPhase
}
