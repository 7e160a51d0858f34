// Package models defines the core data structures for the Interlude Engine.
//
// It includes the orchestration phase vocabulary, the enrichment payload shape,
// and the dialogue tuple wire format, which are shared across modules.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Phase represents the top-level state of an orchestration session.
type Phase string

const (
	// PhaseHeldSafe is the fixed-duration introductory phase.
	PhaseHeldSafe Phase = "held_safe"
	// PhaseActive is the main waiting phase during which sub-engines run.
	PhaseActive Phase = "active"
	// PhaseCompleteTransition lets the ready message settle before PhaseReady.
	PhaseCompleteTransition Phase = "complete_transition"
	// PhaseReady is the successful terminal phase.
	PhaseReady Phase = "ready"
	// PhaseTimedOut is the hard-timeout terminal phase, reachable only from PhaseActive.
	PhaseTimedOut Phase = "timed_out"
)

// phaseRank orders phases for the no-regression invariant. PhaseTimedOut shares
// the terminal rank with PhaseReady.
var phaseRank = map[Phase]int{
	PhaseHeldSafe:           0,
	PhaseActive:             1,
	PhaseCompleteTransition: 2,
	PhaseReady:              3,
	PhaseTimedOut:           3,
}

// Rank returns the ordering position of the phase. Unknown phases rank -1.
func (p Phase) Rank() int {
	if r, ok := phaseRank[p]; ok {
		return r
	}
	return -1
}

// IsTerminal reports whether the phase is one of the two terminal phases.
func (p Phase) IsTerminal() bool {
	return p == PhaseReady || p == PhaseTimedOut
}

// BreathStage represents one stage of the four-stage breath cycle.
type BreathStage string

const (
	BreathStageInhale BreathStage = "inhale"
	BreathStageHold1  BreathStage = "hold1"
	BreathStageExhale BreathStage = "exhale"
	BreathStageHold2  BreathStage = "hold2"
)

// Next returns the stage that follows s in the fixed cyclic order.
func (s BreathStage) Next() BreathStage {
	switch s {
	case BreathStageInhale:
		return BreathStageHold1
	case BreathStageHold1:
		return BreathStageExhale
	case BreathStageExhale:
		return BreathStageHold2
	default:
		return BreathStageInhale
	}
}

// TupleSubPhase represents the reveal choreography position within one dialogue tuple.
type TupleSubPhase string

const (
	TupleSubPhaseIdle          TupleSubPhase = "idle"
	TupleSubPhaseInnerVoice    TupleSubPhase = "inner_voice"
	TupleSubPhaseRegulate      TupleSubPhase = "regulate"
	TupleSubPhaseAmuse         TupleSubPhase = "amuse"
	TupleSubPhaseProceed       TupleSubPhase = "proceed"
	TupleSubPhaseTransitioning TupleSubPhase = "transitioning"
)

// EmotionCategory classifies a reflection for breath-cycle pacing.
type EmotionCategory string

const (
	EmotionNeutral EmotionCategory = "neutral"
	EmotionAnxious EmotionCategory = "anxious"
	EmotionSad     EmotionCategory = "sad"
	EmotionAngry   EmotionCategory = "angry"
	EmotionJoyful  EmotionCategory = "joyful"
)

// IsValidEmotionCategory checks if the given emotion category is supported.
func IsValidEmotionCategory(e EmotionCategory) bool {
	switch e {
	case EmotionNeutral, EmotionAnxious, EmotionSad, EmotionAngry, EmotionJoyful:
		return true
	default:
		return false
	}
}

// BreathTiming holds the four stage durations of one breath cycle.
// Supplied once at engine construction and immutable afterwards.
type BreathTiming struct {
	Inhale time.Duration `json:"inhale"`
	Hold1  time.Duration `json:"hold1"`
	Exhale time.Duration `json:"exhale"`
	Hold2  time.Duration `json:"hold2"`
}

// Validate checks that every stage duration is positive.
func (t BreathTiming) Validate() error {
	if t.Inhale <= 0 || t.Hold1 <= 0 || t.Exhale <= 0 || t.Hold2 <= 0 {
		return ErrInvalidBreathTiming
	}
	return nil
}

// StageDuration returns the configured duration for the given stage.
func (t BreathTiming) StageDuration(s BreathStage) time.Duration {
	switch s {
	case BreathStageInhale:
		return t.Inhale
	case BreathStageHold1:
		return t.Hold1
	case BreathStageExhale:
		return t.Exhale
	default:
		return t.Hold2
	}
}

// breathTimings maps each emotion category to its breathing profile.
// Anxious reflections get an extended-exhale (4-7-8 style) cycle; the
// rest are variations on box breathing.
var breathTimings = map[EmotionCategory]BreathTiming{
	EmotionNeutral: {Inhale: 4 * time.Second, Hold1: 4 * time.Second, Exhale: 4 * time.Second, Hold2: 4 * time.Second},
	EmotionAnxious: {Inhale: 4 * time.Second, Hold1: 7 * time.Second, Exhale: 8 * time.Second, Hold2: 2 * time.Second},
	EmotionSad:     {Inhale: 5 * time.Second, Hold1: 2 * time.Second, Exhale: 7 * time.Second, Hold2: 2 * time.Second},
	EmotionAngry:   {Inhale: 4 * time.Second, Hold1: 4 * time.Second, Exhale: 6 * time.Second, Hold2: 2 * time.Second},
	EmotionJoyful:  {Inhale: 3 * time.Second, Hold1: 3 * time.Second, Exhale: 3 * time.Second, Hold2: 3 * time.Second},
}

// BreathTimingFor returns the breathing profile for the given emotion category.
// Unknown categories fall back to the neutral profile.
func BreathTimingFor(e EmotionCategory) BreathTiming {
	if t, ok := breathTimings[e]; ok {
		return t
	}
	return breathTimings[EmotionNeutral]
}

// TuplePartCount is the fixed number of ordered parts in a dialogue tuple.
const TuplePartCount = 3

// TupleListLength is the fixed number of tuples a session's dialogue holds.
const TupleListLength = 3

// Error variables for better error handling and testability
var (
	ErrEmptyWorkID         = errors.New("work ID cannot be empty")
	ErrInvalidBreathTiming = errors.New("breath stage durations must be positive")
	ErrTupleListLength     = errors.New("dialogue requires exactly 3 tuples")
	ErrTuplePartCount      = errors.New("dialogue tuple requires exactly 3 parts")
	ErrTuplePartEmpty      = errors.New("dialogue tuple parts cannot be empty")
	ErrSessionNotFound     = errors.New("session not found")
)

// DialogueTuple is a fixed 3-part dialogue record: an inner-voice line shown
// briefly, a regulation line that persists, and an amusement line shown
// alongside it. On the wire it is exactly a 3-element JSON string array.
type DialogueTuple struct {
	InnerVoice string
	Regulate   string
	Amuse      string
}

// UnmarshalJSON decodes a tuple from a 3-element JSON string array.
// Any other array length is a protocol violation.
func (t *DialogueTuple) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("dialogue tuple must be a string array: %w", err)
	}
	if len(parts) != TuplePartCount {
		return fmt.Errorf("%w: got %d", ErrTuplePartCount, len(parts))
	}
	t.InnerVoice, t.Regulate, t.Amuse = parts[0], parts[1], parts[2]
	return nil
}

// MarshalJSON encodes the tuple as a 3-element JSON string array.
func (t DialogueTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{t.InnerVoice, t.Regulate, t.Amuse})
}

// Validate checks that every part of the tuple is non-empty.
func (t DialogueTuple) Validate() error {
	if t.InnerVoice == "" || t.Regulate == "" || t.Amuse == "" {
		return ErrTuplePartEmpty
	}
	return nil
}

// ValidateDialogue checks a tuple list against the fixed-shape contract:
// exactly 3 tuples, each with 3 non-empty parts.
func ValidateDialogue(tuples []DialogueTuple) error {
	if len(tuples) != TupleListLength {
		return fmt.Errorf("%w: got %d", ErrTupleListLength, len(tuples))
	}
	for i, t := range tuples {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tuple %d: %w", i, err)
		}
	}
	return nil
}

// EnrichmentPayload is the result of the external enrichment computation.
type EnrichmentPayload struct {
	Emotion   EmotionCategory `json:"emotion,omitempty"`
	Sentiment float64         `json:"sentiment,omitempty"`
	Poem      string          `json:"poem,omitempty"`
	Dialogue  []DialogueTuple `json:"dialogue,omitempty"`
}

// HasDialogue reports whether the payload carries tuple-based content.
func (p *EnrichmentPayload) HasDialogue() bool {
	return p != nil && len(p.Dialogue) > 0
}

// WorkStatus is the enrichment service's reported state for a unit of work.
type WorkStatus string

const (
	WorkStatusPending  WorkStatus = "pending"
	WorkStatusComplete WorkStatus = "complete"
)

// StatusResult is one response from the enrichment status endpoint.
type StatusResult struct {
	Status  WorkStatus         `json:"status"`
	Payload *EnrichmentPayload `json:"payload,omitempty"`
}

// CompletionSignal is the poller-owned view of enrichment progress.
// It starts {Ready:false, Payload:nil} and is terminal once Ready; it never reverts.
type CompletionSignal struct {
	Ready   bool               `json:"ready"`
	Payload *EnrichmentPayload `json:"payload,omitempty"`
	Erred   bool               `json:"erred"`
}

// Merge folds a new observation into the signal, preserving the
// terminal-once-ready contract. Transport errors only set Erred.
func (s CompletionSignal) Merge(result *StatusResult, transportErr bool) CompletionSignal {
	if s.Ready {
		return s
	}
	if transportErr {
		s.Erred = true
		return s
	}
	s.Erred = false
	if result != nil && result.Status == WorkStatusComplete {
		s.Ready = true
		s.Payload = result.Payload
	}
	return s
}
