// Package models defines event structures shared between the orchestration
// core, the telemetry sink, and the presentation boundary.
package models

import "time"

// SessionEventType identifies the kind of outbound session event.
type SessionEventType string

const (
	// SessionEventPhase carries a top-level phase change or a contextual-copy rotation.
	SessionEventPhase SessionEventType = "phase"
	// SessionEventCycle carries a breath stage tick (breath mode only).
	SessionEventCycle SessionEventType = "cycle"
	// SessionEventTuple carries a dialogue sub-phase change (dialogue mode only).
	SessionEventTuple SessionEventType = "tuple"
	// SessionEventReady carries the enrichment payload on successful completion.
	SessionEventReady SessionEventType = "ready"
	// SessionEventTimedOut signals hard-timeout termination.
	SessionEventTimedOut SessionEventType = "timed_out"
)

// SessionEvent is one outbound callback flattened for the presentation layer.
// Only the fields relevant to the event type are populated.
type SessionEvent struct {
	Type           SessionEventType   `json:"type"`
	SessionID      string             `json:"session_id"`
	Phase          Phase              `json:"phase,omitempty"`
	ContextualCopy string             `json:"contextual_copy,omitempty"`
	StillWorking   bool               `json:"still_working,omitempty"`
	Stage          BreathStage        `json:"stage,omitempty"`
	CycleCount     int                `json:"cycle_count,omitempty"`
	TupleIndex     int                `json:"tuple_index,omitempty"`
	SubPhase       TupleSubPhase      `json:"sub_phase,omitempty"`
	VisibleText    string             `json:"visible_text,omitempty"`
	Payload        *EnrichmentPayload `json:"payload,omitempty"`
	Time           time.Time          `json:"time"`
}

// TelemetryEvent is one fire-and-forget structured event for the telemetry sink.
type TelemetryEvent struct {
	Name      string            `json:"name"`
	SessionID string            `json:"session_id"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Detail    map[string]string `json:"detail,omitempty"`
	Time      time.Time         `json:"time"`
}

// TimerInfo describes one active timer for introspection endpoints.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}
