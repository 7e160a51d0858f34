package orchestration

import (
	"fmt"
	"time"
)

// DwellThresholds holds the three wall-clock thresholds the controller
// evaluates elapsed session time against. Captured once at session start
// and never mutated.
type DwellThresholds struct {
	Minimum time.Duration
	Soft    time.Duration
	Hard    time.Duration
}

// DwellStatus is the result of evaluating elapsed time against the thresholds.
type DwellStatus struct {
	MinimumMet         bool
	SoftTimeoutReached bool
	HardTimeoutReached bool
}

// Validate checks the required ordering: minimum < soft < hard, all positive.
func (t DwellThresholds) Validate() error {
	if t.Minimum <= 0 || t.Soft <= 0 || t.Hard <= 0 {
		return fmt.Errorf("dwell thresholds must be positive: minimum=%v soft=%v hard=%v", t.Minimum, t.Soft, t.Hard)
	}
	if t.Minimum >= t.Soft {
		return fmt.Errorf("minimum dwell %v must be below soft timeout %v", t.Minimum, t.Soft)
	}
	if t.Soft >= t.Hard {
		return fmt.Errorf("soft timeout %v must be below hard timeout %v", t.Soft, t.Hard)
	}
	return nil
}

// Evaluate is a pure function of elapsed wall-clock time. The controller calls
// it on every tick; it never mutates session state. Timeouts are recomputed
// from timestamps each evaluation rather than accumulated from tick counts, so
// they stay correct when the host throttles timers.
func (t DwellThresholds) Evaluate(elapsed time.Duration) DwellStatus {
	return DwellStatus{
		MinimumMet:         elapsed >= t.Minimum,
		SoftTimeoutReached: elapsed >= t.Soft,
		HardTimeoutReached: elapsed >= t.Hard,
	}
}
