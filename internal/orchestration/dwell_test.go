package orchestration

import (
	"testing"
	"time"
)

func TestDwellThresholdsValidate(t *testing.T) {
	good := DwellThresholds{Minimum: 8 * time.Second, Soft: 45 * time.Second, Hard: 150 * time.Second}
	if err := good.Validate(); err != nil {
		t.Errorf("Expected valid thresholds to pass, got %v", err)
	}

	tests := []struct {
		name string
		th   DwellThresholds
	}{
		{"zero minimum", DwellThresholds{Minimum: 0, Soft: time.Second, Hard: 2 * time.Second}},
		{"minimum above soft", DwellThresholds{Minimum: 3 * time.Second, Soft: 2 * time.Second, Hard: 4 * time.Second}},
		{"minimum equals soft", DwellThresholds{Minimum: 2 * time.Second, Soft: 2 * time.Second, Hard: 4 * time.Second}},
		{"soft above hard", DwellThresholds{Minimum: time.Second, Soft: 5 * time.Second, Hard: 4 * time.Second}},
	}
	for _, tt := range tests {
		if err := tt.th.Validate(); err == nil {
			t.Errorf("Expected error for %s, got nil", tt.name)
		}
	}
}

func TestDwellThresholdsEvaluate(t *testing.T) {
	th := DwellThresholds{Minimum: 8 * time.Second, Soft: 45 * time.Second, Hard: 150 * time.Second}

	tests := []struct {
		elapsed time.Duration
		want    DwellStatus
	}{
		{0, DwellStatus{}},
		{7 * time.Second, DwellStatus{}},
		{8 * time.Second, DwellStatus{MinimumMet: true}},
		{44 * time.Second, DwellStatus{MinimumMet: true}},
		{45 * time.Second, DwellStatus{MinimumMet: true, SoftTimeoutReached: true}},
		{149 * time.Second, DwellStatus{MinimumMet: true, SoftTimeoutReached: true}},
		{150 * time.Second, DwellStatus{MinimumMet: true, SoftTimeoutReached: true, HardTimeoutReached: true}},
		{time.Hour, DwellStatus{MinimumMet: true, SoftTimeoutReached: true, HardTimeoutReached: true}},
	}
	for _, tt := range tests {
		if got := th.Evaluate(tt.elapsed); got != tt.want {
			t.Errorf("Evaluate(%v) = %+v, expected %+v", tt.elapsed, got, tt.want)
		}
	}
}

func TestDwellEvaluateIsPure(t *testing.T) {
	th := DwellThresholds{Minimum: time.Second, Soft: 2 * time.Second, Hard: 3 * time.Second}
	first := th.Evaluate(90 * time.Minute)
	second := th.Evaluate(500 * time.Millisecond)
	if second.MinimumMet || second.SoftTimeoutReached || second.HardTimeoutReached {
		t.Errorf("Expected evaluation to depend only on the given elapsed time, got %+v after %+v", second, first)
	}
}
