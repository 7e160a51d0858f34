package orchestration

import (
	"fmt"
	"time"
)

// Default orchestration constants. Every value can be overridden through Config.
const (
	// DefaultHeldSafeDuration is the length of the introductory phase.
	DefaultHeldSafeDuration = 4 * time.Second
	// DefaultMinimumDwell is the minimum wall-clock time a session stays in Active.
	DefaultMinimumDwell = 8 * time.Second
	// DefaultSoftTimeout is when the still-working indicator is raised.
	DefaultSoftTimeout = 45 * time.Second
	// DefaultHardTimeout bounds the total wait before the session is forced out.
	DefaultHardTimeout = 150 * time.Second
	// DefaultPollInterval is the enrichment status polling cadence.
	DefaultPollInterval = 3 * time.Second
	// DefaultPollJitter spreads concurrent sessions' polls apart.
	DefaultPollJitter = 400 * time.Millisecond
	// DefaultSkipDelay is how long after entering Active the skip affordance unlocks.
	DefaultSkipDelay = 12 * time.Second
	// DefaultCompleteTransitionDuration lets the ready message settle.
	DefaultCompleteTransitionDuration = 2 * time.Second
	// DefaultCopyRotateInterval is the rotating-copy cadence while Active.
	DefaultCopyRotateInterval = 7 * time.Second
	// DefaultMinBreathCycles is how many full cycles must elapse before
	// breath-mode completion is honored.
	DefaultMinBreathCycles = 3
)

// Config carries every constant the controller is parameterized by.
type Config struct {
	HeldSafeDuration           time.Duration
	MinimumDwell               time.Duration
	SoftTimeout                time.Duration
	HardTimeout                time.Duration
	PollInterval               time.Duration
	PollJitter                 time.Duration
	SkipDelay                  time.Duration
	CompleteTransitionDuration time.Duration
	CopyRotateInterval         time.Duration
	MinBreathCycles            int
	DialogueTiming             DialogueTiming
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		HeldSafeDuration:           DefaultHeldSafeDuration,
		MinimumDwell:               DefaultMinimumDwell,
		SoftTimeout:                DefaultSoftTimeout,
		HardTimeout:                DefaultHardTimeout,
		PollInterval:               DefaultPollInterval,
		PollJitter:                 DefaultPollJitter,
		SkipDelay:                  DefaultSkipDelay,
		CompleteTransitionDuration: DefaultCompleteTransitionDuration,
		CopyRotateInterval:         DefaultCopyRotateInterval,
		MinBreathCycles:            DefaultMinBreathCycles,
		DialogueTiming:             DefaultDialogueTiming(),
	}
}

// Thresholds returns the dwell-time guard view of the config.
func (c Config) Thresholds() DwellThresholds {
	return DwellThresholds{Minimum: c.MinimumDwell, Soft: c.SoftTimeout, Hard: c.HardTimeout}
}

// Validate checks the cross-field constraints the phase invariants rely on.
// In particular skip honored before minimum dwell would break the Ready
// invariant, so SkipDelay must not undercut MinimumDwell.
func (c Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.HeldSafeDuration <= 0 {
		return fmt.Errorf("held-safe duration must be positive: %v", c.HeldSafeDuration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %v", c.PollInterval)
	}
	if c.SkipDelay < c.MinimumDwell {
		return fmt.Errorf("skip delay %v must not undercut minimum dwell %v", c.SkipDelay, c.MinimumDwell)
	}
	if c.CompleteTransitionDuration <= 0 {
		return fmt.Errorf("complete-transition duration must be positive: %v", c.CompleteTransitionDuration)
	}
	if c.CopyRotateInterval <= 0 {
		return fmt.Errorf("copy rotation interval must be positive: %v", c.CopyRotateInterval)
	}
	if c.MinBreathCycles < 0 {
		return fmt.Errorf("minimum breath cycles cannot be negative: %d", c.MinBreathCycles)
	}
	return nil
}
