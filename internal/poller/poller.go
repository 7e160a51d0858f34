// Package poller implements the enrichment status poller.
//
// It periodically asks the enrichment collaborator whether a unit of work is
// finished, with jittered intervals, a single in-flight check, and cumulative
// hard-timeout accounting. It owns no business logic beyond retry and timeout
// bookkeeping; the interlude controller is its only subscriber.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
	"github.com/MossHollow/InterludeEngine/internal/util"
)

// StatusChecker issues one status check against the enrichment collaborator.
// Implementations must be safe to call repeatedly and respond within a bounded
// time; the poller treats errors and overruns as transient misses.
type StatusChecker interface {
	CheckStatus(ctx context.Context, workID string) (*models.StatusResult, error)
}

// Config parameterizes a Poller.
type Config struct {
	// Interval is the polling cadence.
	Interval time.Duration
	// Jitter shifts each tick by a uniform random offset in [-Jitter, +Jitter]
	// to avoid synchronized load spikes across concurrent sessions.
	Jitter time.Duration
	// HardTimeout bounds cumulative polling; exceeding it fires the hard-timeout
	// callback exactly once and implicitly stops the poller.
	HardTimeout time.Duration
	// CheckTimeout bounds a single status check. Zero defaults to Interval.
	CheckTimeout time.Duration
}

// Poller drives periodic status checks for one unit of work.
type Poller struct {
	checker StatusChecker
	cfg     Config

	mu            sync.Mutex
	workID        string
	running       bool
	inFlight      bool
	hardFired     bool
	startedAt     time.Time
	timer         *time.Timer
	cancelCheck   context.CancelFunc
	signal        models.CompletionSignal
	onUpdate      func(models.CompletionSignal)
	onHardTimeout func()
}

// New creates a poller for the given checker.
func New(checker StatusChecker, cfg Config) *Poller {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = cfg.Interval
	}
	slog.Debug("Creating Poller", "interval", cfg.Interval, "jitter", cfg.Jitter, "hardTimeout", cfg.HardTimeout)
	return &Poller{checker: checker, cfg: cfg}
}

// Start begins issuing status checks for workID, invoking onUpdate on every
// response, successful or not. Starting a running or stopped poller is a no-op.
func (p *Poller) Start(workID string, onUpdate func(models.CompletionSignal), onHardTimeout func()) error {
	if workID == "" {
		return models.ErrEmptyWorkID
	}
	p.mu.Lock()
	if p.running || p.hardFired {
		p.mu.Unlock()
		slog.Debug("Poller Start ignored", "workID", workID, "running", p.running)
		return errors.New("poller already started")
	}
	p.workID = workID
	p.running = true
	p.startedAt = time.Now()
	p.onUpdate = onUpdate
	p.onHardTimeout = onHardTimeout
	p.scheduleLocked()
	p.mu.Unlock()

	slog.Info("Poller started", "workID", workID, "interval", p.cfg.Interval)
	return nil
}

// scheduleLocked arms the next tick. Caller must hold p.mu.
func (p *Poller) scheduleLocked() {
	delay := util.JitterDuration(p.cfg.Interval, p.cfg.Jitter)
	p.timer = time.AfterFunc(delay, p.tick)
}

// tick runs on each interval expiry. A tick that fires while a check is still
// outstanding is skipped, not queued.
func (p *Poller) tick() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	// Wall-clock hard timeout accounting, recomputed from the start timestamp.
	if p.cfg.HardTimeout > 0 && time.Since(p.startedAt) >= p.cfg.HardTimeout {
		p.running = false
		p.hardFired = true
		if p.cancelCheck != nil {
			p.cancelCheck()
		}
		onHard := p.onHardTimeout
		workID := p.workID
		p.mu.Unlock()
		slog.Warn("Poller hard timeout reached", "workID", workID, "hardTimeout", p.cfg.HardTimeout)
		if onHard != nil {
			onHard()
		}
		return
	}

	if p.inFlight {
		slog.Debug("Poller tick skipped, check in flight", "workID", p.workID)
		p.scheduleLocked()
		p.mu.Unlock()
		return
	}

	p.inFlight = true
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CheckTimeout)
	p.cancelCheck = cancel
	workID := p.workID
	p.mu.Unlock()

	go p.check(ctx, cancel, workID)
}

// check performs one status request and folds the result into the signal.
func (p *Poller) check(ctx context.Context, cancel context.CancelFunc, workID string) {
	defer cancel()
	result, err := p.checker.CheckStatus(ctx, workID)
	if err != nil {
		// Transient failures are "not yet ready", never fatal; polling continues
		// until completion or the hard timeout.
		slog.Warn("Poller check failed, treating as pending", "workID", workID, "error", err)
	}

	p.mu.Lock()
	p.inFlight = false
	p.cancelCheck = nil
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.signal = p.signal.Merge(result, err != nil)
	signal := p.signal
	onUpdate := p.onUpdate
	p.scheduleLocked()
	p.mu.Unlock()

	slog.Debug("Poller update", "workID", workID, "ready", signal.Ready, "erred", signal.Erred)
	if onUpdate != nil {
		onUpdate(signal)
	}
}

// Stop cancels all pending and scheduled checks. Idempotent and safe to call
// multiple times; no callbacks fire after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancelCheck != nil {
		p.cancelCheck()
		p.cancelCheck = nil
	}
	slog.Info("Poller stopped", "workID", p.workID)
}

// Signal returns the current completion signal. Once Ready it never reverts.
func (p *Poller) Signal() models.CompletionSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signal
}
