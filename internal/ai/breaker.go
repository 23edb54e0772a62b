package ai

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses classifier calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the position of a Breaker.
//
// State Flow:
//   - closed → open after Trip consecutive transient failures
//   - open → probing once Cooldown has passed since the breaker opened
//   - probing → closed after Recover successes, → open on any failure
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Trip <= 0 disables it.
type BreakerConfig struct {
	Trip     int           // consecutive failures that open the breaker (default: 5)
	Recover  int           // probe successes that close it again (default: 2)
	Cooldown time.Duration // time spent open before probing (default: 30s)
}

// Enabled reports whether the config describes a working breaker
func (c BreakerConfig) Enabled() bool {
	return c.Trip > 0
}

// BreakerSnapshot is a point-in-time view for logging
type BreakerSnapshot struct {
	State               BreakerState
	ConsecutiveFailures int
	ProbeSuccesses      int
	OpenedAt            time.Time
}

// Breaker stops calling a failing model API until it has had time to recover.
// A run keeps going while it is open: every incident is skipped quickly
// instead of waiting out the retries.
type Breaker struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	state  BreakerState
	fails  int
	probes int
	opened time.Time
	now    func() time.Time
	logger *slog.Logger
}

// NewBreaker returns a closed breaker
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.Recover <= 0 {
		cfg.Recover = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{cfg: cfg, now: time.Now, logger: logger}
}

// Before is called ahead of every attempt. It returns ErrCircuitOpen while
// the breaker is open and its cooldown has not passed.
func (b *Breaker) Before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.opened) < b.cfg.Cooldown {
		return ErrCircuitOpen
	}
	b.moveTo(BreakerProbing)
	return nil
}

// After records the outcome of an attempt. Only transient failures should
// be reported as failed; a rejected request says nothing about API health.
func (b *Breaker) After(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !failed {
		b.fails = 0
		if b.state == BreakerProbing {
			b.probes++
			if b.probes >= b.cfg.Recover {
				b.moveTo(BreakerClosed)
			}
		}
		return
	}

	b.fails++
	switch b.state {
	case BreakerProbing:
		b.moveTo(BreakerOpen)
	case BreakerClosed:
		if b.fails >= b.cfg.Trip {
			b.moveTo(BreakerOpen)
		}
	}
}

// State returns the current position
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the counters behind the current state
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.fails,
		ProbeSuccesses:      b.probes,
		OpenedAt:            b.opened,
	}
}

// moveTo must be called with mu held
func (b *Breaker) moveTo(next BreakerState) {
	prev := b.state
	b.state = next
	b.probes = 0
	switch next {
	case BreakerOpen:
		b.opened = b.now()
	case BreakerClosed:
		b.fails = 0
	}
	b.logger.Info("classifier breaker changed state",
		"from", prev.String(), "to", next.String(), "consecutive_failures", b.fails)
}
