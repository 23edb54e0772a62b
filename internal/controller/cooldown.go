package controller

import (
	"context"
	"sync"
	"time"

	"github.com/steveyegge/triage/internal/corpus"
)

// Cooldown decides whether an existing ticket may be commented on again.
// It remembers comments posted through it and, when given a history, also
// honors comments posted by earlier runs or by people.
type Cooldown struct {
	mu      sync.Mutex
	window  time.Duration
	last    map[string]time.Time
	history corpus.CommentHistory
	now     func() time.Time
}

// NewCooldown creates a tracker. A zero window allows every comment; history may be nil.
func NewCooldown(window time.Duration, history corpus.CommentHistory) *Cooldown {
	return &Cooldown{
		window:  window,
		last:    make(map[string]time.Time),
		history: history,
		now:     time.Now,
	}
}

// Allow reports whether key is outside its cooldown window. A history lookup
// failure is returned alongside the decision made from in-process state.
func (c *Cooldown) Allow(ctx context.Context, key string) (bool, error) {
	if c.window <= 0 {
		return true, nil
	}

	c.mu.Lock()
	latest := c.last[key]
	now := c.now()
	c.mu.Unlock()

	var histErr error
	if c.history != nil {
		at, err := c.history.LastCommentAt(ctx, key)
		if err != nil {
			histErr = err
		} else if at.After(latest) {
			latest = at
		}
	}

	if latest.IsZero() {
		return true, histErr
	}
	return now.Sub(latest) >= c.window, histErr
}

// Record notes that key was just commented on
func (c *Cooldown) Record(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[key] = c.now()
}
