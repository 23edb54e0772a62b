package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	at  map[string]time.Time
	err error
}

func (s stubHistory) LastCommentAt(ctx context.Context, key string) (time.Time, error) {
	if s.err != nil {
		return time.Time{}, s.err
	}
	return s.at[key], nil
}

func TestCooldownInProcess(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Hour, nil)
	c.now = func() time.Time { return now }

	ok, err := c.Allow(context.Background(), "OPS-1")
	require.NoError(t, err)
	assert.True(t, ok, "never commented")

	c.Record("OPS-1")
	ok, _ = c.Allow(context.Background(), "OPS-1")
	assert.False(t, ok)

	ok, _ = c.Allow(context.Background(), "OPS-2")
	assert.True(t, ok, "other tickets are unaffected")

	now = now.Add(time.Hour)
	ok, _ = c.Allow(context.Background(), "OPS-1")
	assert.True(t, ok, "window elapsed")
}

func TestCooldownHonorsHistory(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	hist := stubHistory{at: map[string]time.Time{
		"OPS-1": now.Add(-10 * time.Minute),
		"OPS-2": now.Add(-3 * time.Hour),
	}}
	c := NewCooldown(time.Hour, hist)
	c.now = func() time.Time { return now }

	ok, err := c.Allow(context.Background(), "OPS-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Allow(context.Background(), "OPS-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldownHistoryFailureFallsBack(t *testing.T) {
	c := NewCooldown(time.Hour, stubHistory{err: errors.New("tracker down")})

	ok, err := c.Allow(context.Background(), "OPS-1")
	assert.Error(t, err)
	assert.True(t, ok, "no local record, so the comment is allowed")

	c.Record("OPS-1")
	ok, err = c.Allow(context.Background(), "OPS-1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestCooldownZeroWindow(t *testing.T) {
	c := NewCooldown(0, stubHistory{err: errors.New("never consulted")})
	c.Record("OPS-1")
	ok, err := c.Allow(context.Background(), "OPS-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
