package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(cfg BreakerConfig) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(cfg, nil)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerTripsAndRecovers(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{Trip: 2, Recover: 1, Cooldown: time.Minute})

	require.NoError(t, b.Before())
	b.After(true)
	assert.Equal(t, BreakerClosed, b.State())
	b.After(true)
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Before(), ErrCircuitOpen)
	assert.Equal(t, *now, b.Snapshot().OpenedAt)

	*now = now.Add(time.Minute)
	require.NoError(t, b.Before())
	assert.Equal(t, BreakerProbing, b.State())

	b.After(false)
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Snapshot().ConsecutiveFailures)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Trip: 2, Cooldown: time.Minute})

	b.After(true)
	b.After(false)
	b.After(true)
	assert.Equal(t, BreakerClosed, b.State(), "failures must be consecutive")
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{Trip: 1, Recover: 2, Cooldown: time.Second})

	b.After(true)
	*now = now.Add(2 * time.Second)
	require.NoError(t, b.Before())
	b.After(false)
	assert.Equal(t, BreakerProbing, b.State(), "one success is not enough to close")
	b.After(true)
	assert.Equal(t, BreakerOpen, b.State())
	assert.Equal(t, *now, b.Snapshot().OpenedAt, "reopening restarts the cooldown")
}

func TestBreakerConfigEnabled(t *testing.T) {
	assert.False(t, BreakerConfig{}.Enabled())
	assert.True(t, DefaultRetryConfig().Breaker.Enabled())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "probing", BreakerProbing.String())
	assert.Equal(t, "unknown", BreakerState(42).String())
}
