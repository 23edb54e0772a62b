package logsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/triage/internal/types"
)

const sampleLogs = `{"logger":"com.acme.Billing","message":"charge failed for order 12","timestamp":"2026-10-17T08:00:00Z"}
{"logger":"com.acme.Billing","message":"charge failed for order 13","timestamp":"2026-10-16T01:00:00Z"}
this is not json
{"logger":"com.acme.Auth","message":"token expired","detail":"JWT exp claim in past","timestamp":"2026-10-17T09:00:00Z"}

{"logger":"com.acme.Auth","message":"login ok"}
`

func TestDecodeFilters(t *testing.T) {
	since := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		filter      Filter
		wantCount   int
		wantSkipped int
	}{
		{"no filter", Filter{}, 4, 1},
		{"since drops old events, keeps undated", Filter{Since: since}, 3, 1},
		{"logger substring", Filter{Logger: "billing"}, 2, 1},
		{"terms searched in detail", Filter{Terms: []string{"jwt", "EXP"}}, 1, 1},
		{"limit stops reading early", Filter{Limit: 2}, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, skipped, err := Decode(context.Background(), strings.NewReader(sampleLogs), tt.filter)
			require.NoError(t, err)
			assert.Len(t, events, tt.wantCount)
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}

func TestDecodeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Decode(ctx, strings.NewReader(sampleLogs), Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(sampleLogs), 0644))

	events, err := NewFile(path).Fetch(context.Background(), Filter{Logger: "auth"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "token expired", events[0].Message)

	_, err = NewFile(filepath.Join(t.TempDir(), "missing.ndjson")).Fetch(context.Background(), Filter{})
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	src := Static{
		{Logger: "a", Message: "boom"},
		{Logger: "b", Message: "bang"},
	}
	events, err := src.Fetch(context.Background(), Filter{Logger: "b"})
	require.NoError(t, err)
	assert.Equal(t, []types.LogEvent{{Logger: "b", Message: "bang"}}, events)
}

func TestWindowHours(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Filter{}.WindowHours(now))
	assert.Equal(t, 24, Filter{Since: now.Add(-24 * time.Hour)}.WindowHours(now))
	assert.Equal(t, 2, Filter{Since: now.Add(-90 * time.Minute)}.WindowHours(now))
	assert.Equal(t, 1, Filter{Since: now.Add(-3 * time.Hour), Until: now.Add(-2 * time.Hour)}.WindowHours(now))
}
