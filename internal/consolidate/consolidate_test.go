package consolidate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/types"
)

func TestConsolidateKeys(t *testing.T) {
	tests := []struct {
		name        string
		keys        []string
		wantPrimary string
		wantDups    []string
	}{
		{"lowest suffix wins", []string{"PROJ-12", "PROJ-7", "PROJ-30"}, "PROJ-7", []string{"PROJ-12", "PROJ-30"}},
		{"numeric not lexical", []string{"OPS-100", "OPS-99"}, "OPS-99", []string{"OPS-100"}},
		{"repeated key counted once", []string{"OPS-3", "OPS-3", "OPS-4"}, "OPS-3", []string{"OPS-4"}},
		{"unnumbered keys rank last", []string{"legacy", "OPS-50"}, "OPS-50", []string{"legacy"}},
		{"unnumbered keys ordered by key", []string{"beta", "alpha"}, "alpha", []string{"beta"}},
		{"multi dash project", []string{"MY-TEAM-8", "MY-TEAM-2"}, "MY-TEAM-2", []string{"MY-TEAM-8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ConsolidateKeys(tt.keys)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrimary, p.Primary.Key)
			assert.Equal(t, tt.wantDups, p.DuplicateKeys())
		})
	}
}

func TestConsolidateNotEnoughTickets(t *testing.T) {
	for _, keys := range [][]string{nil, {"PROJ-1"}, {"PROJ-1", "PROJ-1"}} {
		_, err := ConsolidateKeys(keys)
		assert.ErrorIs(t, err, ErrNotEnoughTickets, "keys %v", keys)
	}
}

func TestConsolidateRejectsEmptyKey(t *testing.T) {
	_, err := ConsolidateKeys([]string{"OPS-1", " "})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotEnoughTickets))
}

func TestConsolidateKeepsTicketFields(t *testing.T) {
	p, err := Consolidate([]types.ExternalTicket{
		{Key: "OPS-9", Summary: "newer"},
		{Key: "OPS-2", Summary: "older"},
	})
	require.NoError(t, err)
	assert.Equal(t, "older", p.Primary.Summary)
	assert.Equal(t, "newer", p.Duplicates[0].Summary)
}

func seeded(t *testing.T, keys ...string) *corpus.Memory {
	t.Helper()
	m := corpus.NewMemory("OPS")
	for _, k := range keys {
		m.Add(types.ExternalTicket{Key: k, Summary: k}, "")
	}
	return m
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "OPS-7", "OPS-12", "OPS-30")
	p, err := ConsolidateKeys([]string{"OPS-30", "OPS-12", "OPS-7"})
	require.NoError(t, err)

	require.NoError(t, Apply(ctx, m, p))

	for _, k := range []string{"OPS-12", "OPS-30"} {
		tk, err := m.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "closed", tk.Status)
		assert.Equal(t, []string{"OPS-7"}, m.Links(k))
	}
	primary, err := m.Get(ctx, "OPS-7")
	require.NoError(t, err)
	assert.Equal(t, "open", primary.Status)

	comments := m.Comments("OPS-7")
	require.Len(t, comments, 1)
	assert.Equal(t, "Consolidated duplicates into this ticket: OPS-12, OPS-30", comments[0].Body)
}

func TestApplyContinuesPastFailures(t *testing.T) {
	m := seeded(t, "OPS-1", "OPS-3")
	p, err := ConsolidateKeys([]string{"OPS-1", "OPS-2", "OPS-3"})
	require.NoError(t, err)

	err = Apply(context.Background(), m, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrTicketNotFound)
	assert.Contains(t, err.Error(), "closing OPS-2")

	tk, getErr := m.Get(context.Background(), "OPS-3")
	require.NoError(t, getErr)
	assert.Equal(t, "closed", tk.Status, "later duplicates are still processed")
	require.Len(t, m.Comments("OPS-1"), 1)
	assert.Contains(t, m.Comments("OPS-1")[0].Body, "OPS-3")
}
