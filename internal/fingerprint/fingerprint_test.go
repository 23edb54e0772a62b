package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/triage/internal/types"
)

func TestOf(t *testing.T) {
	a := types.LogEvent{Logger: "com.acme.Billing", Message: "Invoice 1001 failed"}
	b := types.LogEvent{Logger: "com.acme.Billing", Message: "invoice 2002 FAILED "}
	c := types.LogEvent{Logger: "com.acme.Shipping", Message: "Invoice 1001 failed"}

	assert.Equal(t, types.Fingerprint("com.acme.Billing|invoice <num> failed"), Of(a))
	assert.Equal(t, Of(a), Of(b), "instance data should not change the fingerprint")
	assert.NotEqual(t, Of(a), Of(c), "logger is part of the fingerprint")
}

func TestOfMissingFields(t *testing.T) {
	fp := Of(types.LogEvent{})
	assert.Equal(t, types.Fingerprint(types.UnknownLogger+"|"+types.EmptyMessage), fp)
}

func TestBuildCounts(t *testing.T) {
	logs := []types.LogEvent{
		{Logger: "X", Message: "disk 1 full"},
		{Logger: "X", Message: "disk 2 full"},
		{Logger: "Y", Message: "disk 3 full"},
		{Logger: "X", Message: "cpu hot"},
	}
	counts := BuildCounts(logs)
	assert.Len(t, counts, 3)
	assert.Equal(t, 2, counts["X|disk <num> full"])
	assert.Equal(t, 1, counts["Y|disk <num> full"])
	assert.Equal(t, 1, counts["X|cpu hot"])

	assert.Empty(t, BuildCounts(nil))
}

func TestSeenSet(t *testing.T) {
	seen := make(Set)
	fp := types.Fingerprint("X|boom")

	assert.False(t, IsDuplicate(fp, seen))
	assert.True(t, MarkSeen(fp, seen), "first sighting")
	assert.True(t, IsDuplicate(fp, seen))
	assert.False(t, MarkSeen(fp, seen), "second sighting is not new")
	assert.Len(t, seen, 1)
}

func TestIndex(t *testing.T) {
	logs := []types.LogEvent{
		{Logger: "X", Message: "timeout after 30 s"},
		{Logger: "X", Message: "timeout after 60 s"},
		{Logger: "X", Message: "refused"},
	}
	ix := NewIndex(logs)
	fp := Of(logs[0])

	assert.Equal(t, 2, ix.Count(fp))
	assert.Equal(t, 2, ix.Distinct())
	assert.Equal(t, 0, ix.Count("nope|nothing"))
	assert.False(t, ix.Seen(fp))
	require.True(t, ix.MarkSeen(fp))
	assert.True(t, ix.Seen(fp))
	assert.Equal(t, 1, ix.SeenCount())
}

func TestShortAndLabel(t *testing.T) {
	fp := types.Fingerprint("X|boom")
	short := Short(fp)
	assert.Len(t, short, 12)
	assert.Equal(t, short, Short(fp), "short hash must be stable")
	assert.NotEqual(t, short, Short("X|bang"))

	label := Label(fp)
	got, ok := ShortFromLabel(label)
	require.True(t, ok)
	assert.Equal(t, short, got)

	_, ok = ShortFromLabel("triage")
	assert.False(t, ok)
	_, ok = ShortFromLabel(LabelPrefix)
	assert.False(t, ok)
}
