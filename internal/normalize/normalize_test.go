package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain message is trimmed and lower-cased", "  Connection Refused  ", "connection refused"},
		{"uuid", "Order 3f2b8c1e-9a4d-4e2b-8f1a-0c9d8e7f6a5b not found", "order <uuid> not found"},
		{"hex hash", "commit a94a8fe5ccb19ba61c4c0873d391e987982fbbd3 missing", "commit <hex> missing"},
		{"0x pointer", "segfault at 0x7ffe12ab", "segfault at <hex>"},
		{"numbers", "retry 3 of 5 after 1.5 seconds", "retry <num> of <num> after <num> seconds"},
		{"long digit run is a number", "user 123456789 locked", "user <num> locked"},
		{"hex-letter word survives", "deadbeefcafe state", "deadbeefcafe state"},
		{"digits glued to words survive", "http2 stream reset", "http2 stream reset"},
		{"whitespace collapses", "a\t\tb\n c", "a b c"},
		{"key value", "id=42 failed", "id=<num> failed"},
		{"underscore delimits uuid", "order_550e8400-e29b-41d4-a716-446655440000 missing", "order_<uuid> missing"},
		{"underscore delimits number", "worker_12 crashed", "worker_<num> crashed"},
		{"adjacent numbers", "1 2 3", "<num> <num> <num>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"NullPointerException at line 42",
		"Job 3f2b8c1e-9a4d-4e2b-8f1a-0c9d8e7f6a5b failed after 17 retries (hash ab12cd34ef)",
		"timeout contacting 10.0.0.12:8443",
		"<num> <uuid> <hex> already normalized",
		"worker_12 lost lease on shard_0x1f for order_550e8400-e29b-41d4-a716-446655440000",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize(normalize(%q))", in)
	}
}

func TestVolatileTokensCollapse(t *testing.T) {
	pairs := [][2]string{
		{"Payment 1001 declined", "Payment 77 declined"},
		{"session 3f2b8c1e-9a4d-4e2b-8f1a-0c9d8e7f6a5b expired", "session 00000000-1111-2222-3333-444444444444 expired"},
		{"blob 9f86d081884c7d65 corrupt", "blob 2c26b46b68ffc68f corrupt"},
		{"lookup failed for order_550e8400-e29b-41d4-a716-446655440000", "lookup failed for order_6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"worker_12 crashed", "worker_13 crashed"},
		{"cache_9f86d081884c7d65_shard evicted", "cache_2c26b46b68ffc68f_shard evicted"},
	}
	for _, p := range pairs {
		assert.Equal(t, Normalize(p[0]), Normalize(p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder("<num>"))
	assert.True(t, IsPlaceholder("<uuid>"))
	assert.True(t, IsPlaceholder("<hex>"))
	assert.False(t, IsPlaceholder("num"))
}
