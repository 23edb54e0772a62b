package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseStrategies(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", `{"name":"a","count":2}`},
		{"fenced", "```json\n{\"name\":\"a\",\"count\":2}\n```"},
		{"fenced without language", "```{\"name\":\"a\",\"count\":2}```"},
		{"trailing comma", `{"name":"a","count":2,}`},
		{"unquoted keys", `{name:"a", count:2}`},
		{"comments", "{\n// the name\n\"name\":\"a\",\n/* n */ \"count\":2}"},
		{"prose around object", "Sure! Here is the result:\n{\"name\":\"a\",\"count\":2}\nLet me know."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[sample](tt.input, "test")
			require.True(t, result.Success, "error: %s", result.Error)
			assert.Equal(t, sample{Name: "a", Count: 2}, result.Data)
		})
	}
}

func TestParseFailures(t *testing.T) {
	empty := Parse[sample]("   ", "test")
	assert.False(t, empty.Success)
	assert.Contains(t, empty.Error, "empty response")

	garbage := Parse[sample]("I cannot help with that.", "classification")
	assert.False(t, garbage.Success)
	assert.True(t, strings.HasPrefix(garbage.Error, "classification: "))
	assert.Equal(t, "I cannot help with that.", garbage.OriginalText)

	huge := Parse[sample](strings.Repeat("x", maxParseInput+1), "")
	assert.False(t, huge.Success)
	assert.Contains(t, huge.Error, "too large")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}
