package controller

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/types"
)

func TestBuildPayload(t *testing.T) {
	event := types.LogEvent{
		Logger:  "com.acme.Billing",
		Message: "NullPointerException at line 42",
		Detail:  "java.lang.NullPointerException\n\tat Billing.charge(Billing.java:42)",
	}
	incident := types.Incident{
		Event:       event,
		Fingerprint: fingerprint.Of(event),
		Occurrences: 3,
		WindowHours: 24,
	}
	verdict := &types.Verdict{
		CreateTicket: true,
		ErrorType:    "NullPointerException",
		Title:        "  NPE while charging card  ",
		Description:  "Billing dereferences a missing customer.",
		Severity:     "High",
	}

	p := buildPayload(incident, verdict)

	assert.Equal(t, "NPE while charging card", p.Summary)
	assert.Equal(t, []string{
		LabelTriage,
		fingerprint.Label(incident.Fingerprint),
		"type-nullpointerexception",
		"sev-high",
	}, p.Labels)
	assert.Equal(t, "NullPointerException at line 42", p.LogExcerpt)
	assert.True(t, strings.HasPrefix(p.Description, "Billing dereferences a missing customer.\n\n"))
	assert.Contains(t, p.Description, "Frequency: 3 occurrences in the last 24 hours")
	assert.Contains(t, p.Description, "Fingerprint: "+fingerprint.Short(incident.Fingerprint))
	assert.Contains(t, p.Description, "[com.acme.Billing] NullPointerException at line 42")
	assert.Contains(t, p.Description, "Billing.java:42")
	assert.NoError(t, p.Validate())
}

func TestBuildPayloadOmitsEmptyLabels(t *testing.T) {
	incident := types.Incident{Event: types.LogEvent{Message: "boom"}, Occurrences: 1, WindowHours: 1}
	p := buildPayload(incident, &types.Verdict{CreateTicket: true, Title: "boom"})
	assert.Len(t, p.Labels, 2)
	assert.Contains(t, p.Description, "[unknown] boom")
}

func TestCommentText(t *testing.T) {
	incident := types.Incident{
		Event:       types.LogEvent{Logger: "svc", Message: "timeout", Timestamp: "2026-10-17T08:00:00Z"},
		Occurrences: 4,
		WindowHours: 12,
	}
	text := commentText(incident, types.MatchResult{TicketKey: "OPS-2", Score: 0.8123, Kind: types.MatchPartialSimilarity})
	assert.Equal(t, "Seen again: 4 occurrences in the last 12 hours.\n"+
		"[svc] timeout\n"+
		"Latest occurrence: 2026-10-17T08:00:00Z\n"+
		"Matched by partial-similarity (score 0.81).", text)
}

func TestLabelSlug(t *testing.T) {
	tests := map[string]string{
		"High":                 "high",
		"  Connection Error  ": "connection-error",
		"db/timeout!!":         "db-timeout",
		"":                     "",
		"---":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, labelSlug(in), "labelSlug(%q)", in)
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abc", clip("abcdef", 3))
	// "é" is two bytes; cutting inside it backs off to the rune start
	assert.Equal(t, "a", clip("aé", 2))
}
