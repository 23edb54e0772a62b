package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/triage/internal/types"
)

func testIncident() types.Incident {
	return types.Incident{
		Event: types.LogEvent{
			Logger:    "com.acme.BillingService",
			Thread:    "worker-3",
			Message:   "NullPointerException while charging card",
			Detail:    "at com.acme.BillingService.charge(BillingService.java:42)",
			Timestamp: "2026-10-17T08:30:00Z",
		},
		Fingerprint: "com.acme.BillingService|nullpointerexception while charging card",
		Occurrences: 4,
		WindowHours: 24,
	}
}

func staticResponse(text string, prompts *[]string) completeFunc {
	return func(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
		if prompts != nil {
			*prompts = append(*prompts, prompt)
		}
		return text, nil
	}
}

func TestSupervisorClassifyCreate(t *testing.T) {
	var prompts []string
	s := newTestSupervisor(fastRetry(), staticResponse("```json\n"+`{
		"create_ticket": true,
		"error_type": "NullPointerException",
		"title": "  NPE in BillingService.charge  ",
		"description": "charge() dereferences a missing card",
		"severity": "Major"
	}`+"\n```", &prompts))

	verdict, err := s.Classify(context.Background(), testIncident())
	require.NoError(t, err)
	assert.True(t, verdict.CreateTicket)
	assert.Equal(t, "NPE in BillingService.charge", verdict.Title)
	assert.Equal(t, "NullPointerException", verdict.ErrorType)
	assert.Equal(t, SeverityHigh, verdict.Severity)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Logger: com.acme.BillingService")
	assert.Contains(t, prompts[0], "Thread: worker-3")
	assert.Contains(t, prompts[0], "4 occurrences in the last 24 hours")
	assert.Contains(t, prompts[0], "BillingService.java:42")
}

func TestSupervisorClassifyClipsWordyTitle(t *testing.T) {
	title := "NullPointerException in BillingService.charge " + strings.Repeat("while charging a card ", 20)
	s := newTestSupervisor(fastRetry(), staticResponse(`{
		"create_ticket": true,
		"error_type": "NullPointerException",
		"title": "`+title+`",
		"severity": "high"
	}`, nil))

	verdict, err := s.Classify(context.Background(), testIncident())
	require.NoError(t, err)
	assert.True(t, verdict.CreateTicket)
	assert.LessOrEqual(t, len(verdict.Title), types.MaxTitleLen)
	assert.True(t, strings.HasPrefix(verdict.Title, "NullPointerException in BillingService.charge"))
}

func TestSupervisorClassifySkip(t *testing.T) {
	s := newTestSupervisor(fastRetry(), staticResponse(`{"create_ticket": false}`, nil))
	verdict, err := s.Classify(context.Background(), testIncident())
	require.NoError(t, err)
	assert.False(t, verdict.CreateTicket)
}

func TestSupervisorClassifyErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		errorMsg string
	}{
		{"unparseable", "I think this is a bug.", "failed to parse"},
		{"create without title", `{"create_ticket": true, "title": " "}`, "invalid classification"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSupervisor(fastRetry(), staticResponse(tt.response, nil))
			_, err := s.Classify(context.Background(), testIncident())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestPromptSanitizesMissingFields(t *testing.T) {
	prompt := buildClassificationPrompt(types.Incident{Occurrences: 1, WindowHours: 24})
	assert.Contains(t, prompt, "Logger: "+types.UnknownLogger)
	assert.Contains(t, prompt, "Message: "+types.EmptyMessage)
	assert.NotContains(t, prompt, "Thread:")
}

func TestNewSupervisorRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewSupervisor(&Config{})
	require.Error(t, err)

	s, err := NewSupervisor(&Config{APIKey: "sk-test", Model: ModelSonnet})
	require.NoError(t, err)
	assert.Equal(t, ModelSonnet, s.Model())
	assert.Equal(t, BreakerClosed, s.BreakerState())
}

func TestGetDefaultModel(t *testing.T) {
	t.Setenv("TRIAGE_MODEL", "")
	assert.Equal(t, ModelHaiku, GetDefaultModel())
	t.Setenv("TRIAGE_MODEL", "custom-model")
	assert.Equal(t, "custom-model", GetDefaultModel())
}

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, normalizeSeverity("Minor"))
	assert.Equal(t, SeverityMedium, normalizeSeverity(""))
	assert.Equal(t, SeverityHigh, normalizeSeverity(" HIGH "))
	assert.Equal(t, SeverityCritical, normalizeSeverity("blocker"))
}
