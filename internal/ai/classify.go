package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/triage/internal/types"
)

// maxDetailChars bounds the stack trace / detail included in the prompt.
const maxDetailChars = 4000

// Classify asks the model whether the incident warrants a ticket.
func (s *Supervisor) Classify(ctx context.Context, incident types.Incident) (*types.Verdict, error) {
	prompt := buildClassificationPrompt(incident)

	text, err := s.CallAI(ctx, prompt, "classify", "", 0)
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	result := Parse[types.Verdict](text, "classification response")
	if !result.Success {
		return nil, fmt.Errorf("failed to parse classification response: %s", result.Error)
	}

	verdict := result.Data
	if !verdict.CreateTicket {
		return &verdict, nil
	}

	verdict.Title = types.ClipTitle(verdict.Title)
	verdict.ErrorType = strings.TrimSpace(verdict.ErrorType)
	verdict.Severity = normalizeSeverity(verdict.Severity)
	if err := verdict.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classification: %w", err)
	}

	s.logger.Debug("incident classified",
		"fingerprint", incident.Fingerprint,
		"create_ticket", verdict.CreateTicket,
		"error_type", verdict.ErrorType,
		"severity", verdict.Severity)
	return &verdict, nil
}

func buildClassificationPrompt(incident types.Incident) string {
	event := incident.Event.Sanitized()

	var b strings.Builder
	b.WriteString("You are triaging production error logs. Decide whether the following log entry ")
	b.WriteString("describes a real software defect that an engineer should fix, and if so draft a ticket.\n\n")
	b.WriteString("Do NOT create tickets for expected conditions such as client validation errors, ")
	b.WriteString("user typos, single transient network blips, or informational messages.\n\n")

	b.WriteString("LOG ENTRY:\n")
	fmt.Fprintf(&b, "Logger: %s\n", event.Logger)
	if event.Thread != "" {
		fmt.Fprintf(&b, "Thread: %s\n", event.Thread)
	}
	if event.Timestamp != "" {
		fmt.Fprintf(&b, "Timestamp: %s\n", event.Timestamp)
	}
	fmt.Fprintf(&b, "Message: %s\n", event.Message)
	if event.Detail != "" {
		fmt.Fprintf(&b, "Detail:\n%s\n", truncate(event.Detail, maxDetailChars))
	}
	fmt.Fprintf(&b, "Frequency: %s\n\n", incident.OccurrenceLabel())

	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{
  "create_ticket": true or false,
  "error_type": "short machine-friendly category, e.g. NullPointerException or DatabaseTimeout",
  "title": "concise ticket title, under 120 characters",
  "description": "what failed, where, likely impact, and what to investigate",
  "severity": "low | medium | high | critical"
}`)
	b.WriteString("\n")
	return b.String()
}
