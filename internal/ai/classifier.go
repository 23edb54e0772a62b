package ai

import (
	"context"
	"strings"

	"github.com/steveyegge/triage/internal/types"
)

// Classifier decides whether an incident deserves a ticket and drafts its text.
// A returned error means "could not decide"; callers treat it as a skip.
type Classifier interface {
	Classify(ctx context.Context, incident types.Incident) (*types.Verdict, error)
}

// Severity levels written to tickets
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// normalizeSeverity maps free-form severities onto the four known levels.
func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "minor", "trivial", "p3", "p4":
		return SeverityLow
	case "high", "major", "p1":
		return SeverityHigh
	case "critical", "blocker", "urgent", "p0":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

var (
	_ Classifier = (*Supervisor)(nil)
	_ Classifier = (*RuleClassifier)(nil)
)
