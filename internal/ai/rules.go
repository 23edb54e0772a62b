package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/triage/internal/types"
)

// maxRuleTitle is the rune limit for titles drafted by RuleClassifier.
const maxRuleTitle = 120

var errorTypeRegex = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*(?:Exception|Error))\b`)

// markerTypes maps a defect marker to the error type used when the message
// names no exception class.
var markerTypes = map[string]string{
	"panic":     "Panic",
	"fatal":     "Fatal",
	"timeout":   "Timeout",
	"refused":   "ConnectionRefused",
	"exception": "Exception",
	"failed":    "Failure",
	"error":     "Error",
}

// RuleConfig tunes RuleClassifier.
type RuleConfig struct {
	// Markers are lowercase substrings that flag a log as a defect.
	Markers []string `yaml:"markers"`
	// Ignore are lowercase substrings that veto ticket creation.
	Ignore []string `yaml:"ignore"`
	// HighOccurrences and MediumOccurrences are severity thresholds.
	HighOccurrences   int `yaml:"high_occurrences"`
	MediumOccurrences int `yaml:"medium_occurrences"`
}

// DefaultRuleConfig returns the built-in marker list and thresholds
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Markers:           []string{"exception", "error", "failed", "panic", "timeout", "refused", "fatal"},
		HighOccurrences:   10,
		MediumOccurrences: 3,
	}
}

// Validate checks the rule configuration
func (c RuleConfig) Validate() error {
	if len(c.Markers) == 0 {
		return fmt.Errorf("at least one marker is required")
	}
	if c.MediumOccurrences < 1 {
		return fmt.Errorf("medium_occurrences must be at least 1 (got %d)", c.MediumOccurrences)
	}
	if c.HighOccurrences < c.MediumOccurrences {
		return fmt.Errorf("high_occurrences (%d) must be >= medium_occurrences (%d)",
			c.HighOccurrences, c.MediumOccurrences)
	}
	return nil
}

// RuleClassifier is an offline Classifier driven by keyword markers. It never
// fails, which makes it the choice for dry runs and environments without an API key.
type RuleClassifier struct {
	config RuleConfig
}

// NewRuleClassifier creates a rule classifier
func NewRuleClassifier(config RuleConfig) (*RuleClassifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule config: %w", err)
	}
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	config.Markers = lower(config.Markers)
	config.Ignore = lower(config.Ignore)
	return &RuleClassifier{config: config}, nil
}

// Classify implements Classifier.
func (r *RuleClassifier) Classify(_ context.Context, incident types.Incident) (*types.Verdict, error) {
	event := incident.Event.Sanitized()
	text := strings.ToLower(event.Message + "\n" + event.Detail)

	for _, ignore := range r.config.Ignore {
		if strings.Contains(text, ignore) {
			return &types.Verdict{CreateTicket: false}, nil
		}
	}

	marker := ""
	for _, m := range r.config.Markers {
		if strings.Contains(text, m) {
			marker = m
			break
		}
	}
	if marker == "" {
		return &types.Verdict{CreateTicket: false}, nil
	}

	return &types.Verdict{
		CreateTicket: true,
		ErrorType:    ruleErrorType(event, marker),
		Title:        truncate(fmt.Sprintf("[%s] %s", event.Logger, firstLine(event.Message)), maxRuleTitle),
		Description:  ruleDescription(incident),
		Severity:     r.severity(incident.Occurrences),
	}, nil
}

func (r *RuleClassifier) severity(occurrences int) string {
	switch {
	case occurrences >= r.config.HighOccurrences:
		return SeverityHigh
	case occurrences >= r.config.MediumOccurrences:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func ruleErrorType(event types.LogEvent, marker string) string {
	if m := errorTypeRegex.FindStringSubmatch(event.Message + " " + event.Detail); m != nil {
		return m[1]
	}
	if t, ok := markerTypes[marker]; ok {
		return t
	}
	return "Error"
}

func ruleDescription(incident types.Incident) string {
	event := incident.Event.Sanitized()
	var b strings.Builder
	fmt.Fprintf(&b, "Logger: %s\n", event.Logger)
	if event.Thread != "" {
		fmt.Fprintf(&b, "Thread: %s\n", event.Thread)
	}
	fmt.Fprintf(&b, "Frequency: %s\n\n", incident.OccurrenceLabel())
	b.WriteString(event.Message)
	if event.Detail != "" {
		b.WriteString("\n\n")
		b.WriteString(truncate(event.Detail, maxDetailChars))
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
