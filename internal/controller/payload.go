package controller

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/types"
)

// LabelTriage marks every ticket filed by a run
const LabelTriage = "triage"

const maxDetailLen = 4000

// buildPayload turns a create verdict into the ticket sent to the corpus
func buildPayload(incident types.Incident, verdict *types.Verdict) *types.TicketPayload {
	event := incident.Event.Sanitized()

	labels := []string{LabelTriage, fingerprint.Label(incident.Fingerprint)}
	if slug := labelSlug(verdict.ErrorType); slug != "" {
		labels = append(labels, "type-"+slug)
	}
	if slug := labelSlug(verdict.Severity); slug != "" {
		labels = append(labels, "sev-"+slug)
	}

	var desc strings.Builder
	if d := strings.TrimSpace(verdict.Description); d != "" {
		desc.WriteString(d)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Frequency: %s\n", incident.OccurrenceLabel())
	fmt.Fprintf(&desc, "Fingerprint: %s\n\n", fingerprint.Short(incident.Fingerprint))
	desc.WriteString("Log excerpt:\n")
	fmt.Fprintf(&desc, "[%s] %s\n", event.Logger, event.Message)
	if event.Detail != "" {
		desc.WriteString(clip(event.Detail, maxDetailLen))
		desc.WriteString("\n")
	}

	return &types.TicketPayload{
		Summary:     types.ClipTitle(verdict.Title),
		Description: desc.String(),
		Labels:      labels,
		Severity:    verdict.Severity,
		ErrorType:   verdict.ErrorType,
		LogExcerpt:  event.Message,
	}
}

// commentText is posted on an existing ticket that matched an incident
func commentText(incident types.Incident, match types.MatchResult) string {
	event := incident.Event.Sanitized()
	var b strings.Builder
	fmt.Fprintf(&b, "Seen again: %s.\n", incident.OccurrenceLabel())
	fmt.Fprintf(&b, "[%s] %s\n", event.Logger, clip(event.Message, 500))
	if event.Timestamp != "" {
		fmt.Fprintf(&b, "Latest occurrence: %s\n", event.Timestamp)
	}
	fmt.Fprintf(&b, "Matched by %s (score %.2f).", match.Kind, match.Score)
	return b.String()
}

// labelSlug lowercases s and replaces runs of other characters with '-'
func labelSlug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// clip shortens s to at most max bytes without splitting a rune
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
