package types

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Placeholders substituted for missing LogEvent fields so the normalizer and
// correlator always receive well-formed strings.
const (
	UnknownLogger = "unknown"
	EmptyMessage  = "<empty message>"
)

// MaxTitleLen is the longest ticket summary the tracker accepts, in bytes.
const MaxTitleLen = 255

// ClipTitle trims s and cuts it to MaxTitleLen bytes without splitting a rune.
func ClipTitle(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= MaxTitleLen {
		return s
	}
	cut := MaxTitleLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

// LogEvent is a single error log entry fetched from the observability backend.
// It is immutable once fetched; its dedup identity is derived (see fingerprint.Of).
type LogEvent struct {
	Logger    string `json:"logger"`
	Thread    string `json:"thread"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	Timestamp string `json:"timestamp"`
}

// Sanitized returns a copy with defaults substituted for missing fields.
func (e LogEvent) Sanitized() LogEvent {
	if strings.TrimSpace(e.Logger) == "" {
		e.Logger = UnknownLogger
	}
	if strings.TrimSpace(e.Message) == "" {
		e.Message = EmptyMessage
	}
	return e
}

// Time parses Timestamp. The second return value is false when the timestamp
// is missing or not RFC 3339.
func (e LogEvent) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Fingerprint identifies "the same kind of error": logger + "|" + normalized message.
type Fingerprint string

// Incident is one non-duplicate log occurrence under consideration for ticket creation.
type Incident struct {
	Event       LogEvent    `json:"event"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Occurrences int         `json:"occurrences"`
	WindowHours int         `json:"window_hours"`
}

// OccurrenceLabel renders the count passed to the classifier, e.g. "3 occurrences in the last 24 hours".
func (i Incident) OccurrenceLabel() string {
	noun := "occurrences"
	if i.Occurrences == 1 {
		noun = "occurrence"
	}
	return fmt.Sprintf("%d %s in the last %d hours", i.Occurrences, noun, i.WindowHours)
}

// Verdict is the classifier's answer for an incident.
type Verdict struct {
	CreateTicket bool   `json:"create_ticket"`
	ErrorType    string `json:"error_type"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
}

// Validate checks that a create verdict has enough content to file a ticket.
// Title length is not checked; ClipTitle shortens long titles.
func (v *Verdict) Validate() error {
	if !v.CreateTicket {
		return nil
	}
	if strings.TrimSpace(v.Title) == "" {
		return fmt.Errorf("title is required when create_ticket is true")
	}
	return nil
}

// ExternalTicket is a ticket read from the external tracker. It is never mutated locally.
type ExternalTicket struct {
	Key       string    `json:"key"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Labels    []string  `json:"labels,omitempty"`
}

// HasLabel reports whether the ticket carries the given label
func (t ExternalTicket) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ScoredTicket pairs a ticket with a similarity score in [0,1].
type ScoredTicket struct {
	Ticket ExternalTicket `json:"ticket"`
	Score  float64        `json:"score"`
}

// TicketPayload is what the controller asks the corpus to create.
type TicketPayload struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Severity    string   `json:"severity"`
	ErrorType   string   `json:"error_type"`
	// LogExcerpt is stored alongside the ticket and searched by later similarity queries.
	LogExcerpt string `json:"log_excerpt"`
}

// Validate checks the payload before it is sent to the corpus
func (p *TicketPayload) Validate() error {
	if strings.TrimSpace(p.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if len(p.Summary) > MaxTitleLen {
		return fmt.Errorf("summary must be %d characters or less (got %d)", MaxTitleLen, len(p.Summary))
	}
	return nil
}

// MatchKind records which correlator stage produced a match
type MatchKind string

const (
	MatchNone              MatchKind = "none"
	MatchFingerprint       MatchKind = "fingerprint"
	MatchDirectSimilarity  MatchKind = "direct-similarity"
	MatchPartialSimilarity MatchKind = "partial-similarity"
	MatchJQL               MatchKind = "jql"
)

// IsValid checks if the match kind value is valid
func (k MatchKind) IsValid() bool {
	switch k {
	case MatchNone, MatchFingerprint, MatchDirectSimilarity, MatchPartialSimilarity, MatchJQL:
		return true
	}
	return false
}

// MatchResult is the correlator's answer. Score 0.0 with a non-none kind is a
// metadata (keyword) match, not "no match".
type MatchResult struct {
	TicketKey string    `json:"ticket_key,omitempty"`
	Score     float64   `json:"score"`
	Kind      MatchKind `json:"match_kind"`
}

// Matched reports whether the correlator found an existing ticket.
func (m MatchResult) Matched() bool {
	return m.Kind != "" && m.Kind != MatchNone
}

// Validate checks the invariants of a match result
func (m *MatchResult) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid match kind: %s", m.Kind)
	}
	if m.Score < 0.0 || m.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0 (got %.2f)", m.Score)
	}
	// Fingerprint matches are resolved locally and may not know the ticket key.
	if m.Kind != MatchNone && m.Kind != MatchFingerprint && m.TicketKey == "" {
		return fmt.Errorf("ticket_key must be set for %s matches", m.Kind)
	}
	if m.Kind == MatchNone && m.TicketKey != "" {
		return fmt.Errorf("ticket_key should not be set when match_kind is none")
	}
	return nil
}

// Decision is the terminal outcome recorded for one log event
type Decision string

const (
	DecisionCreated          Decision = "created"
	DecisionDuplicate        Decision = "duplicate"
	DecisionCapReached       Decision = "cap-reached"
	DecisionSimulated        Decision = "simulated"
	DecisionSkipped          Decision = "skipped"
	DecisionSkippedDuplicate Decision = "skipped_duplicate"
)

// IsValid checks if the decision value is valid
func (d Decision) IsValid() bool {
	switch d {
	case DecisionCreated, DecisionDuplicate, DecisionCapReached, DecisionSimulated,
		DecisionSkipped, DecisionSkippedDuplicate:
		return true
	}
	return false
}

// IsDuplicate is true for both in-run repeats and corpus matches.
func (d Decision) IsDuplicate() bool {
	return d == DecisionDuplicate || d == DecisionSkippedDuplicate
}

// Outcome records what happened to the log event at Index.
type Outcome struct {
	Index       int         `json:"index"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Decision    Decision    `json:"decision"`
	TicketKey   string      `json:"ticket_key,omitempty"`
	ErrorType   string      `json:"error_type,omitempty"`
	Match       MatchResult `json:"match"`
	Reason      string      `json:"reason,omitempty"`
}
