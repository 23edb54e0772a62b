// Package audit records one line per decision the traversal controller makes.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/triage/internal/types"
)

// Record is a single audited decision
type Record struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	RunID       string            `json:"run_id"`
	Index       int               `json:"index"`
	Fingerprint types.Fingerprint `json:"fingerprint"`
	Decision    types.Decision    `json:"decision"`
	TicketKey   string            `json:"ticket_key,omitempty"`
	ErrorType   string            `json:"error_type,omitempty"`
	MatchKind   types.MatchKind   `json:"match_kind,omitempty"`
	Score       float64           `json:"score"`
	DryRun      bool              `json:"dry_run,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

// NewRecord builds a record for an outcome of run runID.
func NewRecord(runID string, outcome types.Outcome, dryRun bool) Record {
	return Record{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		RunID:       runID,
		Index:       outcome.Index,
		Fingerprint: outcome.Fingerprint,
		Decision:    outcome.Decision,
		TicketKey:   outcome.TicketKey,
		ErrorType:   outcome.ErrorType,
		MatchKind:   outcome.Match.Kind,
		Score:       outcome.Match.Score,
		DryRun:      dryRun,
		Reason:      outcome.Reason,
	}
}

// Validate checks that a record can be written
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if !r.Decision.IsValid() {
		return fmt.Errorf("invalid decision: %s", r.Decision)
	}
	return nil
}

// Sink receives audit records
type Sink interface {
	Write(r Record) error
}

// Discard is a Sink that drops every record
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(Record) error { return nil }

// FileSink appends records as JSON lines. Safe for concurrent use.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenFile opens (creating if needed) an append-only audit log at path.
func OpenFile(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileSink{f: f, path: path}, nil
}

// Path returns the file the sink appends to
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Write(r Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid audit record: %w", err)
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("audit log is closed")
	}
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// MemorySink keeps records in memory
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func (s *MemorySink) Write(r Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid audit record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Records returns a copy of everything written so far
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Filter selects records when reading an audit log
type Filter struct {
	RunID    string
	Decision types.Decision
	Since    time.Time
}

func (f Filter) match(r Record) bool {
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Decision != "" && r.Decision != f.Decision {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// ReadFile returns the records in path that match filter, in file order.
// Malformed lines are counted and skipped.
func ReadFile(path string, filter Filter) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		records []Record
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			skipped++
			continue
		}
		if filter.match(r) {
			records = append(records, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read audit log: %w", err)
	}
	return records, skipped, nil
}

// Tally counts records per decision
func Tally(records []Record) map[types.Decision]int {
	counts := make(map[types.Decision]int)
	for _, r := range records {
		counts[r.Decision]++
	}
	return counts
}
