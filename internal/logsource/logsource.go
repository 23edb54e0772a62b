// Package logsource fetches the error logs a run works through.
package logsource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/triage/internal/types"
)

// Filter narrows the events a Source returns
type Filter struct {
	Since  time.Time // Zero means no lower bound
	Until  time.Time // Zero means no upper bound
	Logger string    // Case-insensitive substring of the logger name
	Terms  []string  // Every term must appear in message or detail (case-insensitive)
	Limit  int       // 0 means unlimited
}

// Match reports whether e passes the filter. Events without a parseable
// timestamp pass the time bounds.
func (f Filter) Match(e types.LogEvent) bool {
	if ts, ok := e.Time(); ok {
		if !f.Since.IsZero() && ts.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && ts.After(f.Until) {
			return false
		}
	}
	if f.Logger != "" && !strings.Contains(strings.ToLower(e.Logger), strings.ToLower(f.Logger)) {
		return false
	}
	if len(f.Terms) > 0 {
		haystack := strings.ToLower(e.Message + "\n" + e.Detail)
		for _, term := range f.Terms {
			if !strings.Contains(haystack, strings.ToLower(term)) {
				return false
			}
		}
	}
	return true
}

// WindowHours returns the look-back window in whole hours, rounding up, for
// occurrence labels. It is 0 when Since is unset.
func (f Filter) WindowHours(now time.Time) int {
	if f.Since.IsZero() {
		return 0
	}
	end := now
	if !f.Until.IsZero() {
		end = f.Until
	}
	d := end.Sub(f.Since)
	if d <= 0 {
		return 0
	}
	return int((d + time.Hour - 1) / time.Hour)
}

// Source fetches error log events in backend order
type Source interface {
	Fetch(ctx context.Context, filter Filter) ([]types.LogEvent, error)
}

// File reads newline-delimited JSON events from a file, or stdin for "-".
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile returns a Source over the NDJSON file at path
func NewFile(path string) *File {
	return &File{path: path, logger: slog.Default().With("component", "logsource")}
}

func (f *File) Fetch(ctx context.Context, filter Filter) ([]types.LogEvent, error) {
	var r io.Reader
	if f.path == "-" {
		r = os.Stdin
	} else {
		file, err := os.Open(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = file.Close() }()
		r = file
	}

	events, skipped, err := Decode(ctx, r, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if skipped > 0 {
		f.logger.Warn("skipped malformed log lines", "path", f.path, "skipped", skipped)
	}
	return events, nil
}

// Decode reads NDJSON events from r, keeping those that match filter.
// It returns the number of malformed lines skipped.
func Decode(ctx context.Context, r io.Reader, filter Filter) ([]types.LogEvent, int, error) {
	var (
		events  []types.LogEvent
		skipped int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e types.LogEvent
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			skipped++
			continue
		}
		if !filter.Match(e) {
			continue
		}
		events = append(events, e)
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return events, skipped, nil
}

// Static serves a fixed list of events
type Static []types.LogEvent

func (s Static) Fetch(ctx context.Context, filter Filter) ([]types.LogEvent, error) {
	var out []types.LogEvent
	for _, e := range s {
		if !filter.Match(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
