// Package consolidate merges tickets that describe one incident into a single
// primary ticket.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/types"
)

// ErrNotEnoughTickets is returned when fewer than two distinct tickets are given
var ErrNotEnoughTickets = errors.New("not enough tickets to consolidate")

// Partition is the primary ticket and the duplicates to fold into it
type Partition struct {
	Primary    types.ExternalTicket   `json:"primary"`
	Duplicates []types.ExternalTicket `json:"duplicates"`
}

// DuplicateKeys returns the keys of the duplicates in partition order
func (p *Partition) DuplicateKeys() []string {
	keys := make([]string, 0, len(p.Duplicates))
	for _, d := range p.Duplicates {
		keys = append(keys, d.Key)
	}
	return keys
}

// Consolidate picks the ticket with the lowest numeric key suffix as primary.
// Keys without a numeric suffix rank after all numbered keys, ordered by key.
// Duplicates keep their input order; a key given twice is counted once.
func Consolidate(tickets []types.ExternalTicket) (*Partition, error) {
	unique := make([]types.ExternalTicket, 0, len(tickets))
	seen := make(map[string]struct{}, len(tickets))
	for _, t := range tickets {
		if t.Key == "" {
			return nil, fmt.Errorf("ticket with empty key")
		}
		if _, ok := seen[t.Key]; ok {
			continue
		}
		seen[t.Key] = struct{}{}
		unique = append(unique, t)
	}
	if len(unique) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughTickets, len(unique))
	}

	primary := 0
	for i := 1; i < len(unique); i++ {
		if less(unique[i].Key, unique[primary].Key) {
			primary = i
		}
	}

	p := &Partition{Primary: unique[primary]}
	for i, t := range unique {
		if i != primary {
			p.Duplicates = append(p.Duplicates, t)
		}
	}
	return p, nil
}

// ConsolidateKeys is Consolidate for bare ticket keys
func ConsolidateKeys(keys []string) (*Partition, error) {
	tickets := make([]types.ExternalTicket, len(keys))
	for i, k := range keys {
		tickets[i] = types.ExternalTicket{Key: strings.TrimSpace(k)}
	}
	return Consolidate(tickets)
}

// less orders keys by numeric suffix, falling back to the key itself
func less(a, b string) bool {
	na, okA := keyNumber(a)
	nb, okB := keyNumber(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	}
	return a < b
}

// keyNumber parses the digits after the last '-' of a key such as "OPS-42"
func keyNumber(key string) (int, bool) {
	i := strings.LastIndex(key, "-")
	if i < 0 || i == len(key)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Apply closes every duplicate, links it to the primary, and leaves a comment
// on the primary naming the merged tickets. Every duplicate is attempted;
// failures are returned joined.
func Apply(ctx context.Context, tracker corpus.Corpus, p *Partition) error {
	logger := slog.Default().With("component", "consolidate")
	primary := p.Primary.Key

	var errs []error
	var merged []string
	for _, d := range p.Duplicates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := tracker.Close(ctx, d.Key, "duplicate of "+primary); err != nil {
			logger.Warn("failed to close duplicate", "ticket", d.Key, "primary", primary, "error", err)
			errs = append(errs, fmt.Errorf("closing %s: %w", d.Key, err))
			continue
		}
		if err := tracker.Link(ctx, d.Key, primary); err != nil {
			logger.Warn("failed to link duplicate", "ticket", d.Key, "primary", primary, "error", err)
			errs = append(errs, fmt.Errorf("linking %s to %s: %w", d.Key, primary, err))
		}
		merged = append(merged, d.Key)
	}

	if len(merged) > 0 {
		sort.Slice(merged, func(i, j int) bool { return less(merged[i], merged[j]) })
		text := fmt.Sprintf("Consolidated duplicates into this ticket: %s", strings.Join(merged, ", "))
		if err := tracker.Comment(ctx, primary, text); err != nil {
			errs = append(errs, fmt.Errorf("commenting on %s: %w", primary, err))
		}
	}
	logger.Info("consolidation applied", "primary", primary, "merged", len(merged), "failed", len(errs))
	return errors.Join(errs...)
}
