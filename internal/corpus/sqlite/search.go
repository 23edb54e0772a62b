package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/similarity"
	"github.com/steveyegge/triage/internal/types"
)

const (
	// similarityScanLimit bounds how many recent tickets SearchSimilar scores.
	similarityScanLimit = 500
	keywordResultLimit  = 20
)

// SearchSimilar scores the stored log excerpt (or summary, when a ticket has
// none) of recent non-closed tickets against text, best first. Tickets scoring
// zero are omitted.
func (s *Store) SearchSimilar(ctx context.Context, text string) ([]types.ScoredTicket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, summary, status, created_at, log_excerpt FROM tickets
		WHERE status != ?
		ORDER BY created_at DESC
		LIMIT ?
	`, StatusClosed, similarityScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		results []types.ScoredTicket
		keys    []string
	)
	for rows.Next() {
		var (
			t       types.ExternalTicket
			created string
			excerpt string
		)
		if err := rows.Scan(&t.Key, &t.Summary, &t.Status, &created, &excerpt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if strings.TrimSpace(excerpt) == "" {
			excerpt = t.Summary
		}
		score := similarity.TokenSetRatio(text, excerpt)
		if score <= 0 {
			continue
		}
		t.CreatedAt = parseTime(created)
		results = append(results, types.ScoredTicket{Ticket: t, Score: score})
		keys = append(keys, t.Key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	if err := s.attachLabels(ctx, keys, func(i int, labels []string) { results[i].Ticket.Labels = labels }); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// SearchByKeywords returns tickets in one of statuses whose summary,
// description or log excerpt contains every term (case-insensitive), newest first.
func (s *Store) SearchByKeywords(ctx context.Context, terms []string, statuses []string) ([]types.ExternalTicket, error) {
	if len(terms) == 0 || len(statuses) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	where = append(where, fmt.Sprintf("status IN (%s)", placeholders(len(statuses))))
	args = append(args, stringArgs(statuses)...)
	for _, term := range terms {
		where = append(where, `(summary || ' ' || description || ' ' || log_excerpt) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscape(term)+"%")
	}
	args = append(args, keywordResultLimit)

	query := fmt.Sprintf(`
		SELECT key, summary, status, created_at FROM tickets
		WHERE %s
		ORDER BY created_at DESC, key
		LIMIT ?
	`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		tickets []types.ExternalTicket
		keys    []string
	)
	for rows.Next() {
		var (
			t       types.ExternalTicket
			created string
		)
		if err := rows.Scan(&t.Key, &t.Summary, &t.Status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.CreatedAt = parseTime(created)
		tickets = append(tickets, t)
		keys = append(keys, t.Key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	if err := s.attachLabels(ctx, keys, func(i int, labels []string) { tickets[i].Labels = labels }); err != nil {
		return nil, err
	}
	return tickets, nil
}

// OpenFingerprintLabels maps each ticket in statuses to its fingerprint labels.
// Tickets without a fingerprint label are omitted.
func (s *Store) OpenFingerprintLabels(ctx context.Context, statuses []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if len(statuses) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT l.ticket_key, l.label FROM labels l
		JOIN tickets t ON t.key = l.ticket_key
		WHERE t.status IN (%s) AND l.label LIKE ? ESCAPE '\'
		ORDER BY l.ticket_key, l.label
	`, placeholders(len(statuses)))
	args := append(stringArgs(statuses), likeEscape(fingerprint.LabelPrefix)+"%")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprint labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, label string
		if err := rows.Scan(&key, &label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		out[key] = append(out[key], label)
	}
	return out, rows.Err()
}

// attachLabels loads labels for keys and hands them to set by position.
func (s *Store) attachLabels(ctx context.Context, keys []string, set func(i int, labels []string)) error {
	if len(keys) == 0 {
		return nil
	}
	labels, err := s.labelsFor(ctx, keys)
	if err != nil {
		return err
	}
	for i, k := range keys {
		set(i, labels[k])
	}
	return nil
}

func (s *Store) labelsFor(ctx context.Context, keys []string) (map[string][]string, error) {
	out := make(map[string][]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
		SELECT ticket_key, label FROM labels WHERE ticket_key IN (%s) ORDER BY ticket_key, label
	`, placeholders(len(keys)))

	rows, err := s.db.QueryContext(ctx, query, stringArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, label string
		if err := rows.Scan(&key, &label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		out[key] = append(out[key], label)
	}
	return out, rows.Err()
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
