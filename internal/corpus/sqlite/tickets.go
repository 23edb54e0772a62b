package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/types"
)

// Comment is a stored ticket comment
type Comment struct {
	ID        int64
	TicketKey string
	Body      string
	CreatedAt time.Time
}

// Create files a new ticket and assigns it the next key for the project
func (s *Store) Create(ctx context.Context, payload *types.TicketPayload) (*types.ExternalTicket, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ticket_counters (project, last_id) VALUES (?, 1)
		ON CONFLICT(project) DO UPDATE SET last_id = last_id + 1
		RETURNING last_id
	`, s.project).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to generate next key for project %s: %w", s.project, err)
	}
	key := fmt.Sprintf("%s-%d", s.project, next)
	now := s.timestamp()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (key, summary, description, status, severity, error_type, log_excerpt, created_at, updated_at)
		VALUES (?, ?, ?, 'open', ?, ?, ?, ?, ?)
	`, key, payload.Summary, payload.Description, payload.Severity, payload.ErrorType, payload.LogExcerpt, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket: %w", err)
	}

	for _, label := range payload.Labels {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO labels (ticket_key, label) VALUES (?, ?)`, key, label); err != nil {
			return nil, fmt.Errorf("failed to add label %s: %w", label, err)
		}
	}

	if err := recordEvent(ctx, tx, key, "created", payload.Summary, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}

	s.logger.Debug("ticket created", "key", key, "labels", payload.Labels)
	return s.Get(ctx, key)
}

// Get returns a ticket by key, or corpus.ErrTicketNotFound
func (s *Store) Get(ctx context.Context, key string) (*types.ExternalTicket, error) {
	var (
		ticket  types.ExternalTicket
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, summary, status, created_at FROM tickets WHERE key = ?
	`, key).Scan(&ticket.Key, &ticket.Summary, &ticket.Status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, corpus.ErrTicketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", key, err)
	}
	ticket.CreatedAt = parseTime(created)

	labels, err := s.labelsFor(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	ticket.Labels = labels[key]
	return &ticket, nil
}

// Comment appends a comment to a ticket
func (s *Store) Comment(ctx context.Context, key, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := exists(ctx, tx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", key, corpus.ErrTicketNotFound)
	}

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO comments (ticket_key, body, created_at) VALUES (?, ?, ?)
	`, key, text, now); err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET updated_at = ? WHERE key = ?`, now, key); err != nil {
		return fmt.Errorf("failed to touch ticket: %w", err)
	}
	if err := recordEvent(ctx, tx, key, "commented", "", now); err != nil {
		return err
	}
	return tx.Commit()
}

// Close marks a ticket closed with a resolution reason. Closing an already
// closed ticket is a no-op.
func (s *Store) Close(ctx context.Context, key, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	result, err := tx.ExecContext(ctx, `
		UPDATE tickets SET status = ?, resolution = ?, closed_at = ?, updated_at = ?
		WHERE key = ? AND status != ?
	`, StatusClosed, reason, now, now, key, StatusClosed)
	if err != nil {
		return fmt.Errorf("failed to close ticket %s: %w", key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		ok, err := exists(ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", key, corpus.ErrTicketNotFound)
		}
		return nil
	}

	if err := recordEvent(ctx, tx, key, "closed", reason, now); err != nil {
		return err
	}
	return tx.Commit()
}

// Link records a "relates to" link from key to relatedKey. Linking twice is a no-op.
func (s *Store) Link(ctx context.Context, key, relatedKey string) error {
	if key == relatedKey {
		return fmt.Errorf("cannot link ticket %s to itself", key)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range []string{key, relatedKey} {
		ok, err := exists(ctx, tx, k)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", k, corpus.ErrTicketNotFound)
		}
	}

	now := s.timestamp()
	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO links (ticket_key, related_key, created_at) VALUES (?, ?, ?)
	`, key, relatedKey, now)
	if err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", key, relatedKey, err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		if err := recordEvent(ctx, tx, key, "linked", relatedKey, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LastCommentAt returns when key was last commented on, or the zero time
func (s *Store) LastCommentAt(ctx context.Context, key string) (time.Time, error) {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM comments WHERE ticket_key = ?
	`, key).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last comment for %s: %w", key, err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return parseTime(last.String), nil
}

// Comments returns the comments on a ticket, oldest first
func (s *Store) Comments(ctx context.Context, key string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_key, body, created_at FROM comments
		WHERE ticket_key = ? ORDER BY id
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []Comment
	for rows.Next() {
		var (
			c       Comment
			created string
		)
		if err := rows.Scan(&c.ID, &c.TicketKey, &c.Body, &created); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.CreatedAt = parseTime(created)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Links returns the keys linked from key
func (s *Store) Links(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT related_key FROM links WHERE ticket_key = ? ORDER BY created_at, related_key
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func recordEvent(ctx context.Context, tx *sql.Tx, key, eventType, detail, at string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (ticket_key, event_type, detail, created_at) VALUES (?, ?, ?, ?)
	`, key, eventType, detail, at)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}
