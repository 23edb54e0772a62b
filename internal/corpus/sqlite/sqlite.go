// Package sqlite is a local ticket tracker backed by SQLite. It implements
// corpus.Corpus so runs can be exercised end to end without a remote tracker.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/triage/internal/corpus"
)

// StatusClosed is the status written by Close
const StatusClosed = "closed"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var projectRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// Store implements corpus.Corpus on a SQLite database
type Store struct {
	db      *sql.DB
	project string // Key prefix, e.g. "OPS" for OPS-1, OPS-2
	now     func() time.Time
	logger  *slog.Logger
}

var (
	_ corpus.Corpus            = (*Store)(nil)
	_ corpus.CommentHistory    = (*Store)(nil)
	_ corpus.FingerprintLister = (*Store)(nil)
)

// New opens (creating if needed) the tracker database at path.
// project is the uppercase key prefix for new tickets.
func New(path, project string) (*Store, error) {
	if !projectRegex.MatchString(project) {
		return nil, fmt.Errorf("invalid project key %q (expected uppercase letters and digits)", project)
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{
		db:      db,
		project: project,
		now:     time.Now,
		logger:  slog.Default().With("component", "corpus", "backend", "sqlite"),
	}, nil
}

// CloseDB closes the underlying database handle.
func (s *Store) CloseDB() error {
	return s.db.Close()
}

// Project returns the key prefix for tickets created by this store
func (s *Store) Project() string {
	return s.project
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// exists reports whether key names a ticket. q is a *sql.DB or *sql.Tx.
func exists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, key string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up ticket %s: %w", key, err)
	}
	return n > 0, nil
}
