// Package corpus defines the contract of the external issue tracker that the
// correlator searches and the controller files tickets into.
package corpus

import (
	"context"
	"errors"
	"time"

	"github.com/steveyegge/triage/internal/types"
)

// ErrTicketNotFound is returned when a ticket key does not exist
var ErrTicketNotFound = errors.New("ticket not found")

// Searcher is the read-only subset used by the correlator.
type Searcher interface {
	// SearchSimilar returns tickets whose stored log excerpt resembles text,
	// each with a similarity score in [0,1]. Ordering is not guaranteed.
	SearchSimilar(ctx context.Context, text string) ([]types.ScoredTicket, error)

	// SearchByKeywords returns tickets matching all terms whose status is in
	// statuses, most relevant first.
	SearchByKeywords(ctx context.Context, terms []string, statuses []string) ([]types.ExternalTicket, error)
}

// Corpus is the full ticket tracker contract
type Corpus interface {
	Searcher

	Get(ctx context.Context, key string) (*types.ExternalTicket, error)
	Create(ctx context.Context, payload *types.TicketPayload) (*types.ExternalTicket, error)
	Comment(ctx context.Context, key, text string) error
	Close(ctx context.Context, key, reason string) error
	Link(ctx context.Context, key, relatedKey string) error
}

// CommentHistory is implemented by corpora that know when a ticket was last commented on.
type CommentHistory interface {
	// LastCommentAt returns the zero time when the ticket has no comments.
	LastCommentAt(ctx context.Context, key string) (time.Time, error)
}

// FingerprintLister is implemented by corpora that can list the fingerprint
// labels of tickets still open, keyed by ticket.
type FingerprintLister interface {
	OpenFingerprintLabels(ctx context.Context, statuses []string) (map[string][]string, error)
}
