package corpus

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/steveyegge/triage/internal/types"
)

// Throttled paces every call to the wrapped corpus with a token bucket.
type Throttled struct {
	inner   Corpus
	limiter *rate.Limiter
}

// Compile-time checks
var (
	_ Corpus            = (*Throttled)(nil)
	_ CommentHistory    = (*Throttled)(nil)
	_ FingerprintLister = (*Throttled)(nil)
)

// NewThrottled wraps inner. perSecond <= 0 disables pacing.
func NewThrottled(inner Corpus, perSecond float64) *Throttled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (t *Throttled) wait(ctx context.Context, op string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("corpus %s: rate limiter: %w", op, err)
	}
	return nil
}

func (t *Throttled) SearchSimilar(ctx context.Context, text string) ([]types.ScoredTicket, error) {
	if err := t.wait(ctx, "search_similar"); err != nil {
		return nil, err
	}
	return t.inner.SearchSimilar(ctx, text)
}

func (t *Throttled) SearchByKeywords(ctx context.Context, terms []string, statuses []string) ([]types.ExternalTicket, error) {
	if err := t.wait(ctx, "search_keywords"); err != nil {
		return nil, err
	}
	return t.inner.SearchByKeywords(ctx, terms, statuses)
}

func (t *Throttled) Get(ctx context.Context, key string) (*types.ExternalTicket, error) {
	if err := t.wait(ctx, "get"); err != nil {
		return nil, err
	}
	return t.inner.Get(ctx, key)
}

func (t *Throttled) Create(ctx context.Context, payload *types.TicketPayload) (*types.ExternalTicket, error) {
	if err := t.wait(ctx, "create"); err != nil {
		return nil, err
	}
	return t.inner.Create(ctx, payload)
}

func (t *Throttled) Comment(ctx context.Context, key, text string) error {
	if err := t.wait(ctx, "comment"); err != nil {
		return err
	}
	return t.inner.Comment(ctx, key, text)
}

func (t *Throttled) Close(ctx context.Context, key, reason string) error {
	if err := t.wait(ctx, "close"); err != nil {
		return err
	}
	return t.inner.Close(ctx, key, reason)
}

func (t *Throttled) Link(ctx context.Context, key, relatedKey string) error {
	if err := t.wait(ctx, "link"); err != nil {
		return err
	}
	return t.inner.Link(ctx, key, relatedKey)
}

// LastCommentAt forwards to the inner corpus when it tracks comments; otherwise
// it reports no history.
func (t *Throttled) LastCommentAt(ctx context.Context, key string) (time.Time, error) {
	h, ok := t.inner.(CommentHistory)
	if !ok {
		return time.Time{}, nil
	}
	if err := t.wait(ctx, "last_comment"); err != nil {
		return time.Time{}, err
	}
	return h.LastCommentAt(ctx, key)
}

// OpenFingerprintLabels forwards to the inner corpus when supported.
func (t *Throttled) OpenFingerprintLabels(ctx context.Context, statuses []string) (map[string][]string, error) {
	l, ok := t.inner.(FingerprintLister)
	if !ok {
		return nil, nil
	}
	if err := t.wait(ctx, "fingerprint_labels"); err != nil {
		return nil, err
	}
	return l.OpenFingerprintLabels(ctx, statuses)
}
