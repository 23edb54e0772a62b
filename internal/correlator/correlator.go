// Package correlator decides whether an incident is already tracked by a
// ticket, so that a new one is not filed for it.
//
// Strategies run in a fixed order and stop at the first hit:
//
//  1. Fingerprint: a ticket was already filed for this fingerprint (no I/O).
//  2. Direct similarity: best stored log excerpt scores >= DirectLogThreshold.
//  3. Partial similarity: best score >= max(PartialLogThreshold, SimilarityThreshold).
//  4. Keyword query: ANDed significant terms against open tickets; the first
//     result matches with score 0.0.
//
// Every incident costs at most one similarity query and one keyword query.
// Corpus failures are logged and degrade to no match, so a backend hiccup
// leads to a ticket being filed rather than an incident being dropped.
package correlator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/similarity"
	"github.com/steveyegge/triage/internal/types"
)

// CreatedLookup answers step 1 from the run's bookkeeping.
type CreatedLookup interface {
	// CreatedTicket returns the ticket filed for fp, if any. The key may be
	// empty when a ticket is known to exist but its key is not.
	CreatedTicket(fp types.Fingerprint) (key string, ok bool)
}

// Correlator runs the escalating match strategies against a corpus
type Correlator struct {
	searcher corpus.Searcher
	config   Config
	logger   *slog.Logger
}

// New creates a correlator. It fails on a nil searcher or invalid config.
func New(searcher corpus.Searcher, config Config) (*Correlator, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Correlator{
		searcher: searcher,
		config:   config,
		logger:   slog.Default().With("component", "correlator"),
	}, nil
}

// Config returns the correlator's configuration
func (c *Correlator) Config() Config {
	return c.config
}

// Correlate returns the first matching strategy's result, or MatchNone. A
// result that fails validation is logged and reported as MatchNone.
func (c *Correlator) Correlate(ctx context.Context, incident types.Incident, created CreatedLookup) types.MatchResult {
	match := c.correlate(ctx, incident, created)
	if err := match.Validate(); err != nil {
		c.logger.Warn("discarding invalid match",
			"fingerprint", incident.Fingerprint, "ticket", match.TicketKey, "kind", match.Kind, "error", err)
		return noMatch()
	}
	return match
}

func (c *Correlator) correlate(ctx context.Context, incident types.Incident, created CreatedLookup) types.MatchResult {
	if created != nil {
		if key, ok := created.CreatedTicket(incident.Fingerprint); ok {
			return types.MatchResult{TicketKey: key, Score: 1.0, Kind: types.MatchFingerprint}
		}
	}

	message := incident.Event.Sanitized().Message

	candidates, err := c.searcher.SearchSimilar(ctx, message)
	if err != nil {
		c.logger.Warn("similarity search failed, assuming no match",
			"fingerprint", incident.Fingerprint, "error", err)
		return noMatch()
	}
	if best, ok := Best(candidates); ok {
		switch {
		case best.Score >= c.config.DirectLogThreshold:
			c.logger.Debug("direct similarity match",
				"fingerprint", incident.Fingerprint, "ticket", best.Ticket.Key, "score", best.Score)
			return types.MatchResult{TicketKey: best.Ticket.Key, Score: best.Score, Kind: types.MatchDirectSimilarity}
		case best.Score >= c.config.EffectivePartialThreshold():
			c.logger.Debug("partial similarity match",
				"fingerprint", incident.Fingerprint, "ticket", best.Ticket.Key, "score", best.Score)
			return types.MatchResult{TicketKey: best.Ticket.Key, Score: best.Score, Kind: types.MatchPartialSimilarity}
		}
	}

	terms := similarity.Keywords(message, c.config.MaxKeywords)
	if len(terms) < c.config.MinKeywords {
		return noMatch()
	}
	tickets, err := c.searcher.SearchByKeywords(ctx, terms, c.config.OpenStatuses)
	if err != nil {
		c.logger.Warn("keyword search failed, assuming no match",
			"fingerprint", incident.Fingerprint, "terms", terms, "error", err)
		return noMatch()
	}
	for _, t := range tickets {
		if t.Key == "" {
			continue
		}
		c.logger.Debug("keyword match", "fingerprint", incident.Fingerprint, "ticket", t.Key, "terms", terms)
		return types.MatchResult{TicketKey: t.Key, Score: 0.0, Kind: types.MatchJQL}
	}
	return noMatch()
}

func noMatch() types.MatchResult {
	return types.MatchResult{Kind: types.MatchNone}
}

// Best picks the highest-scoring candidate. Ties go to the most recently
// created ticket, then to the lexically smaller key. Scores are clamped to [0,1].
func Best(candidates []types.ScoredTicket) (types.ScoredTicket, bool) {
	var best types.ScoredTicket
	found := false
	for _, c := range candidates {
		if c.Ticket.Key == "" {
			continue
		}
		c.Score = min(max(c.Score, 0.0), 1.0)
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func better(a, b types.ScoredTicket) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Ticket.CreatedAt.Equal(b.Ticket.CreatedAt) {
		return a.Ticket.CreatedAt.After(b.Ticket.CreatedAt)
	}
	return a.Ticket.Key < b.Ticket.Key
}
