// Package controller walks a run's error logs once, in order, and decides for
// each one whether to file a ticket, annotate an existing one, or skip it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/triage/internal/ai"
	"github.com/steveyegge/triage/internal/audit"
	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/correlator"
	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/logsource"
	"github.com/steveyegge/triage/internal/types"
)

// Config holds the per-run knobs
type Config struct {
	// MaxTicketsPerRun caps ticket creation; 0 disables creation entirely
	MaxTicketsPerRun int
	// CommentCooldown is the minimum gap between comments on one ticket; 0 disables it
	CommentCooldown time.Duration
	// WindowHours labels occurrence counts for the classifier
	WindowHours int
	// DryRun records "simulated" instead of creating, and posts no comments
	DryRun bool
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MaxTicketsPerRun < 0 {
		return fmt.Errorf("max_tickets_per_run must be >= 0 (got %d)", c.MaxTicketsPerRun)
	}
	if c.CommentCooldown < 0 {
		return fmt.Errorf("comment cooldown must be >= 0 (got %v)", c.CommentCooldown)
	}
	if c.WindowHours <= 0 {
		return fmt.Errorf("window_hours must be positive (got %d)", c.WindowHours)
	}
	return nil
}

// Controller drives the traversal state machine
type Controller struct {
	classifier ai.Classifier
	correlator *correlator.Correlator
	corpus     corpus.Corpus
	audit      audit.Sink
	cooldown   *Cooldown
	config     Config
	logger     *slog.Logger
}

// New creates a controller. Invalid configuration or missing collaborators
// are reported here, before any log is processed. A nil sink discards audit records.
func New(classifier ai.Classifier, corr *correlator.Correlator, tracker corpus.Corpus, sink audit.Sink, config Config) (*Controller, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if corr == nil {
		return nil, errors.New("correlator is required")
	}
	if tracker == nil {
		return nil, errors.New("corpus is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if sink == nil {
		sink = audit.Discard
	}

	var history corpus.CommentHistory
	if h, ok := tracker.(corpus.CommentHistory); ok {
		history = h
	}

	return &Controller{
		classifier: classifier,
		correlator: corr,
		corpus:     tracker,
		audit:      sink,
		cooldown:   NewCooldown(config.CommentCooldown, history),
		config:     config,
		logger:     slog.Default().With("component", "controller"),
	}, nil
}

// step carries one incident between states
type step struct {
	index    int
	incident types.Incident
	verdict  *types.Verdict
	reason   string
}

// Run fetches logs from source and traverses them. A fetch failure is logged
// and yields a finished run with no outcomes. The only error returned is
// context cancellation, in which case the run is left unfinished.
func (c *Controller) Run(ctx context.Context, source logsource.Source, filter logsource.Filter) (*RunState, error) {
	rs := newRunState(uuid.New().String(), c.config.DryRun)
	c.logger.Info("run started", "run_id", rs.ID(), "dry_run", rs.DryRun(), "cap", c.config.MaxTicketsPerRun)

	logs, err := source.Fetch(ctx, filter)
	if err != nil {
		if ctx.Err() != nil {
			return rs, ctx.Err()
		}
		c.logger.Warn("log fetch failed, nothing to process", "run_id", rs.ID(), "error", err)
		rs.finish()
		c.logRunFinished(rs)
		return rs, nil
	}
	return c.traverse(ctx, rs, logs)
}

// RunLogs traverses an already fetched log list
func (c *Controller) RunLogs(ctx context.Context, logs []types.LogEvent) (*RunState, error) {
	rs := newRunState(uuid.New().String(), c.config.DryRun)
	c.logger.Info("run started", "run_id", rs.ID(), "dry_run", rs.DryRun(), "cap", c.config.MaxTicketsPerRun)
	return c.traverse(ctx, rs, logs)
}

func (c *Controller) traverse(ctx context.Context, rs *RunState, logs []types.LogEvent) (*RunState, error) {
	rs.setLogs(logs)
	if len(logs) == 0 {
		rs.finish()
		c.logRunFinished(rs)
		return rs, nil
	}
	c.seed(ctx, rs)

	var cur step
	rs.setState(StateAnalyzing)
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("run canceled", "run_id", rs.ID(), "cursor", rs.Cursor(), "error", err)
			return rs, err
		}

		var next State
		switch rs.State() {
		case StateAnalyzing:
			cur, next = c.analyze(ctx, rs)
		case StateCreating:
			next = c.create(ctx, rs, cur)
		case StateSkipping:
			next = c.skip(rs, cur)
		case StateAdvancing:
			if !c.advance(rs) {
				rs.finish()
				c.logRunFinished(rs)
				return rs, nil
			}
			next = StateAnalyzing
		case StateTerminal:
			return rs, nil
		default:
			return rs, fmt.Errorf("unexpected state %s", rs.State())
		}
		rs.setState(next)
	}
}

// seed loads fingerprint labels of open tickets so earlier runs' tickets are
// found without a similarity query. Failures only cost that shortcut.
func (c *Controller) seed(ctx context.Context, rs *RunState) {
	lister, ok := c.corpus.(corpus.FingerprintLister)
	if !ok {
		return
	}
	labels, err := lister.OpenFingerprintLabels(ctx, c.correlator.Config().OpenStatuses)
	if err != nil {
		c.logger.Warn("could not load fingerprints of open tickets", "run_id", rs.ID(), "error", err)
		return
	}
	for key, ls := range labels {
		for _, l := range ls {
			if short, ok := fingerprint.ShortFromLabel(l); ok {
				rs.seed(short, key)
			}
		}
	}
	c.logger.Debug("seeded fingerprints from open tickets", "run_id", rs.ID(), "count", rs.SeededCount())
}

// advance moves the cursor one step and looks ahead: while the event under
// the cursor repeats a fingerprint already analyzed this run, it is recorded
// skipped_duplicate and the cursor moves on. It returns false past the end.
func (c *Controller) advance(rs *RunState) bool {
	for rs.advance() {
		index, event, _ := rs.current()
		fp := fingerprint.Of(event)
		if !rs.seen(fp) {
			return true
		}
		c.finalize(rs, skippedDuplicate(index, fp))
	}
	return false
}

func skippedDuplicate(index int, fp types.Fingerprint) types.Outcome {
	return types.Outcome{
		Index:       index,
		Fingerprint: fp,
		Decision:    types.DecisionSkippedDuplicate,
		Match:       types.MatchResult{Kind: types.MatchNone},
		Reason:      "fingerprint already analyzed this run",
	}
}

func (c *Controller) analyze(ctx context.Context, rs *RunState) (step, State) {
	index, event, ok := rs.current()
	if !ok {
		return step{}, StateAdvancing
	}
	fp := fingerprint.Of(event)

	if !rs.markSeen(fp) {
		c.finalize(rs, skippedDuplicate(index, fp))
		return step{}, StateAdvancing
	}

	cur := step{
		index: index,
		incident: types.Incident{
			Event:       event.Sanitized(),
			Fingerprint: fp,
			Occurrences: rs.Occurrences(fp),
			WindowHours: c.config.WindowHours,
		},
	}

	verdict, err := c.classifier.Classify(ctx, cur.incident)
	if err != nil {
		c.logger.Warn("classifier failed, skipping incident",
			"run_id", rs.ID(), "fingerprint", fp, "error", err)
		cur.reason = fmt.Sprintf("classifier error: %v", err)
		return cur, StateSkipping
	}
	if verdict == nil || !verdict.CreateTicket {
		cur.reason = "classifier declined"
		return cur, StateSkipping
	}
	cur.verdict = verdict
	return cur, StateCreating
}

func (c *Controller) skip(rs *RunState, cur step) State {
	c.finalize(rs, types.Outcome{
		Index:       cur.index,
		Fingerprint: cur.incident.Fingerprint,
		Decision:    types.DecisionSkipped,
		Match:       types.MatchResult{Kind: types.MatchNone},
		Reason:      cur.reason,
	})
	return StateAdvancing
}

func (c *Controller) create(ctx context.Context, rs *RunState, cur step) State {
	fp := cur.incident.Fingerprint
	outcome := types.Outcome{
		Index:       cur.index,
		Fingerprint: fp,
		ErrorType:   cur.verdict.ErrorType,
	}

	// Correlate before the cap check so matches are annotated even once the cap is hit
	match := c.correlator.Correlate(ctx, cur.incident, rs)
	outcome.Match = match

	if match.Matched() {
		outcome.Decision = types.DecisionDuplicate
		outcome.TicketKey = match.TicketKey
		outcome.Reason = c.annotate(ctx, rs, cur.incident, match)
		c.finalize(rs, outcome)
		return StateAdvancing
	}

	if !rs.reserve(c.config.MaxTicketsPerRun) {
		outcome.Decision = types.DecisionCapReached
		outcome.Reason = fmt.Sprintf("cap of %d tickets reached", c.config.MaxTicketsPerRun)
		c.finalize(rs, outcome)
		return StateAdvancing
	}

	payload := buildPayload(cur.incident, cur.verdict)

	if rs.DryRun() {
		rs.markCreated(fp, "")
		outcome.Decision = types.DecisionSimulated
		outcome.Reason = "dry run: " + payload.Summary
		c.finalize(rs, outcome)
		return StateAdvancing
	}

	ticket, err := c.corpus.Create(ctx, payload)
	if err != nil {
		rs.release()
		c.logger.Warn("ticket creation failed, skipping incident",
			"run_id", rs.ID(), "fingerprint", fp, "error", err)
		outcome.Decision = types.DecisionSkipped
		outcome.Reason = fmt.Sprintf("create failed: %v", err)
		c.finalize(rs, outcome)
		return StateAdvancing
	}

	rs.markCreated(fp, ticket.Key)
	outcome.Decision = types.DecisionCreated
	outcome.TicketKey = ticket.Key
	c.logger.Info("ticket created",
		"run_id", rs.ID(), "ticket", ticket.Key, "error_type", cur.verdict.ErrorType,
		"occurrences", cur.incident.Occurrences)
	c.finalize(rs, outcome)
	return StateAdvancing
}

// annotate comments on a matched ticket unless the run is dry or the ticket
// is cooling down. It returns the reason recorded with the duplicate outcome.
func (c *Controller) annotate(ctx context.Context, rs *RunState, incident types.Incident, match types.MatchResult) string {
	key := match.TicketKey
	switch {
	case key == "":
		return "matched a ticket simulated earlier in this run"
	case rs.DryRun():
		return "dry run: comment suppressed"
	}

	allowed, err := c.cooldown.Allow(ctx, key)
	if err != nil {
		c.logger.Warn("comment history lookup failed", "run_id", rs.ID(), "ticket", key, "error", err)
	}
	if !allowed {
		return "cooldown"
	}

	if err := c.corpus.Comment(ctx, key, commentText(incident, match)); err != nil {
		c.logger.Warn("comment failed", "run_id", rs.ID(), "ticket", key, "error", err)
		return fmt.Sprintf("comment failed: %v", err)
	}
	c.cooldown.Record(key)
	return "commented"
}

// finalize records an outcome in the run state and the audit trail
func (c *Controller) finalize(rs *RunState, o types.Outcome) {
	rs.record(o)
	if err := c.audit.Write(audit.NewRecord(rs.ID(), o, rs.DryRun())); err != nil {
		c.logger.Warn("audit write failed", "run_id", rs.ID(), "index", o.Index, "error", err)
	}
	c.logger.Debug("decision", "run_id", rs.ID(), "index", o.Index, "decision", o.Decision,
		"ticket", o.TicketKey, "match", o.Match.Kind)
}

func (c *Controller) logRunFinished(rs *RunState) {
	s := rs.Summary()
	c.logger.Info("run finished",
		"run_id", s.RunID, "logs", s.Total, "distinct", s.Distinct,
		"created", s.Counts[types.DecisionCreated], "duplicate", s.Counts[types.DecisionDuplicate],
		"skipped_duplicate", s.Counts[types.DecisionSkippedDuplicate], "duplicates_total", s.Duplicates,
		"skipped", s.Counts[types.DecisionSkipped], "cap_reached", s.Counts[types.DecisionCapReached],
		"simulated", s.Counts[types.DecisionSimulated])
}
