package controller

import (
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/types"
)

// State is a node of the traversal state machine.
//
// State Flow:
//   - Fetching → Analyzing (logs fetched) or Terminal (nothing to do)
//   - Analyzing → Advancing (in-run duplicate), Skipping, or Creating
//   - Creating → Advancing (created, duplicate, cap-reached, simulated)
//   - Skipping → Advancing
//   - Advancing → Analyzing (more logs) or Terminal
//
// Advancing looks one step ahead: an event whose fingerprint was already
// analyzed is recorded skipped_duplicate right there and the cursor moves
// past it, so Analyzing only sees first sightings. Analyzing marks the
// fingerprint seen and repeats its own seen check for the first event, which
// is never reached through Advancing. Both paths record the same outcome.
type State int

const (
	StateFetching State = iota
	StateAnalyzing
	StateCreating
	StateSkipping
	StateAdvancing
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateAnalyzing:
		return "analyzing"
	case StateCreating:
		return "creating"
	case StateSkipping:
		return "skipping"
	case StateAdvancing:
		return "advancing"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunState is the bookkeeping of one run. The controller owns it; every
// accessor takes the same lock, so the created set, the seen set and the
// created count always change together.
type RunState struct {
	mu sync.Mutex

	id     string
	dryRun bool
	state  State

	logs     []types.LogEvent
	cursor   int
	index    *fingerprint.Index
	finished bool

	created      map[types.Fingerprint]string // fingerprint → ticket key ("" for simulated)
	seeded       map[string]string            // short hash → ticket key, from earlier runs
	createdCount int
	createdKeys  []string

	outcomes []types.Outcome
}

func newRunState(id string, dryRun bool) *RunState {
	return &RunState{
		id:      id,
		dryRun:  dryRun,
		state:   StateFetching,
		index:   fingerprint.NewIndex(nil),
		created: make(map[types.Fingerprint]string),
		seeded:  make(map[string]string),
	}
}

// ID returns the run identifier written to the audit trail
func (rs *RunState) ID() string {
	return rs.id
}

// DryRun reports whether the run simulates ticket creation
func (rs *RunState) DryRun() bool {
	return rs.dryRun
}

// State returns the current state machine node
func (rs *RunState) State() State {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state
}

func (rs *RunState) setState(s State) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.state = s
}

// Logs returns the events being traversed
func (rs *RunState) Logs() []types.LogEvent {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]types.LogEvent(nil), rs.logs...)
}

func (rs *RunState) setLogs(logs []types.LogEvent) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.logs = logs
	rs.cursor = 0
	rs.index = fingerprint.NewIndex(logs)
}

// Cursor is the index of the event under consideration
func (rs *RunState) Cursor() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.cursor
}

// current returns the event at the cursor, or false past the end
func (rs *RunState) current() (int, types.LogEvent, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cursor >= len(rs.logs) {
		return rs.cursor, types.LogEvent{}, false
	}
	return rs.cursor, rs.logs[rs.cursor], true
}

// advance moves the cursor and reports whether an event remains
func (rs *RunState) advance() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.cursor++
	return rs.cursor < len(rs.logs)
}

// Occurrences is how many events of this run share fp
func (rs *RunState) Occurrences(fp types.Fingerprint) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.index.Count(fp)
}

// markSeen records fp; false means the fingerprint was already analyzed
func (rs *RunState) markSeen(fp types.Fingerprint) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.index.MarkSeen(fp)
}

// seen reports whether fp was already analyzed this run
func (rs *RunState) seen(fp types.Fingerprint) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.index.Seen(fp)
}

// Finished reports whether the traversal reached the end of the log list
func (rs *RunState) Finished() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.finished
}

func (rs *RunState) finish() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.finished = true
	rs.state = StateTerminal
}

// CreatedCount is the number of tickets created (or simulated) this run
func (rs *RunState) CreatedCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.createdCount
}

// CreatedTicket implements correlator.CreatedLookup. Fingerprints created this
// run win over those seeded from open tickets.
func (rs *RunState) CreatedTicket(fp types.Fingerprint) (string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if key, ok := rs.created[fp]; ok {
		return key, true
	}
	if len(rs.seeded) > 0 {
		if key, ok := rs.seeded[fingerprint.Short(fp)]; ok {
			return key, true
		}
	}
	return "", false
}

// reserve claims a creation slot if the cap allows it. The slot is released
// with release when the create call fails.
func (rs *RunState) reserve(limit int) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.createdCount >= limit {
		return false
	}
	rs.createdCount++
	return true
}

func (rs *RunState) release() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.createdCount > 0 {
		rs.createdCount--
	}
}

// markCreated records the ticket filed for fp; the slot was taken by reserve.
func (rs *RunState) markCreated(fp types.Fingerprint, key string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.created[fp] = key
	if key != "" {
		rs.createdKeys = append(rs.createdKeys, key)
	}
}

// seed registers an open ticket's fingerprint short hash from an earlier run
func (rs *RunState) seed(short, key string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.seeded[short]; !ok {
		rs.seeded[short] = key
	}
}

// SeededCount is the number of fingerprints known from earlier runs
func (rs *RunState) SeededCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.seeded)
}

func (rs *RunState) record(o types.Outcome) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.outcomes = append(rs.outcomes, o)
}

// Outcomes returns the decision recorded for every event processed, in order
func (rs *RunState) Outcomes() []types.Outcome {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]types.Outcome(nil), rs.outcomes...)
}

// Summary condenses a run for reporting
type Summary struct {
	RunID        string                 `json:"run_id"`
	DryRun       bool                   `json:"dry_run"`
	Finished     bool                   `json:"finished"`
	Total        int                    `json:"total"`
	Distinct     int                    `json:"distinct_fingerprints"`
	Counts       map[types.Decision]int `json:"counts"`
	CreatedCount int                    `json:"created_count"`
	CreatedKeys  []string               `json:"created_keys,omitempty"`
	MatchedKeys  []string               `json:"matched_keys,omitempty"`
	Duplicates   int                    `json:"duplicates"` // in-run repeats plus corpus matches
}

// Summary returns per-decision counts and the tickets touched by the run
func (rs *RunState) Summary() Summary {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	s := Summary{
		RunID:        rs.id,
		DryRun:       rs.dryRun,
		Finished:     rs.finished,
		Total:        len(rs.logs),
		Distinct:     rs.index.Distinct(),
		Counts:       make(map[types.Decision]int),
		CreatedCount: rs.createdCount,
		CreatedKeys:  append([]string(nil), rs.createdKeys...),
	}
	matched := make(map[string]struct{})
	for _, o := range rs.outcomes {
		s.Counts[o.Decision]++
		if o.Decision.IsDuplicate() {
			s.Duplicates++
		}
		if o.Decision == types.DecisionDuplicate && o.TicketKey != "" {
			matched[o.TicketKey] = struct{}{}
		}
	}
	for k := range matched {
		s.MatchedKeys = append(s.MatchedKeys, k)
	}
	sort.Strings(s.MatchedKeys)
	return s
}
