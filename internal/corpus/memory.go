package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/similarity"
	"github.com/steveyegge/triage/internal/types"
)

// Memory is an in-process Corpus. It scores similarity the same way the
// SQLite tracker does and is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	project string
	next    int
	tickets map[string]*memTicket
	order   []string
	now     func() time.Time
}

type memTicket struct {
	ticket   types.ExternalTicket
	payload  types.TicketPayload
	comments []MemoryComment
	links    []string
}

// MemoryComment is a comment recorded by Memory
type MemoryComment struct {
	Body string
	At   time.Time
}

var (
	_ Corpus            = (*Memory)(nil)
	_ CommentHistory    = (*Memory)(nil)
	_ FingerprintLister = (*Memory)(nil)
)

// NewMemory returns an empty corpus that issues keys "<project>-N".
func NewMemory(project string) *Memory {
	return &Memory{
		project: project,
		tickets: make(map[string]*memTicket),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for CreatedAt and comment times.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Add inserts a ticket with an explicit key and status, for seeding.
func (m *Memory) Add(ticket types.ExternalTicket, excerpt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket.Status == "" {
		ticket.Status = "open"
	}
	if _, ok := m.tickets[ticket.Key]; !ok {
		m.order = append(m.order, ticket.Key)
	}
	m.tickets[ticket.Key] = &memTicket{
		ticket:  ticket,
		payload: types.TicketPayload{Summary: ticket.Summary, Labels: ticket.Labels, LogExcerpt: excerpt},
	}
}

func (m *Memory) SearchSimilar(ctx context.Context, text string) ([]types.ScoredTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.ScoredTicket
	for _, key := range m.order {
		t := m.tickets[key]
		if t.ticket.Status == "closed" {
			continue
		}
		excerpt := t.payload.LogExcerpt
		if strings.TrimSpace(excerpt) == "" {
			excerpt = t.ticket.Summary
		}
		if score := similarity.TokenSetRatio(text, excerpt); score > 0 {
			out = append(out, types.ScoredTicket{Ticket: copyTicket(t.ticket), Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (m *Memory) SearchByKeywords(ctx context.Context, terms []string, statuses []string) ([]types.ExternalTicket, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.ExternalTicket
	for i := len(m.order) - 1; i >= 0; i-- {
		t := m.tickets[m.order[i]]
		if !contains(statuses, t.ticket.Status) {
			continue
		}
		haystack := strings.ToLower(t.ticket.Summary + " " + t.payload.Description + " " + t.payload.LogExcerpt)
		all := true
		for _, term := range terms {
			if !strings.Contains(haystack, strings.ToLower(term)) {
				all = false
				break
			}
		}
		if all {
			out = append(out, copyTicket(t.ticket))
		}
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, key string) (*types.ExternalTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrTicketNotFound)
	}
	ticket := copyTicket(t.ticket)
	return &ticket, nil
}

func (m *Memory) Create(ctx context.Context, payload *types.TicketPayload) (*types.ExternalTicket, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	key := fmt.Sprintf("%s-%d", m.project, m.next)
	for m.tickets[key] != nil {
		m.next++
		key = fmt.Sprintf("%s-%d", m.project, m.next)
	}
	ticket := types.ExternalTicket{
		Key:       key,
		Summary:   payload.Summary,
		Status:    "open",
		CreatedAt: m.now(),
		Labels:    append([]string(nil), payload.Labels...),
	}
	m.tickets[key] = &memTicket{ticket: ticket, payload: *payload}
	m.order = append(m.order, key)
	out := copyTicket(ticket)
	return &out, nil
}

func (m *Memory) Comment(ctx context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrTicketNotFound)
	}
	t.comments = append(t.comments, MemoryComment{Body: text, At: m.now()})
	return nil
}

func (m *Memory) Close(ctx context.Context, key, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrTicketNotFound)
	}
	t.ticket.Status = "closed"
	return nil
}

func (m *Memory) Link(ctx context.Context, key, relatedKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrTicketNotFound)
	}
	if _, ok := m.tickets[relatedKey]; !ok {
		return fmt.Errorf("%s: %w", relatedKey, ErrTicketNotFound)
	}
	if !contains(t.links, relatedKey) {
		t.links = append(t.links, relatedKey)
	}
	return nil
}

func (m *Memory) LastCommentAt(ctx context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[key]
	if !ok || len(t.comments) == 0 {
		return time.Time{}, nil
	}
	return t.comments[len(t.comments)-1].At, nil
}

func (m *Memory) OpenFingerprintLabels(ctx context.Context, statuses []string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string)
	for _, key := range m.order {
		t := m.tickets[key]
		if !contains(statuses, t.ticket.Status) {
			continue
		}
		for _, l := range t.ticket.Labels {
			if strings.HasPrefix(l, fingerprint.LabelPrefix) {
				out[key] = append(out[key], l)
			}
		}
	}
	return out, nil
}

// Comments returns the comments posted on key
func (m *Memory) Comments(key string) []MemoryComment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tickets[key]; ok {
		return append([]MemoryComment(nil), t.comments...)
	}
	return nil
}

// Links returns the keys linked from key
func (m *Memory) Links(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tickets[key]; ok {
		return append([]string(nil), t.links...)
	}
	return nil
}

// Payload returns what was submitted when key was created
func (m *Memory) Payload(key string) (types.TicketPayload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tickets[key]; ok {
		return t.payload, true
	}
	return types.TicketPayload{}, false
}

// Len returns the number of tickets
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

func copyTicket(t types.ExternalTicket) types.ExternalTicket {
	t.Labels = append([]string(nil), t.Labels...)
	return t
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
