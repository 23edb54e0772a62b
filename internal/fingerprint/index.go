package fingerprint

import "github.com/steveyegge/triage/internal/types"

// Index holds the per-run occurrence counts and the seen set. Counts are
// computed once at construction and never change afterwards.
type Index struct {
	counts map[types.Fingerprint]int
	seen   Set
}

// NewIndex builds the counts for logs. The seen set starts empty.
func NewIndex(logs []types.LogEvent) *Index {
	return &Index{
		counts: BuildCounts(logs),
		seen:   make(Set),
	}
}

// Count returns how many events in the run share fp.
func (ix *Index) Count(fp types.Fingerprint) int {
	return ix.counts[fp]
}

// Distinct is the number of distinct fingerprints in the run.
func (ix *Index) Distinct() int {
	return len(ix.counts)
}

// Seen reports whether fp was already analyzed this run.
func (ix *Index) Seen(fp types.Fingerprint) bool {
	return IsDuplicate(fp, ix.seen)
}

// MarkSeen records fp; false means it was already seen.
func (ix *Index) MarkSeen(fp types.Fingerprint) bool {
	return MarkSeen(fp, ix.seen)
}

// SeenCount is the size of the seen set
func (ix *Index) SeenCount() int {
	return len(ix.seen)
}
