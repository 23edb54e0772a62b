// Package fingerprint derives dedup keys for log events and tracks, within one
// run, how often each key occurs and whether it has already been analyzed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/steveyegge/triage/internal/normalize"
	"github.com/steveyegge/triage/internal/types"
)

// LabelPrefix marks tickets with the short hash of the fingerprint they were filed for.
const LabelPrefix = "fp-"

// Of returns logger + "|" + normalize(message) for the sanitized event.
func Of(e types.LogEvent) types.Fingerprint {
	e = e.Sanitized()
	return types.Fingerprint(e.Logger + "|" + normalize.Normalize(e.Message))
}

// Short is a stable 12 hex char digest of fp, small enough for a ticket label.
func Short(fp types.Fingerprint) string {
	sum := sha256.Sum256([]byte(fp))
	return hex.EncodeToString(sum[:6])
}

// Label is the ticket label carrying fp's short hash.
func Label(fp types.Fingerprint) string {
	return LabelPrefix + Short(fp)
}

// ShortFromLabel extracts the short hash from an "fp-" label.
func ShortFromLabel(label string) (string, bool) {
	if !strings.HasPrefix(label, LabelPrefix) {
		return "", false
	}
	short := strings.TrimPrefix(label, LabelPrefix)
	return short, short != ""
}

// Set is a set of fingerprints.
type Set map[types.Fingerprint]struct{}

// Has reports membership
func (s Set) Has(fp types.Fingerprint) bool {
	_, ok := s[fp]
	return ok
}

// BuildCounts counts occurrences per fingerprint in a single pass.
func BuildCounts(logs []types.LogEvent) map[types.Fingerprint]int {
	counts := make(map[types.Fingerprint]int, len(logs))
	for _, e := range logs {
		counts[Of(e)]++
	}
	return counts
}

// IsDuplicate is a pure membership check against the seen set.
func IsDuplicate(fp types.Fingerprint, seen Set) bool {
	return seen.Has(fp)
}

// MarkSeen records the first sighting of fp. It returns false if fp was already present.
func MarkSeen(fp types.Fingerprint, seen Set) bool {
	if seen.Has(fp) {
		return false
	}
	seen[fp] = struct{}{}
	return true
}
