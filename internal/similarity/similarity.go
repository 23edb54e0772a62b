// Package similarity scores how alike two log messages are after
// normalization, and extracts search keywords from them.
package similarity

import (
	"sort"
	"strings"
	"unicode"

	"github.com/steveyegge/triage/internal/normalize"
)

// maxRunes bounds the input to the quadratic LCS computation.
const maxRunes = 512

// minSharedTokens is how many significant tokens two messages must share
// before containment or the shared-token comparisons may lift the score.
const minSharedTokens = 3

// Ratio is the indel similarity 2*LCS/(len(a)+len(b)) over runes, in [0,1].
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return float64(2*lcsLength(ra, rb)) / float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// TokenSetRatio compares the token sets of two messages. Word order and
// repeated words do not matter. A message that is a truncated form of the
// other (one token set contains the other) scores 1.0, but only when the
// shared tokens carry at least minSharedTokens significant words; otherwise
// the full sorted token strings are compared as they are.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	var inter, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	anchored := countSignificant(inter) >= minSharedTokens
	if anchored && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1.0
	}

	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sect := strings.Join(inter, " ")
	combA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := Ratio(combA, combB)
	if anchored {
		best = max(best, Ratio(sect, combA), Ratio(sect, combB))
	}
	return best
}

// Tokens splits normalized text into words. Placeholders such as <num> stay whole.
func Tokens(text string) []string {
	s := normalize.Normalize(text)
	if r := []rune(s); len(r) > maxRunes {
		s = string(r[:maxRunes])
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '<' && r != '>' && r != '_'
	})
}

func countSignificant(toks []string) int {
	n := 0
	for _, tok := range toks {
		if significant(tok) {
			n++
		}
	}
	return n
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokens(text) {
		set[tok] = struct{}{}
	}
	return set
}
