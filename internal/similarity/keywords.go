package similarity

import (
	"unicode"
	"unicode/utf8"

	"github.com/steveyegge/triage/internal/normalize"
)

const minKeywordRunes = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"was": {}, "were": {}, "has": {}, "have": {}, "had": {}, "not": {}, "are": {},
	"but": {}, "into": {}, "while": {}, "when": {}, "then": {}, "than": {}, "been": {},
	"will": {}, "can": {}, "could": {}, "would": {}, "should": {}, "its": {}, "our": {},
	"you": {}, "your": {}, "all": {}, "any": {}, "out": {}, "via": {}, "per": {},
	"null": {}, "nil": {}, "none": {}, "true": {}, "false": {},
}

// Keywords returns up to limit significant terms of text in first-occurrence
// order. Placeholders, numbers, stop words and short tokens are dropped.
func Keywords(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokens(text) {
		if !significant(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == limit {
			break
		}
	}
	return out
}

func significant(tok string) bool {
	if utf8.RuneCountInString(tok) < minKeywordRunes || normalize.IsPlaceholder(tok) {
		return false
	}
	if _, stop := stopWords[tok]; stop {
		return false
	}
	for _, r := range tok {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
