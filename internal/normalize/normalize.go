// Package normalize canonicalizes free-text log messages so that errors which
// differ only in instance data (ids, hashes, counters) collapse to one key.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// Placeholders written in place of volatile tokens. They contain no digits or
// hex runs so a second pass leaves them untouched.
const (
	UUIDPlaceholder   = "<uuid>"
	HexPlaceholder    = "<hex>"
	NumberPlaceholder = "<num>"
)

// Volatile token patterns. Each is matched only as a whole token: the byte
// before it and the byte after it must not be an ASCII letter or digit, so
// underscores and other punctuation delimit tokens (order_<uuid>, worker_<num>).
var (
	uuidRegex   = delimited(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	hexPrefixed = delimited(`0[xX][0-9a-fA-F]+`)
	// Bare hex runs of 8+ chars. Only replaced when they mix digits and
	// letters: words spelled with a-f survive and pure digit runs are numbers.
	hexRunRegex   = delimited(`[0-9a-fA-F]{8,}`)
	numberRegex   = delimited(`\d+(?:\.\d+)?`)
	spaceRunRegex = regexp.MustCompile(`\s+`)
)

// delimited anchors token at the start of the input and requires a
// non-alphanumeric byte or the end of input after it. Submatch 1 is the token.
func delimited(token string) *regexp.Regexp {
	return regexp.MustCompile(`^(` + token + `)(?:[^0-9A-Za-z]|$)`)
}

// Normalize strips UUIDs, hex/hash tokens and standalone numbers, collapses
// whitespace, trims and lower-cases. It is pure and idempotent.
func Normalize(message string) string {
	if message == "" {
		return ""
	}
	s := replaceTokens(message, uuidRegex, constant(UUIDPlaceholder))
	s = replaceTokens(s, hexPrefixed, constant(HexPlaceholder))
	s = replaceTokens(s, hexRunRegex, func(tok string) string {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 && strings.IndexFunc(tok, unicode.IsLetter) >= 0 {
			return HexPlaceholder
		}
		return tok
	})
	s = replaceTokens(s, numberRegex, constant(NumberPlaceholder))
	s = spaceRunRegex.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

func constant(placeholder string) func(string) string {
	return func(string) string { return placeholder }
}

// replaceTokens tries re at every token start in s, that is every alphanumeric
// byte not preceded by another one, and substitutes replace(token) for each hit.
// The delimiter after a token is left in place for the next token to use.
func replaceTokens(s string, re *regexp.Regexp, replace func(string) string) string {
	var b strings.Builder
	last := 0
	for i := 0; i < len(s); i++ {
		if !isAlnum(s[i]) || (i > 0 && isAlnum(s[i-1])) {
			continue
		}
		loc := re.FindStringSubmatchIndex(s[i:])
		if loc == nil {
			continue
		}
		end := i + loc[3]
		b.WriteString(s[last:i])
		b.WriteString(replace(s[i:end]))
		last = end
		i = end - 1
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func isAlnum(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// IsPlaceholder reports whether tok is one of the normalizer's placeholders.
func IsPlaceholder(tok string) bool {
	switch tok {
	case UUIDPlaceholder, HexPlaceholder, NumberPlaceholder:
		return true
	}
	return false
}
