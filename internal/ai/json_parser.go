// Package ai classifies incidents: either with the Anthropic API (Supervisor)
// or with local keyword rules (RuleClassifier).
package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Model output is JSON most of the time, but it arrives fenced, commented,
// with trailing commas, or wrapped in prose often enough to need a tolerant parser.
var (
	codeFenceRegex         = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\\n?([\\s\\S]*?)\\n?`{3}")
	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	objectRegex            = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// maxParseInput bounds the text handed to the parser.
const maxParseInput = 1 << 20

// ParseResult carries either the decoded value or a description of why
// every strategy failed.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// Parse decodes a JSON object from model output, trying in order:
//  1. direct decode
//  2. contents of the first code fence
//  3. the fenced/unfenced text with comments, trailing commas and bare keys fixed
//  4. the outermost {...} span of mixed prose
func Parse[T any](text string, context string) ParseResult[T] {
	if len(text) > maxParseInput {
		return failed[T](text, context, fmt.Sprintf("input too large (%d bytes)", len(text)))
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failed[T](text, context, "empty response")
	}

	if v, ok := tryDecode[T](trimmed); ok {
		return ParseResult[T]{Success: true, Data: v, OriginalText: text}
	}

	candidate := trimmed
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidate = strings.TrimSpace(m[1])
		if v, ok := tryDecode[T](candidate); ok {
			return ParseResult[T]{Success: true, Data: v, OriginalText: text}
		}
	}

	cleaned := cleanupJSON(candidate)
	if v, ok := tryDecode[T](cleaned); ok {
		return ParseResult[T]{Success: true, Data: v, OriginalText: text}
	}

	if span := objectRegex.FindString(candidate); span != "" {
		if v, ok := tryDecode[T](cleanupJSON(span)); ok {
			return ParseResult[T]{Success: true, Data: v, OriginalText: text}
		}
	}

	return failed[T](text, context, "no strategy produced valid JSON")
}

func tryDecode[T any](s string) (T, bool) {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, false
	}
	return v, true
}

func cleanupJSON(s string) string {
	s = multiLineCommentRegex.ReplaceAllString(s, "")
	s = singleLineCommentRegex.ReplaceAllString(s, "")
	s = trailingCommaRegex.ReplaceAllString(s, "$1")
	s = unquotedKeyRegex.ReplaceAllString(s, `$1"$2":`)
	return strings.TrimSpace(s)
}

func failed[T any](text, context, reason string) ParseResult[T] {
	msg := reason
	if context != "" {
		msg = fmt.Sprintf("%s: %s", context, reason)
	}
	slog.Debug("AI response parse failed", "component", "supervisor", "error", msg, "response", truncate(text, 200))
	return ParseResult[T]{Error: msg, OriginalText: text}
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
