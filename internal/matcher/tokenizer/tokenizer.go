// Package tokenizer turns free text into the lowercase word tokens used for
// keyword extraction. Punctuation becomes a separator, never a joiner, and
// short or stop-word tokens are filtered out.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenLength is the shortest token kept by Filter; anything of this
// length or less is treated as noise.
const MinTokenLength = 2

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"because": {}, "as": {}, "what": {}, "when": {}, "where": {}, "how": {},
	"which": {}, "who": {}, "whom": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "then": {}, "just": {}, "so": {}, "than": {}, "such": {},
	"both": {}, "through": {}, "about": {}, "for": {}, "is": {}, "of": {},
	"while": {}, "during": {}, "to": {}, "from": {}, "in": {}, "on": {},
	"at": {}, "by": {}, "with": {}, "against": {}, "between": {}, "into": {},
	"without": {}, "after": {}, "before": {}, "above": {}, "below": {},
	"under": {}, "over": {}, "again": {}, "further": {}, "once": {}, "here": {},
	"there": {}, "why": {}, "all": {}, "any": {}, "each": {}, "few": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "only": {}, "own": {},
	"same": {}, "too": {}, "very": {}, "can": {}, "will": {}, "should": {},
	"now": {}, "am": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "having": {}, "do": {},
	"does": {}, "did": {}, "doing": {},
}

// IsStopWord reports whether the lowercase word is a stop word.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// StopWords returns a copy of the stop-word set.
func StopWords() []string {
	out := make([]string, 0, len(stopWords))
	for w := range stopWords {
		out = append(out, w)
	}
	return out
}

// Normalize lowercases text, replaces every rune that is neither a word
// character (letter, number, underscore) nor whitespace with a space, and
// splits the result on whitespace. Empty input yields no tokens.
func Normalize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case isWordRune(r), unicode.IsSpace(r):
			return r
		default:
			return ' '
		}
	}, strings.ToLower(text))
	return strings.Fields(cleaned)
}

// Filter drops stop words and tokens of MinTokenLength runes or fewer,
// preserving order.
func Filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= MinTokenLength {
			continue
		}
		if IsStopWord(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
