// Package keywords ranks the most frequent terms of a document: unigrams
// first, then adjacent-token bigrams, capped at a configured size.
package keywords

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/tokenizer"
)

// DefaultTopN is the keyword-list size used when none is configured.
const DefaultTopN = 20

// ErrInvalidTopN is returned when the requested list size is not positive.
var ErrInvalidTopN = errors.New("top_n must be positive")

// Extractor produces ranked keyword lists of at most topN entries. It holds
// no mutable state and is safe for concurrent use.
type Extractor struct {
	topN int
}

// New returns an Extractor capped at topN keywords.
func New(topN int) (*Extractor, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, topN)
	}
	return &Extractor{topN: topN}, nil
}

// TopN returns the configured cap.
func (e *Extractor) TopN() int {
	return e.topN
}

// Extract normalizes text and returns its keyword list.
func (e *Extractor) Extract(text string) []string {
	return e.ExtractTokens(tokenizer.Normalize(text))
}

// ExtractTokens ranks already-normalized tokens. The result holds up to
// 2×topN unigrams followed by up to topN bigrams, truncated to topN overall.
// Within each group terms are ordered by descending count, ties broken by
// first occurrence.
func (e *Extractor) ExtractTokens(tokens []string) []string {
	filtered := tokenizer.Filter(tokens)

	unigrams := rank(filtered, 2*e.topN)
	// filtered holds no stop words, so adjacent pairs need no second check.
	bigrams := rank(pairs(filtered), e.topN)

	out := make([]string, 0, e.topN)
	out = append(out, unigrams...)
	out = append(out, bigrams...)
	if len(out) > e.topN {
		out = out[:e.topN]
	}
	return out
}

func pairs(tokens []string) []string {
	if len(tokens) < 2 {
		return nil
	}
	out := make([]string, 0, len(tokens)-1)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

type termCount struct {
	term  string
	count int
}

// rank counts terms and returns the limit most frequent, ties kept in
// first-occurrence order.
func rank(terms []string, limit int) []string {
	index := make(map[string]int, len(terms))
	counts := make([]termCount, 0, len(terms))
	for _, t := range terms {
		if i, ok := index[t]; ok {
			counts[i].count++
			continue
		}
		index[t] = len(counts)
		counts = append(counts, termCount{term: t, count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.term
	}
	return out
}
