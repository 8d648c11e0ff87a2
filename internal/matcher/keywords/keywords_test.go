package keywords

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/tokenizer"
)

func mustExtractor(t *testing.T, n int) *Extractor {
	t.Helper()
	e, err := New(n)
	require.NoError(t, err)
	return e
}

func TestNewRejectsNonPositiveTopN(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := New(n)
		assert.ErrorIs(t, err, ErrInvalidTopN)
	}
	e := mustExtractor(t, DefaultTopN)
	assert.Equal(t, 20, e.TopN())
}

func TestUnigramsRankBeforeBigrams(t *testing.T) {
	e := mustExtractor(t, 2)
	assert.Equal(t, []string{"cat", "dog"}, e.Extract("cat cat dog cat dog bird"))

	e = mustExtractor(t, 5)
	// cat(3) dog(2) bird(1), then bigrams "cat dog"(2) and "cat cat"(1).
	assert.Equal(t, []string{"cat", "dog", "bird", "cat dog", "cat cat"}, e.Extract("cat cat dog cat dog bird"))
}

func TestBigramsAreOrderSensitive(t *testing.T) {
	e := mustExtractor(t, 10)
	tokens := []string{"machine", "learning", "machine", "learning", "engineer"}
	got := e.ExtractTokens(tokens)

	assert.Equal(t, []string{
		"machine", "learning", "engineer",
		"machine learning", "learning machine", "learning engineer",
	}, got)
}

func TestTiesKeepFirstOccurrence(t *testing.T) {
	e := mustExtractor(t, 3)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, e.Extract("zeta alpha mid zeta alpha mid"))
}

func TestStopWordsAndShortTokensNeverReturned(t *testing.T) {
	e := mustExtractor(t, 20)
	got := e.Extract("The AI and ML team is at the top of its game with Go and Rust on AWS")
	require.NotEmpty(t, got)
	for _, kw := range got {
		for _, part := range strings.Fields(kw) {
			assert.Greater(t, len([]rune(part)), tokenizer.MinTokenLength, kw)
			assert.False(t, tokenizer.IsStopWord(part), kw)
		}
	}
	assert.NotContains(t, got, "ai")
	assert.Contains(t, got, "rust")
	assert.Contains(t, got, "team top")
}

func TestNeverExceedsTopN(t *testing.T) {
	text := strings.Repeat("kubernetes terraform ansible prometheus grafana jenkins docker golang ", 5)
	for _, n := range []int{1, 3, 8, 50} {
		e := mustExtractor(t, n)
		assert.LessOrEqual(t, len(e.Extract(text)), n)
	}
}

func TestFewerTermsThanTopN(t *testing.T) {
	e := mustExtractor(t, 20)
	assert.Equal(t, []string{"golang"}, e.Extract("golang"))
	assert.Empty(t, e.Extract(""))
	assert.Empty(t, e.Extract("a an the of to"))
}
