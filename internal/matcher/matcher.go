// Package matcher scores how well a resume covers a job description by
// comparing their ranked keyword lists.
package matcher

import (
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/keywords"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/similarity"
)

// MatchReport is the result of scoring one resume against one job
// description. Unigrams and bigrams share a single keyword set.
type MatchReport struct {
	Score           float64  `json:"score"`
	ResumeKeywords  []string `json:"resume_keywords"`
	JobKeywords     []string `json:"job_keywords"`
	MatchedKeywords []string `json:"matched_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
}

// Scorer builds MatchReports with a fixed keyword-list size.
type Scorer struct {
	extractor *keywords.Extractor
}

// NewScorer returns a Scorer extracting topN keywords per document.
func NewScorer(topN int) (*Scorer, error) {
	ext, err := keywords.New(topN)
	if err != nil {
		return nil, err
	}
	return &Scorer{extractor: ext}, nil
}

// TopN returns the keyword-list size.
func (s *Scorer) TopN() int {
	return s.extractor.TopN()
}

// Score extracts keywords from both texts and compares them. It never fails:
// empty or keyword-free text yields empty lists and a zero score.
func (s *Scorer) Score(resumeText, jobText string) MatchReport {
	resumeKW := s.extractor.Extract(resumeText)
	jobKW := s.extractor.Extract(jobText)
	return MatchReport{
		Score:           similarity.Jaccard(resumeKW, jobKW),
		ResumeKeywords:  resumeKW,
		JobKeywords:     jobKW,
		MatchedKeywords: similarity.Intersection(resumeKW, jobKW),
		MissingKeywords: similarity.Difference(jobKW, resumeKW),
	}
}

// ScoreMatch is a one-shot helper. It fails only when topN <= 0.
func ScoreMatch(resumeText, jobText string, topN int) (MatchReport, error) {
	s, err := NewScorer(topN)
	if err != nil {
		return MatchReport{}, err
	}
	return s.Score(resumeText, jobText), nil
}
