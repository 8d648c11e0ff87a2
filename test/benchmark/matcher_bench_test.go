package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/keywords"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/similarity"
)

const jobDescription = `We are hiring a senior backend engineer to build distributed
systems in Go. You will own Kafka event pipelines, Redis caching, PostgreSQL data
models and Kubernetes deployments. Experience with Prometheus, gRPC and Terraform
is a plus. Strong communication and mentoring skills expected.`

var (
	scoreSink  float64
	reportSink matcher.MatchReport
)

func mustExtractor(b *testing.B, topN int) *keywords.Extractor {
	b.Helper()
	ext, err := keywords.New(topN)
	if err != nil {
		b.Fatal(err)
	}
	return ext
}

func mustScorer(b *testing.B) *matcher.Scorer {
	b.Helper()
	s, err := matcher.NewScorer(20)
	if err != nil {
		b.Fatal(err)
	}
	return s
}

func BenchmarkKeywordExtract(b *testing.B) {
	for _, topN := range []int{10, 20, 50} {
		ext := mustExtractor(b, topN)
		for _, r := range resumes {
			b.Run(fmt.Sprintf("%s/top%d", r.name, topN), func(b *testing.B) {
				perText(b, r.text, ext.Extract)
			})
		}
	}
}

func BenchmarkJaccard(b *testing.B) {
	ext := mustExtractor(b, 50)
	resumeKW, jobKW := ext.Extract(resumes[2].text), ext.Extract(jobDescription)
	b.ReportAllocs()
	for b.Loop() {
		scoreSink = similarity.Jaccard(resumeKW, jobKW)
	}
}

// BenchmarkScore is the whole pipeline behind the match endpoints.
func BenchmarkScore(b *testing.B) {
	scorer := mustScorer(b)
	for _, r := range resumes {
		b.Run(r.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(r.text) + len(jobDescription)))
			for b.Loop() {
				reportSink = scorer.Score(r.text, jobDescription)
			}
		})
	}
}

func BenchmarkScoreParallel(b *testing.B) {
	scorer := mustScorer(b)
	text := resumes[1].text
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		var local matcher.MatchReport
		for pb.Next() {
			local = scorer.Score(text, jobDescription)
		}
		_ = local
	})
}
