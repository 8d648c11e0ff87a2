package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher/tokenizer"
)

var resumes = []struct {
	name string
	text string
}{
	{"short", "Senior Go engineer with Kubernetes and PostgreSQL experience"},
	{"medium", `Backend engineer with seven years building distributed systems in Go.
        Designed event pipelines on Kafka that process millions of messages per day,
        owned the Redis caching tier for a customer-facing search product and led
        the migration of legacy services to Kubernetes. Comfortable with gRPC,
        PostgreSQL tuning, observability with Prometheus and on-call rotations.`},
	{"long", strings.Repeat(`Experience: Platform engineer responsible for CI/CD pipelines,
        infrastructure as code with Terraform, container orchestration with Kubernetes
        and service mesh rollout. Mentored junior engineers, wrote design documents
        for multi-region failover and reduced cloud spend by right-sizing clusters.
        Skills: Go, Python, SQL, Docker, Helm, AWS, GCP, Linux, networking. `, 20)},
}

// sink keeps results alive so the compiler cannot drop the work.
var sink []string

func perText(b *testing.B, text string, fn func(string) []string) {
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		sink = fn(text)
	}
}

func BenchmarkNormalize(b *testing.B) {
	for _, r := range resumes {
		b.Run(r.name, func(b *testing.B) { perText(b, r.text, tokenizer.Normalize) })
	}
}

func BenchmarkNormalizeAndFilter(b *testing.B) {
	both := func(s string) []string { return tokenizer.Filter(tokenizer.Normalize(s)) }
	for _, r := range resumes {
		b.Run(r.name, func(b *testing.B) { perText(b, r.text, both) })
	}
}

func BenchmarkNormalizeParallel(b *testing.B) {
	text := resumes[1].text
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		var local []string
		for pb.Next() {
			local = tokenizer.Filter(tokenizer.Normalize(text))
		}
		_ = local
	})
}

// BenchmarkNormalizeScaling checks that cost grows linearly with input.
func BenchmarkNormalizeScaling(b *testing.B) {
	const words = "kubernetes golang postgres kafka engineer "
	for _, n := range []int{64, 512, 4096, 32768} {
		text := strings.Repeat(words, n/len(words)+1)[:n]
		b.Run(fmt.Sprintf("%dB", n), func(b *testing.B) { perText(b, text, tokenizer.Normalize) })
	}
}
