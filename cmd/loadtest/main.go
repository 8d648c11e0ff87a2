// Command loadtest drives a running studio service with concurrent
// requests and prints throughput, latency percentiles and the status mix.
// It exercises the CPU-bound endpoints only (match and preview) so it never
// spends model or PDF engine time.
//
//	go run ./cmd/loadtest -url http://localhost:8080 -mode match -concurrency 20 -duration 30s -rps 200
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio"
)

type target struct {
	path   string
	bodies [][]byte
	// score pulls a number worth summarizing out of a 200 response.
	score func(body []byte) (float64, bool)
}

type matchPair struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

var samplePairs = []matchPair{
	{
		ResumeText:     "Experienced Python developer with Django and React. Built REST APIs and data pipelines on AWS.",
		JobDescription: "Looking for Python developer skilled in Django, PostgreSQL and AWS to build REST APIs.",
	},
	{
		ResumeText:     "Go engineer: distributed systems, Kafka consumers, Redis caching, Prometheus metrics, Kubernetes deployments.",
		JobDescription: "Backend engineer with Go, Kafka and Kubernetes experience. Observability with Prometheus is a plus.",
	},
	{
		ResumeText:     "Data scientist experienced in machine learning, pandas, scikit-learn and deep learning with PyTorch.",
		JobDescription: "Machine learning engineer to deploy deep learning models. PyTorch, MLOps and feature stores.",
	},
	{
		ResumeText:     "Frontend developer focused on React, TypeScript, accessibility and design systems.",
		JobDescription: "Senior frontend engineer: React, TypeScript, testing library, accessibility audits.",
	},
	{
		ResumeText:     "Site reliability engineer. Terraform, incident response, SLOs, Linux performance tuning.",
		JobDescription: "SRE with Terraform and Linux expertise to own SLOs, on-call and capacity planning.",
	},
}

func newTarget(mode string) (*target, error) {
	switch mode {
	case "match":
		t := &target{path: "/api/v1/match", score: func(b []byte) (float64, bool) {
			var r struct {
				Score float64 `json:"score"`
			}
			return r.Score, json.Unmarshal(b, &r) == nil
		}}
		for _, p := range samplePairs {
			b, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			t.bodies = append(t.bodies, b)
		}
		return t, nil
	case "render":
		t := &target{path: "/api/v1/render"}
		for i, p := range samplePairs {
			b, err := json.Marshal(studio.RenderRequest{Files: render.FileTree{
				{Path: "index.html", Content: fmt.Sprintf("<html><body><h1>Candidate %d</h1><p>%s</p></body></html>", i, p.ResumeText)},
				{Path: "style.css", Content: "h1 { font-size: 20pt; }"},
			}})
			if err != nil {
				return nil, err
			}
			t.bodies = append(t.bodies, b)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown mode %q (want match or render)", mode)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the studio service")
	mode := flag.String("mode", "match", "endpoint to drive: match or render")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate limit (0 = unlimited)")
	flag.Parse()

	t, err := newTarget(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Println("=== Resume Studio Load Test ===")
	fmt.Printf("Target:      %s%s\n", *baseURL, t.path)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	if *rps > 0 {
		fmt.Printf("Rate:        %.0f req/s\n", *rps)
	} else {
		fmt.Println("Rate:        unlimited")
	}
	fmt.Println()

	samples := run(*baseURL, t, *concurrency, *duration, *rps)
	s := summarize(samples)
	s.print(os.Stdout, *duration)
	if s.Total == 0 {
		fmt.Println("\nWARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// run keeps every worker busy until duration elapses. Each worker records
// into its own slice, merged once at the end.
func run(baseURL string, t *target, workers int, duration time.Duration, rps float64) []sample {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), workers)
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	perWorker := make([][]sample, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; ; i++ {
				if limiter.Wait(ctx) != nil {
					return nil
				}
				s := send(ctx, client, baseURL+t.path, t.bodies[i%len(t.bodies)], t.score)
				if ctx.Err() != nil {
					return nil
				}
				perWorker[w] = append(perWorker[w], s)
			}
		})
	}
	_ = g.Wait()

	var all []sample
	for _, s := range perWorker {
		all = append(all, s...)
	}
	return all
}

func send(ctx context.Context, client *http.Client, url string, body []byte, score func([]byte) (float64, bool)) sample {
	start := time.Now()
	s := sample{}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.err = err
		return s
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		s.err = err
		s.latency = time.Since(start)
		return s
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.latency = time.Since(start)
	s.status = resp.StatusCode
	s.err = err
	if err == nil && resp.StatusCode == http.StatusOK && score != nil {
		s.score, s.scored = score(data)
	}
	return s
}
