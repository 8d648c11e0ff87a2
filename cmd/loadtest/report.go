package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"
)

// sample is the outcome of one request. status is 0 when no response came
// back.
type sample struct {
	latency time.Duration
	status  int
	err     error
	score   float64
	scored  bool
}

type summary struct {
	Total     int
	Succeeded int
	Failed    int
	Latencies []time.Duration // sorted, responses only
	Scores    []float64       // sorted
	Statuses  map[int]int
}

func summarize(samples []sample) summary {
	s := summary{Total: len(samples), Statuses: make(map[int]int)}
	for _, x := range samples {
		if x.err != nil || x.status < 200 || x.status > 299 {
			s.Failed++
		} else {
			s.Succeeded++
		}
		if x.status == 0 {
			continue
		}
		s.Statuses[x.status]++
		s.Latencies = append(s.Latencies, x.latency)
		if x.scored {
			s.Scores = append(s.Scores, x.score)
		}
	}
	sort.Slice(s.Latencies, func(i, j int) bool { return s.Latencies[i] < s.Latencies[j] })
	sort.Float64s(s.Scores)
	return s
}

func (s summary) mean() time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range s.Latencies {
		sum += l
	}
	return sum / time.Duration(len(s.Latencies))
}

func (s summary) stddev() time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	avg := float64(s.mean())
	var sq float64
	for _, l := range s.Latencies {
		d := float64(l) - avg
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(s.Latencies))))
}

func (s summary) print(w io.Writer, elapsed time.Duration) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.Total)
	fmt.Fprintf(w, "Successful:      %d\n", s.Succeeded)
	fmt.Fprintf(w, "Errors:          %d\n", s.Failed)
	if s.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.Failed)/float64(s.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(s.Total)/elapsed.Seconds())
	}

	if n := len(s.Latencies); n > 0 {
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", s.Latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", s.mean())
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-2.0f:    %s\n", p, percentile(s.Latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", s.Latencies[n-1])
		fmt.Fprintf(w, "StdDev: %s\n", s.stddev())
	}

	if n := len(s.Scores); n > 0 {
		fmt.Fprintln(w, "\n=== Match Scores ===")
		fmt.Fprintf(w, "Min:    %.2f\n", s.Scores[0])
		fmt.Fprintf(w, "P50:    %.2f\n", percentile(s.Scores, 50))
		fmt.Fprintf(w, "Max:    %.2f\n", s.Scores[n-1])
	}

	codes := make([]int, 0, len(s.Statuses))
	for c := range s.Statuses {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	fmt.Fprintln(w, "\n=== Status Codes ===")
	for _, c := range codes {
		fmt.Fprintf(w, "  %d: %d\n", c, s.Statuses[c])
	}
}

// percentile uses nearest rank on an ascending slice.
func percentile[T time.Duration | float64](sorted []T, p float64) T {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
