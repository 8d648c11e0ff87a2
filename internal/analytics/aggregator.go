package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/kafka"
)

const maxSamples = 10000

type AggregatedStats struct {
	TotalEvents        int64               `json:"total_events"`
	EventCounts        map[EventType]int64 `json:"event_counts"`
	Matches            int64               `json:"matches"`
	AvgScore           float64             `json:"avg_score"`
	P50Score           float64             `json:"p50_score"`
	P95Score           float64             `json:"p95_score"`
	AvgLatencyMs       float64             `json:"avg_latency_ms"`
	P50LatencyMs       int64               `json:"p50_latency_ms"`
	P95LatencyMs       int64               `json:"p95_latency_ms"`
	P99LatencyMs       int64               `json:"p99_latency_ms"`
	TopMissingKeywords []TermCount         `json:"top_missing_keywords"`
	TopMatchedKeywords []TermCount         `json:"top_matched_keywords"`
	ModelUsage         []TermCount         `json:"model_usage"`
	CompletionFailures int64               `json:"completion_failures"`
	CompletionCacheHit int64               `json:"completion_cache_hits"`
	Exports            int64               `json:"exports"`
	ExportFailures     int64               `json:"export_failures"`
	ExportedBytes      int64               `json:"exported_bytes"`
	EventsPerMinute    float64             `json:"events_per_minute"`
	CapturedAt         time.Time           `json:"captured_at"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator folds studio events into running statistics. Score and latency
// samples are kept in bounded rings so memory stays flat on long runs.
type Aggregator struct {
	mu             sync.RWMutex
	eventCounts    map[EventType]int64
	scores         []float64
	latencies      []int64
	missingCounts  map[string]int64
	matchedCounts  map[string]int64
	modelCounts    map[string]int64
	failures       int64
	cacheHits      int64
	exports        int64
	exportFailures int64
	exportedBytes  int64
	startTime      time.Time
	now            func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		eventCounts:   make(map[EventType]int64),
		scores:        make([]float64, 0, 1024),
		latencies:     make([]int64, 0, 1024),
		missingCounts: make(map[string]int64),
		matchedCounts: make(map[string]int64),
		modelCounts:   make(map[string]int64),
		startTime:     time.Now(),
		now:           time.Now,
		logger:        slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped so one bad record cannot stall the
// partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if err := agg.Record(msg.Value); err != nil {
			agg.logger.Error("failed to decode analytics event",
				"event_type", msg.EventType,
				"offset", msg.Offset,
				"error", err,
			)
		}
		return nil
	}
}

// Record decodes one JSON event and folds it in. Unknown types are counted
// but otherwise ignored.
func (a *Aggregator) Record(value []byte) error {
	kind, err := kafka.DecodeJSON[eventKind](value)
	if err != nil {
		return err
	}
	switch kind.Type {
	case EventMatchScored:
		var e MatchEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		a.recordMatch(e)
	case EventResumeCustomized, EventResumeEdited:
		var e CompletionEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		a.recordCompletion(e)
	case EventPDFExported:
		var e ExportEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		a.recordExport(e)
	default:
		a.mu.Lock()
		a.eventCounts[kind.Type]++
		a.mu.Unlock()
	}
	return nil
}

func (a *Aggregator) recordMatch(e MatchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventCounts[e.Type]++
	a.scores = appendBounded(a.scores, e.Score)
	a.latencies = appendBounded(a.latencies, e.LatencyMs)
	for _, k := range e.MissingKeywords {
		a.missingCounts[k]++
	}
	for _, k := range e.MatchedKeywords {
		a.matchedCounts[k]++
	}
}

func (a *Aggregator) recordCompletion(e CompletionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventCounts[e.Type]++
	a.latencies = appendBounded(a.latencies, e.LatencyMs)
	if !e.Success {
		a.failures++
		return
	}
	if e.Model != "" {
		a.modelCounts[e.Model]++
	}
	if e.Cached {
		a.cacheHits++
	}
}

func (a *Aggregator) recordExport(e ExportEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventCounts[e.Type]++
	a.latencies = appendBounded(a.latencies, e.LatencyMs)
	a.exports++
	if !e.Success {
		a.exportFailures++
		return
	}
	a.exportedBytes += int64(e.Bytes)
}

func appendBounded[T any](s []T, v T) []T {
	if len(s) >= maxSamples {
		copy(s, s[1:])
		s = s[:len(s)-1]
	}
	return append(s, v)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		EventCounts:        make(map[EventType]int64, len(a.eventCounts)),
		Matches:            a.eventCounts[EventMatchScored],
		CompletionFailures: a.failures,
		CompletionCacheHit: a.cacheHits,
		Exports:            a.exports,
		ExportFailures:     a.exportFailures,
		ExportedBytes:      a.exportedBytes,
		CapturedAt:         a.now().UTC(),
	}
	for t, n := range a.eventCounts {
		stats.EventCounts[t] = n
		stats.TotalEvents += n
	}

	if len(a.scores) > 0 {
		sorted := make([]float64, len(a.scores))
		copy(sorted, a.scores)
		sort.Float64s(sorted)
		var sum float64
		for _, s := range sorted {
			sum += s
		}
		stats.AvgScore = math.Round(sum/float64(len(sorted))*100) / 100
		stats.P50Score = percentile(sorted, 50)
		stats.P95Score = percentile(sorted, 95)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopMissingKeywords = topN(a.missingCounts, 10)
	stats.TopMatchedKeywords = topN(a.matchedCounts, 10)
	stats.ModelUsage = topN(a.modelCounts, 10)

	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.EventsPerMinute = float64(stats.TotalEvents) / elapsed
	}
	return stats
}

func percentile[T int64 | float64](sorted []T, pct int) T {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN ranks by count, then by term so ties are stable across calls.
func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
