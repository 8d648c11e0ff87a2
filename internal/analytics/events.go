// Package analytics publishes studio usage events to Kafka and aggregates
// them into dashboard statistics on the consuming side.
package analytics

import "time"

type EventType string

const (
	EventMatchScored      EventType = "match_scored"
	EventResumeCustomized EventType = "resume_customized"
	EventResumeEdited     EventType = "resume_edited"
	EventPDFExported      EventType = "pdf_exported"
)

// MatchEvent records one scored resume/job pair.
type MatchEvent struct {
	Type            EventType `json:"type"`
	Score           float64   `json:"score"`
	ResumeKeywords  int       `json:"resume_keywords"`
	JobKeywords     int       `json:"job_keywords"`
	MatchedKeywords []string  `json:"matched_keywords"`
	MissingKeywords []string  `json:"missing_keywords"`
	LatencyMs       int64     `json:"latency_ms"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
}

// CompletionEvent records a template merge or an element edit.
type CompletionEvent struct {
	Type      EventType `json:"type"`
	Model     string    `json:"model"`
	Success   bool      `json:"success"`
	Cached    bool      `json:"cached"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// ExportEvent records one PDF export attempt.
type ExportEvent struct {
	Type      EventType `json:"type"`
	Engine    string    `json:"engine"`
	Bytes     int       `json:"bytes"`
	Success   bool      `json:"success"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// eventKind is decoded first to pick the concrete event type.
type eventKind struct {
	Type EventType `json:"type"`
}

func eventType(event any) EventType {
	switch e := event.(type) {
	case MatchEvent:
		return e.Type
	case CompletionEvent:
		return e.Type
	case ExportEvent:
		return e.Type
	default:
		return "unknown"
	}
}
