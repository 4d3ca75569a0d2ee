package analytics

import "time"

type EventType string

const (
	EventSearch       EventType = "search"
	EventCacheHit     EventType = "cache_hit"
	EventCacheMiss    EventType = "cache_miss"
	EventCompileError EventType = "compile_error"
	EventIndexDoc     EventType = "index_document"
)

// SearchEvent describes one search request. Compiled is the display string
// of the compiled query tree, which groups equivalent query strings.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Compiled  string    `json:"compiled"`
	Leaves    int       `json:"leaves"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type IndexEvent struct {
	Type      EventType `json:"type"`
	DocID     uint64    `json:"doc_id"`
	Fields    int       `json:"fields"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope is the wire form of any event; Type selects the payload.
type envelope struct {
	Type EventType `json:"type"`
}
