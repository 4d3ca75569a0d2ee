package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/kafka"
)

func TestAggregator_Publish(t *testing.T) {
	agg := NewAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: SearchEvent{Type: EventCacheMiss, Query: "+title:Go", Compiled: "title:go", TotalHits: 3, LatencyMs: 10}}))
	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: SearchEvent{Type: EventCacheHit, Query: "title=go", Compiled: "title:go", TotalHits: 3, CacheHit: true, LatencyMs: 2}}))
	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: SearchEvent{Type: EventCacheMiss, Query: "zzz", Compiled: "title:zzz", LatencyMs: 4}}))
	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: SearchEvent{Type: EventCompileError, Query: "nope:x"}}))
	require.NoError(t, agg.Publish(ctx, kafka.Event{Value: IndexEvent{Type: EventIndexDoc, DocID: 1}}))
	assert.Error(t, agg.Publish(ctx, kafka.Event{Value: "garbage"}))

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalDocIndexed)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.CompileErrors)
	assert.Equal(t, []QueryCount{{Query: "title:go", Count: 2}, {Query: "title:zzz", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "title:zzz", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, int64(4), stats.P50LatencyMs)
	assert.InDelta(t, 16.0/3.0, stats.AvgLatencyMs, 1e-9)
}

func TestAggregator_Decode(t *testing.T) {
	agg := NewAggregator()

	search, err := json.Marshal(SearchEvent{Type: EventSearch, Compiled: "body:fox", TotalHits: 1})
	require.NoError(t, err)
	index, err := json.Marshal(IndexEvent{Type: EventIndexDoc, DocID: 9})
	require.NoError(t, err)

	handle := HandleEvent(agg)
	require.NoError(t, handle(context.Background(), nil, search))
	require.NoError(t, handle(context.Background(), nil, index))
	require.NoError(t, handle(context.Background(), nil, []byte("{not json")), "bad messages are skipped")

	assert.Error(t, agg.Decode([]byte(`{"type":"mystery"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalDocIndexed)
}

func TestTopN(t *testing.T) {
	got := topN(map[string]int64{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	assert.Equal(t, []QueryCount{{"c", 5}, {"a", 2}, {"b", 2}}, got)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollector_DeliversOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 8)
	c.Start(context.Background())

	c.Track(SearchEvent{Type: EventSearch, Query: "a"})
	c.Track(IndexEvent{Type: EventIndexDoc, DocID: 1})
	c.Close()

	require.Equal(t, 2, pub.count())
	assert.Equal(t, "analytics", pub.events[0].Key)
}

func TestCollector_PublishErrorsDoNotStop(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 8)
	c.Start(context.Background())
	c.Track(SearchEvent{})
	c.Track(SearchEvent{})
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestCollector_FeedsAggregator(t *testing.T) {
	agg := NewAggregator()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(agg, 8)
	c.Start(ctx)
	c.Track(SearchEvent{Type: EventSearch, Compiled: "x", TotalHits: 1})

	assert.Eventually(t, func() bool { return agg.Stats().TotalSearches == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	c.Close()
}

func TestHandler_Stats(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Publish(context.Background(), kafka.Event{Value: SearchEvent{Type: EventSearch, Compiled: "x", TotalHits: 1}}))

	rec := httptest.NewRecorder()
	NewHandler(agg, nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)
}

type snapshotFunc func(ctx context.Context) (*AggregatedStats, error)

func (f snapshotFunc) LatestSnapshot(ctx context.Context) (*AggregatedStats, error) { return f(ctx) }

func TestHandler_Latest(t *testing.T) {
	saved := &AggregatedStats{TotalSearches: 42}
	tests := []struct {
		name   string
		reader SnapshotReader
		status int
		want   int64
	}{
		{"disabled", nil, http.StatusNotFound, 0},
		{"none yet", snapshotFunc(func(context.Context) (*AggregatedStats, error) { return nil, nil }), http.StatusNotFound, 0},
		{"store error", snapshotFunc(func(context.Context) (*AggregatedStats, error) { return nil, errors.New("conn reset") }), http.StatusInternalServerError, 0},
		{"found", snapshotFunc(func(context.Context) (*AggregatedStats, error) { return saved, nil }), http.StatusOK, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHandler(NewAggregator(), tt.reader).Routes(mux)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/latest", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var stats AggregatedStats
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
				assert.Equal(t, tt.want, stats.TotalSearches)
			}
		})
	}
}
