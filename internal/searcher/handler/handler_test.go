package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/dialect"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
)

type mapBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (b *mapBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (b *mapBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = string(value.([]byte))
	return nil
}

func (b *mapBackend) FlushByPattern(_ context.Context, _ string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int64(len(b.data))
	b.data = make(map[string]string)
	return n, nil
}

type sinkFunc func(ctx context.Context, id uint64, fields map[string]string) error

func (f sinkFunc) Put(ctx context.Context, id uint64, fields map[string]string) error {
	return f(ctx, id, fields)
}

type fixture struct {
	handler    *Handler
	mux        *http.ServeMux
	aggregator *analytics.Aggregator
	collector  *analytics.Collector
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T, withCache bool, sink DocumentSink) *fixture {
	t.Helper()
	reg, err := field.NewRegistry(
		field.Config{Name: "title", Analyzer: analysis.NewSimple(analysis.SimpleOptions{StopWords: true}), Boost: 1, Stored: true},
		field.Config{
			Name:     "category",
			Type:     field.TypeKeyword,
			Analyzer: analysis.Keyword{},
			Stored:   true,
			Hooks: field.Hooks{Term: scorer.Bands{
				Field:  "category",
				Scores: map[string]float64{"a": 100, "b": 200},
			}},
		},
	)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	engine, err := indexer.NewEngine(config.IndexerConfig{DataDir: t.TempDir()}, reg, m)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	compiler, err := dialect.New(reg, config.DialectConfig{DefaultField: []string{"title"}, DefaultBoolOp: "+"}, m)
	require.NoError(t, err)
	patterns, err := matcher.NewPatternCache(16)
	require.NoError(t, err)
	exec, err := executor.New(engine, reg, executor.Options{Patterns: patterns}, m)
	require.NoError(t, err)

	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(agg, 64)
	collector.Start(context.Background())

	deps := Deps{
		Parser:    parser.New(),
		Compiler:  compiler,
		Executor:  exec,
		Indexer:   engine,
		Collector: collector,
		Sink:      sink,
		Metrics:   m,
	}
	if withCache {
		deps.Cache = cache.New(&mapBackend{data: make(map[string]string)}, config.RedisConfig{CacheTTL: time.Minute}, m)
	}
	h := New(deps, 10, 50)
	mux := http.NewServeMux()
	h.Routes(mux)
	return &fixture{handler: h, mux: mux, aggregator: agg, collector: collector, metrics: m}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) index(t *testing.T, doc string) uint64 {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/documents", doc)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["doc_id"]
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestSearch_EndToEnd(t *testing.T) {
	f := newFixture(t, false, nil)
	assert.Equal(t, uint64(1), f.index(t, `{"title":"quick brown fox","category":"a"}`))
	assert.Equal(t, uint64(2), f.index(t, `{"title":"lazy dog","category":"b"}`))

	res := decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=fox", ""))
	require.Len(t, res.Results, 1)
	assert.Equal(t, uint64(1), res.Results[0].DocID)
	assert.Equal(t, "title:fox", res.Query)

	res = decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=category:b", ""))
	require.Len(t, res.Results, 1)
	assert.Equal(t, 200.0, res.Results[0].Score)

	res = decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=nothing", ""))
	assert.Equal(t, 0, res.TotalHits)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("hit")))

	f.collector.Close()
	stats := f.aggregator.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(2), stats.TotalDocIndexed)
}

func TestSearch_StopwordOnlyIsEmpty(t *testing.T) {
	f := newFixture(t, false, nil)
	f.index(t, `{"title":"the fox"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=the", "")
	res := decodeResult(t, rec)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.TotalHits)
	assert.Regexp(t, `^parse;dur=[0-9.]+, compile;dur=[0-9.]+$`, rec.Header().Get("Server-Timing"))
}

func TestSearch_ServerTiming(t *testing.T) {
	f := newFixture(t, false, nil)
	f.index(t, `{"title":"quick fox"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=fox", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^parse;dur=[0-9.]+, compile;dur=[0-9.]+, execute;dur=[0-9.]+$`, rec.Header().Get("Server-Timing"))
}

func TestSearch_BadRequests(t *testing.T) {
	f := newFixture(t, false, nil)
	tests := []struct {
		name   string
		target string
	}{
		{"missing q", "/api/v1/search"},
		{"syntax error", "/api/v1/search?q=" + "%28fox"},
		{"unknown field", "/api/v1/search?q=colour:red"},
		{"bad limit", "/api/v1/search?q=fox&limit=0"},
		{"non-numeric limit", "/api/v1/search?q=fox&limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	f.collector.Close()
	assert.Equal(t, int64(2), f.aggregator.Stats().CompileErrors)
}

func TestSearch_CachesByCompiledForm(t *testing.T) {
	f := newFixture(t, true, nil)
	f.index(t, `{"title":"fox"}`)

	decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=title:fox", ""))
	decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=%2Btitle%3DFOX", ""))

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, 1.0, stats["misses"])

	rec = f.do(t, http.MethodDelete, "/api/v1/cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCache_Disabled(t *testing.T) {
	f := newFixture(t, false, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = f.do(t, http.MethodDelete, "/api/v1/cache", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCompile(t *testing.T) {
	f := newFixture(t, false, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/compile?q=%2Bcategory%3Aa+-title%3A%22lazy+dog%22", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp compileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Leaves, 2)
	assert.Equal(t, "term", resp.Leaves[0].Kind)
	assert.Equal(t, "category", resp.Leaves[0].Field)
	assert.True(t, resp.Leaves[0].Hooked)
	assert.Equal(t, "phrase", resp.Leaves[1].Kind)
	assert.NotEmpty(t, resp.Compiled)

	rec = f.do(t, http.MethodGet, "/api/v1/compile?q=colour:red", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexDocument(t *testing.T) {
	var stored map[uint64]map[string]string
	sink := sinkFunc(func(_ context.Context, id uint64, fields map[string]string) error {
		if stored == nil {
			stored = make(map[uint64]map[string]string)
		}
		stored[id] = fields
		return nil
	})
	f := newFixture(t, false, sink)

	id := f.index(t, `{"title":"fox"}`)
	assert.Equal(t, map[string]string{"title": "fox"}, stored[id])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/documents", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/documents", `[1,2]`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/documents", `{"colour":"red"}`).Code)
}

func TestIndexDocument_SinkFailure(t *testing.T) {
	sink := sinkFunc(func(context.Context, uint64, map[string]string) error {
		return errors.New("db down")
	})
	f := newFixture(t, false, sink)

	rec := f.do(t, http.MethodPost, "/api/v1/documents", `{"title":"fox"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
