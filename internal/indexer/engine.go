// Package indexer is the reference inverted-index engine the matcher runtime
// reads from: an in-memory tier that flushes to immutable .spdx segments.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
)

// Segment is one searchable unit: a flushed segment or a frozen view of
// the memory tier.
type Segment interface {
	matcher.Reader
	scorer.Store
	DocIDs() []uint64
	DocCount() int
}

// Snapshot is the set of segments one search runs against.
type Snapshot []Segment

// DocCount sums the document counts of every segment.
func (s Snapshot) DocCount() int {
	n := 0
	for _, seg := range s {
		n += seg.DocCount()
	}
	return n
}

type Engine struct {
	mu       sync.RWMutex
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	readers  []*segment.Reader
	nextID   uint64
	cfg      config.IndexerConfig
	registry *field.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine opens the data directory and recovers existing segments. m may
// be nil.
func NewEngine(cfg config.IndexerConfig, registry *field.Registry, m *metrics.Metrics) (*Engine, error) {
	if registry == nil {
		return nil, apperrors.ConfigErrorf("indexer requires a field registry")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.DataDir),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// IndexDocument analyzes doc with each field's analyzer and returns the
// assigned id. Ids are positive and strictly increasing.
func (e *Engine) IndexDocument(doc map[string]string) (uint64, error) {
	fields, stored, err := e.analyze(doc)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.nextID++
	docID := e.nextID
	e.memIndex.AddDocument(docID, fields, stored)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", docID,
		"fields", len(fields),
		"mem_size", e.memIndex.Size(),
	)
	if e.cfg.SegmentMaxSize > 0 && e.memIndex.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return docID, fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return docID, nil
}

func (e *Engine) analyze(doc map[string]string) (map[string][]analysis.Token, map[string]string, error) {
	fields := make(map[string][]analysis.Token, len(doc))
	stored := make(map[string]string)
	for name, value := range doc {
		f, ok := e.registry.Resolve(name)
		if !ok {
			return nil, nil, apperrors.FieldErrorf("unknown field %q", name)
		}
		if f.Stored {
			stored[name] = value
		}
		var tokens []analysis.Token
		switch {
		case f.Analyzer != nil:
			tokens = f.Analyzer.Tokenize(value)
		case value != "":
			tokens = []analysis.Token{{Term: value}}
		}
		if len(tokens) > 0 {
			fields[name] = tokens
		}
	}
	return fields, stored, nil
}

// Flush writes the memory tier to a new segment. Indexing is blocked while
// the segment is written so no document is lost between snapshot and reset.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, docs := e.memIndex.Snapshot()
	if len(docs) == 0 {
		return nil
	}
	segmentName, err := e.writer.Write(entries, docs)
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}

	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(segPath)
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readers = append(e.readers, reader)
	e.memIndex.Reset()
	e.observeFlush("success")
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", len(e.readers),
	)
	return nil
}

func (e *Engine) observeFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

// Readers returns the segments visible right now: every flushed segment
// plus a frozen copy of the memory tier when it holds documents.
func (e *Engine) Readers() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := make(Snapshot, 0, len(e.readers)+1)
	for _, r := range e.readers {
		snap = append(snap, r)
	}
	if e.memIndex.DocCount() > 0 {
		snap = append(snap, e.memIndex.Freeze())
	}
	return snap
}

// DocCount returns the number of documents across all tiers.
func (e *Engine) DocCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := e.memIndex.DocCount()
	for _, r := range e.readers {
		n += r.DocCount()
	}
	return n
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

// loadExistingSegments opens every .spdx file in the data directory. Any
// segment that fails to open fails the whole load.
func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".spdx") {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		path := filepath.Join(e.cfg.DataDir, name)
		reader, err := segment.OpenReader(path)
		if err != nil {
			e.logger.Error("failed to open segment", "segment", name, "error", err)
			for _, r := range e.readers {
				r.Close()
			}
			e.readers = nil
			return fmt.Errorf("segment %s: %w", name, err)
		}
		e.readers = append(e.readers, reader)
		if last := reader.MaxDocID(); last > e.nextID {
			e.nextID = last
		}
		e.logger.Info("loaded existing segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.DocCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers), "next_doc_id", e.nextID+1)
	return nil
}
