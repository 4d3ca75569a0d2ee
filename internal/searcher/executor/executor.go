// Package executor evaluates a compiled query tree against every segment of
// the index. Leaf postings are collected per segment in parallel, weighted
// against the whole collection, then scored by one matcher per leaf per
// segment and merged into a single top-k list.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/weight"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []merger.ScoredDoc `json:"results"`
	// TermStats maps each leaf's display string to its document frequency.
	TermStats map[string]int `json:"term_stats"`
}

// Source supplies the segments a search runs against. *indexer.Engine is
// the production implementation.
type Source interface {
	Readers() indexer.Snapshot
}

type Options struct {
	Patterns   *matcher.PatternCache
	Similarity weight.Similarity
	// Store overrides where score hooks read stored fields from. Nil means
	// each segment's own stored fields.
	Store scorer.Store
}

type Executor struct {
	source   Source
	registry *field.Registry
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New returns an executor over source. m may be nil.
func New(source Source, registry *field.Registry, opts Options, m *metrics.Metrics) (*Executor, error) {
	if source == nil || registry == nil {
		return nil, apperrors.ConfigErrorf("executor requires an index source and a field registry")
	}
	if opts.Similarity == nil {
		opts.Similarity = weight.DefaultSimilarity{}
	}
	return &Executor{
		source:   source,
		registry: registry,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}, nil
}

// Execute runs node and returns at most limit hits. A nil node yields an
// empty result.
func (e *Executor) Execute(ctx context.Context, node query.Node, limit int) (*SearchResult, error) {
	start := time.Now()
	result := &SearchResult{Results: []merger.ScoredDoc{}, TermStats: map[string]int{}}
	if node == nil {
		return result, nil
	}
	result.Query = node.String()

	snap := e.source.Readers()
	if len(snap) == 0 {
		return result, nil
	}
	leaves := query.Leaves(node)

	postings, err := e.collect(ctx, snap, leaves)
	if err != nil {
		return nil, err
	}

	weights, err := e.weigh(snap, leaves, postings)
	if err != nil {
		return nil, err
	}
	for i, leaf := range leaves {
		result.TermStats[leaf.String()] = weights[i].DocFreq
	}

	perSegment := make([][]merger.ScoredDoc, len(snap))
	g, gctx := errgroup.WithContext(ctx)
	for s, seg := range snap {
		g.Go(func() error {
			ev := &evaluation{
				exec:     e,
				seg:      seg,
				postings: postings[s],
				weights:  weights,
				index:    leafIndex(leaves),
				ctx:      gctx,
			}
			hits, err := ev.eval(node)
			if err != nil {
				return fmt.Errorf("segment %d: %w", s, err)
			}
			docs := make([]merger.ScoredDoc, 0, len(hits))
			for id, score := range hits {
				docs = append(docs, merger.ScoredDoc{DocID: id, Score: score})
			}
			perSegment[s] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, docs := range perSegment {
		result.TotalHits += len(docs)
	}
	result.Results = merger.Merge(perSegment, limit)

	e.logger.Info("query executed",
		"query", result.Query,
		"segments", len(snap),
		"leaves", len(leaves),
		"hits", result.TotalHits,
		"results", len(result.Results),
		"latency", time.Since(start),
	)
	return result, nil
}

// collect gathers the postings of every leaf in every segment, one
// goroutine per segment. postings[s][i] belongs to segment s and leaf i.
func (e *Executor) collect(ctx context.Context, snap indexer.Snapshot, leaves []query.Leaf) ([][]matcher.Postings, error) {
	collector := &matcher.Collector{Patterns: e.opts.Patterns}
	if e.metrics != nil {
		collector.OnExpand = func(kind query.Kind, terms int) {
			e.metrics.WildcardExpansion.WithLabelValues(kind.String()).Observe(float64(terms))
		}
	}

	postings := make([][]matcher.Postings, len(snap))
	g, gctx := errgroup.WithContext(ctx)
	for s, seg := range snap {
		g.Go(func() error {
			out := make([]matcher.Postings, len(leaves))
			for i, leaf := range leaves {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := collector.Collect(leaf, seg)
				if err != nil {
					return fmt.Errorf("collecting %s: %w", leaf, err)
				}
				out[i] = p
				if e.metrics != nil {
					e.metrics.MatcherLeaves.WithLabelValues(leaf.Kind().String()).Inc()
				}
			}
			postings[s] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return postings, nil
}

// weigh computes one weight per leaf against the whole snapshot and
// normalizes them all by the shared query norm.
func (e *Executor) weigh(snap indexer.Snapshot, leaves []query.Leaf, postings [][]matcher.Postings) ([]*weight.Weight, error) {
	norm, err := weight.NewNormalizer(snap)
	if err != nil {
		return nil, err
	}
	weights := make([]*weight.Weight, len(leaves))
	for i, leaf := range leaves {
		df := 0
		for s := range postings {
			df += len(postings[s][i])
		}
		boost := 0.0
		if f, ok := e.registry.Resolve(leaf.FieldName()); ok {
			boost = f.Boost
		}
		weights[i] = norm.Compute(df, boost, 1.0)
	}
	qnorm := weight.QueryNorm(e.opts.Similarity, weights...)
	for _, w := range weights {
		w.Normalize(qnorm)
	}
	return weights, nil
}

func leafIndex(leaves []query.Leaf) map[query.Leaf]int {
	idx := make(map[query.Leaf]int, len(leaves))
	for i, l := range leaves {
		if _, seen := idx[l]; !seen {
			idx[l] = i
		}
	}
	return idx
}

// evaluation scores one node tree against one segment. It is owned by a
// single goroutine.
type evaluation struct {
	exec     *Executor
	seg      indexer.Segment
	postings []matcher.Postings
	weights  []*weight.Weight
	index    map[query.Leaf]int
	ctx      context.Context
}

func (ev *evaluation) eval(n query.Node) (map[uint64]float64, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case query.Leaf:
		return ev.leaf(n)
	case *query.Boolean:
		return ev.boolean(n)
	}
	return nil, fmt.Errorf("cannot evaluate %s node", n.Kind())
}

func (ev *evaluation) leaf(l query.Leaf) (map[uint64]float64, error) {
	i, ok := ev.index[l]
	if !ok {
		return nil, fmt.Errorf("leaf %s was not collected", l)
	}
	hits := make(map[uint64]float64, len(ev.postings[i]))
	if len(ev.postings[i]) == 0 {
		return hits, nil
	}
	store := ev.exec.opts.Store
	if store == nil {
		store = ev.seg
	}
	m := matcher.FromPostings(ev.postings[i], matcher.Options{
		Boost:      ev.weights[i].NormalizedWeight,
		Similarity: ev.exec.opts.Similarity,
		Hook:       l.ScoreHook(),
		Store:      store,
	})
	for id := m.Next(); id != matcher.NoMoreDocs; id = m.Next() {
		score, err := m.Score()
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", l, err)
		}
		hits[id] = score
	}
	return hits, nil
}

func (ev *evaluation) boolean(b *query.Boolean) (map[uint64]float64, error) {
	switch b.Op {
	case query.NOT:
		if len(b.Children) != 1 {
			return nil, fmt.Errorf("NOT node with %d children", len(b.Children))
		}
		excluded, err := ev.eval(b.Children[0])
		if err != nil {
			return nil, err
		}
		hits := make(map[uint64]float64)
		for _, id := range ev.seg.DocIDs() {
			if _, ok := excluded[id]; !ok {
				hits[id] = 0
			}
		}
		return hits, nil

	case query.AND:
		var acc map[uint64]float64
		for _, c := range b.Children {
			hits, err := ev.eval(c)
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = hits
				continue
			}
			for id, score := range acc {
				if s, ok := hits[id]; ok {
					acc[id] = score + s
				} else {
					delete(acc, id)
				}
			}
		}
		if acc == nil {
			acc = map[uint64]float64{}
		}
		return acc, nil

	default:
		acc := make(map[uint64]float64)
		for _, c := range b.Children {
			hits, err := ev.eval(c)
			if err != nil {
				return nil, err
			}
			for id, score := range hits {
				acc[id] += score
			}
		}
		return acc, nil
	}
}
