package blevedialect

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// pretokenized indexes terms that the registry's analyzers already produced.
const pretokenized = "dialect_pretokenized"

// Index is a bleve index whose fields hold the same terms the dialect
// compiler produces, so lowered queries match what the matcher runtime
// would match.
type Index struct {
	idx      bleve.Index
	registry *field.Registry
	logger   *slog.Logger
}

// NewMemIndex builds an in-memory bleve index with one field mapping per
// registry field.
func NewMemIndex(registry *field.Registry) (*Index, error) {
	if registry == nil {
		return nil, apperrors.ConfigErrorf("bleve index requires a field registry")
	}
	im, err := buildMapping(registry)
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &Index{
		idx:      idx,
		registry: registry,
		logger:   slog.Default().With("component", "bleve-dialect"),
	}, nil
}

func buildMapping(registry *field.Registry) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(pretokenized, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("registering pretokenized analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	for _, name := range registry.Names() {
		f, _ := registry.Resolve(name)
		fm := bleve.NewTextFieldMapping()
		fm.Store = f.Stored
		fm.IncludeInAll = false
		fm.IncludeTermVectors = true
		fm.Analyzer = pretokenized
		if f.Type == field.TypeKeyword || f.Analyzer == nil {
			fm.Analyzer = keyword.Name
		}
		doc.AddFieldMappingsAt(name, fm)
	}
	im.DefaultMapping = doc
	return im, nil
}

// Add indexes doc under id. Text fields are analyzed with the registry's
// analyzer and handed to bleve as whitespace-separated terms.
func (i *Index) Add(id uint64, doc map[string]string) error {
	data := make(map[string]interface{}, len(doc))
	for name, value := range doc {
		f, ok := i.registry.Resolve(name)
		if !ok {
			return apperrors.FieldErrorf("unknown field %q", name)
		}
		if f.Type == field.TypeKeyword || f.Analyzer == nil {
			data[name] = value
			continue
		}
		terms := make([]string, 0, 8)
		for _, tok := range f.Analyzer.Tokenize(value) {
			terms = append(terms, tok.Term)
		}
		data[name] = strings.Join(terms, " ")
	}
	if err := i.idx.Index(strconv.FormatUint(id, 10), data); err != nil {
		return fmt.Errorf("indexing document %d in bleve: %w", id, err)
	}
	return nil
}

// Search lowers node and returns up to limit hits ordered by bleve's score.
func (i *Index) Search(ctx context.Context, node query.Node, limit int) ([]merger.ScoredDoc, uint64, error) {
	if limit <= 0 {
		limit = 10
	}
	q, err := Lower(node)
	if err != nil {
		return nil, 0, err
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("bleve search %s: %w", node, err)
	}
	hits := make([]merger.ScoredDoc, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseUint(h.ID, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bleve returned non-numeric id %q: %w", h.ID, err)
		}
		hits = append(hits, merger.ScoredDoc{DocID: id, Score: h.Score})
	}
	i.logger.Debug("bleve search", "query", node.String(), "total", res.Total, "returned", len(hits))
	return hits, res.Total, nil
}

func (i *Index) DocCount() (uint64, error) {
	return i.idx.DocCount()
}

func (i *Index) Close() error {
	return i.idx.Close()
}
