// Package benchmark measures the query pipeline end to end: parsing,
// compilation, indexing and execution against the segment engine and bleve.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/dialect"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
)

var queries = []struct {
	name  string
	query string
}{
	{"term", "title:search"},
	{"default_field", "distributed search"},
	{"phrase", `body:"inverted index"`},
	{"proximity", `body:"query latency"~4`},
	{"wildcard", "title:dist*"},
	{"negated_wildcard", "category!:n*"},
	{"range", "date:[20100301 TO 20100331]"},
	{"mixed", `+title:search -body:"stop word" category:news date:[20100101 TO 20101231]`},
}

var words = []string{
	"distributed", "search", "inverted", "index", "query", "latency", "shard",
	"ranking", "cache", "segment", "merge", "token", "stemming", "analytics",
}

func newRegistry(b *testing.B) *field.Registry {
	b.Helper()
	reg, err := field.NewRegistry(
		field.Config{Name: "title", Analyzer: analysis.NewSimple(analysis.SimpleOptions{Stem: true, StopWords: true}), Boost: 2, Stored: true},
		field.Config{Name: "body", Analyzer: analysis.NewSimple(analysis.SimpleOptions{StopWords: true}), Boost: 1},
		field.Config{
			Name:     "category",
			Type:     field.TypeKeyword,
			Analyzer: analysis.Keyword{},
			Stored:   true,
			Hooks: field.Hooks{Term: scorer.Bands{
				Field:  "category",
				Scores: map[string]float64{"news": 100, "docs": 200},
			}},
		},
		field.Config{Name: "date", Type: field.TypeKeyword, Analyzer: analysis.Keyword{}, Stored: true},
	)
	if err != nil {
		b.Fatal(err)
	}
	return reg
}

func newCompiler(b *testing.B, reg *field.Registry) (*parser.Parser, *dialect.Compiler) {
	b.Helper()
	c, err := dialect.New(reg, config.DialectConfig{DefaultField: []string{"title", "body"}, DefaultBoolOp: "+"}, nil)
	if err != nil {
		b.Fatal(err)
	}
	return parser.New("title", "body"), c
}

func document(i int) map[string]string {
	w := func(k int) string { return words[(i*7+k)%len(words)] }
	categories := []string{"news", "docs", "blog"}
	return map[string]string{
		"title":    fmt.Sprintf("%s %s", w(0), w(1)),
		"body":     fmt.Sprintf("the %s %s of a %s %s with %s", w(2), w(3), w(4), w(5), w(6)),
		"category": categories[i%len(categories)],
		"date":     fmt.Sprintf("2010%02d%02d", i%12+1, i%28+1),
	}
}

func newEngine(b *testing.B, reg *field.Registry, docs int) *indexer.Engine {
	b.Helper()
	e, err := indexer.NewEngine(config.IndexerConfig{DataDir: b.TempDir()}, reg, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { e.Close() })
	for i := range docs {
		if _, err := e.IndexDocument(document(i)); err != nil {
			b.Fatal(err)
		}
		if (i+1)%2000 == 0 {
			if err := e.Flush(); err != nil {
				b.Fatal(err)
			}
		}
	}
	return e
}
