package analysis

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// Bleve adapts a bleve analysis pipeline.
type Bleve struct {
	name     string
	analyzer analysis.Analyzer
	stemmer  Stemmer
}

// NewBleve wraps a, looking through its token filters for a stemming stage.
func NewBleve(name string, a analysis.Analyzer) *Bleve {
	return &Bleve{
		name:     name,
		analyzer: a,
		stemmer:  detectStemmer(a),
	}
}

// BleveNamed resolves name through bleve's analyzer registry.
func BleveNamed(name string) (*Bleve, error) {
	a := bleve.NewIndexMapping().AnalyzerNamed(name)
	if a == nil {
		return nil, apperrors.Newf(apperrors.ErrConfig, http.StatusBadRequest, "bleve analyzer %q not registered", name)
	}
	return NewBleve(name, a), nil
}

// NewBleveEnglish builds a unicode tokenizer, lower-case and porter stemmer
// pipeline.
func NewBleveEnglish() *Bleve {
	return NewBleve("porter", &analysis.DefaultAnalyzer{
		Tokenizer: unicode.NewUnicodeTokenizer(),
		TokenFilters: []analysis.TokenFilter{
			lowercase.NewLowerCaseFilter(),
			porter.NewPorterStemmer(),
		},
	})
}

// Name returns the registry name the analyzer was built from.
func (b *Bleve) Name() string { return b.name }

// Tokenize renumbers bleve's positions densely from zero, so tokens a
// filter removed (stop words) leave no gaps. Tokens bleve emits at the same
// position keep sharing one.
func (b *Bleve) Tokenize(text string) []Token {
	stream := b.analyzer.Analyze([]byte(text))
	tokens := make([]Token, 0, len(stream))
	pos, last := -1, 0
	for _, t := range stream {
		if t.Position != last {
			pos++
			last = t.Position
		}
		tokens = append(tokens, Token{
			Term:     string(t.Term),
			Position: pos,
		})
	}
	return tokens
}

func (b *Bleve) Stemmer() Stemmer {
	return b.stemmer
}

// FoldsCase reports whether the pipeline lower-cases its tokens. Only
// pipelines bleve exposes as a DefaultAnalyzer can be inspected; others are
// assumed to fold.
func (b *Bleve) FoldsCase() bool {
	da, ok := b.analyzer.(*analysis.DefaultAnalyzer)
	if !ok {
		return true
	}
	for _, f := range da.TokenFilters {
		if _, ok := f.(*lowercase.LowerCaseFilter); ok {
			return true
		}
	}
	return false
}

func detectStemmer(a analysis.Analyzer) Stemmer {
	da, ok := a.(*analysis.DefaultAnalyzer)
	if !ok {
		return nil
	}
	for _, f := range da.TokenFilters {
		if isStemmer(f) {
			return &filterStemmer{filter: f}
		}
	}
	return nil
}

func isStemmer(f analysis.TokenFilter) bool {
	if _, ok := f.(*porter.PorterStemmer); ok {
		return true
	}
	return strings.Contains(strings.ToLower(fmt.Sprintf("%T", f)), "stem")
}

// filterStemmer runs a single token through a bleve stemming filter.
type filterStemmer struct {
	filter analysis.TokenFilter
}

func (s *filterStemmer) Stem(token string) string {
	out := s.filter.Filter(analysis.TokenStream{
		&analysis.Token{
			Term:     []byte(token),
			Position: 1,
			Start:    0,
			End:      len(token),
			Type:     analysis.AlphaNumeric,
		},
	})
	if len(out) == 0 {
		return token
	}
	return string(out[0].Term)
}
