// Package analysis adapts text-analysis pipelines to the two operations the
// dialect compiler and the indexer need: tokenizing a string into positioned
// terms, and identifying the stemming stage of the pipeline, if any.
package analysis

import (
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// Token is a single normalized term and its position in the analyzed text.
type Token struct {
	Term     string
	Position int
}

// Analyzer turns text into tokens.
type Analyzer interface {
	Tokenize(text string) []Token
	// Stemmer returns the pipeline's stemming stage, or nil if there is none.
	Stemmer() Stemmer
}

// Stemmer reduces one already case-folded token to its stem.
type Stemmer interface {
	Stem(token string) string
}

// Terms returns only the term text of the tokens a produces for text.
func Terms(a Analyzer, text string) []string {
	tokens := a.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// FoldsCase reports whether a lower-cases the terms it indexes. A nil
// analyzer stores values verbatim. Analyzers that do not say are assumed to
// fold.
func FoldsCase(a Analyzer) bool {
	if a == nil {
		return false
	}
	if cf, ok := a.(interface{ FoldsCase() bool }); ok {
		return cf.FoldsCase()
	}
	return true
}

// Named builds the analyzer registered under name. Recognized names:
//
//	simple         lower-case, stop-words, suffix stemmer
//	simple_nostem  lower-case, stop-words
//	keyword        the whole value as one token
//	porter         bleve unicode tokenizer, lower-case, porter stemmer
//	bleve:<name>   any analyzer known to bleve's registry
//
// An empty name yields a nil Analyzer, meaning values are used verbatim.
func Named(name string) (Analyzer, error) {
	switch {
	case name == "":
		return nil, nil
	case name == "simple":
		return NewSimple(SimpleOptions{Stem: true, StopWords: true}), nil
	case name == "simple_nostem":
		return NewSimple(SimpleOptions{StopWords: true}), nil
	case name == "keyword":
		return Keyword{}, nil
	case name == "porter":
		return NewBleveEnglish(), nil
	case strings.HasPrefix(name, "bleve:"):
		return BleveNamed(strings.TrimPrefix(name, "bleve:"))
	}
	return nil, apperrors.Newf(apperrors.ErrConfig, http.StatusBadRequest, "unknown analyzer %q", name)
}
