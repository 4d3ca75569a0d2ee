package analysis

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// SimpleOptions selects the stages of a Simple analyzer.
type SimpleOptions struct {
	Stem      bool
	StopWords bool
	// MinLength drops shorter tokens. Zero means 2.
	MinLength int
}

// Simple lower-cases input, splits on non-alphanumeric boundaries, and
// optionally removes stop-words and applies a suffix-stripping stemmer.
type Simple struct {
	opts SimpleOptions
}

func NewSimple(opts SimpleOptions) *Simple {
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	return &Simple{opts: opts}
}

func (s *Simple) Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if len(word) < s.opts.MinLength {
			continue
		}
		if s.opts.StopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if s.opts.Stem {
			word = stem(word)
			if word == "" {
				continue
			}
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

func (s *Simple) FoldsCase() bool { return true }

func (s *Simple) Stemmer() Stemmer {
	if !s.opts.Stem {
		return nil
	}
	return suffixStemmer{}
}

type suffixStemmer struct{}

func (suffixStemmer) Stem(token string) string {
	if stemmed := stem(token); stemmed != "" {
		return stemmed
	}
	return token
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies the first matching suffix rule whose result is long enough.
func stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

// Keyword emits the whole value as a single token. Empty values produce no
// tokens.
type Keyword struct{}

func (Keyword) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	return []Token{{Term: text}}
}

func (Keyword) Stemmer() Stemmer { return nil }

func (Keyword) FoldsCase() bool { return false }
