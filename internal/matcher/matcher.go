// Package matcher turns compiled query leaves into document iterators over
// one index segment. A Matcher owns a sorted, de-duplicated array of
// matching document ids and a cursor; it holds no state shared with other
// matchers beyond read-only collaborators.
package matcher

import (
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/weight"
)

// NoMoreDocs is returned by Next and DocID when the cursor is not on a
// document. Document ids are always positive.
const NoMoreDocs uint64 = 0

// scoreDamping divides every base score.
const scoreDamping = 10

// Lexicon iterates a field's sorted term dictionary.
type Lexicon interface {
	// Seek positions the lexicon at the first term >= prefix.
	Seek(prefix string)
	// Term returns the current term, false once the lexicon is exhausted.
	Term() (string, bool)
	// Advance moves to the next term and reports whether one exists.
	Advance() bool
}

// PostingList iterates the documents containing one term.
type PostingList interface {
	Next() (uint64, bool)
	Frequency() int
	Positions() []int
}

// Reader gives access to one segment's lexicons and posting lists. Both
// methods return a nil value and nil error when the field or term is absent.
type Reader interface {
	Lexicon(field string) (Lexicon, error)
	PostingList(field, term string) (PostingList, error)
}

// Options parameterize a Matcher.
type Options struct {
	Boost      float64
	Similarity weight.Similarity
	// Hook overrides the base score. New falls back to the leaf's hook.
	Hook scorer.Hook
	// Store backs the lazy document accessor handed to Hook.
	Store scorer.Store
}

// Matcher iterates matching documents in ascending id order.
type Matcher struct {
	postings Postings
	cursor   int
	boost    float64
	sim      weight.Similarity
	hook     scorer.Hook
	store    scorer.Store
}

// New collects the postings of leaf from r and wraps them in a Matcher.
// It returns nil, nil when nothing matches.
func New(leaf query.Leaf, r Reader, opts Options) (*Matcher, error) {
	p, err := Collect(leaf, r)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, nil
	}
	if opts.Hook == nil {
		opts.Hook = leaf.ScoreHook()
	}
	return FromPostings(p, opts), nil
}

// FromPostings builds a Matcher over already collected postings, which must
// be sorted by id without duplicates.
func FromPostings(p Postings, opts Options) *Matcher {
	sim := opts.Similarity
	if sim == nil {
		sim = weight.DefaultSimilarity{}
	}
	return &Matcher{
		postings: p,
		cursor:   -1,
		boost:    opts.Boost,
		sim:      sim,
		hook:     opts.Hook,
		store:    opts.Store,
	}
}

// Next advances the cursor and returns the new document id, or NoMoreDocs
// once the postings are exhausted.
func (m *Matcher) Next() uint64 {
	if m.cursor < len(m.postings) {
		m.cursor++
	}
	return m.DocID()
}

// DocID returns the id under the cursor, or NoMoreDocs before the first
// Next and after exhaustion.
func (m *Matcher) DocID() uint64 {
	if m.cursor < 0 || m.cursor >= len(m.postings) {
		return NoMoreDocs
	}
	return m.postings[m.cursor].DocID
}

// Frequency returns the term frequency of the current document.
func (m *Matcher) Frequency() int {
	if m.DocID() == NoMoreDocs {
		return 0
	}
	return m.postings[m.cursor].Frequency
}

// Score computes boost*tf(freq)/10 for the current document and passes it
// through the hook, if any. It is only meaningful after Next returned a
// real id.
func (m *Matcher) Score() (float64, error) {
	id := m.DocID()
	if id == NoMoreDocs {
		return 0, nil
	}
	base := m.boost * m.sim.TermFrequencyWeight(m.postings[m.cursor].Frequency) / scoreDamping
	if m.hook == nil {
		return base, nil
	}
	return m.hook.Score(base, scorer.NewDocument(id, m.store))
}

// Len returns the number of matching documents.
func (m *Matcher) Len() int { return len(m.postings) }
