package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
)

type Posting struct {
	DocID     uint64 `json:"d"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p"`
}

type PostingList []Posting

type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// StoredDoc holds the stored field values of one document.
type StoredDoc struct {
	DocID  uint64            `json:"id"`
	Fields map[string]string `json:"f"`
}

// SliceLexicon is a Lexicon over an already sorted term slice.
type SliceLexicon struct {
	terms []string
	pos   int
}

func NewSliceLexicon(sorted []string) *SliceLexicon {
	return &SliceLexicon{terms: sorted}
}

func (l *SliceLexicon) Seek(prefix string) {
	l.pos = sort.SearchStrings(l.terms, prefix)
}

func (l *SliceLexicon) Term() (string, bool) {
	if l.pos >= len(l.terms) {
		return "", false
	}
	return l.terms[l.pos], true
}

func (l *SliceLexicon) Advance() bool {
	if l.pos < len(l.terms) {
		l.pos++
	}
	return l.pos < len(l.terms)
}

// Iterator walks a PostingList in order.
type Iterator struct {
	postings PostingList
	pos      int
}

func NewIterator(p PostingList) *Iterator {
	return &Iterator{postings: p, pos: -1}
}

func (it *Iterator) Next() (uint64, bool) {
	if it.pos < len(it.postings) {
		it.pos++
	}
	if it.pos >= len(it.postings) {
		return 0, false
	}
	return it.postings[it.pos].DocID, true
}

func (it *Iterator) Frequency() int {
	if it.pos < 0 || it.pos >= len(it.postings) {
		return 0
	}
	return it.postings[it.pos].Frequency
}

func (it *Iterator) Positions() []int {
	if it.pos < 0 || it.pos >= len(it.postings) {
		return nil
	}
	return it.postings[it.pos].Positions
}

var (
	_ matcher.Lexicon     = (*SliceLexicon)(nil)
	_ matcher.PostingList = (*Iterator)(nil)
)
