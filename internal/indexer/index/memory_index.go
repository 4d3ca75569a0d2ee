package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
)

// MemoryIndex is the mutable in-memory tier: field -> term -> doc -> posting,
// plus stored field values.
type MemoryIndex struct {
	mu     sync.RWMutex
	index  map[string]map[string]map[uint64]*Posting
	stored map[uint64]map[string]string
	docIDs []uint64
	size   int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:  make(map[string]map[string]map[uint64]*Posting),
		stored: make(map[uint64]map[string]string),
	}
}

// AddDocument indexes the analyzed tokens of each field and keeps stored
// values. Ids must be added in increasing order.
func (m *MemoryIndex) AddDocument(docID uint64, fields map[string][]analysis.Token, stored map[string]string) {
	termData := make(map[string]map[string]*Posting, len(fields))
	for field, tokens := range fields {
		perTerm := make(map[string]*Posting)
		for _, token := range tokens {
			p, exists := perTerm[token.Term]
			if !exists {
				p = &Posting{
					DocID:     docID,
					Positions: make([]int, 0, 4),
				}
				perTerm[token.Term] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		termData[field] = perTerm
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for field, perTerm := range termData {
		terms, ok := m.index[field]
		if !ok {
			terms = make(map[string]map[uint64]*Posting)
			m.index[field] = terms
		}
		for term, posting := range perTerm {
			if _, exists := terms[term]; !exists {
				terms[term] = make(map[uint64]*Posting)
			}
			terms[term][docID] = posting
			m.size += int64(len(field) + len(term) + len(posting.Positions)*8 + 64)
		}
	}
	m.stored[docID] = stored
	for k, v := range stored {
		m.size += int64(len(k) + len(v))
	}
	m.docIDs = append(m.docIDs, docID)
}

// Snapshot returns every term entry sorted by field then term, and the
// stored documents in id order.
func (m *MemoryIndex) Snapshot() ([]TermEntry, []StoredDoc) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]TermEntry, 0)
	for field, terms := range m.index {
		for term, docs := range terms {
			postings := make(PostingList, 0, len(docs))
			for _, posting := range docs {
				postings = append(postings, *posting)
			}
			sort.Slice(postings, func(i, j int) bool {
				return postings[i].DocID < postings[j].DocID
			})
			entries = append(entries, TermEntry{
				Field:    field,
				Term:     term,
				Postings: postings,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})

	docs := make([]StoredDoc, 0, len(m.docIDs))
	for _, id := range m.docIDs {
		docs = append(docs, StoredDoc{DocID: id, Fields: m.stored[id]})
	}
	return entries, docs
}

// Freeze returns an immutable view of the current contents.
func (m *MemoryIndex) Freeze() *View {
	return NewView(m.Snapshot())
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docIDs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[string]map[uint64]*Posting)
	m.stored = make(map[uint64]map[string]string)
	m.docIDs = nil
	m.size = 0
}

// View is a read-only snapshot usable as a search segment.
type View struct {
	lexicons map[string][]string
	postings map[string]map[string]PostingList
	stored   map[uint64]map[string]string
	docIDs   []uint64
}

func NewView(entries []TermEntry, docs []StoredDoc) *View {
	v := &View{
		lexicons: make(map[string][]string),
		postings: make(map[string]map[string]PostingList),
		stored:   make(map[uint64]map[string]string, len(docs)),
		docIDs:   make([]uint64, 0, len(docs)),
	}
	for _, e := range entries {
		if _, ok := v.postings[e.Field]; !ok {
			v.postings[e.Field] = make(map[string]PostingList)
		}
		v.postings[e.Field][e.Term] = e.Postings
		v.lexicons[e.Field] = append(v.lexicons[e.Field], e.Term)
	}
	for field := range v.lexicons {
		sort.Strings(v.lexicons[field])
	}
	for _, d := range docs {
		v.stored[d.DocID] = d.Fields
		v.docIDs = append(v.docIDs, d.DocID)
	}
	sort.Slice(v.docIDs, func(i, j int) bool { return v.docIDs[i] < v.docIDs[j] })
	return v
}

func (v *View) Lexicon(field string) (matcher.Lexicon, error) {
	terms, ok := v.lexicons[field]
	if !ok {
		return nil, nil
	}
	return NewSliceLexicon(terms), nil
}

func (v *View) PostingList(field, term string) (matcher.PostingList, error) {
	p, ok := v.postings[field][term]
	if !ok {
		return nil, nil
	}
	return NewIterator(p), nil
}

// Fetch returns the stored fields of docID; unknown ids yield an empty map.
func (v *View) Fetch(docID uint64) (map[string]string, error) {
	return v.stored[docID], nil
}

func (v *View) DocIDs() []uint64 { return v.docIDs }

func (v *View) DocCount() int { return len(v.docIDs) }
