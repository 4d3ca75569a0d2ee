package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
)

// Posting is one matching document and its aggregated term frequency.
type Posting struct {
	DocID     uint64
	Frequency int
}

// Postings is sorted by DocID with no duplicates.
type Postings []Posting

// DocIDs returns the ids in order.
func (p Postings) DocIDs() []uint64 {
	ids := make([]uint64, len(p))
	for i, e := range p {
		ids[i] = e.DocID
	}
	return ids
}

// Collector gathers the postings a leaf matches in one segment.
type Collector struct {
	Patterns *PatternCache
	// OnExpand, if set, is told how many lexicon terms a wildcard or range
	// leaf expanded to.
	OnExpand func(kind query.Kind, terms int)
}

// Collect gathers postings with a zero Collector.
func Collect(leaf query.Leaf, r Reader) (Postings, error) {
	return (&Collector{}).Collect(leaf, r)
}

// Collect returns the aggregated postings of leaf. An absent field, term or
// lexicon yields nil postings and a nil error; only collaborator failures
// are returned as errors.
func (c *Collector) Collect(leaf query.Leaf, r Reader) (Postings, error) {
	switch n := leaf.(type) {
	case *query.Term:
		return c.collectTerms(r, n.Field, []string{n.Term})
	case *query.Wildcard:
		return c.collectWildcard(r, n)
	case *query.Range:
		return c.collectRange(r, n)
	case *query.Phrase:
		return collectPositional(r, n.Field, [][]string{n.Terms}, 0)
	case *query.Proximity:
		return collectPositional(r, n.Field, n.Rotations(), n.Within)
	}
	return nil, fmt.Errorf("no matcher for %s leaf", leaf.Kind())
}

func (c *Collector) collectTerms(r Reader, field string, terms []string) (Postings, error) {
	acc := make(map[uint64]int)
	for _, term := range terms {
		pl, err := r.PostingList(field, term)
		if err != nil {
			return nil, fmt.Errorf("reading postings for %s:%s: %w", field, term, err)
		}
		if pl == nil {
			continue
		}
		for {
			id, ok := pl.Next()
			if !ok {
				break
			}
			if id == NoMoreDocs {
				return nil, fmt.Errorf("posting list %s:%s holds reserved document id 0", field, term)
			}
			acc[id] += pl.Frequency()
		}
	}
	return fromMap(acc), nil
}

// collectWildcard scans the lexicon from the fixed prefix and stops at the
// first term that no longer shares it. This relies on the lexicon being in
// byte-lexicographic order.
func (c *Collector) collectWildcard(r Reader, n *query.Wildcard) (Postings, error) {
	lex, err := r.Lexicon(n.Field)
	if err != nil {
		return nil, fmt.Errorf("opening lexicon for %s: %w", n.Field, err)
	}
	if lex == nil {
		return nil, nil
	}
	re, err := c.Patterns.Compile(n.Term)
	if err != nil {
		return nil, err
	}
	prefix := FixedPrefix(n.Term)

	var terms []string
	lex.Seek(prefix)
	for {
		term, ok := lex.Term()
		if !ok || !strings.HasPrefix(term, prefix) {
			break
		}
		if re.MatchString(term) != n.Negated {
			terms = append(terms, term)
		}
		if !lex.Advance() {
			break
		}
	}
	if c.OnExpand != nil {
		c.OnExpand(query.KindWildcard, len(terms))
	}
	return c.collectTerms(r, n.Field, terms)
}

// collectRange gathers terms between the bounds, inclusive. A negated range
// walks the whole lexicon and keeps the terms outside them.
func (c *Collector) collectRange(r Reader, n *query.Range) (Postings, error) {
	lex, err := r.Lexicon(n.Field)
	if err != nil {
		return nil, fmt.Errorf("opening lexicon for %s: %w", n.Field, err)
	}
	if lex == nil {
		return nil, nil
	}

	var terms []string
	if n.Negated {
		lex.Seek("")
	} else {
		lex.Seek(n.Lower)
	}
	for {
		term, ok := lex.Term()
		if !ok {
			break
		}
		inside := term >= n.Lower && term <= n.Upper
		if !n.Negated && !inside {
			break
		}
		if inside != n.Negated {
			terms = append(terms, term)
		}
		if !lex.Advance() {
			break
		}
	}
	if c.OnExpand != nil {
		c.OnExpand(query.KindRange, len(terms))
	}
	return c.collectTerms(r, n.Field, terms)
}

func fromMap(acc map[uint64]int) Postings {
	if len(acc) == 0 {
		return nil
	}
	out := make(Postings, 0, len(acc))
	for id, freq := range acc {
		out = append(out, Posting{DocID: id, Frequency: freq})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}
