package matcher

import (
	"fmt"
	"sort"
)

// collectPositional matches each term sequence in order with at most
// within intervening positions (0 means adjacent), and sums per-document
// match counts across the sequences.
func collectPositional(r Reader, field string, sequences [][]string, within int) (Postings, error) {
	cache := make(map[string]map[uint64][]int)
	acc := make(map[uint64]int)
	for _, terms := range sequences {
		if len(terms) == 0 {
			continue
		}
		lists := make([]map[uint64][]int, len(terms))
		for i, term := range terms {
			docs, ok := cache[term]
			if !ok {
				var err error
				if docs, err = readPositions(r, field, term); err != nil {
					return nil, err
				}
				cache[term] = docs
			}
			if len(docs) == 0 {
				lists = nil
				break
			}
			lists[i] = docs
		}
		if lists == nil {
			continue
		}
		for id, first := range lists[0] {
			seq := make([][]int, len(lists))
			seq[0] = first
			complete := true
			for i := 1; i < len(lists); i++ {
				p, ok := lists[i][id]
				if !ok {
					complete = false
					break
				}
				seq[i] = p
			}
			if !complete {
				continue
			}
			if n := countWindows(seq, within); n > 0 {
				acc[id] += n
			}
		}
	}
	return fromMap(acc), nil
}

// countWindows counts start positions of the first term from which the
// remaining terms can be found in order, each after the previous, with
// lastPos-firstPos-(n-1) <= within.
func countWindows(seq [][]int, within int) int {
	count := 0
	for _, start := range seq[0] {
		prev := start
		ok := true
		for _, positions := range seq[1:] {
			i := sort.SearchInts(positions, prev+1)
			if i == len(positions) {
				ok = false
				break
			}
			prev = positions[i]
		}
		if ok && prev-start-(len(seq)-1) <= within {
			count++
		}
	}
	return count
}

func readPositions(r Reader, field, term string) (map[uint64][]int, error) {
	pl, err := r.PostingList(field, term)
	if err != nil {
		return nil, fmt.Errorf("reading postings for %s:%s: %w", field, term, err)
	}
	if pl == nil {
		return nil, nil
	}
	docs := make(map[uint64][]int)
	for {
		id, ok := pl.Next()
		if !ok {
			break
		}
		positions := append([]int(nil), pl.Positions()...)
		sort.Ints(positions)
		docs[id] = positions
	}
	return docs, nil
}
