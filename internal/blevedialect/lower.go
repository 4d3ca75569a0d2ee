// Package blevedialect runs compiled dialect queries on a bleve index. It
// lowers a query.Node into bleve's native query types, so the same query
// string can be evaluated by the in-repo matcher runtime or by bleve.
package blevedialect

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// Lower converts n into a bleve query. Scorer hooks are not carried over;
// bleve ranks with its own scoring.
//
// Negated leaves are per-term in the matcher runtime. Bleve has no
// complement of a wildcard over terms, so a negated wildcard becomes
// "has a term with the literal prefix and no term matching the pattern".
// A negated range is lowered exactly as the two open ranges around it.
func Lower(n query.Node) (bq.Query, error) {
	switch n := n.(type) {
	case nil:
		return nil, apperrors.ConfigErrorf("cannot lower an empty query")
	case *query.Term:
		q := bleve.NewTermQuery(n.Term)
		q.SetField(n.Field)
		return q, nil
	case *query.Phrase:
		return bleve.NewPhraseQuery(n.Terms, n.Field), nil
	case *query.Proximity:
		// A conjunction does not depend on term order, so every rotation
		// lowers to the same query.
		terms := make([]bq.Query, len(n.Terms))
		for i, t := range n.Terms {
			tq := bleve.NewTermQuery(t)
			tq.SetField(n.Field)
			terms[i] = tq
		}
		return bleve.NewConjunctionQuery(terms...), nil
	case *query.Wildcard:
		return lowerWildcard(n), nil
	case *query.Range:
		return lowerRange(n), nil
	case *query.Boolean:
		return lowerBoolean(n)
	default:
		return nil, apperrors.ConfigErrorf("cannot lower %s node", n.Kind())
	}
}

func lowerWildcard(n *query.Wildcard) bq.Query {
	wq := bleve.NewWildcardQuery(n.Term)
	wq.SetField(n.Field)
	if !n.Negated {
		return wq
	}
	var scope bq.FieldableQuery
	if prefix := matcher.FixedPrefix(n.Term); prefix != "" {
		scope = bleve.NewPrefixQuery(prefix)
	} else {
		scope = bleve.NewWildcardQuery("*")
	}
	scope.SetField(n.Field)

	b := bleve.NewBooleanQuery()
	b.AddMust(scope)
	b.AddMustNot(wq)
	return b
}

func lowerRange(n *query.Range) bq.Query {
	yes, no := true, false
	if !n.Negated {
		if n.Upper == "" {
			// bleve reads an empty max as unbounded; no term sorts at or below ""
			return bleve.NewMatchNoneQuery()
		}
		q := bleve.NewTermRangeInclusiveQuery(n.Lower, n.Upper, &yes, &yes)
		q.SetField(n.Field)
		return q
	}
	if n.Upper == "" {
		// every non-empty term lies above an empty upper bound
		all := bleve.NewWildcardQuery("?*")
		all.SetField(n.Field)
		return all
	}
	above := bleve.NewTermRangeInclusiveQuery(n.Upper, "", &no, nil)
	above.SetField(n.Field)
	if n.Lower == "" {
		return above
	}
	below := bleve.NewTermRangeInclusiveQuery("", n.Lower, nil, &no)
	below.SetField(n.Field)
	return bleve.NewDisjunctionQuery(below, above)
}

func lowerBoolean(n *query.Boolean) (bq.Query, error) {
	children := make([]bq.Query, 0, len(n.Children))
	for _, c := range n.Children {
		q, err := Lower(c)
		if err != nil {
			return nil, err
		}
		children = append(children, q)
	}
	switch n.Op {
	case query.AND:
		return bleve.NewConjunctionQuery(children...), nil
	case query.OR:
		return bleve.NewDisjunctionQuery(children...), nil
	case query.NOT:
		if len(children) != 1 {
			return nil, fmt.Errorf("NOT node with %d children", len(children))
		}
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(children[0])
		return b, nil
	default:
		return nil, apperrors.ConfigErrorf("unknown boolean operator %d", n.Op)
	}
}
