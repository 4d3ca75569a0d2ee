// Package query defines the native compiled query tree produced by a dialect
// compiler. Nodes are built once per compile and never mutated afterwards.
package query

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	KindTerm Kind = iota
	KindPhrase
	KindProximity
	KindWildcard
	KindRange
	KindBoolean
)

var kindNames = [...]string{"term", "phrase", "proximity", "wildcard", "range", "boolean"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a compiled query. String returns a query string that parses back
// into an equivalent tree.
//
// Text leaves carry a Source when running their terms through the field's
// analyzer again would not reproduce them (stemmers are rarely idempotent).
// String then prints the Source, the clause value the terms came from,
// instead of the terms.
type Node interface {
	Kind() Kind
	String() string
}

// Leaf is a node evaluated directly against a field's postings.
type Leaf interface {
	Node
	FieldName() string
	// ScoreHook is the custom scorer attached at compile time, or nil.
	ScoreHook() scorer.Hook
}

type Term struct {
	Field  string
	Term   string
	Source string
	Hook   scorer.Hook
}

type Phrase struct {
	Field  string
	Terms  []string
	Source string
	Hook   scorer.Hook
}

type Proximity struct {
	Field       string
	Terms       []string
	Source      string
	Within      int
	IgnoreOrder bool
	Hook        scorer.Hook
}

type Wildcard struct {
	Field   string
	Term    string
	Source  string
	Negated bool
	Hook    scorer.Hook
}

// Range matches terms between Lower and Upper, both inclusive.
type Range struct {
	Field   string
	Lower   string
	Upper   string
	Negated bool
	Hook    scorer.Hook
}

// BoolOp is the operator of a Boolean node.
type BoolOp int

const (
	AND BoolOp = iota
	OR
	NOT
)

func (o BoolOp) String() string {
	switch o {
	case AND:
		return "AND"
	case OR:
		return "OR"
	default:
		return "NOT"
	}
}

// Boolean combines children. A NOT node has exactly one child.
type Boolean struct {
	Op       BoolOp
	Children []Node
}

func (*Term) Kind() Kind      { return KindTerm }
func (*Phrase) Kind() Kind    { return KindPhrase }
func (*Proximity) Kind() Kind { return KindProximity }
func (*Wildcard) Kind() Kind  { return KindWildcard }
func (*Range) Kind() Kind     { return KindRange }
func (*Boolean) Kind() Kind   { return KindBoolean }

func (n *Term) FieldName() string      { return n.Field }
func (n *Phrase) FieldName() string    { return n.Field }
func (n *Proximity) FieldName() string { return n.Field }
func (n *Wildcard) FieldName() string  { return n.Field }
func (n *Range) FieldName() string     { return n.Field }

func (n *Term) ScoreHook() scorer.Hook      { return n.Hook }
func (n *Phrase) ScoreHook() scorer.Hook    { return n.Hook }
func (n *Proximity) ScoreHook() scorer.Hook { return n.Hook }
func (n *Wildcard) ScoreHook() scorer.Hook  { return n.Hook }
func (n *Range) ScoreHook() scorer.Hook     { return n.Hook }

func (n *Term) String() string {
	return fieldPrefix(n.Field, false) + quoteTerm(orSource(n.Source, n.Term))
}

func (n *Phrase) String() string {
	return fieldPrefix(n.Field, false) + quote(orSource(n.Source, strings.Join(n.Terms, " ")))
}

func (n *Proximity) String() string {
	return fieldPrefix(n.Field, false) + quote(orSource(n.Source, strings.Join(n.Terms, " "))) + "~" + strconv.Itoa(n.Within)
}

func (n *Wildcard) String() string {
	return fieldPrefix(n.Field, n.Negated) + orSource(n.Source, n.Term)
}

func (n *Range) String() string {
	return fieldPrefix(n.Field, n.Negated) + "[" + quoteTerm(n.Lower) + " TO " + quoteTerm(n.Upper) + "]"
}

func (n *Boolean) String() string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		switch n.Op {
		case AND:
			parts[i] = "+" + c.String()
		case NOT:
			parts[i] = "-" + c.String()
		default:
			parts[i] = c.String()
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Rotations returns every rotation of the term sequence, starting with the
// original order. Order-insensitive proximity is evaluated as the union of
// these rotations; other permutations are not considered.
func (n *Proximity) Rotations() [][]string {
	if !n.IgnoreOrder || len(n.Terms) < 2 {
		return [][]string{n.Terms}
	}
	out := make([][]string, 0, len(n.Terms))
	for i := range n.Terms {
		rot := make([]string, 0, len(n.Terms))
		rot = append(rot, n.Terms[i:]...)
		rot = append(rot, n.Terms[:i]...)
		out = append(out, rot)
	}
	return out
}

func fieldPrefix(field string, negated bool) string {
	if field == "" {
		return ""
	}
	if negated {
		return field + "!:"
	}
	return field + ":"
}

func orSource(source, analyzed string) string {
	if source != "" {
		return source
	}
	return analyzed
}

func quoteTerm(term string) string {
	if term == "" || strings.ContainsAny(term, " \t\n\"'()[]:+-!,~*?") || isKeyword(term) {
		return quote(term)
	}
	return term
}

// quote wraps s in double quotes, or single quotes when s holds a double
// quote. The parser has no escapes.
func quote(s string) string {
	if strings.Contains(s, `"`) {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}

func isKeyword(s string) bool {
	switch s {
	case "AND", "OR", "NOT", "TO":
		return true
	}
	return false
}

// Walk visits n and its descendants depth-first. Children are skipped when
// fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if b, ok := n.(*Boolean); ok {
		for _, c := range b.Children {
			Walk(c, fn)
		}
	}
}

// Leaves returns every leaf under n in depth-first order.
func Leaves(n Node) []Leaf {
	var leaves []Leaf
	Walk(n, func(node Node) bool {
		if l, ok := node.(Leaf); ok {
			leaves = append(leaves, l)
		}
		return true
	})
	return leaves
}

// Terms returns the analyzed terms a leaf matches, whatever its display
// string prints. A range yields its two bounds.
func Terms(l Leaf) []string {
	switch n := l.(type) {
	case *Term:
		return []string{n.Term}
	case *Phrase:
		return n.Terms
	case *Proximity:
		return n.Terms
	case *Wildcard:
		return []string{n.Term}
	case *Range:
		return []string{n.Lower, n.Upper}
	}
	return nil
}

// Join combines nodes under op, dropping nils. Zero nodes yield nil and a
// single node is returned unwrapped.
func Join(op BoolOp, nodes ...Node) Node {
	kept := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Boolean{Op: op, Children: kept}
}

// Not wraps n in a NOT node.
func Not(n Node) Node {
	if n == nil {
		return nil
	}
	return &Boolean{Op: NOT, Children: []Node{n}}
}
