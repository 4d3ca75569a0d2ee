// Package clause holds the generic parsed-query representation handed to a
// dialect compiler: leaf clauses grouped under boolean prefixes, nested for
// parenthesized groups.
package clause

import (
	"strconv"
	"strings"
)

// Op is the operator of a single clause.
type Op int

const (
	OpEQ Op = iota
	OpNE
	OpRange
	OpNotRange
	OpPhrase
	OpNotPhrase
	OpFuzzy
	OpNotFuzzy
	OpGroup
)

var opNames = map[Op]string{
	OpEQ:        "EQ",
	OpNE:        "NE",
	OpRange:     "RANGE",
	OpNotRange:  "NOT_RANGE",
	OpPhrase:    "PHRASE",
	OpNotPhrase: "NOT_PHRASE",
	OpFuzzy:     "FUZZY",
	OpNotFuzzy:  "NOT_FUZZY",
	OpGroup:     "GROUP",
}

// negations is the canonical operator negation table. Every positive
// operator has exactly one negated form and vice versa.
var negations = map[Op]Op{
	OpEQ:        OpNE,
	OpNE:        OpEQ,
	OpRange:     OpNotRange,
	OpNotRange:  OpRange,
	OpPhrase:    OpNotPhrase,
	OpNotPhrase: OpPhrase,
	OpFuzzy:     OpNotFuzzy,
	OpNotFuzzy:  OpFuzzy,
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Negated reports whether the operator is the negated form of another.
func (o Op) Negated() bool {
	switch o {
	case OpNE, OpNotRange, OpNotPhrase, OpNotFuzzy:
		return true
	}
	return false
}

// Negate flips the operator. GROUP has no operator negation and is returned
// unchanged.
func (o Op) Negate() Op {
	if n, ok := negations[o]; ok {
		return n
	}
	return o
}

// Positive returns the non-negated form of the operator.
func (o Op) Positive() Op {
	if o.Negated() {
		return o.Negate()
	}
	return o
}

// IsRange reports whether the operator takes a two-element range value.
func (o Op) IsRange() bool {
	return o == OpRange || o == OpNotRange
}

// Prefix is the boolean prefix a clause was parsed under.
type Prefix int

const (
	Required Prefix = iota
	Optional
	Prohibited
)

func (p Prefix) String() string {
	switch p {
	case Required:
		return "+"
	case Prohibited:
		return "-"
	default:
		return ""
	}
}

// Clause is one field/operator/value unit. Exactly one of Value, Range or
// Group is meaningful depending on Op.
type Clause struct {
	Field string
	Op    Op
	Value string
	// Range holds the inclusive lower and upper bound for RANGE/NOT_RANGE.
	Range []string
	// Group is the nested tree for GROUP clauses.
	Group *Tree
	// Quote is the quote character the value was written with, 0 if bare.
	Quote rune
	// Proximity is the slop attached to a quoted value; 0 means none.
	Proximity int
}

// Tree maps each boolean prefix to an ordered sequence of clauses.
// Insertion order within a bucket is preserved.
type Tree struct {
	Required   []Clause
	Optional   []Clause
	Prohibited []Clause

	// DefaultFields are the fields the upstream parser considers default.
	// A dialect falls back to these when it has no default of its own.
	DefaultFields []string
}

// Add appends c to the bucket for p.
func (t *Tree) Add(p Prefix, c Clause) {
	switch p {
	case Required:
		t.Required = append(t.Required, c)
	case Prohibited:
		t.Prohibited = append(t.Prohibited, c)
	default:
		t.Optional = append(t.Optional, c)
	}
}

// Bucket returns the clauses stored under p.
func (t *Tree) Bucket(p Prefix) []Clause {
	switch p {
	case Required:
		return t.Required
	case Prohibited:
		return t.Prohibited
	default:
		return t.Optional
	}
}

// IsEmpty reports whether no bucket holds a clause.
func (t *Tree) IsEmpty() bool {
	return t == nil || len(t.Required) == 0 && len(t.Optional) == 0 && len(t.Prohibited) == 0
}

// String serializes the tree back into query-string syntax, buckets in
// REQUIRED, OPTIONAL, PROHIBITED order.
func (t *Tree) String() string {
	if t.IsEmpty() {
		return ""
	}
	var parts []string
	for _, p := range []Prefix{Required, Optional, Prohibited} {
		for _, c := range t.Bucket(p) {
			parts = append(parts, p.String()+c.String())
		}
	}
	return strings.Join(parts, " ")
}

// String renders a single clause without its prefix.
func (c Clause) String() string {
	if c.Op == OpGroup {
		return "(" + c.Group.String() + ")"
	}
	var b strings.Builder
	if c.Field != "" {
		b.WriteString(c.Field)
		if c.Op.Negated() {
			b.WriteString("!:")
		} else {
			b.WriteByte(':')
		}
	}
	switch {
	case c.Op.IsRange():
		b.WriteByte('[')
		b.WriteString(strings.Join(c.Range, " TO "))
		b.WriteByte(']')
	case c.Quote != 0 || c.Op.Positive() == OpPhrase:
		b.WriteByte('"')
		b.WriteString(c.Value)
		b.WriteByte('"')
		if c.Proximity > 0 {
			b.WriteByte('~')
			b.WriteString(strconv.Itoa(c.Proximity))
		}
	default:
		b.WriteString(c.Value)
	}
	return b.String()
}
