// Package parser turns a query string into a clause tree.
//
//	+title:go -body:"bar baz"~3 date:[20100301 TO 20100331] tag!:a* (x OR y) NOT z
//
// Prefixes '+' and '-' (or the keywords AND and NOT before a clause) select
// the REQUIRED and PROHIBITED buckets; OR is accepted and ignored since
// unprefixed clauses are already optional. Operators ':' and '=' match,
// '!:' and '!=' negate. Quoted values may carry a ~N proximity. Ranges are
// written [lo TO hi] or [lo, hi].
package parser

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/clause"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// Parser is stateless apart from its default fields and is safe for
// concurrent use.
type Parser struct {
	defaultFields []string
}

// New returns a parser that stamps defaultFields on every tree it produces.
func New(defaultFields ...string) *Parser {
	return &Parser{defaultFields: defaultFields}
}

// Parse returns ErrInvalidInput for empty input and syntax errors.
func (p *Parser) Parse(q string) (*clause.Tree, error) {
	if strings.TrimSpace(q) == "" {
		return nil, invalid("empty query")
	}
	s := &scanner{src: []rune(q)}
	tree, err := s.parseTree(0)
	if err != nil {
		return nil, err
	}
	if tree.IsEmpty() {
		return nil, invalid("query has no clauses")
	}
	tree.DefaultFields = p.defaultFields
	return tree, nil
}

func invalid(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, format, args...)
}

type scanner struct {
	src []rune
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() rune {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) peekAt(offset int) rune {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

func (s *scanner) skipSpace() {
	for !s.eof() && unicode.IsSpace(s.src[s.pos]) {
		s.pos++
	}
}

func isBoundary(r rune) bool {
	return r == 0 || unicode.IsSpace(r) || r == '(' || r == ')'
}

func (s *scanner) parseTree(depth int) (*clause.Tree, error) {
	tree := &clause.Tree{}
	forced := clause.Optional
	for {
		s.skipSpace()
		if s.eof() {
			if depth > 0 {
				return nil, invalid("missing closing parenthesis")
			}
			break
		}
		if s.peek() == ')' {
			if depth == 0 {
				return nil, invalid("unexpected ')' at offset %d", s.pos)
			}
			s.pos++
			break
		}

		switch s.keyword() {
		case "AND":
			forced = clause.Required
			continue
		case "NOT":
			forced = clause.Prohibited
			continue
		case "OR":
			continue
		}

		prefix := forced
		forced = clause.Optional
		switch s.peek() {
		case '+':
			prefix = clause.Required
			s.pos++
		case '-':
			prefix = clause.Prohibited
			s.pos++
		}
		if isBoundary(s.peek()) && s.peek() != '(' {
			return nil, invalid("dangling operator at offset %d", s.pos)
		}

		c, err := s.parseClause(depth)
		if err != nil {
			return nil, err
		}
		tree.Add(prefix, c)
	}
	if forced != clause.Optional {
		return nil, invalid("dangling AND/NOT at end of query")
	}
	return tree, nil
}

// keyword consumes AND, OR or NOT when it stands alone.
func (s *scanner) keyword() string {
	for _, kw := range []string{"AND", "OR", "NOT"} {
		n := len(kw)
		if s.pos+n > len(s.src) || string(s.src[s.pos:s.pos+n]) != kw {
			continue
		}
		if next := s.peekAt(n); next == 0 || unicode.IsSpace(next) || (next == '(' && kw != "OR") {
			s.pos += n
			return kw
		}
	}
	return ""
}

func (s *scanner) parseClause(depth int) (clause.Clause, error) {
	if s.peek() == '(' {
		s.pos++
		sub, err := s.parseTree(depth + 1)
		if err != nil {
			return clause.Clause{}, err
		}
		if sub.IsEmpty() {
			return clause.Clause{}, invalid("empty group at offset %d", s.pos-1)
		}
		return clause.Clause{Op: clause.OpGroup, Group: sub}, nil
	}
	field, negated := s.fieldPrefix()
	return s.parseValue(field, negated)
}

// fieldPrefix consumes "name:", "name=", "name!:" or "name!=" and rewinds
// when the input does not start with one.
func (s *scanner) fieldPrefix() (string, bool) {
	start := s.pos
	for !s.eof() {
		r := s.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			break
		}
		s.pos++
	}
	name := string(s.src[start:s.pos])
	if name != "" {
		switch {
		case s.peek() == ':' || s.peek() == '=':
			s.pos++
			return name, false
		case s.peek() == '!' && (s.peekAt(1) == ':' || s.peekAt(1) == '='):
			s.pos += 2
			return name, true
		}
	}
	s.pos = start
	return "", false
}

func (s *scanner) parseValue(field string, negated bool) (clause.Clause, error) {
	c := clause.Clause{Field: field}
	switch r := s.peek(); {
	case r == '"' || r == '\'':
		value, err := s.quoted()
		if err != nil {
			return c, err
		}
		c.Value, c.Quote, c.Op = value, r, clause.OpPhrase
		if s.peek() == '~' {
			s.pos++
			start := s.pos
			for !s.eof() && unicode.IsDigit(s.peek()) {
				s.pos++
			}
			n, err := strconv.Atoi(string(s.src[start:s.pos]))
			if err != nil {
				return c, invalid("proximity after quoted value must be a number at offset %d", start)
			}
			c.Proximity = n
		}
	case r == '[':
		s.pos++
		lo, hi, err := s.rangeBounds()
		if err != nil {
			return c, err
		}
		c.Range, c.Op = []string{lo, hi}, clause.OpRange
	case isBoundary(r):
		return c, invalid("missing value for field %q", field)
	default:
		start := s.pos
		for !isBoundary(s.peek()) {
			s.pos++
		}
		c.Value, c.Op = string(s.src[start:s.pos]), clause.OpEQ
	}
	if negated {
		c.Op = c.Op.Negate()
	}
	return c, nil
}

func (s *scanner) quoted() (string, error) {
	q := s.peek()
	start := s.pos + 1
	for i := start; i < len(s.src); i++ {
		if s.src[i] == q {
			s.pos = i + 1
			return string(s.src[start:i]), nil
		}
	}
	return "", invalid("unterminated quote at offset %d", start-1)
}

func (s *scanner) rangeBounds() (string, string, error) {
	lo, err := s.rangeBound()
	if err != nil {
		return "", "", err
	}
	s.skipSpace()
	switch {
	case s.peek() == ',':
		s.pos++
	case s.peek() == 'T' && s.peekAt(1) == 'O' && unicode.IsSpace(s.peekAt(2)):
		s.pos += 2
	default:
		return "", "", invalid("expected TO or ',' in range at offset %d", s.pos)
	}
	hi, err := s.rangeBound()
	if err != nil {
		return "", "", err
	}
	s.skipSpace()
	if s.peek() != ']' {
		return "", "", invalid("unterminated range at offset %d", s.pos)
	}
	s.pos++
	return lo, hi, nil
}

func (s *scanner) rangeBound() (string, error) {
	s.skipSpace()
	if r := s.peek(); r == '"' || r == '\'' {
		return s.quoted()
	}
	start := s.pos
	for !s.eof() {
		r := s.peek()
		if unicode.IsSpace(r) || r == ',' || r == ']' {
			break
		}
		s.pos++
	}
	if s.pos == start {
		return "", invalid("empty range bound at offset %d", start)
	}
	return string(s.src[start:s.pos]), nil
}
