// Package dialect compiles a parsed clause tree into the native query tree.
// It resolves fields, runs query values through each field's analyzer,
// rewrites wildcard values, detects phrases and proximity, and composes
// prefix negation with operator negation so nothing is negated twice.
package dialect

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/clause"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
)

const wildcardGlyphs = "*?"

// Compiler is safe for concurrent use: it holds only read-only state.
type Compiler struct {
	registry *field.Registry
	cfg      config.DialectConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds a compiler over registry. m may be nil.
func New(registry *field.Registry, cfg config.DialectConfig, m *metrics.Metrics) (*Compiler, error) {
	if registry == nil {
		return nil, apperrors.ConfigErrorf("dialect compiler requires a field registry")
	}
	return &Compiler{
		registry: registry,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "dialect-compiler"),
	}, nil
}

// Compile lowers tree into a query node. A tree whose every leaf analyzes
// to nothing compiles to a nil node and a nil error.
func (c *Compiler) Compile(tree *clause.Tree) (query.Node, error) {
	if tree == nil {
		c.observe("empty")
		return nil, nil
	}
	node, err := c.compileTree(tree, tree.DefaultFields)
	switch {
	case apperrors.IsField(err):
		c.observe("field_error")
	case apperrors.IsConfig(err):
		c.observe("config_error")
	case err != nil:
		c.observe("error")
	case node == nil:
		c.observe("empty")
	default:
		c.observe("ok")
	}
	if err != nil {
		return nil, err
	}
	if node != nil {
		c.logger.Debug("query compiled",
			"input", tree.String(),
			"compiled", node.String(),
			"leaves", len(query.Leaves(node)),
		)
	}
	return node, nil
}

func (c *Compiler) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.DialectCompiles.WithLabelValues(outcome).Inc()
	}
}

// compileTree joins REQUIRED results with AND, OPTIONAL with OR and the
// already negated PROHIBITED results with AND, then combines the three with
// the configured default operator. Nested groups inherit the enclosing
// parser defaults unless they carry their own.
func (c *Compiler) compileTree(tree *clause.Tree, parserDefaults []string) (query.Node, error) {
	if tree.IsEmpty() {
		return nil, nil
	}
	if len(tree.DefaultFields) > 0 {
		parserDefaults = tree.DefaultFields
	}

	required, err := c.compileBucket(tree.Required, false, parserDefaults)
	if err != nil {
		return nil, err
	}
	optional, err := c.compileBucket(tree.Optional, false, parserDefaults)
	if err != nil {
		return nil, err
	}
	prohibited, err := c.compileBucket(tree.Prohibited, true, parserDefaults)
	if err != nil {
		return nil, err
	}

	join := query.OR
	if c.cfg.DefaultBoolOp == "+" {
		join = query.AND
	}
	return query.Join(join,
		query.Join(query.AND, required...),
		query.Join(query.OR, optional...),
		query.Join(query.AND, prohibited...),
	), nil
}

func (c *Compiler) compileBucket(clauses []clause.Clause, prohibited bool, parserDefaults []string) ([]query.Node, error) {
	nodes := make([]query.Node, 0, len(clauses))
	for _, cl := range clauses {
		n, err := c.compileClause(cl, prohibited, parserDefaults)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (c *Compiler) compileClause(cl clause.Clause, prohibited bool, parserDefaults []string) (query.Node, error) {
	if cl.Op == clause.OpGroup {
		if cl.Group == nil {
			return nil, apperrors.ConfigErrorf("group clause without a nested tree")
		}
		n, err := c.compileTree(cl.Group, parserDefaults)
		if err != nil {
			return nil, err
		}
		if prohibited {
			return query.Not(n), nil
		}
		return n, nil
	}

	if prohibited && !cl.Op.Negated() {
		cl.Op = cl.Op.Negate()
	}

	fields, err := c.resolveFields(cl.Field, parserDefaults)
	if err != nil {
		return nil, err
	}
	nodes := make([]query.Node, 0, len(fields))
	for _, f := range fields {
		n, err := c.compileField(f, cl)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	if cl.Op.Negated() {
		return query.Join(query.AND, nodes...), nil
	}
	return query.Join(query.OR, nodes...), nil
}

// resolveFields tries the explicit field, then the dialect default, then
// the parser default. With none of those a strict dialect fails and a lax
// one searches every registered field.
func (c *Compiler) resolveFields(explicit string, parserDefaults []string) ([]*field.Config, error) {
	var names []string
	switch {
	case explicit != "":
		names = []string{explicit}
	case len(c.cfg.DefaultField) > 0:
		names = c.cfg.DefaultField
	case len(parserDefaults) > 0:
		names = parserDefaults
	case c.cfg.RequireField:
		return nil, apperrors.FieldErrorf("no field given and no default field configured")
	default:
		names = c.registry.Names()
	}

	fields := make([]*field.Config, 0, len(names))
	for _, name := range names {
		f, ok := c.registry.Resolve(name)
		if !ok {
			return nil, apperrors.FieldErrorf("unknown field %q", name)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (c *Compiler) compileField(f *field.Config, cl clause.Clause) (query.Node, error) {
	if f.Callback != nil {
		n, err := f.Callback(f.Name, cl)
		if err != nil {
			return nil, fmt.Errorf("field %s callback: %w", f.Name, err)
		}
		return n, nil
	}

	negated := cl.Op.Negated()
	op := cl.Op.Positive()

	if op == clause.OpRange {
		if len(cl.Range) != 2 {
			return nil, apperrors.ConfigErrorf("range on %s needs exactly two bounds, got %d", f.Name, len(cl.Range))
		}
		return &query.Range{
			Field:   f.Name,
			Lower:   cl.Range[0],
			Upper:   cl.Range[1],
			Negated: negated,
			Hook:    f.Hooks.Range,
		}, nil
	}

	if op == clause.OpEQ && cl.Quote == 0 && strings.ContainsAny(cl.Value, wildcardGlyphs) {
		op = clause.OpFuzzy
	}
	if op == clause.OpFuzzy {
		return c.compileWildcard(f, cl.Value, negated)
	}
	return c.compileText(f, cl, op, negated), nil
}

// compileWildcard bypasses the analyzer so the glyphs survive. The value is
// split on whitespace by hand and case-folded only when the analyzer folds
// the terms it indexes. When the analyzer has a stemmer only the part
// before the first glyph is stemmed.
func (c *Compiler) compileWildcard(f *field.Config, value string, negated bool) (query.Node, error) {
	var stemmer analysis.Stemmer
	if f.Analyzer != nil {
		stemmer = f.Analyzer.Stemmer()
	}
	fold := analysis.FoldsCase(f.Analyzer)
	hook := f.Hooks.Wildcard
	if hook == nil {
		hook = f.Hooks.Term
	}
	rewrite := func(tok string) string {
		if fold {
			tok = strings.ToLower(tok)
		}
		if stemmer != nil {
			tok = stemPrefix(stemmer, tok)
		}
		return tok
	}

	tokens := strings.Fields(value)
	nodes := make([]query.Node, 0, len(tokens))
	for _, tok := range tokens {
		if strings.Trim(tok, wildcardGlyphs) == "" && !c.cfg.AllowSingleWildcards {
			return nil, apperrors.ConfigErrorf("bare wildcard %q on %s is not allowed", tok, f.Name)
		}
		w := &query.Wildcard{
			Field:   f.Name,
			Term:    rewrite(tok),
			Negated: negated,
			Hook:    hook,
		}
		if rewrite(w.Term) != w.Term {
			w.Source = tok
		}
		nodes = append(nodes, w)
	}
	if negated {
		return query.Join(query.OR, nodes...), nil
	}
	return query.Join(query.AND, nodes...), nil
}

func stemPrefix(s analysis.Stemmer, tok string) string {
	prefix := matcher.FixedPrefix(tok)
	if prefix == "" {
		return tok
	}
	return s.Stem(prefix) + tok[len(prefix):]
}

// compileText produces a term for a single token and a phrase, or a
// proximity when a slop is attached, for several. Values that analyze to
// nothing compile to nil.
func (c *Compiler) compileText(f *field.Config, cl clause.Clause, op clause.Op, negated bool) query.Node {
	var terms []string
	switch {
	case f.Analyzer != nil:
		terms = analysis.Terms(f.Analyzer, cl.Value)
	case cl.Quote != 0 || op == clause.OpPhrase:
		terms = strings.Fields(cl.Value)
	case cl.Value != "":
		terms = []string{cl.Value}
	}

	var source string
	if f.Analyzer != nil && !slices.Equal(analysis.Terms(f.Analyzer, strings.Join(terms, " ")), terms) {
		source = cl.Value
	}

	var n query.Node
	switch {
	case len(terms) == 0:
		return nil
	case len(terms) == 1:
		n = &query.Term{Field: f.Name, Term: terms[0], Source: source, Hook: f.Hooks.Term}
	case cl.Proximity > 0:
		n = &query.Proximity{
			Field:       f.Name,
			Terms:       terms,
			Source:      source,
			Within:      cl.Proximity,
			IgnoreOrder: c.cfg.IgnoreOrderInProximity,
			Hook:        f.Hooks.Proximity,
		}
	default:
		n = &query.Phrase{Field: f.Name, Terms: terms, Source: source, Hook: f.Hooks.Phrase}
	}
	if negated {
		return query.Not(n)
	}
	return n
}
