// Package field resolves field names to their compile-time configuration:
// analyzer, custom callback, and the scorer hooks attached to each kind of
// compiled leaf.
package field

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/clause"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// Type is the declared type of a field.
type Type string

const (
	TypeText    Type = "text"
	TypeKeyword Type = "keyword"
	TypeDate    Type = "date"
)

// Callback compiles a clause for a field itself. It receives the clause with
// its operator already adjusted for prefix negation. A nil node means the
// clause contributes nothing for this field.
type Callback func(field string, c clause.Clause) (query.Node, error)

// Hooks are the scorer hooks attached to compiled leaves of each kind.
type Hooks struct {
	Term      scorer.Hook
	Phrase    scorer.Hook
	Proximity scorer.Hook
	Wildcard  scorer.Hook
	Range     scorer.Hook
}

// Config is one field's configuration. It is not mutated after the
// registry is built.
type Config struct {
	Name string
	Type Type
	// Analyzer tokenizes query values. Nil means values are used verbatim.
	Analyzer analysis.Analyzer
	Callback Callback
	Hooks    Hooks
	// Boost is the field boost the normalizer adds to idf.
	Boost  float64
	Stored bool
}

// Registry is an immutable name-to-Config lookup.
type Registry struct {
	fields map[string]*Config
	order  []string
}

// NewRegistry builds a registry. Names must be unique and non-empty.
func NewRegistry(fields ...Config) (*Registry, error) {
	r := &Registry{fields: make(map[string]*Config, len(fields))}
	for i := range fields {
		f := fields[i]
		if f.Name == "" {
			return nil, apperrors.New(apperrors.ErrConfig, http.StatusBadRequest, "field with empty name")
		}
		if _, dup := r.fields[f.Name]; dup {
			return nil, apperrors.Newf(apperrors.ErrConfig, http.StatusBadRequest, "duplicate field %q", f.Name)
		}
		if f.Type == "" {
			f.Type = TypeText
		}
		r.fields[f.Name] = &f
		r.order = append(r.order, f.Name)
	}
	return r, nil
}

// Resolve returns the configuration of name.
func (r *Registry) Resolve(name string) (*Config, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Names returns field names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// FromConfig builds a registry from the fields section of the application
// config.
func FromConfig(specs []config.FieldConfig) (*Registry, error) {
	fields := make([]Config, 0, len(specs))
	for _, s := range specs {
		a, err := analysis.Named(s.Analyzer)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Name, err)
		}
		f := Config{
			Name:     s.Name,
			Type:     Type(s.Type),
			Analyzer: a,
			Boost:    s.Boost,
			Stored:   s.Stored,
		}
		switch f.Type {
		case "", TypeText, TypeKeyword, TypeDate:
		default:
			return nil, apperrors.Newf(apperrors.ErrConfig, http.StatusBadRequest, "field %s: unknown type %q", s.Name, s.Type)
		}
		if s.ScoreBands != nil {
			f.Hooks.Term = scorer.Bands{Field: s.ScoreBands.Field, Scores: s.ScoreBands.Scores}
		}
		fields = append(fields, f)
	}
	return NewRegistry(fields...)
}
