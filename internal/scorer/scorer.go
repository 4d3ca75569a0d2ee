// Package scorer provides per-document score overrides layered on top of
// the base term-frequency score a matcher computes. A Hook sees the base
// score and a lazily loaded view of the document's stored fields.
package scorer

import (
	"fmt"
)

// Store fetches the stored field values of a document.
type Store interface {
	Fetch(docID uint64) (map[string]string, error)
}

// Hook computes the final score for the current document. Returning base
// unchanged is the "no override" path.
type Hook interface {
	Score(base float64, doc *Document) (float64, error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(base float64, doc *Document) (float64, error)

func (f HookFunc) Score(base float64, doc *Document) (float64, error) {
	return f(base, doc)
}

// Document is a read-only accessor to one document's stored fields. The
// fields are fetched on first access and at most once.
type Document struct {
	id     uint64
	store  Store
	fields map[string]string
	err    error
	loaded bool
}

// NewDocument returns an accessor for id backed by store. Nothing is
// fetched until a field is read.
func NewDocument(id uint64, store Store) *Document {
	return &Document{id: id, store: store}
}

// ID returns the document id.
func (d *Document) ID() uint64 { return d.id }

// Field returns the stored value of name and whether it is present.
func (d *Document) Field(name string) (string, bool, error) {
	if err := d.load(); err != nil {
		return "", false, err
	}
	v, ok := d.fields[name]
	return v, ok, nil
}

// Loaded reports whether the stored fields have been fetched.
func (d *Document) Loaded() bool { return d.loaded }

func (d *Document) load() error {
	if d.loaded {
		return d.err
	}
	d.loaded = true
	if d.store == nil {
		d.err = fmt.Errorf("no document store for doc %d", d.id)
		return d.err
	}
	fields, err := d.store.Fetch(d.id)
	if err != nil {
		d.err = fmt.Errorf("fetching stored fields for doc %d: %w", d.id, err)
		return d.err
	}
	d.fields = fields
	return nil
}

// Bands maps the stored value of Field to a fixed score. Documents whose
// value is missing or not in the table keep their base score.
type Bands struct {
	Field  string
	Scores map[string]float64
}

func (b Bands) Score(base float64, doc *Document) (float64, error) {
	v, ok, err := doc.Field(b.Field)
	if err != nil {
		return 0, err
	}
	if !ok {
		return base, nil
	}
	if s, ok := b.Scores[v]; ok {
		return s, nil
	}
	return base, nil
}

// Chain applies hooks in order, each seeing the previous hook's result as
// its base.
type Chain []Hook

func (c Chain) Score(base float64, doc *Document) (float64, error) {
	score := base
	for _, h := range c {
		var err error
		if score, err = h.Score(score, doc); err != nil {
			return 0, err
		}
	}
	return score, nil
}

// MapStore is an in-memory Store keyed by document id.
type MapStore map[uint64]map[string]string

func (m MapStore) Fetch(docID uint64) (map[string]string, error) {
	return m[docID], nil
}
