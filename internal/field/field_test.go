package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(Config{Name: "title"}, Config{Name: "body", Type: TypeKeyword})
	require.NoError(t, err)

	f, ok := r.Resolve("title")
	require.True(t, ok)
	assert.Equal(t, TypeText, f.Type)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"title", "body"}, r.Names())
}

func TestRegistry_Invalid(t *testing.T) {
	_, err := NewRegistry(Config{Name: "a"}, Config{Name: "a"})
	assert.True(t, apperrors.IsConfig(err))

	_, err = NewRegistry(Config{})
	assert.True(t, apperrors.IsConfig(err))
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig([]config.FieldConfig{
		{Name: "title", Type: "text", Analyzer: "simple", Boost: 2},
		{Name: "raw", Type: "keyword"},
		{
			Name:     "category",
			Type:     "keyword",
			Analyzer: "keyword",
			ScoreBands: &config.ScoreBandsConfig{
				Field:  "category",
				Scores: map[string]float64{"a": 100},
			},
		},
	})
	require.NoError(t, err)

	title, _ := r.Resolve("title")
	assert.NotNil(t, title.Analyzer)
	assert.Equal(t, 2.0, title.Boost)

	raw, _ := r.Resolve("raw")
	assert.Nil(t, raw.Analyzer)

	cat, _ := r.Resolve("category")
	require.NotNil(t, cat.Hooks.Term)
	got, err := cat.Hooks.Term.Score(0.5, scorer.NewDocument(1, scorer.MapStore{1: {"category": "a"}}))
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)
}

func TestFromConfig_Errors(t *testing.T) {
	_, err := FromConfig([]config.FieldConfig{{Name: "x", Analyzer: "nope"}})
	assert.True(t, apperrors.IsConfig(err))

	_, err = FromConfig([]config.FieldConfig{{Name: "x", Type: "geo"}})
	assert.True(t, apperrors.IsConfig(err))
}
