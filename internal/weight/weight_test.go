package weight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

type fixedCollection int

func (c fixedCollection) DocCount() int { return int(c) }

func TestNewNormalizer_NilCollection(t *testing.T) {
	_, err := NewNormalizer(nil)
	assert.True(t, apperrors.IsConfig(err))
}

func TestCompute(t *testing.T) {
	n, err := NewNormalizer(fixedCollection(100))
	require.NoError(t, err)

	w := n.Compute(9, 1.0, 2.0)
	wantIDF := 1.0 + math.Log(100.0/10.0)
	assert.InDelta(t, wantIDF, w.IDF, 1e-12)
	assert.InDelta(t, wantIDF*2, w.RawWeight, 1e-12)
	assert.InDelta(t, wantIDF*wantIDF*4, w.SumOfSquaredWeights(), 1e-9)

	w.Normalize(0.5)
	assert.InDelta(t, wantIDF*2*wantIDF*0.5, w.NormalizedWeight, 1e-9)
	assert.Equal(t, 0.5, w.QueryNormFactor)
}

func TestCompute_EmptyCollection(t *testing.T) {
	n, err := NewNormalizer(fixedCollection(0))
	require.NoError(t, err)

	w := n.Compute(0, 1.5, 1)
	assert.Equal(t, 1.5, w.IDF)
	assert.Equal(t, 1.0, w.SumOfSquaredWeights())
}

func TestQueryNorm(t *testing.T) {
	n, _ := NewNormalizer(fixedCollection(10))
	a := n.Compute(1, 0, 1)
	none := n.Compute(0, 0, 1)

	sim := DefaultSimilarity{}
	want := 1 / math.Sqrt(a.RawWeight*a.RawWeight+1.0)
	assert.InDelta(t, want, QueryNorm(sim, a, none), 1e-12)
	assert.Equal(t, 1.0, sim.QueryNorm(0))
}

func TestDefaultSimilarity_TermFrequencyWeight(t *testing.T) {
	assert.Equal(t, 2.0, DefaultSimilarity{}.TermFrequencyWeight(4))
	assert.Equal(t, 0.0, DefaultSimilarity{}.TermFrequencyWeight(0))
}
