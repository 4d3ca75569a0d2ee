// Package weight computes per-term query weights: an idf derived from the
// collection's document count, the raw and normalized weights, and the
// sum of squared weights the search coordinator folds into a query norm.
package weight

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

// Similarity supplies the term-frequency and query-norm functions.
type Similarity interface {
	TermFrequencyWeight(freq int) float64
	QueryNorm(sumOfSquaredWeights float64) float64
}

// DefaultSimilarity is classic vector-space similarity.
type DefaultSimilarity struct{}

func (DefaultSimilarity) TermFrequencyWeight(freq int) float64 {
	return math.Sqrt(float64(freq))
}

func (DefaultSimilarity) QueryNorm(sum float64) float64 {
	if sum <= 0 {
		return 1
	}
	return 1 / math.Sqrt(sum)
}

// Collection is the searchable collection whose size feeds idf.
type Collection interface {
	DocCount() int
}

// Normalizer creates Weights against one collection snapshot.
type Normalizer struct {
	maxDoc int
}

// NewNormalizer fails with ErrConfig when c is nil.
func NewNormalizer(c Collection) (*Normalizer, error) {
	if c == nil {
		return nil, apperrors.ConfigErrorf("normalizer requires a searchable collection")
	}
	return &Normalizer{maxDoc: c.DocCount()}, nil
}

// MaxDoc returns the document count captured at construction.
func (n *Normalizer) MaxDoc() int { return n.maxDoc }

// Weight is the compiled state of one query term.
type Weight struct {
	DocFreq          int
	IDF              float64
	RawWeight        float64
	QueryNormFactor  float64
	NormalizedWeight float64
	computed         bool
}

// Compute builds the weight of a term matching df documents.
func (n *Normalizer) Compute(df int, fieldBoost, queryBoost float64) *Weight {
	idf := fieldBoost
	if n.maxDoc > 0 {
		idf = fieldBoost + math.Log(float64(n.maxDoc)/float64(1+df))
	}
	return &Weight{
		DocFreq:   df,
		IDF:       idf,
		RawWeight: idf * queryBoost,
		computed:  df > 0,
	}
}

// SumOfSquaredWeights returns rawWeight squared, or 1.0 when the term
// matched nothing.
func (w *Weight) SumOfSquaredWeights() float64 {
	if !w.computed {
		return 1.0
	}
	return w.RawWeight * w.RawWeight
}

// Normalize records the coordinator-supplied query norm factor.
func (w *Weight) Normalize(queryNormFactor float64) {
	w.QueryNormFactor = queryNormFactor
	w.NormalizedWeight = w.RawWeight * w.IDF * queryNormFactor
}

// QueryNorm sums the squared weights of ws and runs them through sim.
func QueryNorm(sim Similarity, ws ...*Weight) float64 {
	var sum float64
	for _, w := range ws {
		sum += w.SumOfSquaredWeights()
	}
	return sim.QueryNorm(sum)
}
