package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analysis"
)

var sampleText = strings.Repeat(`Information retrieval systems combine tokenization, stemming
and stop word removal to normalize text into searchable terms. The inverted index
maps each term to the documents containing it, along with positions for phrase
and proximity queries. `, 10)

func BenchmarkAnalyzers(b *testing.B) {
	for _, name := range []string{"simple", "simple_nostem", "keyword", "porter"} {
		a, err := analysis.Named(name)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(sampleText)))
			for b.Loop() {
				_ = a.Tokenize(sampleText)
			}
		})
	}
}
