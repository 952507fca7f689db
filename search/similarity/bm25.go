// Package similarity holds the BM25 scoring model shared by every term
// scorer. Grounded on bluge/search/similarity/bm25.go's BM25Similarity/
// BM25Scorer split (k1/b fields, an Idf method, a per-field average-length
// baseline), but the score formula is corrected to the textbook form: the
// teacher's own scorer multiplies idf by the length-normalization term
// alone and omits the freq*(k1+1) saturation numerator entirely, a drift
// this module does not reproduce (see DESIGN.md).
package similarity

import (
	"math"

	"github.com/model-collapse/diagon-sub000/codec"
)

// BM25 is the similarity model: Idf(collection stats) * boost *
// BM25TermComponent(freq, doc_len, avg_len). k1/b default to codec's
// shared constants so the formula codec.PostingsWriter used to precompute
// block-max upper bounds can never drift from the one used here to score
// individual postings.
type BM25 struct {
	K1 float64
	B  float64
}

// NewBM25 returns the default-tuned similarity (k1=1.2, b=0.75).
func NewBM25() *BM25 {
	return &BM25{K1: codec.DefaultBM25K1, B: codec.DefaultBM25B}
}

// Idf is the standard BM25 inverse document frequency:
// ln(1 + (numDocs - docFreq + 0.5) / (docFreq + 0.5)).
//
// The teacher's own Idf parenthesizes this as
// "1.0 + (docCount-docFreq) + 0.5/(docFreq+0.5)" — a second, independent
// bug from the missing (k1+1) factor above, dropping the +0.5 numerator
// term outside the fraction entirely. This implementation uses the
// correct grouping.
func (s *BM25) Idf(numDocs, docFreq uint64) float64 {
	if docFreq == 0 {
		docFreq = 1
	}
	n, f := float64(numDocs), float64(docFreq)
	return math.Log(1 + (n-f+0.5)/(f+0.5))
}

// TermComponent is the length-normalized term-frequency factor, delegating
// to codec's shared formula so block-max precompute and query-time scoring
// always agree for the default k1/b. When the caller's k1/b differ from
// the codec defaults, the block-max upper bounds computed at write time
// bound a different curve than the one scored here, and a posting's score
// can then exceed its block's stored bound (for example with a larger k1).
func (s *BM25) TermComponent(freq int, docLen, avgLen float64) float64 {
	if s.K1 == codec.DefaultBM25K1 && s.B == codec.DefaultBM25B {
		return codec.BM25TermComponent(freq, docLen, avgLen)
	}
	return codec.BM25TermComponentKB(freq, docLen, avgLen, s.K1, s.B)
}

// Score combines idf, boost, and the term component into one posting's
// final BM25 score.
func (s *BM25) Score(boost, idf float64, freq int, docLen, avgLen float64) float64 {
	return boost * idf * s.TermComponent(freq, docLen, avgLen)
}
