package search

import (
	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/search/similarity"
)

// TermQuery matches documents whose field contains term exactly, scored by
// BM25. Grounded on bluge/query.go's TermQuery builder (NewTermQuery,
// SetField, SetBoost).
type TermQuery struct {
	field string
	term  []byte
	boost float64
}

// NewTermQuery builds a query for term against the default "_all"-less
// single field set by SetField; callers must call SetField before use.
func NewTermQuery(term string) *TermQuery {
	return &TermQuery{term: []byte(term), boost: 1.0}
}

func (q *TermQuery) SetField(field string) *TermQuery { q.field = field; return q }
func (q *TermQuery) SetBoost(b float64) *TermQuery     { q.boost = b; return q }
func (q *TermQuery) Field() string                     { return q.field }
func (q *TermQuery) Term() []byte                      { return q.term }

func (q *TermQuery) String() string { return "term(" + q.field + ":" + string(q.term) + ")" }

// Rewrite is a no-op: a TermQuery is already in canonical form.
func (q *TermQuery) Rewrite(searcher *IndexSearcher) (Query, error) { return q, nil }

func (q *TermQuery) CreateWeight(searcher *IndexSearcher, mode ScoreMode, boost float64) (Weight, error) {
	docFreq, err := searcher.DocFreq(q.field, q.term)
	if err != nil {
		return nil, err
	}
	var idf float64
	if mode.needsScores() {
		idf = searcher.Similarity().Idf(searcher.NumDocs(), docFreq)
	}
	return &termWeight{
		searcher: searcher, field: q.field, term: q.term,
		boost: q.boost * boost, idf: idf, docFreq: docFreq, mode: mode,
	}, nil
}

type termWeight struct {
	searcher *IndexSearcher
	field    string
	term     []byte
	boost    float64
	idf      float64
	docFreq  uint64
	mode     ScoreMode
}

func (w *termWeight) DocFreq() uint64 { return w.docFreq }

// Scorer opens leaf's posting stream for the term, or (nil, nil) if the
// leaf's field has no postings or the term is absent.
func (w *termWeight) Scorer(leaf index.LeafReader) (Scorer, error) {
	td, err := leaf.Reader.Terms(w.field)
	if err != nil || td == nil {
		return nil, err
	}
	entry, ok, err := td.SeekExact(w.term)
	if err != nil || !ok {
		return nil, err
	}
	pe, err := leaf.Reader.OpenPostings(w.field, entry)
	if err != nil {
		return nil, err
	}
	avgLen := LeafAverageFieldLength(leaf, w.field, w.searcher.AverageFieldLength(w.field))
	return &termScorer{
		pe: pe, leaf: leaf, field: w.field,
		boost: w.boost, idf: w.idf, avgLen: avgLen,
		sim: w.searcher.Similarity(), scored: w.mode.needsScores(),
	}, nil
}

// termScorer is a codec.PostingsEnum extended with score()/max_score, the
// Scorer spec.md §4.F names ("a PostingsEnum extended with score()").
type termScorer struct {
	pe     *codec.PostingsEnum
	leaf   index.LeafReader
	field  string
	boost  float64
	idf    float64
	avgLen float64
	sim    *similarity.BM25
	scored bool
}

func (s *termScorer) DocID() uint32 { return s.pe.DocID() }

func (s *termScorer) NextDoc() (uint32, error) { return s.pe.NextDoc() }

func (s *termScorer) Advance(target uint32) (uint32, error) { return s.pe.Advance(target) }

func (s *termScorer) Cost() uint64 { return s.pe.Count() }

func (s *termScorer) Score() (float64, error) {
	if !s.scored {
		return 0, nil
	}
	norm, err := s.leaf.Reader.Norm(s.field, s.pe.DocID())
	if err != nil {
		return 0, err
	}
	docLen := codec.DecodeNormLength(norm)
	return s.boost * s.idf * s.sim.TermComponent(int(s.pe.Freq()), docLen, s.avgLen), nil
}

// MaxScore returns the current skip block's precomputed upper bound,
// scaled by this scorer's boost*idf (the codec stores only the
// length-normalized term-frequency component so the same block-max bytes
// serve any query-time boost/idf).
func (s *termScorer) MaxScore(uptoDoc uint32) (float64, error) {
	if !s.scored {
		return 0, nil
	}
	return s.boost * s.idf * s.pe.BlockMaxScore(), nil
}

// BlockEnd exposes the current skip block's last doc-id, letting
// WANDScorer choose which earlier scorer's block ends first to advance.
func (s *termScorer) BlockEnd() uint32 { return s.pe.BlockMaxDocID() }
