package search

import (
	"math"

	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/search/similarity"
)

// PhraseTerm is one term of a PhraseQuery, paired with its expected
// tokenized-position offset relative to the phrase's first term (e.g.
// "quick brown fox" is [{quick,0},{brown,1},{fox,2}]).
type PhraseTerm struct {
	Term   []byte
	Offset int
}

// PhraseQuery matches documents where every term occurs, in order, at
// their expected relative offsets. Grounded on bluge/query.go's
// NewPhraseQuery builder (AddTerm with an implicit incrementing slop-0
// position) and bluge/search/searcher/search_phrase.go's lock-step
// position matching.
type PhraseQuery struct {
	field string
	terms []PhraseTerm
	boost float64
}

// NewPhraseQuery returns an empty builder; call AddTerm in phrase order.
func NewPhraseQuery() *PhraseQuery { return &PhraseQuery{boost: 1.0} }

func (q *PhraseQuery) SetField(field string) *PhraseQuery { q.field = field; return q }
func (q *PhraseQuery) SetBoost(b float64) *PhraseQuery     { q.boost = b; return q }

// AddTerm appends the next phrase term at the next sequential offset.
func (q *PhraseQuery) AddTerm(term string) *PhraseQuery {
	q.terms = append(q.terms, PhraseTerm{Term: []byte(term), Offset: len(q.terms)})
	return q
}

func (q *PhraseQuery) String() string { return "phrase(" + q.field + ")" }

// Rewrite collapses a single-term phrase to a plain TermQuery, per
// spec.md §4.F.
func (q *PhraseQuery) Rewrite(searcher *IndexSearcher) (Query, error) {
	if len(q.terms) == 1 {
		tq := NewTermQuery(string(q.terms[0].Term)).SetField(q.field)
		tq.boost = q.boost
		return tq, nil
	}
	return q, nil
}

func (q *PhraseQuery) CreateWeight(searcher *IndexSearcher, mode ScoreMode, boost float64) (Weight, error) {
	var minDocFreq uint64 = ^uint64(0)
	for _, t := range q.terms {
		df, err := searcher.DocFreq(q.field, t.Term)
		if err != nil {
			return nil, err
		}
		if df < minDocFreq {
			minDocFreq = df
		}
	}
	if minDocFreq == ^uint64(0) {
		minDocFreq = 0
	}
	var idf float64
	if mode.needsScores() {
		idf = searcher.Similarity().Idf(searcher.NumDocs(), minDocFreq)
	}
	return &phraseWeight{
		searcher: searcher, field: q.field, terms: q.terms,
		boost: q.boost * boost, idf: idf, docFreq: minDocFreq, mode: mode,
	}, nil
}

type phraseWeight struct {
	searcher *IndexSearcher
	field    string
	terms    []PhraseTerm
	boost    float64
	idf      float64
	docFreq  uint64
	mode     ScoreMode
}

func (w *phraseWeight) DocFreq() uint64 { return w.docFreq }

func (w *phraseWeight) Scorer(leaf index.LeafReader) (Scorer, error) {
	td, err := leaf.Reader.Terms(w.field)
	if err != nil || td == nil {
		return nil, err
	}
	enums := make([]*codec.PostingsEnum, len(w.terms))
	for i, t := range w.terms {
		entry, ok, err := td.SeekExact(t.Term)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		pe, err := leaf.Reader.OpenPostings(w.field, entry)
		if err != nil {
			return nil, err
		}
		enums[i] = pe
	}
	avgLen := LeafAverageFieldLength(leaf, w.field, w.searcher.AverageFieldLength(w.field))
	conj, err := newConjunctionScorer(postingsAsScorers(enums))
	if err != nil {
		return nil, err
	}
	return &phraseScorer{
		conj: conj, enums: enums, terms: w.terms, leaf: leaf, field: w.field,
		boost: w.boost, idf: w.idf, avgLen: avgLen,
		sim: w.searcher.Similarity(), scored: w.mode.needsScores(),
	}, nil
}

// postingsEnumScorer adapts a bare codec.PostingsEnum (no BM25 scoring, no
// block-max reporting) into a Scorer so the conjunction machinery can drive
// lock-step advancement across the phrase's terms; the phrase's own
// position-matching and BM25 scoring happen one level up in phraseScorer.
type postingsEnumScorer struct {
	pe *codec.PostingsEnum
}

func (s *postingsEnumScorer) DocID() uint32                         { return s.pe.DocID() }
func (s *postingsEnumScorer) NextDoc() (uint32, error)               { return s.pe.NextDoc() }
func (s *postingsEnumScorer) Advance(target uint32) (uint32, error)  { return s.pe.Advance(target) }
func (s *postingsEnumScorer) Cost() uint64                           { return s.pe.Count() }
func (s *postingsEnumScorer) Score() (float64, error)                { return 0, nil }
func (s *postingsEnumScorer) MaxScore(uptoDoc uint32) (float64, error) { return 0, nil }

func postingsAsScorers(enums []*codec.PostingsEnum) []Scorer {
	out := make([]Scorer, len(enums))
	for i, pe := range enums {
		out[i] = &postingsEnumScorer{pe: pe}
	}
	return out
}

// phraseScorer drives the conjunction of every term's postings to a
// shared candidate doc, then verifies a position-aligned match: each
// term's occurrence positions minus its phrase offset must include a
// common base position.
type phraseScorer struct {
	conj   Scorer
	enums  []*codec.PostingsEnum
	terms  []PhraseTerm
	leaf   index.LeafReader
	field  string
	boost  float64
	idf    float64
	avgLen float64
	sim    *similarity.BM25
	scored bool

	matchFreq uint32
}

func (s *phraseScorer) DocID() uint32 { return s.conj.DocID() }
func (s *phraseScorer) Cost() uint64  { return s.conj.Cost() }

func (s *phraseScorer) NextDoc() (uint32, error) {
	for {
		doc, err := s.conj.NextDoc()
		if err != nil || doc == noMoreDocs {
			return doc, err
		}
		ok, err := s.matchPositions()
		if err != nil {
			return 0, err
		}
		if ok {
			return doc, nil
		}
	}
}

func (s *phraseScorer) Advance(target uint32) (uint32, error) {
	doc, err := s.conj.Advance(target)
	if err != nil || doc == noMoreDocs {
		return doc, err
	}
	ok, err := s.matchPositions()
	if err != nil {
		return 0, err
	}
	if ok {
		return doc, nil
	}
	return s.NextDoc()
}

// matchPositions consumes every term's positions for the current doc
// (PostingsEnum requires exactly Freq() NextPosition calls before the next
// NextDoc), counting how many times the first term's position p has every
// other term present at p+offset.
func (s *phraseScorer) matchPositions() (bool, error) {
	positions := make([][]uint32, len(s.enums))
	for i, pe := range s.enums {
		freq := pe.Freq()
		ps := make([]uint32, freq)
		for j := uint32(0); j < freq; j++ {
			p, err := pe.NextPosition()
			if err != nil {
				return false, err
			}
			ps[j] = p
		}
		positions[i] = ps
	}
	set := make(map[uint32]bool, len(positions[0]))
	for _, p := range positions[0] {
		set[p] = true
	}
	var matches uint32
	for base := range set {
		allFound := true
		for i := 1; i < len(s.terms); i++ {
			want := base + uint32(s.terms[i].Offset-s.terms[0].Offset)
			found := false
			for _, p := range positions[i] {
				if p == want {
					found = true
					break
				}
			}
			if !found {
				allFound = false
				break
			}
		}
		if allFound {
			matches++
		}
	}
	s.matchFreq = matches
	return matches > 0, nil
}

func (s *phraseScorer) Score() (float64, error) {
	if !s.scored {
		return 0, nil
	}
	norm, err := s.leaf.Reader.Norm(s.field, s.conj.DocID())
	if err != nil {
		return 0, err
	}
	docLen := codec.DecodeNormLength(norm)
	return s.boost * s.idf * s.sim.TermComponent(int(s.matchFreq), docLen, s.avgLen), nil
}

// MaxScore has no cheap per-block bound for a phrase match (the
// conjunction's own block-max sums over-count positions that never
// actually align), so pruning is disabled for phrase clauses by reporting
// +Inf; WAND simply never skips past a phrase scorer's candidates.
func (s *phraseScorer) MaxScore(uptoDoc uint32) (float64, error) {
	return math.Inf(1), nil
}
