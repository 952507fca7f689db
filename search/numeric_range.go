package search

import "github.com/model-collapse/diagon-sub000/index"

// NumericRangeQuery matches documents whose field's numeric doc-value lies
// in [min, max], respecting open/closed endpoints. Grounded on
// bluge/query.go's NewNumericRangeInclusiveQuery. Scored as a constant 1.0
// boost when the ScoreMode calls for scores, per spec.md §4.F: "Contributes
// constant score 1.0 when score_mode != count_only, else no score."
type NumericRangeQuery struct {
	field                      string
	min, max                   float64
	inclusiveMin, inclusiveMax bool
	boost                      float64
}

// NewNumericRangeQuery returns an inclusive-min, exclusive-max range
// query, mirroring bluge's own NewNumericRangeQuery default.
func NewNumericRangeQuery(min, max float64) *NumericRangeQuery {
	return NewNumericRangeInclusiveQuery(min, max, true, false)
}

func NewNumericRangeInclusiveQuery(min, max float64, minInclusive, maxInclusive bool) *NumericRangeQuery {
	return &NumericRangeQuery{min: min, max: max, inclusiveMin: minInclusive, inclusiveMax: maxInclusive, boost: 1.0}
}

func (q *NumericRangeQuery) SetField(field string) *NumericRangeQuery { q.field = field; return q }
func (q *NumericRangeQuery) SetBoost(b float64) *NumericRangeQuery     { q.boost = b; return q }

func (q *NumericRangeQuery) String() string { return "numeric_range(" + q.field + ")" }

func (q *NumericRangeQuery) Rewrite(searcher *IndexSearcher) (Query, error) { return q, nil }

func (q *NumericRangeQuery) CreateWeight(searcher *IndexSearcher, mode ScoreMode, boost float64) (Weight, error) {
	return &numericRangeWeight{field: q.field, q: q, boost: q.boost * boost, mode: mode}, nil
}

type numericRangeWeight struct {
	field string
	q     *NumericRangeQuery
	boost float64
	mode  ScoreMode
}

// DocFreq has no cheap collection-wide count for a range scan (it would
// require walking every leaf's doc-values), so this returns 0. A
// booleanWeight taking the minimum over its clauses therefore reports 0
// when it holds a range clause.
func (w *numericRangeWeight) DocFreq() uint64 { return 0 }

func (w *numericRangeWeight) Scorer(leaf index.LeafReader) (Scorer, error) {
	reader, fieldNumber, ok := leaf.Reader.NumericDocValues(w.field)
	if !ok {
		return nil, nil
	}
	return &numericRangeScorer{
		reader: reader, fieldNumber: fieldNumber, maxDoc: leaf.Reader.MaxDoc(),
		q: w.q, boost: w.boost, scored: w.mode.needsScores(),
	}, nil
}

// numericRangeScorer walks [0, max_doc) admitting docs whose doc-value
// falls in range, per spec.md §4.F's literal NumericRangeQuery algorithm
// description (a full doc-values scan, not an index structure lookup —
// the spec names no range-tree or BKD-style structure for this module).
type numericRangeScorer struct {
	reader interface {
		Get(fieldNumber uint32, docID uint32) (int64, bool, error)
	}
	fieldNumber uint32
	maxDoc      uint32
	q           *NumericRangeQuery
	boost       float64
	scored      bool
	curDoc      uint32
	started     bool
}

func (s *numericRangeScorer) DocID() uint32 { return s.curDoc }
func (s *numericRangeScorer) Cost() uint64  { return uint64(s.maxDoc) }

func (s *numericRangeScorer) inRange(v int64) bool {
	f := float64(v)
	if s.q.inclusiveMin {
		if f < s.q.min {
			return false
		}
	} else if f <= s.q.min {
		return false
	}
	if s.q.inclusiveMax {
		if f > s.q.max {
			return false
		}
	} else if f >= s.q.max {
		return false
	}
	return true
}

func (s *numericRangeScorer) NextDoc() (uint32, error) {
	target := s.curDoc + 1
	if !s.started {
		target = 0
	}
	return s.Advance(target)
}

func (s *numericRangeScorer) Advance(target uint32) (uint32, error) {
	if s.started && s.curDoc == noMoreDocs {
		return noMoreDocs, nil
	}
	s.started = true
	for d := target; d < s.maxDoc; d++ {
		v, ok, err := s.reader.Get(s.fieldNumber, d)
		if err != nil {
			return 0, err
		}
		if ok && s.inRange(v) {
			s.curDoc = d
			return d, nil
		}
	}
	s.curDoc = noMoreDocs
	return noMoreDocs, nil
}

func (s *numericRangeScorer) Score() (float64, error) {
	if !s.scored {
		return 0, nil
	}
	return s.boost, nil
}

func (s *numericRangeScorer) MaxScore(uptoDoc uint32) (float64, error) {
	if !s.scored {
		return 0, nil
	}
	return s.boost, nil
}
