package search

import (
	"sort"

	"github.com/model-collapse/diagon-sub000/index"
)

// BooleanClause pairs a sub-query with how it participates in the match.
type BooleanClause struct {
	Query Query
	Occur Occur
}

// BooleanQuery composes clauses with MUST/SHOULD/MUST_NOT/FILTER
// semantics, grounded on bluge/query.go's BooleanQuery builder
// (AddMust/AddShould/AddMustNot/AddFilter, SetMinShould).
type BooleanQuery struct {
	clauses       []BooleanClause
	minShouldMatch int
	boost         float64
}

// NewBooleanQuery returns an empty builder.
func NewBooleanQuery() *BooleanQuery {
	return &BooleanQuery{boost: 1.0, minShouldMatch: 1}
}

func (q *BooleanQuery) AddMust(sub Query) *BooleanQuery {
	q.clauses = append(q.clauses, BooleanClause{Query: sub, Occur: Must})
	return q
}
func (q *BooleanQuery) AddShould(sub Query) *BooleanQuery {
	q.clauses = append(q.clauses, BooleanClause{Query: sub, Occur: Should})
	return q
}
func (q *BooleanQuery) AddMustNot(sub Query) *BooleanQuery {
	q.clauses = append(q.clauses, BooleanClause{Query: sub, Occur: MustNot})
	return q
}
func (q *BooleanQuery) AddFilter(sub Query) *BooleanQuery {
	q.clauses = append(q.clauses, BooleanClause{Query: sub, Occur: Filter})
	return q
}

// SetMinShould sets the minimum number of SHOULD clauses a document must
// satisfy when no MUST/FILTER clause is present (ignored, per standard
// Boolean-query semantics, once any MUST/FILTER clause exists — SHOULD
// clauses only contribute extra score in that case).
func (q *BooleanQuery) SetMinShould(n int) *BooleanQuery { q.minShouldMatch = n; return q }

func (q *BooleanQuery) SetBoost(b float64) *BooleanQuery { q.boost = b; return q }

func (q *BooleanQuery) Clauses() []BooleanClause { return q.clauses }

func (q *BooleanQuery) String() string { return "boolean" }

// Rewrite canonicalizes: a single-clause BooleanQuery collapses to its
// clause (MUST/SHOULD/FILTER only — a lone MUST_NOT has no meaning alone
// and is left as-is, matching nothing), an empty BooleanQuery becomes
// MatchNone, per spec.md §4.F.
func (q *BooleanQuery) Rewrite(searcher *IndexSearcher) (Query, error) {
	if len(q.clauses) == 0 {
		return &MatchNoneQuery{}, nil
	}
	if len(q.clauses) == 1 && q.clauses[0].Occur != MustNot {
		return q.clauses[0].Query.Rewrite(searcher)
	}
	rewritten := make([]BooleanClause, len(q.clauses))
	for i, c := range q.clauses {
		sub, err := c.Query.Rewrite(searcher)
		if err != nil {
			return nil, err
		}
		rewritten[i] = BooleanClause{Query: sub, Occur: c.Occur}
	}
	cp := &BooleanQuery{clauses: rewritten, minShouldMatch: q.minShouldMatch, boost: q.boost}
	return cp, nil
}

func (q *BooleanQuery) CreateWeight(searcher *IndexSearcher, mode ScoreMode, boost float64) (Weight, error) {
	bw := &booleanWeight{mode: mode, minShouldMatch: q.minShouldMatch}
	for _, c := range q.clauses {
		subMode := mode
		if c.Occur == Filter || c.Occur == MustNot {
			// filter/prohibited clauses only ever gate membership; never
			// spend similarity work scoring them.
			subMode = ScoreModeCountOnly
		}
		w, err := c.Query.CreateWeight(searcher, subMode, boost*q.boost)
		if err != nil {
			return nil, err
		}
		bw.clauses = append(bw.clauses, weightedClause{weight: w, occur: c.Occur})
	}
	return bw, nil
}

type weightedClause struct {
	weight Weight
	occur  Occur
}

type booleanWeight struct {
	clauses        []weightedClause
	mode           ScoreMode
	minShouldMatch int
}

// DocFreq approximates a composite clause's selectivity by the smallest
// DocFreq among its non-MUST_NOT sub-clauses, required and optional alike.
func (w *booleanWeight) DocFreq() uint64 {
	var best uint64 = ^uint64(0)
	for _, c := range w.clauses {
		if c.occur == MustNot {
			continue
		}
		if df := c.weight.DocFreq(); df < best {
			best = df
		}
	}
	if best == ^uint64(0) {
		return 0
	}
	return best
}

func (w *booleanWeight) Scorer(leaf index.LeafReader) (Scorer, error) {
	var required, optional, prohibited []Scorer
	for _, c := range w.clauses {
		s, err := c.weight.Scorer(leaf)
		if err != nil {
			return nil, err
		}
		switch c.occur {
		case Must, Filter:
			if s == nil {
				return nil, nil // a required clause with no matches kills the whole conjunction
			}
			required = append(required, s)
		case Should:
			if s != nil {
				optional = append(optional, s)
			}
		case MustNot:
			if s != nil {
				prohibited = append(prohibited, s)
			}
		}
	}

	if len(required) == 0 && len(optional) == 0 {
		return nil, nil
	}

	var core Scorer
	var err error
	switch {
	case len(required) > 0 && len(optional) == 0:
		core, err = newConjunctionScorer(required)
	case len(required) == 0:
		if w.mode == ScoreModeTopScores && len(prohibited) == 0 {
			core, err = newWANDScorer(optional, w.minShouldMatch)
		} else {
			core, err = newDisjunctionScorer(optional, w.minShouldMatch)
		}
	default:
		// required AND optional: optional clauses only add score, they
		// never gate membership, so the conjunction alone drives
		// iteration; wrap it to also sum any matching optional scores.
		conj, cerr := newConjunctionScorer(required)
		if cerr != nil {
			return nil, cerr
		}
		core = &reqOptScorer{required: conj, optional: optional}
	}
	if err != nil || core == nil {
		return core, err
	}
	if len(prohibited) == 0 {
		return core, nil
	}
	return &prohibitedScorer{core: core, prohibited: prohibited}, nil
}

// sortByCost orders scorers ascending by estimated remaining doc count, so
// a conjunction advances the rarest (cheapest-to-exhaust) term first, per
// spec.md §4.F ("conjunction leads with rarest (by doc_freq cost)").
func sortByCost(scorers []Scorer) {
	sort.Slice(scorers, func(i, j int) bool { return scorers[i].Cost() < scorers[j].Cost() })
}
