package search

import "github.com/model-collapse/diagon-sub000/index"

// MatchNoneQuery matches nothing; an empty BooleanQuery rewrites to this.
type MatchNoneQuery struct{}

func (q *MatchNoneQuery) String() string { return "match_none" }

func (q *MatchNoneQuery) Rewrite(searcher *IndexSearcher) (Query, error) { return q, nil }

func (q *MatchNoneQuery) CreateWeight(searcher *IndexSearcher, mode ScoreMode, boost float64) (Weight, error) {
	return matchNoneWeight{}, nil
}

type matchNoneWeight struct{}

func (matchNoneWeight) DocFreq() uint64 { return 0 }
func (matchNoneWeight) Scorer(leaf index.LeafReader) (Scorer, error) { return nil, nil }
