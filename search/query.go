// Package search implements the query tree, scorers, and top-K collection
// that evaluate queries against an index.DirectoryReader: term, Boolean,
// phrase, and numeric-range queries rewriting to per-segment Scorers, BM25
// similarity, and block-max WAND disjunction pruning.
package search

import "github.com/model-collapse/diagon-sub000/index"

// ScoreMode selects how much scoring work a query's Scorers must do,
// grounded on bluge/search.ScoreMode (Min/Max/ScoreMode constants there
// serve the same gating role for skipping unneeded similarity math).
type ScoreMode int

const (
	// ScoreModeComplete collects every matching doc and scores it; no
	// pruning is permitted since every score must be exact and final.
	ScoreModeComplete ScoreMode = iota
	// ScoreModeTopScores permits WAND-style pruning: only the top-K by
	// score need ever be scored exactly, so non-competitive documents and
	// whole posting blocks may be skipped.
	ScoreModeTopScores
	// ScoreModeCountOnly never computes a score at all, only doc-ids.
	ScoreModeCountOnly
)

func (m ScoreMode) needsScores() bool { return m != ScoreModeCountOnly }

// Occur classifies a BooleanQuery clause, grounded on bluge/query.go's
// querySlice Must/Should/MustNot/Filter composition.
type Occur int

const (
	Must Occur = iota
	Should
	MustNot
	Filter
)

// Query is an immutable tree node. Rewrite canonicalizes a query before
// weight creation (collapsing single-clause BooleanQuery to its clause,
// single-term PhraseQuery to a TermQuery, and so on); CreateWeight binds
// the query to a concrete IndexSearcher and ScoreMode, producing a Weight
// that can build a per-leaf Scorer. Grounded on bluge's query.go/Query
// interface (Query.SearchGoals/Query.Searcher) generalized to the explicit
// rewrite/create_weight split spec names.
type Query interface {
	Rewrite(searcher *IndexSearcher) (Query, error)
	CreateWeight(searcher *IndexSearcher, mode ScoreMode, boost float64) (Weight, error)
	String() string
}

// Weight is a query bound to one searcher/score-mode/boost; it can open a
// Scorer over any leaf of that searcher's reader and report a
// collection-wide document frequency estimate.
type Weight interface {
	Scorer(leaf index.LeafReader) (Scorer, error)
	// DocFreq returns the clause's collection-wide document frequency
	// estimate. Conjunction ordering does not use it: required clauses are
	// sorted by each leaf Scorer's Cost.
	DocFreq() uint64
}

// Scorer is a pull iterator of matching doc-ids within one leaf, extended
// with score() and, for WAND, a block-level score upper bound. Grounded on
// bluge/search.DocumentMatchIterator plus the PostingsEnum block-max API
// codec.PostingsEnum already exposes for term scorers.
type Scorer interface {
	DocID() uint32
	NextDoc() (uint32, error)
	Advance(target uint32) (uint32, error)
	Score() (float64, error)
	// MaxScore returns an upper bound on this scorer's score for any
	// doc-id <= uptoDoc, used by WAND's pivot selection. Scorers that
	// cannot cheaply bound their score (e.g. a phrase scorer) may return
	// +Inf, which simply disables pruning for that clause.
	MaxScore(uptoDoc uint32) (float64, error)
	// Cost estimates remaining matching docs, used to order conjunctions.
	Cost() uint64
}

const noMoreDocs = ^uint32(0)
