package search

import "sort"

// ThresholdSetter is implemented by scorers that can prune against a
// running top-K threshold. IndexSearcher.Search feeds the collector's
// current θ into the leaf scorer before each advance when it implements
// this interface.
type ThresholdSetter interface {
	SetThreshold(theta float64)
}

// blockBounded is implemented by scorers whose current skip block has a
// known end doc-id, letting WANDScorer pick the cheapest clause to advance
// past a non-competitive block.
type blockBounded interface {
	BlockEnd() uint32
}

// WANDScorer is the block-max WAND disjunction: maintains the k-th best
// score collected so far as a threshold θ, and skips documents and whole
// posting blocks whose scorers' block-max upper bounds can never reach θ.
// This is new code with no teacher equivalent — bluge's disjunction
// searchers are exhaustive heap/slice merges with no block-max pruning at
// all — built directly from spec.md §4.F's pivot-selection algorithm:
//
//  1. sort active scorers by current doc-id;
//  2. accumulate block-max scores in that order until the running sum
//     first exceeds θ — the scorer at that point is the pivot;
//  3. if every scorer up to and including the pivot shares the pivot's
//     doc-id, it is a real candidate: score them all;
//  4. otherwise advance one of the earlier scorers (whichever's block ends
//     soonest) to at least the pivot doc, and repeat;
//  5. if no prefix sum ever exceeds θ, nothing at or before the last
//     active scorer's doc can compete: skip past it entirely.
type WANDScorer struct {
	scorers  []Scorer
	minMatch int
	theta    float64

	curDoc   uint32
	curScore float64
	started  bool

	active []Scorer // scratch, reused across findNext calls
}

func newWANDScorer(scorers []Scorer, minMatch int) (Scorer, error) {
	if len(scorers) == 0 {
		return nil, nil
	}
	if minMatch < 1 {
		minMatch = 1
	}
	if len(scorers) == 1 && minMatch <= 1 {
		return scorers[0], nil
	}
	return &WANDScorer{scorers: scorers, minMatch: minMatch}, nil
}

func (w *WANDScorer) SetThreshold(theta float64) { w.theta = theta }

func (w *WANDScorer) DocID() uint32 { return w.curDoc }

func (w *WANDScorer) Score() (float64, error) { return w.curScore, nil }

func (w *WANDScorer) Cost() uint64 {
	var sum uint64
	for _, s := range w.scorers {
		sum += s.Cost()
	}
	return sum
}

func (w *WANDScorer) MaxScore(uptoDoc uint32) (float64, error) {
	var sum float64
	for _, s := range w.scorers {
		ms, err := s.MaxScore(uptoDoc)
		if err != nil {
			return 0, err
		}
		sum += ms
	}
	return sum, nil
}

func (w *WANDScorer) NextDoc() (uint32, error) {
	target := w.curDoc + 1
	if !w.started {
		w.started = true
		target = 0
	}
	return w.findNext(target)
}

func (w *WANDScorer) Advance(target uint32) (uint32, error) {
	w.started = true
	return w.findNext(target)
}

func (w *WANDScorer) findNext(target uint32) (uint32, error) {
	for {
		for _, s := range w.scorers {
			if s.DocID() < target || s.DocID() == noMoreDocs {
				if _, err := s.Advance(target); err != nil {
					return 0, err
				}
			}
		}

		w.active = w.active[:0]
		for _, s := range w.scorers {
			if s.DocID() != noMoreDocs {
				w.active = append(w.active, s)
			}
		}
		if len(w.active) < w.minMatch {
			w.curDoc = noMoreDocs
			return noMoreDocs, nil
		}
		sort.Slice(w.active, func(i, j int) bool { return w.active[i].DocID() < w.active[j].DocID() })

		pivot := -1
		var sum float64
		for i, s := range w.active {
			ms, err := s.MaxScore(s.DocID())
			if err != nil {
				return 0, err
			}
			sum += ms
			if sum > w.theta {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			// no prefix ever beats θ: everything up to the last active
			// scorer's doc is non-competitive, skip past it entirely.
			target = w.active[len(w.active)-1].DocID() + 1
			continue
		}

		pivotDoc := w.active[pivot].DocID()
		allAtPivot := true
		for i := 0; i <= pivot; i++ {
			if w.active[i].DocID() != pivotDoc {
				allAtPivot = false
				break
			}
		}
		if allAtPivot {
			matchCount := 0
			var scoreSum float64
			for _, s := range w.active {
				if s.DocID() == pivotDoc {
					matchCount++
					sc, err := s.Score()
					if err != nil {
						return 0, err
					}
					scoreSum += sc
				}
			}
			if matchCount >= w.minMatch {
				w.curDoc = pivotDoc
				w.curScore = scoreSum
				return pivotDoc, nil
			}
			target = pivotDoc + 1
			continue
		}

		// advance whichever earlier scorer's current block ends soonest
		best := 0
		bestEnd := blockEndOf(w.active[0])
		for i := 1; i < pivot; i++ {
			if e := blockEndOf(w.active[i]); e < bestEnd {
				bestEnd = e
				best = i
			}
		}
		if _, err := w.active[best].Advance(pivotDoc); err != nil {
			return 0, err
		}
		// target unchanged: the next loop iteration re-checks every
		// scorer against it, including the one just advanced.
	}
}

func blockEndOf(s Scorer) uint32 {
	if bb, ok := s.(blockBounded); ok {
		return bb.BlockEnd()
	}
	return noMoreDocs
}
