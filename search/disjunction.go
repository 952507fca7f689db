package search

// disjunctionScorer is the exhaustive (non-WAND) disjunction strategy: it
// always advances and scores every clause, used whenever ScoreMode is not
// top_scores or a MUST_NOT clause rules out WAND pruning. Grounded on
// bluge/search/searcher/search_disjunction_slice.go's linear scan over a
// small clause slice (as opposed to a heap), appropriate here since clause
// counts are small and block-max pruning is handled by WANDScorer instead.
type disjunctionScorer struct {
	scorers  []Scorer
	minMatch int
	curDoc   uint32
	matched  []Scorer // clauses positioned at curDoc, reused each call
	started  bool
}

func newDisjunctionScorer(scorers []Scorer, minMatch int) (Scorer, error) {
	if len(scorers) == 0 {
		return nil, nil
	}
	if minMatch < 1 {
		minMatch = 1
	}
	if len(scorers) == 1 && minMatch <= 1 {
		return scorers[0], nil
	}
	return &disjunctionScorer{scorers: scorers, minMatch: minMatch}, nil
}

func (d *disjunctionScorer) DocID() uint32 { return d.curDoc }

func (d *disjunctionScorer) Cost() uint64 {
	var sum uint64
	for _, s := range d.scorers {
		sum += s.Cost()
	}
	return sum
}

func (d *disjunctionScorer) NextDoc() (uint32, error) {
	target := d.curDoc + 1
	if !d.started {
		d.started = true
		target = 0
	}
	return d.advanceTo(target)
}

func (d *disjunctionScorer) Advance(target uint32) (uint32, error) {
	d.started = true
	return d.advanceTo(target)
}

func (d *disjunctionScorer) advanceTo(target uint32) (uint32, error) {
	for {
		min := noMoreDocs
		d.matched = d.matched[:0]
		for _, s := range d.scorers {
			doc := s.DocID()
			if doc < target || doc == noMoreDocs {
				var err error
				doc, err = s.Advance(target)
				if err != nil {
					return 0, err
				}
			}
			switch {
			case doc < min:
				min = doc
				d.matched = append(d.matched[:0], s)
			case doc == min:
				d.matched = append(d.matched, s)
			}
		}
		if min == noMoreDocs {
			d.curDoc = noMoreDocs
			return noMoreDocs, nil
		}
		if len(d.matched) >= d.minMatch {
			d.curDoc = min
			return min, nil
		}
		target = min + 1
	}
}

func (d *disjunctionScorer) Score() (float64, error) {
	var sum float64
	for _, s := range d.matched {
		sc, err := s.Score()
		if err != nil {
			return 0, err
		}
		sum += sc
	}
	return sum, nil
}

func (d *disjunctionScorer) MaxScore(uptoDoc uint32) (float64, error) {
	var sum float64
	for _, s := range d.scorers {
		ms, err := s.MaxScore(uptoDoc)
		if err != nil {
			return 0, err
		}
		sum += ms
	}
	return sum, nil
}
