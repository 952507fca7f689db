package search

// conjunctionScorer matches the intersection of every required scorer,
// leading advancement with the rarest (lowest-cost) clause and verifying
// the rest agree at each candidate doc. Grounded on spec.md §4.F's
// conjunction rule ("leads with rarest (by doc_freq cost)").
type conjunctionScorer struct {
	lead   Scorer
	others []Scorer
	all    []Scorer
	curDoc uint32
	started bool
}

func newConjunctionScorer(required []Scorer) (Scorer, error) {
	if len(required) == 1 {
		return required[0], nil
	}
	cp := make([]Scorer, len(required))
	copy(cp, required)
	sortByCost(cp)
	return &conjunctionScorer{lead: cp[0], others: cp[1:], all: cp}, nil
}

func (c *conjunctionScorer) DocID() uint32 { return c.curDoc }

func (c *conjunctionScorer) Cost() uint64 { return c.lead.Cost() }

func (c *conjunctionScorer) NextDoc() (uint32, error) {
	doc, err := c.lead.NextDoc()
	if err != nil || doc == noMoreDocs {
		c.curDoc = noMoreDocs
		return noMoreDocs, err
	}
	return c.doNext(doc)
}

func (c *conjunctionScorer) Advance(target uint32) (uint32, error) {
	doc, err := c.lead.Advance(target)
	if err != nil || doc == noMoreDocs {
		c.curDoc = noMoreDocs
		return noMoreDocs, err
	}
	return c.doNext(doc)
}

// doNext verifies every other required scorer also sits at doc, advancing
// whichever lags and restarting the lead from there when one doesn't.
func (c *conjunctionScorer) doNext(doc uint32) (uint32, error) {
	for {
		matched := true
		for _, s := range c.others {
			if s.DocID() < doc || s.DocID() == noMoreDocs {
				d, err := s.Advance(doc)
				if err != nil {
					return 0, err
				}
				if d != doc {
					matched = false
					ld, err := c.lead.Advance(d)
					if err != nil {
						return 0, err
					}
					if ld == noMoreDocs {
						c.curDoc = noMoreDocs
						return noMoreDocs, nil
					}
					doc = ld
					break
				}
			}
		}
		if matched {
			c.curDoc = doc
			return doc, nil
		}
	}
}

func (c *conjunctionScorer) Score() (float64, error) {
	var sum float64
	for _, s := range c.all {
		sc, err := s.Score()
		if err != nil {
			return 0, err
		}
		sum += sc
	}
	return sum, nil
}

func (c *conjunctionScorer) MaxScore(uptoDoc uint32) (float64, error) {
	var sum float64
	for _, s := range c.all {
		ms, err := s.MaxScore(uptoDoc)
		if err != nil {
			return 0, err
		}
		sum += ms
	}
	return sum, nil
}

// reqOptScorer wraps a required conjunction, adding any optional clauses'
// scores when they also happen to match the conjunction's current doc
// (SHOULD clauses never gate membership once a MUST/FILTER exists).
type reqOptScorer struct {
	required Scorer
	optional []Scorer
}

func (s *reqOptScorer) DocID() uint32 { return s.required.DocID() }
func (s *reqOptScorer) Cost() uint64  { return s.required.Cost() }

func (s *reqOptScorer) NextDoc() (uint32, error) { return s.required.NextDoc() }
func (s *reqOptScorer) Advance(target uint32) (uint32, error) {
	return s.required.Advance(target)
}

func (s *reqOptScorer) Score() (float64, error) {
	sum, err := s.required.Score()
	if err != nil {
		return 0, err
	}
	doc := s.required.DocID()
	for _, opt := range s.optional {
		if opt.DocID() < doc || opt.DocID() == noMoreDocs {
			if _, err := opt.Advance(doc); err != nil {
				return 0, err
			}
		}
		if opt.DocID() == doc {
			sc, err := opt.Score()
			if err != nil {
				return 0, err
			}
			sum += sc
		}
	}
	return sum, nil
}

func (s *reqOptScorer) MaxScore(uptoDoc uint32) (float64, error) {
	sum, err := s.required.MaxScore(uptoDoc)
	if err != nil {
		return 0, err
	}
	for _, opt := range s.optional {
		ms, err := opt.MaxScore(uptoDoc)
		if err != nil {
			return 0, err
		}
		sum += ms
	}
	return sum, nil
}

// prohibitedScorer filters core's matches against MUST_NOT clauses,
// skipping any doc where a prohibited scorer also matches.
type prohibitedScorer struct {
	core       Scorer
	prohibited []Scorer
}

func (s *prohibitedScorer) DocID() uint32 { return s.core.DocID() }
func (s *prohibitedScorer) Cost() uint64  { return s.core.Cost() }
func (s *prohibitedScorer) Score() (float64, error) { return s.core.Score() }
func (s *prohibitedScorer) MaxScore(uptoDoc uint32) (float64, error) {
	return s.core.MaxScore(uptoDoc)
}

func (s *prohibitedScorer) NextDoc() (uint32, error) {
	doc, err := s.core.NextDoc()
	if err != nil {
		return 0, err
	}
	return s.skipProhibited(doc)
}

func (s *prohibitedScorer) Advance(target uint32) (uint32, error) {
	doc, err := s.core.Advance(target)
	if err != nil {
		return 0, err
	}
	return s.skipProhibited(doc)
}

func (s *prohibitedScorer) skipProhibited(doc uint32) (uint32, error) {
	for doc != noMoreDocs {
		blocked := false
		for _, p := range s.prohibited {
			if p.DocID() < doc || p.DocID() == noMoreDocs {
				if _, err := p.Advance(doc); err != nil {
					return 0, err
				}
			}
			if p.DocID() == doc {
				blocked = true
				break
			}
		}
		if !blocked {
			return doc, nil
		}
		var err error
		doc, err = s.core.NextDoc()
		if err != nil {
			return 0, err
		}
	}
	return noMoreDocs, nil
}
