package collector

import "testing"

func TestTopScoreDocCollectorKeepsHighestScores(t *testing.T) {
	c := NewTopScoreDocCollector(3)
	c.Collect(1, 5.0)
	c.Collect(2, 9.0)
	c.Collect(3, 1.0)
	c.Collect(4, 7.0)
	c.Collect(5, 2.0)

	hits, max := c.Results()
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if max != 9.0 {
		t.Fatalf("expected max score 9.0, got %f", max)
	}
	wantOrder := []uint32{2, 4, 1}
	for i, h := range hits {
		if h.DocID != wantOrder[i] {
			t.Fatalf("hit %d: expected doc %d, got %d (hits=%+v)", i, wantOrder[i], h.DocID, hits)
		}
	}
}

func TestTopScoreDocCollectorFewerThanK(t *testing.T) {
	c := NewTopScoreDocCollector(10)
	c.Collect(1, 3.0)
	c.Collect(2, 1.0)

	hits, max := c.Results()
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if max != 3.0 {
		t.Fatalf("expected max 3.0, got %f", max)
	}
	if c.Full() {
		t.Fatalf("collector with k=10 and 2 inserts should not report full")
	}
}

func TestTopScoreDocCollectorThresholdOnlyMeaningfulWhenFull(t *testing.T) {
	c := NewTopScoreDocCollector(2)
	if th := c.Threshold(); th != 0 {
		t.Fatalf("expected zero threshold before any collection, got %f", th)
	}
	c.Collect(1, 4.0)
	if c.Full() {
		t.Fatalf("collector should not be full after 1 of 2 inserts")
	}
	c.Collect(2, 6.0)
	if !c.Full() {
		t.Fatalf("collector should be full after 2 of 2 inserts")
	}
	if th := c.Threshold(); th != 4.0 {
		t.Fatalf("expected threshold to be the worst kept score (4.0), got %f", th)
	}
	c.Collect(3, 10.0)
	if th := c.Threshold(); th != 6.0 {
		t.Fatalf("expected threshold to rise to 6.0 after evicting the worst hit, got %f", th)
	}
}

func TestTopScoreDocCollectorZeroK(t *testing.T) {
	c := NewTopScoreDocCollector(0)
	c.Collect(1, 5.0)
	hits, max := c.Results()
	if len(hits) != 0 || max != 0 {
		t.Fatalf("expected no hits for k=0, got hits=%+v max=%f", hits, max)
	}
}
