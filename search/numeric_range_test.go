package search

import "testing"

func TestNumericRangeQueryInclusiveBounds(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	// popularity values are {10, 20, 5, 30, 1}; [5, 20] should match docs
	// 0 (10), 1 (20), 2 (5).
	q := NewNumericRangeInclusiveQuery(5, 20, true, true).SetField("popularity")
	top, err := s.Search(q, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := docIDs(top.Hits)
	if len(got) != 3 || !got[0] || !got[1] || !got[2] {
		t.Fatalf("expected docs {0,1,2}, got %+v", top.Hits)
	}
}

func TestNumericRangeQueryExclusiveBounds(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	// Exclusive on both ends: (5, 20) excludes the boundary docs 1 (20)
	// and 2 (5), leaving only doc 0 (10).
	q := NewNumericRangeInclusiveQuery(5, 20, false, false).SetField("popularity")
	top, err := s.Search(q, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := docIDs(top.Hits)
	if len(got) != 1 || !got[0] {
		t.Fatalf("expected only doc 0, got %+v", top.Hits)
	}
}

func TestNumericRangeQueryConstantScore(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	q := NewNumericRangeQuery(0, 100).SetField("popularity")
	top, err := s.Search(q, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if top.TotalHits != uint64(len(sampleDocs)) {
		t.Fatalf("expected all %d docs in range, got %d", len(sampleDocs), top.TotalHits)
	}
	for _, h := range top.Hits {
		if h.Score != 1.0 {
			t.Fatalf("expected constant score 1.0, got %f for doc %d", h.Score, h.DocID)
		}
	}
}
