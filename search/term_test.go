package search

import "testing"

func TestTermQueryMatchesExpectedDocs(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	top, err := s.Search(NewTermQuery("lazy").SetField("body"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if top.TotalHits != 2 {
		t.Fatalf("expected 2 hits for 'lazy', got %d", top.TotalHits)
	}
	for _, h := range top.Hits {
		if h.DocID != 0 && h.DocID != 1 {
			t.Fatalf("unexpected doc %d matched 'lazy'", h.DocID)
		}
	}
}

func TestTermQueryAbsentTermMatchesNothing(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	top, err := s.Search(NewTermQuery("xyzzy").SetField("body"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if top.TotalHits != 0 || len(top.Hits) != 0 {
		t.Fatalf("expected no hits, got %+v", top)
	}
}

func TestTermQueryHigherFreqScoresHigher(t *testing.T) {
	// doc 2 ("quick quick quick fox fox") repeats "quick" three times in a
	// short document; doc 0 mentions it once in a longer document, so BM25
	// should rank doc 2 first.
	s := buildSearcher(t, sampleDocs)

	top, err := s.Search(NewTermQuery("quick").SetField("body"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(top.Hits) < 2 {
		t.Fatalf("expected at least 2 hits, got %d", len(top.Hits))
	}
	if top.Hits[0].DocID != 2 {
		t.Fatalf("expected doc 2 to rank first for 'quick', got doc %d (hits=%+v)", top.Hits[0].DocID, top.Hits)
	}
}

func TestCountMatchesSearchTotalHits(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	q := NewTermQuery("fox").SetField("body")
	top, err := s.Search(q, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	count, err := s.Count(q)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != top.TotalHits {
		t.Fatalf("Count()=%d disagrees with Search().TotalHits=%d", count, top.TotalHits)
	}
}
