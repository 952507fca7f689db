package search

import "testing"

func TestPhraseQueryRequiresAdjacentOrder(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	pq := NewPhraseQuery().SetField("body")
	pq.AddTerm("brown")
	pq.AddTerm("fox")

	top, err := s.Search(pq, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// "brown fox" appears adjacently in doc 0; doc 4 has "brown fox" too
	// ("the brown fox and the brown dog"). Neither doc has "fox brown".
	got := docIDs(top.Hits)
	if !got[0] || !got[4] {
		t.Fatalf("expected docs {0,4} to match phrase 'brown fox', got %+v", top.Hits)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 matches, got %+v", top.Hits)
	}
}

func TestPhraseQueryRejectsOutOfOrderTerms(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	pq := NewPhraseQuery().SetField("body")
	pq.AddTerm("fox")
	pq.AddTerm("brown")

	top, err := s.Search(pq, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if top.TotalHits != 0 {
		t.Fatalf("expected 'fox brown' to match nothing, got %+v", top.Hits)
	}
}

func TestPhraseQuerySingleTermCollapsesToTermQuery(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	pq := NewPhraseQuery().SetField("body")
	pq.AddTerm("lazy")

	phraseTop, err := s.Search(pq, 10)
	if err != nil {
		t.Fatalf("Search phrase: %v", err)
	}
	termTop, err := s.Search(NewTermQuery("lazy").SetField("body"), 10)
	if err != nil {
		t.Fatalf("Search term: %v", err)
	}
	if phraseTop.TotalHits != termTop.TotalHits {
		t.Fatalf("single-term phrase disagreed with plain TermQuery: %d vs %d",
			phraseTop.TotalHits, termTop.TotalHits)
	}
}
