package search

import "testing"

func docIDs(hits []ScoreDoc) map[uint32]bool {
	m := make(map[uint32]bool, len(hits))
	for _, h := range hits {
		m[h.DocID] = true
	}
	return m
}

func TestBooleanMustRequiresAllClauses(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	bq := NewBooleanQuery().
		AddMust(NewTermQuery("brown").SetField("body")).
		AddMust(NewTermQuery("dog").SetField("body"))

	top, err := s.Search(bq, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// "brown" appears in docs 0 and 4, "dog" in docs 0, 1, 4; the
	// intersection is {0, 4}.
	got := docIDs(top.Hits)
	if len(got) != 2 || !got[0] || !got[4] {
		t.Fatalf("expected docs {0,4}, got %+v", top.Hits)
	}
}

func TestBooleanShouldIsUnionOfClauses(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	bq := NewBooleanQuery().
		AddShould(NewTermQuery("cats").SetField("body")).
		AddShould(NewTermQuery("sleeps").SetField("body"))

	top, err := s.Search(bq, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := docIDs(top.Hits)
	if len(got) != 2 || !got[1] || !got[3] {
		t.Fatalf("expected docs {1,3}, got %+v", top.Hits)
	}
}

func TestBooleanMustNotExcludesMatches(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	bq := NewBooleanQuery().
		AddMust(NewTermQuery("fox").SetField("body")).
		AddMustNot(NewTermQuery("lazy").SetField("body"))

	top, err := s.Search(bq, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// "fox" is in docs 0, 2, 4; "lazy" is in doc 0, which must be excluded.
	got := docIDs(top.Hits)
	if got[0] {
		t.Fatalf("doc 0 should have been excluded by MUST_NOT, got %+v", top.Hits)
	}
	if !got[2] || !got[4] {
		t.Fatalf("expected docs {2,4} present, got %+v", top.Hits)
	}
}

func TestBooleanEmptyRewritesToMatchNone(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	top, err := s.Search(NewBooleanQuery(), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if top.TotalHits != 0 {
		t.Fatalf("expected an empty BooleanQuery to match nothing, got %d hits", top.TotalHits)
	}
}

func TestBooleanSingleClauseCollapses(t *testing.T) {
	s := buildSearcher(t, sampleDocs)

	direct, err := s.Search(NewTermQuery("fox").SetField("body"), 10)
	if err != nil {
		t.Fatalf("Search direct: %v", err)
	}
	wrapped, err := s.Search(NewBooleanQuery().AddMust(NewTermQuery("fox").SetField("body")), 10)
	if err != nil {
		t.Fatalf("Search wrapped: %v", err)
	}
	if direct.TotalHits != wrapped.TotalHits {
		t.Fatalf("single-clause BooleanQuery disagreed with its bare clause: %d vs %d",
			wrapped.TotalHits, direct.TotalHits)
	}
}
