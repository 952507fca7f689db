package search

import (
	"math"
	"sort"
	"testing"
)

// referenceTopK runs q to completion with no WAND pruning (ScoreModeComplete
// never selects the WAND disjunction strategy, per booleanWeight.Scorer) and
// returns its own top-k by score, descending, doc-id ascending on ties —
// the same order TopScoreDocCollector imposes.
func referenceTopK(t *testing.T, s *IndexSearcher, q Query, k int) []ScoreDoc {
	t.Helper()
	rq, err := q.Rewrite(s)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	w, err := rq.CreateWeight(s, ScoreModeComplete, 1.0)
	if err != nil {
		t.Fatalf("CreateWeight: %v", err)
	}
	var all []ScoreDoc
	for _, leaf := range s.Reader().Leaves() {
		scorer, err := w.Scorer(leaf)
		if err != nil {
			t.Fatalf("Scorer: %v", err)
		}
		if scorer == nil {
			continue
		}
		live := leaf.Reader.LiveDocs()
		doc, err := scorer.NextDoc()
		for ; doc != noMoreDocs; doc, err = scorer.NextDoc() {
			if err != nil {
				t.Fatalf("NextDoc: %v", err)
			}
			if live != nil && !live.Get(doc) {
				continue
			}
			score, err := scorer.Score()
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			all = append(all, ScoreDoc{DocID: doc + leaf.DocBase, Score: score})
		}
		if err != nil {
			t.Fatalf("NextDoc: %v", err)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].DocID < all[j].DocID
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func TestWANDTopScoresMatchesExhaustiveReference(t *testing.T) {
	docs := append([]testDoc{}, sampleDocs...)
	docs = append(docs,
		testDoc{body: "fox fox fox quick quick lazy", popularity: 7},
		testDoc{body: "a short fox document", popularity: 8},
		testDoc{body: "no matching terms whatsoever here", popularity: 9},
		testDoc{body: "lazy lazy lazy brown brown", popularity: 11},
		testDoc{body: "dog dog fox fox brown brown quick quick lazy lazy", popularity: 12},
	)
	s := buildSearcher(t, docs)

	bq := NewBooleanQuery().
		AddShould(NewTermQuery("fox").SetField("body")).
		AddShould(NewTermQuery("quick").SetField("body")).
		AddShould(NewTermQuery("lazy").SetField("body")).
		AddShould(NewTermQuery("brown").SetField("body"))

	const k = 4
	top, err := s.Search(bq, k)
	if err != nil {
		t.Fatalf("Search (WAND): %v", err)
	}
	want := referenceTopK(t, s, bq, k)

	if len(top.Hits) != len(want) {
		t.Fatalf("hit count mismatch: WAND=%d reference=%d (wand=%+v reference=%+v)",
			len(top.Hits), len(want), top.Hits, want)
	}
	for i := range want {
		got := top.Hits[i]
		if got.DocID != want[i].DocID {
			t.Fatalf("rank %d doc mismatch: WAND=%d reference=%d", i, got.DocID, want[i].DocID)
		}
		if math.Abs(got.Score-want[i].Score) > 1e-9 {
			t.Fatalf("rank %d score mismatch: WAND=%f reference=%f", i, got.Score, want[i].Score)
		}
	}
}
