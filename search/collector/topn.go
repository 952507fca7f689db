// Package collector implements top-K hit collection: a bounded min-heap
// over (score, doc_id) that also exposes its running threshold so a
// block-max WAND scorer can prune against it mid-search. Grounded on
// bluge/search/collector/topn.go's TopNCollector (container/heap storage,
// PreAllocSizeSkipCap guarding large-k allocations), collapsed from the
// teacher's pluggable multi-field sort order to the spec's fixed
// score-descending, doc-id-ascending-tiebreak order.
package collector

import "container/heap"

// preAllocSizeSkipCap bounds eager backing-array allocation for very large
// k, mirroring the teacher's own guard against a malicious/huge k blowing
// up memory before a single hit is collected.
const preAllocSizeSkipCap = 1000

// Hit is one collected (doc_id, score) pair.
type Hit struct {
	DocID uint32
	Score float64
}

type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }

// Less orders the heap so Pop removes the *worst* hit: lowest score first,
// ties broken by the *larger* doc-id (so the smaller doc-id survives a tie,
// per spec.md's "ties break by smaller doc-id").
func (h hitHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }

func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// TopScoreDocCollector is a bounded min-heap of size k over (score,
// doc_id). Collect inserts whenever the heap has room or the candidate
// beats the current worst kept hit; Threshold exposes the running k-th
// best score, the θ a WAND disjunction prunes against.
type TopScoreDocCollector struct {
	k    int
	h    hitHeap
	full bool
}

// NewTopScoreDocCollector returns a collector bounded to k hits.
func NewTopScoreDocCollector(k int) *TopScoreDocCollector {
	backing := k
	if backing > preAllocSizeSkipCap {
		backing = preAllocSizeSkipCap
	}
	return &TopScoreDocCollector{k: k, h: make(hitHeap, 0, backing)}
}

// Collect offers one (doc, score) pair to the heap.
func (c *TopScoreDocCollector) Collect(doc uint32, score float64) {
	if c.k <= 0 {
		return
	}
	if len(c.h) < c.k {
		heap.Push(&c.h, Hit{DocID: doc, Score: score})
		c.full = len(c.h) == c.k
		return
	}
	if score <= c.h[0].Score {
		return
	}
	c.h[0] = Hit{DocID: doc, Score: score}
	heap.Fix(&c.h, 0)
}

// Threshold returns the current k-th best score (0 until the heap fills),
// the θ block-max WAND compares its pivot sum against.
func (c *TopScoreDocCollector) Threshold() float64 {
	if !c.full || len(c.h) == 0 {
		return 0
	}
	return c.h[0].Score
}

// Full reports whether the collector already holds k hits, letting a
// caller decide whether Threshold is yet meaningful.
func (c *TopScoreDocCollector) Full() bool { return c.full }

// Results drains the heap into a score-descending, doc-id-ascending-tie
// ordered slice, plus the single highest score collected (0 if empty).
func (c *TopScoreDocCollector) Results() ([]Hit, float64) {
	n := len(c.h)
	out := make([]Hit, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(&c.h).(Hit)
	}
	var max float64
	if n > 0 {
		max = out[0].Score
	}
	return out, max
}
