package search

import (
	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/search/collector"
	"github.com/model-collapse/diagon-sub000/search/similarity"
)

// ScoreDoc is one ranked hit: a global doc-id (leaf doc-id + leaf's
// doc_base) and its final score.
type ScoreDoc struct {
	DocID uint32
	Score float64
}

// TopDocs is a ranked search result, grounded on bluge's search.DocumentMatchCollection
// plus the aggregate total/max-score fields spec.md §4.G's IndexSearcher.Search
// return tuple names explicitly.
type TopDocs struct {
	TotalHits uint64
	Hits      []ScoreDoc
	MaxScore  float64
}

// IndexSearcher binds one DirectoryReader to a similarity model and drives
// query rewrite/weight-creation/per-leaf scoring. Grounded on bluge's
// top-level Reader.Search, generalized to the explicit rewrite/
// create_weight/leaves-loop pipeline spec.md §4.G describes.
type IndexSearcher struct {
	reader *index.DirectoryReader
	sim    *similarity.BM25
}

// NewSearcher opens a searcher over reader using the default BM25 tuning.
func NewSearcher(reader *index.DirectoryReader) *IndexSearcher {
	return &IndexSearcher{reader: reader, sim: similarity.NewBM25()}
}

func (s *IndexSearcher) Reader() *index.DirectoryReader { return s.reader }
func (s *IndexSearcher) Similarity() *similarity.BM25    { return s.sim }

// NumDocs is the collection-wide live document count, the N in BM25's idf.
func (s *IndexSearcher) NumDocs() uint64 { return uint64(s.reader.NumDocs()) }

// DocFreq sums fieldName/term's document frequency across every leaf,
// the collection-wide statistic idf needs. Grounded on bluge's
// Reader.CollectionStats aggregate.
func (s *IndexSearcher) DocFreq(fieldName string, term []byte) (uint64, error) {
	var total uint64
	for _, leaf := range s.reader.Leaves() {
		td, err := leaf.Reader.Terms(fieldName)
		if err != nil {
			return 0, err
		}
		if td == nil {
			continue
		}
		entry, ok, err := td.SeekExact(term)
		if err != nil {
			return 0, err
		}
		if ok {
			total += entry.DocFreq
		}
	}
	return total, nil
}

// AverageFieldLength returns fieldName's collection-wide average tokenized
// length, a docCount-weighted mean of each leaf's persisted FieldStat.
func (s *IndexSearcher) AverageFieldLength(fieldName string) float64 {
	var totalLen, totalDocs float64
	for _, leaf := range s.reader.Leaves() {
		stat, ok := leaf.Reader.Info().FieldStats[fieldName]
		if !ok || stat.DocCount == 0 {
			continue
		}
		totalLen += stat.AvgLen * float64(stat.DocCount)
		totalDocs += float64(stat.DocCount)
	}
	if totalDocs == 0 {
		return 1
	}
	return totalLen / totalDocs
}

// LeafAverageFieldLength prefers a leaf's own persisted average (each
// segment's BM25 block-max metadata was precomputed against it), falling
// back to the collection-wide figure for a field absent from this leaf.
func LeafAverageFieldLength(leaf index.LeafReader, fieldName string, collectionAvg float64) float64 {
	if stat, ok := leaf.Reader.Info().FieldStats[fieldName]; ok && stat.DocCount > 0 {
		return stat.AvgLen
	}
	return collectionAvg
}

// Search runs query against every leaf, merging hits into a global top-k.
// Flow mirrors spec.md §4.G precisely: rewrite, create_weight(top_scores),
// per-leaf scorer seeded with the current global threshold, doc-ids offset
// by leaf.DocBase on merge.
func (s *IndexSearcher) Search(q Query, k int) (*TopDocs, error) {
	rq, err := q.Rewrite(s)
	if err != nil {
		return nil, err
	}
	w, err := rq.CreateWeight(s, ScoreModeTopScores, 1.0)
	if err != nil {
		return nil, err
	}
	global := collector.NewTopScoreDocCollector(k)
	var totalHits uint64
	for _, leaf := range s.reader.Leaves() {
		scorer, err := w.Scorer(leaf)
		if err != nil {
			return nil, err
		}
		if scorer == nil {
			continue
		}
		setter, prunable := scorer.(ThresholdSetter)
		live := leaf.Reader.LiveDocs()
		if prunable {
			setter.SetThreshold(global.Threshold())
		}
		doc, err := scorer.NextDoc()
		for ; doc != codec.NoMoreDocs; doc, err = scorer.NextDoc() {
			if err != nil {
				return nil, err
			}
			if live != nil && !live.Get(doc) {
				continue
			}
			totalHits++
			score, err := scorer.Score()
			if err != nil {
				return nil, err
			}
			global.Collect(doc+leaf.DocBase, score)
			if prunable {
				setter.SetThreshold(global.Threshold())
			}
		}
		if err != nil {
			return nil, err
		}
	}
	rawHits, maxScore := global.Results()
	hits := make([]ScoreDoc, len(rawHits))
	for i, h := range rawHits {
		hits[i] = ScoreDoc{DocID: h.DocID, Score: h.Score}
	}
	return &TopDocs{TotalHits: totalHits, Hits: hits, MaxScore: maxScore}, nil
}

// Count returns the number of matching documents without scoring: it
// iterates every leaf's count_only scorer and counts the live docs it
// yields. No query kind is answered from summed doc_freq; term and range
// queries are walked the same way as any other query.
func (s *IndexSearcher) Count(q Query) (uint64, error) {
	rq, err := q.Rewrite(s)
	if err != nil {
		return 0, err
	}
	w, err := rq.CreateWeight(s, ScoreModeCountOnly, 1.0)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, leaf := range s.reader.Leaves() {
		scorer, err := w.Scorer(leaf)
		if err != nil {
			return 0, err
		}
		if scorer == nil {
			continue
		}
		live := leaf.Reader.LiveDocs()
		doc, err := scorer.NextDoc()
		for ; doc != codec.NoMoreDocs; doc, err = scorer.NextDoc() {
			if err != nil {
				return 0, err
			}
			if live == nil || live.Get(doc) {
				total++
			}
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
