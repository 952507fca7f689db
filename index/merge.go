package index

import (
	"bytes"
	"sort"

	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/store"
)

// smallestSegments returns the n segments with the fewest live docs, the
// greedy "merge the smallest first" policy spec.md §4.C names for
// force_merge. Returned in ascending live-doc-count order, which is also
// the order mergeSegments lays out the merged doc-id ranges in.
func smallestSegments(all []*codec.SegmentInfo, n int) []*codec.SegmentInfo {
	cp := append([]*codec.SegmentInfo(nil), all...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].NumDocs() < cp[j].NumDocs() })
	if n > len(cp) {
		n = len(cp)
	}
	return cp[:n]
}

// replaceSegments returns all with every segment in victims removed and
// merged appended.
func replaceSegments(all, victims []*codec.SegmentInfo, merged *codec.SegmentInfo) []*codec.SegmentInfo {
	victimNames := make(map[string]bool, len(victims))
	for _, v := range victims {
		victimNames[v.Name] = true
	}
	out := make([]*codec.SegmentInfo, 0, len(all)-len(victims)+1)
	for _, si := range all {
		if !victimNames[si.Name] {
			out = append(out, si)
		}
	}
	return append(out, merged)
}

const sentinelDocID = ^uint32(0)

// mergeInput is one victim segment's opened reader plus its old->new doc-id
// remap (sentinelDocID for a doc that was deleted and so drops out of the
// merged segment entirely).
type mergeInput struct {
	sr     *SegmentReader
	remap  []uint32
	docsIn int
}

// mergeSegments combines victims into a single new segment named newName,
// compacting away deleted docs and renumbering the survivors densely from
// zero, per spec.md §4.C's force_merge algorithm. Grounded on bluge's own
// merge path (index/scorch-equivalent segment merge in
// github.com/blugelabs/bluge/merge.go): read every surviving posting back
// out through the reader side, remap doc-ids, and re-run it through the
// same writer primitives flush uses.
func mergeSegments(dir store.Directory, victims []*codec.SegmentInfo, newName string) (*codec.SegmentInfo, error) {
	inputs := make([]*mergeInput, 0, len(victims))
	defer func() {
		for _, in := range inputs {
			in.sr.DecRef()
		}
	}()

	var mergedMaxDoc uint32
	mergedFieldInfos := codec.NewFieldInfos()

	for _, si := range victims {
		sr, err := OpenSegmentReader(dir, si)
		if err != nil {
			return nil, err
		}
		remap := make([]uint32, si.MaxDoc)
		live := sr.LiveDocs()
		var n int
		for d := uint32(0); d < si.MaxDoc; d++ {
			if live != nil && !live.Get(d) {
				remap[d] = sentinelDocID
				continue
			}
			remap[d] = mergedMaxDoc
			mergedMaxDoc++
			n++
		}
		inputs = append(inputs, &mergeInput{sr: sr, remap: remap, docsIn: n})

		for _, fi := range sr.FieldInfos().List() {
			mergedFieldInfos.GetOrAdd(fi.Name, document.FieldType{
				Indexed:       fi.IndexOptions != document.IndexOptionsNone,
				Tokenized:     fi.Tokenized,
				Stored:        fi.Stored,
				IndexOptions:  fi.IndexOptions,
				OmitNorms:     fi.OmitNorms,
				DocValuesType: fi.DocValuesType,
			})
		}
	}

	fnmOut, err := dir.CreateOutput("_" + newName + ".fnm")
	if err != nil {
		return nil, err
	}
	if err := codec.WriteFieldInfos(fnmOut, mergedFieldInfos); err != nil {
		fnmOut.Close()
		return nil, err
	}
	if err := fnmOut.Close(); err != nil {
		return nil, err
	}
	files := []string{"_" + newName + ".fnm"}

	fields := mergedFieldInfos.List()
	anyPostings, anyNorms, anyDV := false, false, false
	for _, fi := range fields {
		if fi.IndexOptions != document.IndexOptionsNone {
			anyPostings = true
		}
		if !fi.OmitNorms {
			anyNorms = true
		}
		if fi.DocValuesType == document.DocValuesNumeric {
			anyDV = true
		}
	}

	var tipOut, timOut, docOut, posOut, nvdOut, nvmOut, dvdOut, dvmOut store.IndexOutput
	if anyPostings && mergedMaxDoc > 0 {
		if tipOut, err = dir.CreateOutput("_" + newName + ".tip"); err != nil {
			return nil, err
		}
		if timOut, err = dir.CreateOutput("_" + newName + ".tim"); err != nil {
			return nil, err
		}
		if docOut, err = dir.CreateOutput("_" + newName + ".doc"); err != nil {
			return nil, err
		}
		if posOut, err = dir.CreateOutput("_" + newName + ".pos"); err != nil {
			return nil, err
		}
		files = append(files, "_"+newName+".tip", "_"+newName+".tim", "_"+newName+".doc", "_"+newName+".pos")
	}
	if anyNorms && mergedMaxDoc > 0 {
		if nvdOut, err = dir.CreateOutput("_" + newName + ".nvd"); err != nil {
			return nil, err
		}
		if nvmOut, err = dir.CreateOutput("_" + newName + ".nvm"); err != nil {
			return nil, err
		}
		files = append(files, "_"+newName+".nvd", "_"+newName+".nvm")
	}
	if anyDV && mergedMaxDoc > 0 {
		if dvdOut, err = dir.CreateOutput("_" + newName + ".dvd"); err != nil {
			return nil, err
		}
		if dvmOut, err = dir.CreateOutput("_" + newName + ".dvm"); err != nil {
			return nil, err
		}
		files = append(files, "_"+newName+".dvd", "_"+newName+".dvm")
	}

	var normsWriter *codec.NormsWriter
	if nvdOut != nil {
		normsWriter = codec.NewNormsWriter(nvdOut)
	}
	var dvWriter *codec.NumericDocValuesWriter
	if dvdOut != nil {
		dvWriter = codec.NewNumericDocValuesWriter(dvdOut)
	}

	var tipDir []codec.TermDictDirEntry
	fieldStats := map[string]codec.FieldStat{}
	for _, fi := range fields {
		fieldName := fi.Name

		if fi.IndexOptions != document.IndexOptionsNone {
			avgLen := mergeAverageLength(fieldName, inputs, mergedMaxDoc)
			docCount := uint32(0)
			for _, in := range inputs {
				if _, ok := in.sr.FieldInfos().ByName(fieldName); !ok {
					continue
				}
				for oldDoc, newDoc := range in.remap {
					if newDoc != sentinelDocID {
						if b, err := in.sr.Norm(fieldName, uint32(oldDoc)); err == nil && b != 127 {
							docCount++
						}
					}
				}
			}
			fieldStats[fieldName] = codec.FieldStat{AvgLen: avgLen, DocCount: docCount}
		}

		if tipOut != nil && fi.IndexOptions != document.IndexOptionsNone {
			n, err := mergeFieldPostings(tipOut, timOut, docOut, posOut, fieldName, fi, inputs, mergedMaxDoc)
			if err != nil {
				return nil, err
			}
			if n != nil {
				tipDir = append(tipDir, *n)
			}
		}

		if normsWriter != nil && !fi.OmitNorms {
			norms := make([]byte, mergedMaxDoc)
			for i := range norms {
				norms[i] = 127
			}
			for _, in := range inputs {
				if _, ok := in.sr.FieldInfos().ByName(fieldName); !ok {
					continue
				}
				for oldDoc, newDoc := range in.remap {
					if newDoc == sentinelDocID {
						continue
					}
					b, err := in.sr.Norm(fieldName, uint32(oldDoc))
					if err != nil {
						return nil, err
					}
					norms[newDoc] = b
				}
			}
			if err := normsWriter.WriteField(fi.Number, norms); err != nil {
				return nil, err
			}
		}

		if dvWriter != nil && fi.DocValuesType == document.DocValuesNumeric {
			var docIDs []uint32
			var values []int64
			for _, in := range inputs {
				reader, oldFieldNumber, ok := in.sr.NumericDocValues(fieldName)
				if !ok {
					continue
				}
				it, err := reader.Iterator(oldFieldNumber)
				if err != nil {
					return nil, err
				}
				for {
					oldDoc, v, ok, err := it.Next()
					if err != nil {
						it.Close()
						return nil, err
					}
					if !ok {
						break
					}
					if newDoc := in.remap[oldDoc]; newDoc != sentinelDocID {
						docIDs = append(docIDs, newDoc)
						values = append(values, v)
					}
				}
				it.Close()
			}
			if len(docIDs) > 0 {
				if err := dvWriter.WriteField(fi.Number, docIDs, values); err != nil {
					return nil, err
				}
			}
		}
	}

	if tipOut != nil {
		if err := codec.WriteTermDictDirectory(tipOut, tipDir); err != nil {
			return nil, err
		}
		if err := tipOut.Close(); err != nil {
			return nil, err
		}
		if err := timOut.Close(); err != nil {
			return nil, err
		}
		if err := docOut.Close(); err != nil {
			return nil, err
		}
		if err := posOut.Close(); err != nil {
			return nil, err
		}
	}
	if normsWriter != nil {
		if err := normsWriter.Finish(nvmOut); err != nil {
			return nil, err
		}
		if err := nvdOut.Close(); err != nil {
			return nil, err
		}
		if err := nvmOut.Close(); err != nil {
			return nil, err
		}
	}
	if dvWriter != nil {
		if err := dvWriter.Finish(dvmOut); err != nil {
			return nil, err
		}
		if err := dvdOut.Close(); err != nil {
			return nil, err
		}
		if err := dvmOut.Close(); err != nil {
			return nil, err
		}
	}

	si := &codec.SegmentInfo{
		Name:        newName,
		Codec:       codec.CodecName,
		MaxDoc:      mergedMaxDoc,
		DelCount:    0,
		LiveDocsGen: 0,
		Files:       files,
		Diagnostics: map[string]string{"source": "merge"},
		FieldStats:  fieldStats,
	}
	siOut, err := dir.CreateOutput(codec.SIFileName(newName))
	if err != nil {
		return nil, err
	}
	if err := codec.WriteSegmentInfo(siOut, si); err != nil {
		siOut.Close()
		return nil, err
	}
	if err := siOut.Close(); err != nil {
		return nil, err
	}
	si.Files = append(si.Files, codec.SIFileName(newName))
	return si, nil
}

// termCursor walks one segment's sorted term stream during a field merge.
type termCursor struct {
	in  *mergeInput
	it  *codec.TermsIterator
	cur *codec.TermEntry
}

func (c *termCursor) advance() error {
	e, err := c.it.Next()
	c.cur = e
	return err
}

// mergeFieldPostings k-way merges fieldName's term dictionaries across
// inputs (in the order their merged doc-id ranges were assigned, so a
// term's postings concatenate in doc-id order with no extra sort), remaps
// doc-ids, and writes the merged field's entry to the shared .tip/.tim
// streams. Returns nil if the field had no live postings left anywhere.
func mergeFieldPostings(tipOut, timOut, docOut, posOut store.IndexOutput, fieldName string, mergedFI *codec.FieldInfo, inputs []*mergeInput, mergedMaxDoc uint32) (*codec.TermDictDirEntry, error) {
	withPositions := mergedFI.IndexOptions == document.IndexOptionsDocsFreqsAndPositions
	avgLen := mergeAverageLength(fieldName, inputs, mergedMaxDoc)

	var cursors []*termCursor
	for _, in := range inputs {
		td, err := in.sr.Terms(fieldName)
		if err != nil {
			return nil, err
		}
		if td == nil {
			continue
		}
		it, err := td.Iterator()
		if err != nil {
			return nil, err
		}
		c := &termCursor{in: in, it: it}
		if err := c.advance(); err != nil {
			it.Close()
			return nil, err
		}
		if c.cur != nil {
			cursors = append(cursors, c)
		} else {
			it.Close()
		}
	}
	if len(cursors) == 0 {
		return nil, nil
	}
	defer func() {
		for _, c := range cursors {
			c.it.Close()
		}
	}()

	tipStart := tipOut.FilePointer()
	builder, err := newFSTBuilder(tipOut)
	if err != nil {
		return nil, err
	}
	tdw := codec.NewTermDictWriter(timOut, builder)
	timStart := int64(-1)

	for {
		var minTerm []byte
		for _, c := range cursors {
			if c.cur == nil {
				continue
			}
			if minTerm == nil || bytes.Compare(c.cur.Term, minTerm) < 0 {
				minTerm = c.cur.Term
			}
		}
		if minTerm == nil {
			break
		}

		pw := codec.NewPostingsWriter(docOut, posOut, withPositions, avgLen)
		any := false
		for _, c := range cursors {
			if c.cur == nil || !bytes.Equal(c.cur.Term, minTerm) {
				continue
			}
			entry := c.cur
			pe, err := c.in.sr.OpenPostings(fieldName, entry)
			if err != nil {
				return nil, err
			}
			for {
				oldDoc, err := pe.NextDoc()
				if err != nil {
					pe.Close()
					return nil, err
				}
				if oldDoc == codec.NoMoreDocs {
					break
				}
				newDoc := c.in.remap[oldDoc]
				if newDoc == sentinelDocID {
					if withPositions {
						for i := uint32(0); i < pe.Freq(); i++ {
							if _, err := pe.NextPosition(); err != nil {
								pe.Close()
								return nil, err
							}
						}
					}
					continue
				}
				var positions []uint32
				freq := pe.Freq()
				if withPositions {
					positions = make([]uint32, freq)
					for i := range positions {
						p, err := pe.NextPosition()
						if err != nil {
							pe.Close()
							return nil, err
						}
						positions[i] = p
					}
				}
				normByte := byte(127)
				if !mergedFI.OmitNorms {
					normByte, err = c.in.sr.Norm(fieldName, oldDoc)
					if err != nil {
						pe.Close()
						return nil, err
					}
				}
				if err := pw.AddPosting(newDoc, freq, positions, normByte); err != nil {
					pe.Close()
					return nil, err
				}
				any = true
			}
			pe.Close()
			if err := c.advance(); err != nil {
				return nil, err
			}
		}
		if any {
			docFreq, totalTermFreq, docOff, posOff, err := pw.Finish()
			if err != nil {
				return nil, err
			}
			if timStart < 0 {
				timStart = timOut.FilePointer()
			}
			if err := tdw.AddTerm(minTerm, docFreq, totalTermFreq, docOff, posOff); err != nil {
				return nil, err
			}
		}
	}

	firstBlock, termCount, hasTerms, err := tdw.Finish()
	if err != nil {
		return nil, err
	}
	if !hasTerms {
		return nil, nil
	}
	return &codec.TermDictDirEntry{
		FieldNumber: mergedFI.Number,
		TipOffset:   tipStart,
		TipLength:   tipOut.FilePointer() - tipStart,
		TimStart:    firstBlock,
		TermCount:   termCount,
	}, nil
}

// mergeAverageLength estimates the merged field's average tokenized length
// from surviving docs' decoded norm bytes (the closest approximation
// available without re-tokenizing), for the merged PostingsWriter's
// BM25TermComponent baseline. Defaults to 1 if the field carries no norms.
func mergeAverageLength(fieldName string, inputs []*mergeInput, mergedMaxDoc uint32) float64 {
	if mergedMaxDoc == 0 {
		return 1
	}
	var total float64
	var count int
	for _, in := range inputs {
		if _, ok := in.sr.FieldInfos().ByName(fieldName); !ok {
			continue
		}
		for oldDoc, newDoc := range in.remap {
			if newDoc == sentinelDocID {
				continue
			}
			b, err := in.sr.Norm(fieldName, uint32(oldDoc))
			if err != nil {
				continue
			}
			if b == 127 {
				continue
			}
			total += codec.DecodeNormLength(b)
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}
