package index

import (
	"sort"

	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/store"
)

// perFieldTerms accumulates one field's in-memory postings for the buffer
// currently being built: term bytes -> per-doc (freq, positions).
type perFieldTerms struct {
	byTerm map[string]*inMemPostings
	docLen map[uint32]int // tokenized length per doc, for this field's norms
}

type inMemPostings struct {
	docs      []uint32
	freqs     []uint32
	positions [][]uint32 // parallel to docs, nil entries if no positions tracked
}

// dwpt is the per-thread document-writer buffer: spec.md §4.C's DWPT.
// Grounded on bluge/index/writer.go's Batch+segmentWrapper construction
// path (tokenize, accumulate per-field postings, track byte usage),
// simplified to one buffer per Writer rather than bluge's pooled/async
// analysis workers, since spec.md §5 mandates exactly one active DWPT.
type dwpt struct {
	dir        store.Directory
	fieldInfos *codec.FieldInfos
	fields     map[string]*perFieldTerms

	numericDV map[uint32]*numericDVBuffer

	numDocs    uint32
	byteCount  uint64
	nameSource func() string
}

func newDWPT(dir store.Directory, nameSource func() string) *dwpt {
	return &dwpt{
		dir:        dir,
		fieldInfos: codec.NewFieldInfos(),
		fields:     map[string]*perFieldTerms{},
		nameSource: nameSource,
	}
}

func (w *dwpt) needsFlush(maxBufferedDocs uint32, ramBufferBytes uint64) bool {
	if w.numDocs == 0 {
		return false
	}
	if maxBufferedDocs > 0 && w.numDocs >= maxBufferedDocs {
		return true
	}
	return w.byteCount >= ramBufferBytes
}

// addDocument assigns the next segment-local doc-id and folds doc's fields
// into the in-memory postings, per spec.md §4.C step 1-4.
func (w *dwpt) addDocument(doc *document.Document) {
	docID := w.numDocs
	w.numDocs++

	for _, f := range doc.Fields {
		fi := w.fieldInfos.GetOrAdd(f.Name, f.Type)
		w.byteCount += uint64(len(f.Name)) + 16

		if f.Type.DocValuesType == document.DocValuesNumeric {
			w.recordNumericDocValue(fi.Number, docID, f.Int)
		}
		if !f.Type.Indexed {
			continue
		}

		pf := w.fields[f.Name]
		if pf == nil {
			pf = &perFieldTerms{byTerm: map[string]*inMemPostings{}, docLen: map[uint32]int{}}
			w.fields[f.Name] = pf
		}

		withPositions := f.Type.IndexOptions == document.IndexOptionsDocsFreqsAndPositions
		var tokenCount int
		if f.Type.Tokenized {
			toks := document.Analyze(f.Text)
			tokenCount = len(toks)
			for _, t := range toks {
				w.addPosting(pf, string(t.Term), docID, t.Position, withPositions)
			}
		} else {
			tokenCount = 1
			w.addPosting(pf, f.Text, docID, 0, false)
		}
		if !f.Type.OmitNorms {
			pf.docLen[docID] = tokenCount
		}
		w.byteCount += uint64(tokenCount) * 12
	}
}

func (w *dwpt) addPosting(pf *perFieldTerms, term string, docID uint32, position int, withPositions bool) {
	p := pf.byTerm[term]
	if p == nil {
		p = &inMemPostings{}
		pf.byTerm[term] = p
	}
	n := len(p.docs)
	if n == 0 || p.docs[n-1] != docID {
		p.docs = append(p.docs, docID)
		p.freqs = append(p.freqs, 0)
		if withPositions {
			p.positions = append(p.positions, nil)
		}
	}
	last := len(p.docs) - 1
	p.freqs[last]++
	if withPositions {
		p.positions[last] = append(p.positions[last], uint32(position))
	}
}

// recordNumericDocValue buffers one field's (docID -> int64) pairs for flush;
// kept on dwpt rather than perFieldTerms since doc-values fields need not
// be indexed/tokenized at all.
func (w *dwpt) recordNumericDocValue(fieldNumber uint32, docID uint32, value int64) {
	if w.numericDV == nil {
		w.numericDV = map[uint32]*numericDVBuffer{}
	}
	b := w.numericDV[fieldNumber]
	if b == nil {
		b = &numericDVBuffer{}
		w.numericDV[fieldNumber] = b
	}
	b.docIDs = append(b.docIDs, docID)
	b.values = append(b.values, value)
}

type numericDVBuffer struct {
	docIDs []uint32
	values []int64
}

// flush writes the buffer's contents to a brand-new segment via the codec
// package, per spec.md §4.C's flush algorithm, and returns its SegmentInfo.
// Returns (nil, nil) if no documents were buffered.
func (w *dwpt) flush() (*codec.SegmentInfo, error) {
	if w.numDocs == 0 {
		return nil, nil
	}
	name := w.nameSource()
	maxDoc := w.numDocs

	fnmOut, err := w.dir.CreateOutput("_" + name + ".fnm")
	if err != nil {
		return nil, err
	}
	if err := codec.WriteFieldInfos(fnmOut, w.fieldInfos); err != nil {
		fnmOut.Close()
		return nil, err
	}
	if err := fnmOut.Close(); err != nil {
		return nil, err
	}

	files := []string{"_" + name + ".fnm"}

	var tipOut, timOut, docOut, posOut, nvdOut, nvmOut store.IndexOutput
	hasPostingFields := len(w.fields) > 0
	hasNorms := w.anyNorms()
	hasPositions := false
	for fn := range w.fields {
		if fi, ok := w.fieldInfos.ByName(fn); ok && fi.IndexOptions == document.IndexOptionsDocsFreqsAndPositions {
			hasPositions = true
			break
		}
	}
	if hasPostingFields {
		tipOut, err = w.dir.CreateOutput("_" + name + ".tip")
		if err != nil {
			return nil, err
		}
		timOut, err = w.dir.CreateOutput("_" + name + ".tim")
		if err != nil {
			return nil, err
		}
		docOut, err = w.dir.CreateOutput("_" + name + ".doc")
		if err != nil {
			return nil, err
		}
		files = append(files, "_"+name+".tip", "_"+name+".tim", "_"+name+".doc")
		if hasPositions {
			posOut, err = w.dir.CreateOutput("_" + name + ".pos")
			if err != nil {
				return nil, err
			}
			files = append(files, "_"+name+".pos")
		}
	}
	if hasNorms {
		nvdOut, err = w.dir.CreateOutput("_" + name + ".nvd")
		if err != nil {
			return nil, err
		}
		nvmOut, err = w.dir.CreateOutput("_" + name + ".nvm")
		if err != nil {
			return nil, err
		}
		files = append(files, "_"+name+".nvd", "_"+name+".nvm")
	}

	var normsWriter *codec.NormsWriter
	if hasNorms {
		normsWriter = codec.NewNormsWriter(nvdOut)
	}

	fieldStats := map[string]codec.FieldStat{}

	var tipDir []codec.TermDictDirEntry
	if hasPostingFields {
		fieldNames := make([]string, 0, len(w.fields))
		for fn := range w.fields {
			fieldNames = append(fieldNames, fn)
		}
		sort.Strings(fieldNames)

		for _, fieldName := range fieldNames {
			fi, _ := w.fieldInfos.ByName(fieldName)
			pf := w.fields[fieldName]
			withPositions := fi.IndexOptions == document.IndexOptionsDocsFreqsAndPositions
			avgLen := fieldAverageLength(pf)
			fieldStats[fieldName] = codec.FieldStat{AvgLen: avgLen, DocCount: uint32(len(pf.docLen))}

			terms := make([]string, 0, len(pf.byTerm))
			for t := range pf.byTerm {
				terms = append(terms, t)
			}
			sort.Strings(terms)

			tipStart := tipOut.FilePointer()
			builder, err := newFSTBuilder(tipOut)
			if err != nil {
				return nil, err
			}
			tdw := codec.NewTermDictWriter(timOut, builder)

			for _, t := range terms {
				p := pf.byTerm[t]
				pw := codec.NewPostingsWriter(docOut, posOut, withPositions, avgLen)
				for i, docID := range p.docs {
					normByte := byte(127)
					if !fi.OmitNorms {
						normByte = codec.EncodeNorm(pf.docLen[docID])
					}
					var positions []uint32
					if withPositions {
						positions = p.positions[i]
					}
					if err := pw.AddPosting(docID, p.freqs[i], positions, normByte); err != nil {
						return nil, err
					}
				}
				docFreq, totalTermFreq, docOff, posOff, err := pw.Finish()
				if err != nil {
					return nil, err
				}
				if err := tdw.AddTerm([]byte(t), docFreq, totalTermFreq, docOff, posOff); err != nil {
					return nil, err
				}
			}
			timStart, termCount, hasTerms, err := tdw.Finish()
			if err != nil {
				return nil, err
			}
			if hasTerms {
				tipDir = append(tipDir, codec.TermDictDirEntry{
					FieldNumber: fi.Number,
					TipOffset:   tipStart,
					TipLength:   tipOut.FilePointer() - tipStart,
					TimStart:    timStart,
					TermCount:   termCount,
				})
			}

			if hasNorms && !fi.OmitNorms {
				norms := make([]byte, maxDoc)
				for i := range norms {
					norms[i] = 127
				}
				for docID, length := range pf.docLen {
					norms[docID] = codec.EncodeNorm(length)
				}
				if err := normsWriter.WriteField(fi.Number, norms); err != nil {
					return nil, err
				}
			}
		}
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
		if posOut != nil {
			if err := posOut.Close(); err != nil {
				return nil, err
			}
		}
	}

	if hasNorms {
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

	if len(w.numericDV) > 0 {
		dvdOut, err := w.dir.CreateOutput("_" + name + ".dvd")
		if err != nil {
			return nil, err
		}
		dvmOut, err := w.dir.CreateOutput("_" + name + ".dvm")
		if err != nil {
			return nil, err
		}
		dvWriter := codec.NewNumericDocValuesWriter(dvdOut)
		fieldNumbers := make([]uint32, 0, len(w.numericDV))
		for fn := range w.numericDV {
			fieldNumbers = append(fieldNumbers, fn)
		}
		sort.Slice(fieldNumbers, func(i, j int) bool { return fieldNumbers[i] < fieldNumbers[j] })
		for _, fn := range fieldNumbers {
			b := w.numericDV[fn]
			if err := dvWriter.WriteField(fn, b.docIDs, b.values); err != nil {
				return nil, err
			}
		}
		if err := dvWriter.Finish(dvmOut); err != nil {
			return nil, err
		}
		if err := dvdOut.Close(); err != nil {
			return nil, err
		}
		if err := dvmOut.Close(); err != nil {
			return nil, err
		}
		files = append(files, "_"+name+".dvd", "_"+name+".dvm")
	}

	si := &codec.SegmentInfo{
		Name:        name,
		Codec:       codec.CodecName,
		MaxDoc:      maxDoc,
		DelCount:    0,
		LiveDocsGen: 0,
		Files:       files,
		Diagnostics: map[string]string{"source": "flush"},
		FieldStats:  fieldStats,
	}

	siOut, err := w.dir.CreateOutput(codec.SIFileName(name))
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
	si.Files = append(si.Files, codec.SIFileName(name))

	w.reset()
	return si, nil
}

func (w *dwpt) anyNorms() bool {
	for _, fi := range w.fieldInfos.List() {
		if !fi.OmitNorms {
			return true
		}
	}
	return false
}

// fieldAverageLength computes one field's average tokenized length across
// the docs that set it, the avg_len BM25TermComponent normalizes against.
func fieldAverageLength(pf *perFieldTerms) float64 {
	var total, count int
	for _, l := range pf.docLen {
		total += l
		count++
	}
	if count == 0 {
		return 1
	}
	return float64(total) / float64(count)
}

func (w *dwpt) reset() {
	w.fieldInfos = codec.NewFieldInfos()
	w.fields = map[string]*perFieldTerms{}
	w.numericDV = nil
	w.numDocs = 0
	w.byteCount = 0
}
