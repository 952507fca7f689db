package index

import (
	"sync/atomic"

	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// segmentCore holds a segment's immutable, expensive-to-open parts: field
// infos and the open term-dictionary/postings/doc-values file handles.
// withNewLiveDocs can share one core across SegmentReaders of different
// live-docs generations, but nothing calls it: DirectoryReader reopening
// and applying deletions both open a fresh core through OpenSegmentReader
// when a segment's live-docs generation changes. Grounded on Lucene's own
// SegmentCoreReaders split, which bluge collapses away (ice rewrites the
// whole segment file on delete instead) — reintroduced here because
// spec.md §4.E names the core/reader cache-key split explicitly.
type segmentCore struct {
	dir  store.Directory
	name string

	fieldInfos *codec.FieldInfos
	tipIn      store.IndexInput
	timIn      store.IndexInput
	docIn      store.IndexInput
	posIn      store.IndexInput
	tipDir     map[uint32]codec.TermDictDirEntry

	normsReader *codec.NormsReader
	dvReader    *codec.NumericDocValuesReader

	refs      int32
	termDicts map[uint32]*codec.TermDictionary
	key       *int
}

func (c *segmentCore) incRef() { atomic.AddInt32(&c.refs, 1) }

func (c *segmentCore) decRef() error {
	if atomic.AddInt32(&c.refs, -1) > 0 {
		return nil
	}
	var first error
	closeOne := func(cl interface{ Close() error }) {
		if cl == nil {
			return
		}
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	closeOne(c.tipIn)
	closeOne(c.timIn)
	closeOne(c.docIn)
	closeOne(c.posIn)
	return first
}

func openSegmentCore(dir store.Directory, si *codec.SegmentInfo) (*segmentCore, error) {
	fnmIn, err := dir.OpenInput("_"+si.Name+".fnm", store.IOContextRead)
	if err != nil {
		return nil, err
	}
	defer fnmIn.Close()
	fieldInfos, err := codec.ReadFieldInfos(fnmIn)
	if err != nil {
		return nil, err
	}

	c := &segmentCore{
		dir: dir, name: si.Name, fieldInfos: fieldInfos,
		termDicts: map[uint32]*codec.TermDictionary{},
		refs:      1, key: new(int),
	}

	if hasFile(si.Files, "_"+si.Name+".tip") {
		if c.tipIn, err = dir.OpenInput("_"+si.Name+".tip", store.IOContextRead); err != nil {
			return nil, err
		}
		if c.timIn, err = dir.OpenInput("_"+si.Name+".tim", store.IOContextRead); err != nil {
			return nil, err
		}
		if c.docIn, err = dir.OpenInput("_"+si.Name+".doc", store.IOContextRead); err != nil {
			return nil, err
		}
		if hasFile(si.Files, "_"+si.Name+".pos") {
			if c.posIn, err = dir.OpenInput("_"+si.Name+".pos", store.IOContextRead); err != nil {
				return nil, err
			}
		}
		c.tipDir, err = codec.ReadTermDictDirectory(c.tipIn)
		if err != nil {
			return nil, err
		}
	}

	if hasFile(si.Files, "_"+si.Name+".nvm") {
		nvmIn, err := dir.OpenInput("_"+si.Name+".nvm", store.IOContextRead)
		if err != nil {
			return nil, err
		}
		nvdIn, err := dir.OpenInput("_"+si.Name+".nvd", store.IOContextRead)
		if err != nil {
			nvmIn.Close()
			return nil, err
		}
		c.normsReader, err = codec.ReadNormsDirectory(nvmIn, nvdIn)
		nvmIn.Close()
		if err != nil {
			return nil, err
		}
	}

	if hasFile(si.Files, "_"+si.Name+".dvm") {
		dvmIn, err := dir.OpenInput("_"+si.Name+".dvm", store.IOContextRead)
		if err != nil {
			return nil, err
		}
		dvdIn, err := dir.OpenInput("_"+si.Name+".dvd", store.IOContextRead)
		if err != nil {
			dvmIn.Close()
			return nil, err
		}
		c.dvReader, err = codec.ReadNumericDocValuesDirectory(dvmIn, dvdIn)
		dvmIn.Close()
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

func hasFile(files []string, name string) bool {
	for _, f := range files {
		if f == name {
			return true
		}
	}
	return false
}

// SegmentReader is one segment's reader-visible view: a shared
// segmentCore plus this reader's own live-docs generation. Grounded on
// bluge/index/segment.go's segmentWrapper (open-on-demand sub-readers,
// atomic refcount, identity keys exposed for external caches).
type SegmentReader struct {
	core *segmentCore
	info *codec.SegmentInfo

	liveDocs    *LiveDocs
	liveDocsGen uint64

	refs      int32
	readerKey *int
}

// OpenSegmentReader opens si's files for reading, loading its live-docs
// generation (if any) per the SegmentInfo's recorded live_docs_gen.
func OpenSegmentReader(dir store.Directory, si *codec.SegmentInfo) (*SegmentReader, error) {
	core, err := openSegmentCore(dir, si)
	if err != nil {
		return nil, err
	}
	sr := &SegmentReader{core: core, info: si, liveDocsGen: si.LiveDocsGen, refs: 1, readerKey: new(int)}
	if si.LiveDocsGen > 0 {
		sr.liveDocs, err = ReadLiveDocs(dir, si.Name, si.LiveDocsGen, si.MaxDoc)
		if err != nil {
			core.decRef()
			return nil, err
		}
	}
	return sr, nil
}

func (sr *SegmentReader) MaxDoc() uint32            { return sr.info.MaxDoc }
func (sr *SegmentReader) NumDocs() uint32           { return sr.info.MaxDoc - sr.info.DelCount }
func (sr *SegmentReader) HasDeletions() bool        { return sr.info.DelCount > 0 }
func (sr *SegmentReader) Name() string              { return sr.info.Name }
func (sr *SegmentReader) Info() *codec.SegmentInfo  { return sr.info }
func (sr *SegmentReader) LiveDocs() *LiveDocs       { return sr.liveDocs }
func (sr *SegmentReader) FieldInfos() *codec.FieldInfos { return sr.core.fieldInfos }

func (sr *SegmentReader) CoreCacheKey() interface{}   { return sr.core.key }
func (sr *SegmentReader) ReaderCacheKey() interface{} { return sr.readerKey }

// Terms returns fieldName's term dictionary, or nil if the field has no
// postings in this segment.
func (sr *SegmentReader) Terms(fieldName string) (*codec.TermDictionary, error) {
	c := sr.core
	fi, ok := c.fieldInfos.ByName(fieldName)
	if !ok {
		return nil, nil
	}
	if td, ok := c.termDicts[fi.Number]; ok {
		return td, nil
	}
	entry, ok := c.tipDir[fi.Number]
	if !ok {
		return nil, nil
	}
	tipClone, err := c.tipIn.Clone()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "clone tip", err)
	}
	defer tipClone.Close()
	if err := tipClone.Seek(entry.TipOffset); err != nil {
		return nil, errs.Wrap(errs.IO, "seek tip field", err)
	}
	fstBytes, err := tipClone.ReadBytes(int(entry.TipLength))
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read fst bytes", err)
	}
	td, err := codec.LoadTermDictionary(c.timIn, fstBytes, entry.TimStart, entry.TermCount)
	if err != nil {
		return nil, err
	}
	c.termDicts[fi.Number] = td
	return td, nil
}

// OpenPostings opens a term entry's posting stream for fieldName.
func (sr *SegmentReader) OpenPostings(fieldName string, e *codec.TermEntry) (*codec.PostingsEnum, error) {
	fi, ok := sr.core.fieldInfos.ByName(fieldName)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "unknown field: "+fieldName)
	}
	withPositions := fi.IndexOptions == document.IndexOptionsDocsFreqsAndPositions
	return codec.OpenPostingsEnum(sr.core.docIn, sr.core.posIn, e.DocFileOffset, e.DocFreq, withPositions)
}

// Norm returns fieldName's encoded norm byte for docID, or 127 if absent.
func (sr *SegmentReader) Norm(fieldName string, docID uint32) (byte, error) {
	fi, ok := sr.core.fieldInfos.ByName(fieldName)
	if !ok || sr.core.normsReader == nil {
		return 127, nil
	}
	return sr.core.normsReader.Norm(fi.Number, docID)
}

// NumericDocValues returns the numeric doc-values reader and fieldName's
// field number, or ok=false if the field carries none.
func (sr *SegmentReader) NumericDocValues(fieldName string) (reader *codec.NumericDocValuesReader, fieldNumber uint32, ok bool) {
	fi, exists := sr.core.fieldInfos.ByName(fieldName)
	if !exists || sr.core.dvReader == nil || !sr.core.dvReader.HasField(fi.Number) {
		return nil, 0, false
	}
	return sr.core.dvReader, fi.Number, true
}

// IncRef/DecRef implement spec.md §4.E/§5's refcounted-close convention.
func (sr *SegmentReader) IncRef() { atomic.AddInt32(&sr.refs, 1); sr.core.incRef() }

func (sr *SegmentReader) DecRef() error {
	if atomic.AddInt32(&sr.refs, -1) > 0 {
		return sr.core.decRef()
	}
	return sr.core.decRef()
}

// withNewLiveDocs returns a new SegmentReader sharing this one's core (an
// extra core reference) but with an advanced live-docs generation, used
// when a commit deletes from this segment without rewriting its postings.
func (sr *SegmentReader) withNewLiveDocs(gen uint64, ld *LiveDocs, delCount uint32) *SegmentReader {
	sr.core.incRef()
	infoCopy := *sr.info
	infoCopy.DelCount = delCount
	infoCopy.LiveDocsGen = gen
	return &SegmentReader{
		core: sr.core, info: &infoCopy, liveDocs: ld, liveDocsGen: gen,
		refs: 1, readerKey: new(int),
	}
}
