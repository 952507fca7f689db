package index

import "github.com/model-collapse/diagon-sub000/store"

// LeafReader pairs a SegmentReader with its doc-id base within the
// composite reader, the offset search/collector code adds to a leaf's
// local doc-ids before merging into the global top-K heap.
type LeafReader struct {
	Reader  *SegmentReader
	DocBase uint32
}

// DirectoryReader composes one SegmentReader per live segment in a commit,
// per spec.md §4.E. Grounded on bluge/reader.go's top-level Reader (a
// slice of leaf readers plus aggregate doc counts) and its
// OpenIfChanged-style reuse of unaffected leaves.
type DirectoryReader struct {
	dir        store.Directory
	generation uint64
	leaves     []LeafReader
	maxDoc     uint32
	numDocs    uint32
}

// OpenDirectoryReader opens the directory's current commit.
func OpenDirectoryReader(dir store.Directory) (*DirectoryReader, error) {
	sis, err := OpenLatestSegmentInfos(dir)
	if err != nil {
		return nil, err
	}
	return openFromSegmentInfos(dir, sis, nil)
}

func openFromSegmentInfos(dir store.Directory, sis *SegmentInfos, reuse map[string]*SegmentReader) (*DirectoryReader, error) {
	dr := &DirectoryReader{dir: dir, generation: sis.Generation}
	var base uint32
	for _, si := range sis.Segments {
		var sr *SegmentReader
		if reuse != nil {
			if old, ok := reuse[si.Name]; ok && old.liveDocsGen == si.LiveDocsGen {
				old.IncRef()
				sr = old
			}
		}
		if sr == nil {
			var err error
			sr, err = OpenSegmentReader(dir, si)
			if err != nil {
				dr.Close()
				return nil, err
			}
		}
		dr.leaves = append(dr.leaves, LeafReader{Reader: sr, DocBase: base})
		base += si.MaxDoc
		dr.maxDoc += si.MaxDoc
		dr.numDocs += si.NumDocs()
	}
	return dr, nil
}

func (dr *DirectoryReader) Leaves() []LeafReader { return dr.leaves }
func (dr *DirectoryReader) MaxDoc() uint32       { return dr.maxDoc }
func (dr *DirectoryReader) NumDocs() uint32      { return dr.numDocs }
func (dr *DirectoryReader) Generation() uint64   { return dr.generation }

// OpenIfChanged compares the directory's current commit generation to this
// reader's own; if unchanged, returns (nil, nil). Otherwise it opens a new
// composite reader that reuses any leaf whose segment name and live-docs
// generation are unchanged (an extra refcount on the shared SegmentReader)
// and opens only new or mutated segments.
func (dr *DirectoryReader) OpenIfChanged() (*DirectoryReader, error) {
	sis, err := OpenLatestSegmentInfos(dr.dir)
	if err != nil {
		return nil, err
	}
	if sis.Generation == dr.generation {
		return nil, nil
	}
	reuse := make(map[string]*SegmentReader, len(dr.leaves))
	for _, l := range dr.leaves {
		reuse[l.Reader.Name()] = l.Reader
	}
	return openFromSegmentInfos(dr.dir, sis, reuse)
}

// Close releases every leaf's reference.
func (dr *DirectoryReader) Close() error {
	var first error
	for _, l := range dr.leaves {
		if err := l.Reader.DecRef(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
