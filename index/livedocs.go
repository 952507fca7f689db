package index

import (
	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// LiveDocs is a mutable bitset of length maxDoc bits, bit i set meaning doc
// i is live. Kept as a plain padded-to-byte bitset on disk per spec.md §6
// (not roaring's compressed container, which codec/docvalues.go uses
// instead for sparse doc-values presence sets) since live-docs is a dense,
// whole-segment-sized structure where the padded bitset is both the
// simplest and the normative format.
type LiveDocs struct {
	bits   []byte
	maxDoc uint32
}

// NewLiveDocs returns an all-live bitset for a freshly flushed segment.
func NewLiveDocs(maxDoc uint32) *LiveDocs {
	bits := make([]byte, (maxDoc+7)/8)
	for i := range bits {
		bits[i] = 0xff
	}
	clearTrailingBits(bits, maxDoc)
	return &LiveDocs{bits: bits, maxDoc: maxDoc}
}

func clearTrailingBits(bits []byte, maxDoc uint32) {
	total := uint32(len(bits)) * 8
	for d := maxDoc; d < total; d++ {
		bits[d/8] &^= 1 << (d % 8)
	}
}

func (l *LiveDocs) Get(doc uint32) bool {
	if doc >= l.maxDoc {
		return false
	}
	return l.bits[doc/8]&(1<<(doc%8)) != 0
}

// Clear marks doc deleted, returning true if it was previously live.
func (l *LiveDocs) Clear(doc uint32) bool {
	if doc >= l.maxDoc || !l.Get(doc) {
		return false
	}
	l.bits[doc/8] &^= 1 << (doc % 8)
	return true
}

// Cardinality returns the number of live (set) bits, for invariant checks
// (sum(live_docs.bits()) + del_count == max_doc).
func (l *LiveDocs) Cardinality() uint32 {
	var n uint32
	for _, b := range l.bits {
		for b != 0 {
			n++
			b &= b - 1
		}
	}
	return n
}

func (l *LiveDocs) clone() *LiveDocs {
	cp := make([]byte, len(l.bits))
	copy(cp, l.bits)
	return &LiveDocs{bits: cp, maxDoc: l.maxDoc}
}

// WriteLiveDocs persists a generation's live-docs bitset to its
// _<seg>_<gen>.liv file.
func WriteLiveDocs(dir store.Directory, segName string, gen uint64, l *LiveDocs) error {
	name := codec.LiveDocsFileName(segName, gen)
	out, err := dir.CreateOutput(name)
	if err != nil {
		return err
	}
	if err := out.WriteBytes(l.bits); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return dir.Sync([]string{name})
}

// ReadLiveDocs loads a segment's live-docs file for the given generation.
func ReadLiveDocs(dir store.Directory, segName string, gen uint64, maxDoc uint32) (*LiveDocs, error) {
	name := codec.LiveDocsFileName(segName, gen)
	in, err := dir.OpenInput(name, store.IOContextRead)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	expected := int((maxDoc + 7) / 8)
	bits, err := in.ReadBytes(expected)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read live docs bits", err)
	}
	return &LiveDocs{bits: bits, maxDoc: maxDoc}, nil
}
