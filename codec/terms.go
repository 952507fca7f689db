package codec

import (
	"math"

	"github.com/blevesearch/vellum"

	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// termsPerBlock bounds the .tim physical packing granularity: spec.md §4.B
// calls for "leaf blocks of up to 48 terms". Each block is self-describing
// (a term-count header followed by that many self-contained entries), so
// TermsEnum.Next transparently crosses block boundaries by simply reading
// the next block header once the current one is exhausted — no separate
// "next block pointer" is needed because blocks for a field are written
// contiguously in the append-only .tim stream.
//
// Random access (seek_exact/seek_ceil) does not walk blocks at all: every
// term is a key in the field's vellum FST, whose value is the absolute
// .tim offset of that term's self-contained entry. This is the teacher's
// own indexing strategy (github.com/blugelabs/ice/dict.go's Dictionary
// keys the FST directly by full term -> postings offset, never building a
// separate block-tree inner index over block-first-terms); keeping every
// term in the FST, while still grouping the physical bytes into blocks,
// gets the best of both without the two-level inner-index machinery
// Lucene's own .tip format uses for its much larger dictionaries.
const termsPerBlock = 48

type timEntry struct {
	term           []byte
	docFreq        uint64
	totalTermFreq  uint64
	docFileOffset  uint64
	posFileOffset  uint64
}

// TermDictWriter accumulates one field's terms (already presented in sorted
// order by the caller) and writes them to the shared .tim/.tip outputs.
type TermDictWriter struct {
	tim       store.IndexOutput
	builder   *vellum.Builder
	pending   []timEntry
	first     int64
	started   bool
	termCount uint64
}

// NewTermDictWriter begins writing one field's section. tipFST must be a
// fresh vellum.Builder writing into this field's dedicated region of .tip
// (the caller tracks the byte range so multiple fields can share one .tip
// stream).
func NewTermDictWriter(tim store.IndexOutput, tipFST *vellum.Builder) *TermDictWriter {
	return &TermDictWriter{tim: tim, builder: tipFST}
}

// AddTerm appends one term's already-written posting offsets. Terms must
// be presented in strictly ascending byte order.
func (w *TermDictWriter) AddTerm(term []byte, docFreq, totalTermFreq, docFileOffset, posFileOffset uint64) error {
	if !w.started {
		w.first = w.tim.FilePointer()
		w.started = true
	}
	cp := make([]byte, len(term))
	copy(cp, term)
	w.pending = append(w.pending, timEntry{
		term: cp, docFreq: docFreq, totalTermFreq: totalTermFreq,
		docFileOffset: docFileOffset, posFileOffset: posFileOffset,
	})
	w.termCount++
	if len(w.pending) >= termsPerBlock {
		return w.flushBlock()
	}
	return nil
}

func (w *TermDictWriter) flushBlock() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.tim.WriteVInt(uint32(len(w.pending))); err != nil {
		return err
	}
	for _, e := range w.pending {
		offset := uint64(w.tim.FilePointer())
		if err := w.tim.WriteVInt(uint32(len(e.term))); err != nil {
			return err
		}
		if err := w.tim.WriteBytes(e.term); err != nil {
			return err
		}
		if err := w.tim.WriteVLong(e.docFreq); err != nil {
			return err
		}
		if err := w.tim.WriteVLong(e.totalTermFreq); err != nil {
			return err
		}
		if err := w.tim.WriteVLong(e.docFileOffset); err != nil {
			return err
		}
		if err := w.tim.WriteVLong(e.posFileOffset); err != nil {
			return err
		}
		if err := w.builder.Insert(e.term, offset); err != nil {
			return errs.Wrap(errs.IO, "fst insert", err)
		}
	}
	w.pending = w.pending[:0]
	return nil
}

// Finish flushes any residual partial block and closes the field's FST
// builder. It returns the .tim offset where this field's first block
// begins, the number of terms written, and whether the field had any
// terms at all.
func (w *TermDictWriter) Finish() (firstBlockOffset int64, termCount uint64, hasTerms bool, err error) {
	if err = w.flushBlock(); err != nil {
		return 0, 0, false, err
	}
	if err = w.builder.Close(); err != nil {
		return 0, 0, false, errs.Wrap(errs.IO, "fst close", err)
	}
	return w.first, w.termCount, w.started, nil
}

// --- reading ---

// TermDictionary is the read side of one field's term dictionary: a loaded
// FST for exact/ceiling seeks plus the region of .tim holding this field's
// blocks, for full sorted iteration.
type TermDictionary struct {
	tim         store.IndexInput
	fst         *vellum.FST
	timStart    int64
	termCount   uint64
}

// LoadTermDictionary loads a field's FST (fstBytes must be exactly that
// field's .tip region) and remembers where its .tim blocks begin.
func LoadTermDictionary(tim store.IndexInput, fstBytes []byte, timStart int64, termCount uint64) (*TermDictionary, error) {
	if termCount == 0 {
		return &TermDictionary{tim: tim, timStart: timStart, termCount: 0}, nil
	}
	fst, err := vellum.Load(fstBytes)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "load fst", err)
	}
	return &TermDictionary{tim: tim, fst: fst, timStart: timStart, termCount: termCount}, nil
}

// SeekResult is the outcome of a ceiling seek.
type SeekResult int

const (
	SeekFound SeekResult = iota
	SeekNotFound
	SeekEnd
)

// SeekExact looks up term exactly, returning its entry if present.
func (d *TermDictionary) SeekExact(term []byte) (*TermEntry, bool, error) {
	if d.fst == nil {
		return nil, false, nil
	}
	offset, exists, err := d.fst.Get(term)
	if err != nil {
		return nil, false, errs.Wrap(errs.IO, "fst get", err)
	}
	if !exists {
		return nil, false, nil
	}
	entry, err := d.readEntryAt(int64(offset))
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// SeekCeil returns the smallest term >= target, or SeekEnd if none exists.
func (d *TermDictionary) SeekCeil(target []byte) (SeekResult, *TermEntry, error) {
	if d.fst == nil {
		return SeekEnd, nil, nil
	}
	itr, err := d.fst.Iterator(target, nil)
	if err == vellum.ErrIteratorDone {
		return SeekEnd, nil, nil
	}
	if err != nil {
		return SeekEnd, nil, errs.Wrap(errs.IO, "fst iterator", err)
	}
	key, offset := itr.Current()
	entry, err := d.readEntryAt(int64(offset))
	if err != nil {
		return SeekEnd, nil, err
	}
	if string(key) == string(target) {
		return SeekFound, entry, nil
	}
	return SeekNotFound, entry, nil
}

func (d *TermDictionary) readEntryAt(offset int64) (*TermEntry, error) {
	in, err := d.tim.Clone()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "clone tim", err)
	}
	defer in.Close()
	if err := in.Seek(offset); err != nil {
		return nil, errs.Wrap(errs.IO, "seek tim", err)
	}
	return decodeTimEntry(in)
}

func decodeTimEntry(in store.IndexInput) (*TermEntry, error) {
	termLen, err := in.ReadVInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read term len", err)
	}
	term, err := in.ReadBytes(int(termLen))
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read term", err)
	}
	e := &TermEntry{Term: term}
	if e.DocFreq, err = in.ReadVLong(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read doc freq", err)
	}
	if e.TotalTermFreq, err = in.ReadVLong(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read total term freq", err)
	}
	if e.DocFileOffset, err = in.ReadVLong(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read doc file offset", err)
	}
	if e.PosFileOffset, err = in.ReadVLong(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read pos file offset", err)
	}
	return e, nil
}

// TermEntry is one term's decoded dictionary record.
type TermEntry struct {
	Term          []byte
	DocFreq       uint64
	TotalTermFreq uint64
	DocFileOffset uint64
	PosFileOffset uint64
}

// TermsIterator yields every term of a field in strictly ascending order by
// reading .tim blocks sequentially, starting at the field's first block and
// stopping once termCount entries have been produced.
type TermsIterator struct {
	in        store.IndexInput
	remaining uint64
	inBlock   uint32
}

// Iterator begins full sorted iteration over this field's terms.
func (d *TermDictionary) Iterator() (*TermsIterator, error) {
	if d.termCount == 0 {
		return &TermsIterator{remaining: 0}, nil
	}
	in, err := d.tim.Clone()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "clone tim", err)
	}
	if err := in.Seek(d.timStart); err != nil {
		return nil, errs.Wrap(errs.IO, "seek tim", err)
	}
	return &TermsIterator{in: in, remaining: d.termCount}, nil
}

// Next advances and returns the next term, or (nil, nil) at end.
func (it *TermsIterator) Next() (*TermEntry, error) {
	if it.remaining == 0 {
		return nil, nil
	}
	if it.inBlock == 0 {
		n, err := it.in.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read block header", err)
		}
		it.inBlock = n
	}
	entry, err := decodeTimEntry(it.in)
	if err != nil {
		return nil, err
	}
	it.inBlock--
	it.remaining--
	return entry, nil
}

func (it *TermsIterator) Close() error {
	if it.in != nil {
		return it.in.Close()
	}
	return nil
}

// TermDictDirEntry locates one field's term dictionary: the byte range of
// its FST within the shared .tip stream, the offset of its first .tim
// block, and its term count (needed to bound TermsIterator).
type TermDictDirEntry struct {
	FieldNumber      uint32
	TipOffset        int64
	TipLength        int64
	TimStart         int64
	TermCount        uint64
}

// WriteTermDictDirectory appends a trailer to .tip listing every field's
// FST byte range, terminated by a fixed-width pointer back to the
// trailer's own start so a reader can find it without a separate file.
// Grounded on the same trailer-pointer idiom ice/footer.go uses to locate
// its own chunk directory from the end of its single segment file.
func WriteTermDictDirectory(tip store.IndexOutput, entries []TermDictDirEntry) error {
	trailerStart := tip.FilePointer()
	if err := tip.WriteVInt(uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := tip.WriteVInt(e.FieldNumber); err != nil {
			return err
		}
		if err := tip.WriteVLong(uint64(e.TipOffset)); err != nil {
			return err
		}
		if err := tip.WriteVLong(uint64(e.TipLength)); err != nil {
			return err
		}
		if err := tip.WriteVLong(uint64(e.TimStart)); err != nil {
			return err
		}
		if err := tip.WriteVLong(e.TermCount); err != nil {
			return err
		}
	}
	return tip.WriteLong(uint64(trailerStart))
}

// ReadTermDictDirectory reads .tip's trailer: the final 8 bytes give the
// trailer's start offset, from which the field directory is parsed.
func ReadTermDictDirectory(tip store.IndexInput) (map[uint32]TermDictDirEntry, error) {
	if tip.Length() < 8 {
		return map[uint32]TermDictDirEntry{}, nil
	}
	if err := tip.Seek(tip.Length() - 8); err != nil {
		return nil, errs.Wrap(errs.IO, "seek tip trailer pointer", err)
	}
	trailerStart, err := tip.ReadLong()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read tip trailer pointer", err)
	}
	if err := tip.Seek(int64(trailerStart)); err != nil {
		return nil, errs.Wrap(errs.IO, "seek tip trailer", err)
	}
	count, err := tip.ReadVInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read tip field count", err)
	}
	dir := make(map[uint32]TermDictDirEntry, count)
	for i := uint32(0); i < count; i++ {
		var e TermDictDirEntry
		if e.FieldNumber, err = tip.ReadVInt(); err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read tip field number", err)
		}
		off, err := tip.ReadVLong()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read tip offset", err)
		}
		e.TipOffset = int64(off)
		ln, err := tip.ReadVLong()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read tip length", err)
		}
		e.TipLength = int64(ln)
		ts, err := tip.ReadVLong()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read tim start", err)
		}
		e.TimStart = int64(ts)
		if e.TermCount, err = tip.ReadVLong(); err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read term count", err)
		}
		dir[e.FieldNumber] = e
	}
	return dir, nil
}

// floatBitsToScore / scoreToFloatBits convert the block-max score component
// between its float32 form and the fixed-width on-disk representation.
func floatBitsToScore(bits uint32) float64 { return float64(math.Float32frombits(bits)) }
func scoreToFloatBits(v float64) uint32    { return math.Float32bits(float32(v)) }
