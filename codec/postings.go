package codec

import (
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// PostingsBlockSize is the fixed block size the .doc skip index is built
// over: one (last_doc_id, max_score, pos_offset) skip entry every 128 docs.
const PostingsBlockSize = 128

// PostingsWriter accumulates one term's postings (already presented in
// strictly ascending doc-id order) and writes them into the segment's
// shared .doc/.pos output streams in fixed-size blocks with block-max skip
// metadata, per spec.md §6's .doc/.pos layouts. In place of Lucene's
// PFOR/Stream-VByte bit-packing, entries within a block are vint-coded with
// an explicit byte-length prefix so PostingsEnum.Advance can skip a whole
// non-competitive block without decoding it (see DESIGN.md: a documented
// simplification of the physical packing, not of the skip/block-max
// contract itself).
type PostingsWriter struct {
	docOut, posOut store.IndexOutput
	hasPositions   bool
	avgLen         float64

	docStart int64
	posStart int64
	posSet   bool

	docFreq       uint64
	totalTermFreq uint64

	blockDocs     []uint32 // deltas pending in current block
	blockFreqs    []uint32
	blockMaxFreq  uint32
	blockMinLen   float64
	blockPosStart int64 // posOut.FilePointer() at this block's first posting
	lastDocID     int64
	haveDoc       bool
}

func NewPostingsWriter(docOut, posOut store.IndexOutput, hasPositions bool, avgLen float64) *PostingsWriter {
	return &PostingsWriter{
		docOut: docOut, posOut: posOut, hasPositions: hasPositions, avgLen: avgLen,
		lastDocID: -1, blockMinLen: -1,
	}
}

// AddPosting appends one document's posting. positions is ignored unless
// hasPositions is true. normByte is this doc's encoded field-length norm,
// used only to compute the block's BM25 upper bound.
func (w *PostingsWriter) AddPosting(docID uint32, freq uint32, positions []uint32, normByte byte) error {
	if !w.haveDoc {
		w.docStart = w.docOut.FilePointer()
		w.haveDoc = true
	}
	delta := uint32(int64(docID) - w.lastDocID)
	w.lastDocID = int64(docID)
	w.docFreq++
	w.totalTermFreq += uint64(freq)

	if len(w.blockDocs) == 0 && w.hasPositions {
		w.blockPosStart = w.posOut.FilePointer()
	}
	w.blockDocs = append(w.blockDocs, delta)
	w.blockFreqs = append(w.blockFreqs, freq)
	if freq > w.blockMaxFreq {
		w.blockMaxFreq = freq
	}
	docLen := DecodeNormLength(normByte)
	if w.blockMinLen < 0 || docLen < w.blockMinLen {
		w.blockMinLen = docLen
	}

	if w.hasPositions {
		if !w.posSet {
			w.posStart = w.posOut.FilePointer()
			w.posSet = true
		}
		prev := int64(-1)
		for _, p := range positions {
			d := uint32(int64(p) - prev)
			prev = int64(p)
			if err := w.posOut.WriteVInt(d); err != nil {
				return err
			}
		}
	}

	if len(w.blockDocs) >= PostingsBlockSize {
		return w.flushBlock()
	}
	return nil
}

func (w *PostingsWriter) flushBlock() error {
	if len(w.blockDocs) == 0 {
		return nil
	}
	maxScore := BM25TermComponent(int(w.blockMaxFreq), w.blockMinLen, w.avgLen)

	// encode the (delta, freq) payload first so its byte length is known
	var payload []byte
	for i := range w.blockDocs {
		payload = appendVInt(payload, w.blockDocs[i])
		payload = appendVInt(payload, w.blockFreqs[i])
	}

	if err := w.docOut.WriteVLong(uint64(w.lastDocID)); err != nil {
		return err
	}
	if err := w.docOut.WriteInt(scoreToFloatBits(maxScore)); err != nil {
		return err
	}
	posOffsetAtStart := uint64(0)
	if w.hasPositions {
		posOffsetAtStart = uint64(w.blockPosStart)
	}
	if err := w.docOut.WriteVLong(posOffsetAtStart); err != nil {
		return err
	}
	if err := w.docOut.WriteVInt(uint32(len(w.blockDocs))); err != nil {
		return err
	}
	if err := w.docOut.WriteVInt(uint32(len(payload))); err != nil {
		return err
	}
	if err := w.docOut.WriteBytes(payload); err != nil {
		return err
	}

	w.blockDocs = w.blockDocs[:0]
	w.blockFreqs = w.blockFreqs[:0]
	w.blockMaxFreq = 0
	w.blockMinLen = -1
	return nil
}

func appendVInt(dst []byte, v uint32) []byte {
	return store.EncodeVInt(dst, v)
}

// Finish flushes any residual partial block and returns this term's
// dictionary-entry fields.
func (w *PostingsWriter) Finish() (docFreq, totalTermFreq, docFileOffset, posFileOffset uint64, err error) {
	if err = w.flushBlock(); err != nil {
		return 0, 0, 0, 0, err
	}
	posOff := uint64(0)
	if w.hasPositions && w.posSet {
		posOff = uint64(w.posStart)
	}
	return w.docFreq, w.totalTermFreq, uint64(w.docStart), posOff, nil
}

// --- reading ---

const noMoreDocs = ^uint32(0)

// NoMoreDocs is the sentinel PostingsEnum.NextDoc/Advance return once
// exhausted.
const NoMoreDocs = noMoreDocs

// PostingsEnum iterates one term's postings in strictly ascending doc-id
// order, exposing block-max metadata for WAND pruning.
type PostingsEnum struct {
	doc          store.IndexInput
	pos          store.IndexInput
	hasPositions bool

	docFreq   uint64
	remaining uint64 // docs of this term not yet returned; the enum's only exhaustion signal

	curDocID  uint32
	curFreq   uint32
	exhausted bool
	started   bool

	blockLastDocID  uint32
	blockMaxScore   float64
	blockPosOffset  uint64
	blockRemaining  uint32
	blockPayloadLen uint32
	enteredNewBlock bool

	payload    []byte
	payloadPos int

	posReadPending uint32 // positions not yet consumed for the current doc
	posPrev        int64  // running absolute position for delta decode
}

// OpenPostingsEnum opens a term's posting stream at docFileOffset (from its
// TermEntry). posInput may be nil if the field has no positions.
func OpenPostingsEnum(docInput store.IndexInput, posInput store.IndexInput, docFileOffset uint64, docFreq uint64, hasPositions bool) (*PostingsEnum, error) {
	din, err := docInput.Clone()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "clone doc", err)
	}
	if err := din.Seek(int64(docFileOffset)); err != nil {
		return nil, errs.Wrap(errs.IO, "seek doc", err)
	}
	var pin store.IndexInput
	if hasPositions && posInput != nil {
		pin, err = posInput.Clone()
		if err != nil {
			return nil, errs.Wrap(errs.IO, "clone pos", err)
		}
	}
	return &PostingsEnum{doc: din, pos: pin, hasPositions: hasPositions, docFreq: docFreq, remaining: docFreq, curDocID: noMoreDocs}, nil
}

func (e *PostingsEnum) Count() uint64 { return e.docFreq }

func (e *PostingsEnum) readBlockHeader() error {
	lastDoc, err := e.doc.ReadVLong()
	if err != nil {
		return err
	}
	scoreBits, err := e.doc.ReadInt()
	if err != nil {
		return err
	}
	posOff, err := e.doc.ReadVLong()
	if err != nil {
		return err
	}
	n, err := e.doc.ReadVInt()
	if err != nil {
		return err
	}
	payloadLen, err := e.doc.ReadVInt()
	if err != nil {
		return err
	}
	payload, err := e.doc.ReadBytes(int(payloadLen))
	if err != nil {
		return err
	}
	e.blockLastDocID = uint32(lastDoc)
	e.blockMaxScore = floatBitsToScore(scoreBits)
	e.blockPosOffset = posOff
	e.blockRemaining = n
	e.payload = payload
	e.payloadPos = 0
	e.enteredNewBlock = true
	return nil
}

func readVIntFrom(b []byte, pos *int) uint32 {
	var v uint32
	var shift uint
	for {
		c := b[*pos]
		*pos++
		v |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return v
		}
		shift += 7
	}
}

// NextDoc advances to the next posting, returning NoMoreDocs at the end.
func (e *PostingsEnum) NextDoc() (uint32, error) {
	if e.exhausted || e.remaining == 0 {
		// remaining is the term's own docFreq bound: the .doc/.pos streams
		// are shared by every term in the field, so file EOF is not a valid
		// stop condition, only having returned docFreq docs is.
		e.exhausted = true
		e.curDocID = noMoreDocs
		return noMoreDocs, nil
	}
	for e.blockRemaining == 0 {
		if err := e.readBlockHeader(); err != nil {
			e.exhausted = true
			return noMoreDocs, err
		}
		if e.blockRemaining == 0 {
			e.exhausted = true
			e.curDocID = noMoreDocs
			return noMoreDocs, nil
		}
	}
	if e.hasPositions {
		if e.enteredNewBlock {
			// a fresh block may follow docs whose positions the caller
			// never consumed (e.g. a plain TermQuery); the seek below
			// resets the cursor regardless, so nothing to skip.
			e.posReadPending = 0
			if e.pos != nil {
				if err := e.pos.Seek(int64(e.blockPosOffset)); err != nil {
					return noMoreDocs, err
				}
			}
		} else {
			// skip over any positions of the previous doc the caller did
			// not consume, keeping the shared pos cursor in sync.
			for e.posReadPending > 0 {
				if _, err := e.pos.ReadVInt(); err != nil {
					return noMoreDocs, err
				}
				e.posReadPending--
			}
		}
	}
	e.enteredNewBlock = false

	delta := readVIntFrom(e.payload, &e.payloadPos)
	freq := readVIntFrom(e.payload, &e.payloadPos)
	if !e.started {
		// the writer codes the first doc-id as a delta from -1
		e.curDocID = delta - 1
		e.started = true
	} else {
		e.curDocID += delta
	}
	e.curFreq = freq
	e.blockRemaining--
	e.remaining--
	if e.hasPositions {
		e.posReadPending = freq
		e.posPrev = -1
	}
	return e.curDocID, nil
}

// Advance skips forward to the first doc-id >= target, using the block-max
// skip metadata to avoid decoding whole non-competitive blocks.
func (e *PostingsEnum) Advance(target uint32) (uint32, error) {
	if e.exhausted {
		return noMoreDocs, nil
	}
	// fast path: whenever the *whole* current block's last doc-id is still
	// below target, discard it without decoding a single entry (its payload
	// bytes were already read whole by readBlockHeader) and move on to the
	// next block header. This is the actual skip win block-max metadata
	// buys: a non-competitive or simply too-early block costs one header
	// read, not len(block) vint decodes.
	for e.blockRemaining > 0 && e.blockLastDocID < target {
		// discard this whole block's docs from the term's remaining bound
		// before deciding whether another block header even belongs to
		// this term.
		e.remaining -= uint64(e.blockRemaining)
		e.blockRemaining = 0
		e.curDocID = e.blockLastDocID
		e.started = true
		if e.remaining == 0 {
			e.exhausted = true
			e.curDocID = noMoreDocs
			return noMoreDocs, nil
		}
		if err := e.readBlockHeader(); err != nil {
			e.exhausted = true
			return noMoreDocs, err
		}
	}
	for {
		d, err := e.NextDoc()
		if err != nil || d == noMoreDocs {
			return d, err
		}
		if d >= target {
			return d, nil
		}
	}
}

func (e *PostingsEnum) DocID() uint32 { return e.curDocID }
func (e *PostingsEnum) Freq() uint32  { return e.curFreq }

// BlockMaxDocID / BlockMaxScore expose the current skip block's bounds for
// WAND pruning (score component only; callers multiply by boost*idf).
func (e *PostingsEnum) BlockMaxDocID() uint32  { return e.blockLastDocID }
func (e *PostingsEnum) BlockMaxScore() float64 { return e.blockMaxScore }

// NextPosition returns the next position for the current document; callers
// must call it exactly Freq() times, in order, before calling NextDoc again.
func (e *PostingsEnum) NextPosition() (uint32, error) {
	if e.pos == nil || e.posReadPending == 0 {
		return 0, errs.New(errs.IllegalState, "no more positions")
	}
	d, err := e.pos.ReadVInt()
	if err != nil {
		return 0, err
	}
	e.posPrev += int64(d)
	e.posReadPending--
	return uint32(e.posPrev), nil
}

func (e *PostingsEnum) Close() error {
	var err error
	if e.doc != nil {
		err = e.doc.Close()
	}
	if e.pos != nil {
		if perr := e.pos.Close(); err == nil {
			err = perr
		}
	}
	return err
}
