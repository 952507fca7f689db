package index

import (
	"sync"
	"sync/atomic"

	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// Term names a (field, term_bytes) pair, the unit delete_documents buffers
// and matches against. Defined in this package (rather than search, which
// imports index) since deletion application is a writer-side concern.
type Term struct {
	Field string
	Bytes []byte
}

// Writer is the outer, synchronous indexing pipeline: spec.md §4.C's
// "Writer (outer layer)" plus the commit/rollback/force-merge machinery of
// §4.D/§4.H. Grounded on bluge/index/writer.go's Writer (directory lock
// acquired in the constructor, a guarding mutex, a monotonic sequence
// counter, Close via sync.Once) but collapsed from bluge's async
// epoch/introducer pipeline to the single-DWPT synchronous model spec.md
// §5 mandates: add_document/commit/flush/force_merge/rollback/close each
// hold the writer mutex for their full duration.
type Writer struct {
	dir    store.Directory
	cfg    WriterConfig
	lock   store.Lock

	mu          sync.Mutex
	closeOnce   sync.Once
	closed      bool
	buf         *dwpt
	pending     *SegmentInfos // segments added since the last commit, plus already-committed ones
	deleteQueue []Term

	segNameCounter uint64
	seqNo          uint64
}

// NewWriter opens dir for writing, obtaining its single-writer lock and
// loading the latest commit (or starting empty, per cfg.OpenMode).
func NewWriter(dir store.Directory, cfg WriterConfig) (*Writer, error) {
	lock, err := dir.ObtainLock("write.lock")
	if err != nil {
		return nil, errs.Wrap(errs.LockObtainFailed, "obtain writer lock", err)
	}
	var sis *SegmentInfos
	switch cfg.OpenMode {
	case OpenModeCreate:
		sis = NewSegmentInfos()
	default:
		sis, err = OpenLatestSegmentInfos(dir)
		if err != nil {
			lock.Release()
			return nil, err
		}
		if cfg.OpenMode == OpenModeAppend && len(sis.Segments) == 0 {
			lock.Release()
			return nil, errs.New(errs.InvalidArgument, "append mode requires an existing commit")
		}
	}

	w := &Writer{dir: dir, cfg: cfg, lock: lock, pending: sis}
	w.segNameCounter = highestSegmentOrdinal(sis) + 1
	w.buf = newDWPT(dir, w.nextSegmentName)
	return w, nil
}

func highestSegmentOrdinal(sis *SegmentInfos) uint64 {
	var max uint64
	for _, si := range sis.Segments {
		if v, ok := parseManifestName("segments_" + si.Name[1:]); ok && v > max {
			max = v
		}
	}
	return max
}

func (w *Writer) nextSegmentName() string {
	n := atomic.AddUint64(&w.segNameCounter, 1) - 1
	return "_" + uint64ToHex(n)
}

func (w *Writer) checkOpen() error {
	if w.closed {
		return errs.New(errs.AlreadyClosed, "writer is closed")
	}
	return nil
}

// AddDocument delegates to the active DWPT, flushing and registering a new
// segment if thresholds trip.
func (w *Writer) AddDocument(doc *document.Document) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return 0, err
	}
	w.buf.addDocument(doc)
	seq := atomic.AddUint64(&w.seqNo, 1)
	if w.buf.needsFlush(w.cfg.MaxBufferedDocs, w.cfg.ramBufferBytes()) {
		if err := w.flushLocked(); err != nil {
			return seq, err
		}
	}
	return seq, nil
}

// DeleteDocuments buffers a delete-by-term, applied at the next commit or
// force-merge per spec.md §4.H.
func (w *Writer) DeleteDocuments(t Term) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return 0, err
	}
	w.deleteQueue = append(w.deleteQueue, t)
	return atomic.AddUint64(&w.seqNo, 1), nil
}

// UpdateDocument is delete_documents(term) followed by add_document(doc),
// atomic only at the next commit boundary, per spec.md §4.H.
func (w *Writer) UpdateDocument(t Term, doc *document.Document) (uint64, error) {
	if _, err := w.DeleteDocuments(t); err != nil {
		return 0, err
	}
	return w.AddDocument(doc)
}

// Flush forces the active DWPT to write a new segment now, without
// committing (the new segment is not yet durable/visible to readers).
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return err
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	si, err := w.buf.flush()
	if err != nil {
		return err
	}
	if si != nil {
		w.pending.Segments = append(w.pending.Segments, si)
	}
	return nil
}

// Commit flushes the active buffer, applies buffered deletions to the
// affected segments, advances the commit generation, and atomically
// publishes the new segments_<gen> manifest, per spec.md §4.C/§4.D/§6.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return err
	}
	return w.commitLocked()
}

func (w *Writer) commitLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.applyDeletionsLocked(); err != nil {
		return err
	}
	w.pending.Generation++
	if err := commitManifest(w.dir, w.pending); err != nil {
		return err
	}
	return nil
}

// applyDeletionsLocked resolves every buffered delete-by-term against
// every segment currently in w.pending, clearing live-docs bits and
// writing a new .liv generation for any segment that lost at least one
// doc, per spec.md §4.H.
func (w *Writer) applyDeletionsLocked() error {
	if len(w.deleteQueue) == 0 {
		return nil
	}
	defer func() { w.deleteQueue = nil }()

	for _, si := range w.pending.Segments {
		sr, err := OpenSegmentReader(w.dir, si)
		if err != nil {
			return err
		}
		ld := si.LiveDocsGen
		var live *LiveDocs
		if sr.LiveDocs() != nil {
			live = sr.LiveDocs().clone()
		} else {
			live = NewLiveDocs(si.MaxDoc)
		}
		cleared := uint32(0)
		for _, t := range w.deleteQueue {
			td, err := sr.Terms(t.Field)
			if err != nil {
				sr.DecRef()
				return err
			}
			if td == nil {
				continue
			}
			entry, found, err := td.SeekExact(t.Bytes)
			if err != nil {
				sr.DecRef()
				return err
			}
			if !found {
				continue
			}
			pe, err := sr.OpenPostings(t.Field, entry)
			if err != nil {
				sr.DecRef()
				return err
			}
			for {
				d, err := pe.NextDoc()
				if err != nil {
					pe.Close()
					sr.DecRef()
					return err
				}
				if d == codec.NoMoreDocs {
					break
				}
				if live.Clear(d) {
					cleared++
				}
			}
			pe.Close()
		}
		if err := sr.DecRef(); err != nil {
			return err
		}
		if cleared == 0 {
			continue
		}
		newGen := ld + 1
		if err := WriteLiveDocs(w.dir, si.Name, newGen, live); err != nil {
			return err
		}
		si.DelCount += cleared
		si.LiveDocsGen = newGen
		si.Files = append(si.Files, codec.LiveDocsFileName(si.Name, newGen))
	}
	return nil
}

// Rollback discards the active buffer and any uncommitted segment
// additions, reloads the last committed manifest, then closes the writer.
func (w *Writer) Rollback() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.buf.reset()
	w.deleteQueue = nil
	sis, err := OpenLatestSegmentInfos(w.dir)
	if err != nil {
		w.closeLocked()
		return err
	}
	w.pending = sis
	return w.closeLocked()
}

// ForceMerge reduces the committed segment count to at most maxSegments by
// repeatedly merging the smallest segments together, per spec.md §4.C's
// greedy smallest-first policy, then commits.
func (w *Writer) ForceMerge(maxSegments int) error {
	if maxSegments <= 0 {
		return errs.New(errs.InvalidArgument, "force_merge requires max_segments > 0")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	for len(w.pending.Segments) > maxSegments {
		victims := smallestSegments(w.pending.Segments, len(w.pending.Segments)-maxSegments+1)
		merged, err := mergeSegments(w.dir, victims, w.nextSegmentName())
		if err != nil {
			return err
		}
		w.pending.Segments = replaceSegments(w.pending.Segments, victims, merged)
	}
	return w.commitLocked()
}

// Close flushes and commits (if cfg.CommitOnClose), then releases the
// writer lock. Idempotent: a second Close is not an error.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if w.cfg.CommitOnClose {
		if err := w.commitLocked(); err != nil {
			w.closeLocked()
			return err
		}
	}
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	w.closeOnce.Do(func() { err = w.lock.Release() })
	return err
}
