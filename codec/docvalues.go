package codec

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// NumericDocValuesWriter writes the .dvd/.dvm pair for numeric doc-values
// fields: a roaring bitmap of which docs carry a value (most doc-values
// fields are sparse across a segment) followed by a flat array of fixed
// 8-byte values, one per set bit in ascending doc-id order. Grounded on
// ice/chunk.go's use of a roaring.Bitmap to mark which docs a chunked value
// column covers, adapted here to the spec's dedicated per-segment .dvd/.dvm
// files instead of ice's chunked single-file layout.
type NumericDocValuesWriter struct {
	dvd    store.IndexOutput
	fields []dvFieldEntry
}

type dvFieldEntry struct {
	fieldNumber uint32
	bitmapOff   int64
	bitmapLen   uint32
	valuesOff   int64
	count       uint32
}

func NewNumericDocValuesWriter(dvd store.IndexOutput) *NumericDocValuesWriter {
	return &NumericDocValuesWriter{dvd: dvd}
}

// WriteField appends one field's (docID -> value) map, which callers must
// present with strictly ascending doc-ids.
func (w *NumericDocValuesWriter) WriteField(fieldNumber uint32, docIDs []uint32, values []int64) error {
	bm := roaring.New()
	for _, d := range docIDs {
		bm.Add(d)
	}
	bm.RunOptimize()
	bitmapBytes, err := bm.ToBytes()
	if err != nil {
		return errs.Wrap(errs.IO, "serialize doc values bitmap", err)
	}
	bitmapOff := w.dvd.FilePointer()
	if err := w.dvd.WriteBytes(bitmapBytes); err != nil {
		return err
	}
	valuesOff := w.dvd.FilePointer()
	for _, v := range values {
		if err := w.dvd.WriteLong(uint64(v)); err != nil {
			return err
		}
	}
	w.fields = append(w.fields, dvFieldEntry{
		fieldNumber: fieldNumber,
		bitmapOff:   bitmapOff,
		bitmapLen:   uint32(len(bitmapBytes)),
		valuesOff:   valuesOff,
		count:       uint32(len(values)),
	})
	return nil
}

// Finish writes the .dvm directory.
func (w *NumericDocValuesWriter) Finish(dvm store.IndexOutput) error {
	if err := dvm.WriteVInt(uint32(len(w.fields))); err != nil {
		return err
	}
	for _, f := range w.fields {
		if err := dvm.WriteVInt(f.fieldNumber); err != nil {
			return err
		}
		if err := dvm.WriteVLong(uint64(f.bitmapOff)); err != nil {
			return err
		}
		if err := dvm.WriteVInt(f.bitmapLen); err != nil {
			return err
		}
		if err := dvm.WriteVLong(uint64(f.valuesOff)); err != nil {
			return err
		}
		if err := dvm.WriteVInt(f.count); err != nil {
			return err
		}
	}
	return nil
}

// NumericDocValuesReader loads a segment's .dvm directory and resolves
// per-field, per-doc numeric values against .dvd.
type NumericDocValuesReader struct {
	dvd     store.IndexInput
	byField map[uint32]*numericDVField
}

type numericDVField struct {
	entry  dvFieldEntry
	bitmap *roaring.Bitmap
}

func ReadNumericDocValuesDirectory(dvm store.IndexInput, dvd store.IndexInput) (*NumericDocValuesReader, error) {
	count, err := dvm.ReadVInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read doc values field count", err)
	}
	r := &NumericDocValuesReader{dvd: dvd, byField: make(map[uint32]*numericDVField, count)}
	for i := uint32(0); i < count; i++ {
		fieldNumber, err := dvm.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read doc values field number", err)
		}
		bitmapOff, err := dvm.ReadVLong()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read doc values bitmap offset", err)
		}
		bitmapLen, err := dvm.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read doc values bitmap length", err)
		}
		valuesOff, err := dvm.ReadVLong()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read doc values values offset", err)
		}
		cnt, err := dvm.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read doc values count", err)
		}
		r.byField[fieldNumber] = &numericDVField{entry: dvFieldEntry{
			fieldNumber: fieldNumber,
			bitmapOff:   int64(bitmapOff),
			bitmapLen:   bitmapLen,
			valuesOff:   int64(valuesOff),
			count:       cnt,
		}}
	}
	return r, nil
}

func (r *NumericDocValuesReader) loadBitmap(f *numericDVField) (*roaring.Bitmap, error) {
	if f.bitmap != nil {
		return f.bitmap, nil
	}
	in, err := r.dvd.Clone()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "clone dvd", err)
	}
	defer in.Close()
	if err := in.Seek(f.entry.bitmapOff); err != nil {
		return nil, errs.Wrap(errs.IO, "seek dvd bitmap", err)
	}
	raw, err := in.ReadBytes(int(f.entry.bitmapLen))
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read dvd bitmap", err)
	}
	bm := roaring.New()
	if _, err := bm.FromBuffer(raw); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "decode dvd bitmap", err)
	}
	f.bitmap = bm
	return bm, nil
}

// Get returns fieldNumber's value for docID and whether it is present.
func (r *NumericDocValuesReader) Get(fieldNumber uint32, docID uint32) (int64, bool, error) {
	f, ok := r.byField[fieldNumber]
	if !ok {
		return 0, false, nil
	}
	bm, err := r.loadBitmap(f)
	if err != nil {
		return 0, false, err
	}
	if !bm.Contains(docID) {
		return 0, false, nil
	}
	rank := bm.Rank(docID) - 1 // Rank is 1-based count of values <= docID
	in, err := r.dvd.Clone()
	if err != nil {
		return 0, false, errs.Wrap(errs.IO, "clone dvd", err)
	}
	defer in.Close()
	if err := in.Seek(f.entry.valuesOff + int64(rank)*8); err != nil {
		return 0, false, errs.Wrap(errs.IO, "seek dvd values", err)
	}
	v, err := in.ReadLong()
	if err != nil {
		return 0, false, errs.Wrap(errs.IO, "read dvd value", err)
	}
	return int64(v), true, nil
}

// HasField reports whether fieldNumber has a recorded doc-values column.
func (r *NumericDocValuesReader) HasField(fieldNumber uint32) bool {
	_, ok := r.byField[fieldNumber]
	return ok
}

// Iterator walks every (docID, value) pair for a field in ascending
// doc-id order; segment merging uses it to copy a field's values.
func (r *NumericDocValuesReader) Iterator(fieldNumber uint32) (*NumericDVIterator, error) {
	f, ok := r.byField[fieldNumber]
	if !ok {
		return &NumericDVIterator{}, nil
	}
	bm, err := r.loadBitmap(f)
	if err != nil {
		return nil, err
	}
	in, err := r.dvd.Clone()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "clone dvd", err)
	}
	if err := in.Seek(f.entry.valuesOff); err != nil {
		return nil, errs.Wrap(errs.IO, "seek dvd values", err)
	}
	return &NumericDVIterator{in: in, it: bm.Iterator()}, nil
}

// NumericDVIterator sequentially pairs roaring bitmap doc-ids with the
// flat value array, since both are stored in the same ascending order.
type NumericDVIterator struct {
	in store.IndexInput
	it roaring.IntPeekable
}

func (it *NumericDVIterator) Next() (docID uint32, value int64, ok bool, err error) {
	if it.it == nil || !it.it.HasNext() {
		return 0, 0, false, nil
	}
	docID = it.it.Next()
	v, err := it.in.ReadLong()
	if err != nil {
		return 0, 0, false, err
	}
	return docID, int64(v), true, nil
}

func (it *NumericDVIterator) Close() error {
	if it.in != nil {
		return it.in.Close()
	}
	return nil
}
