package codec

import (
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// NormsWriter writes the .nvd/.nvm pair: .nvm holds one (fieldNumber,
// offset, count) directory entry per norm-bearing field, .nvd holds each
// field's norms as a flat byte array indexed by doc-id. Grounded on the
// same per-field-directory shape terms.go uses for .tim/.tip, since bluge's
// own norms live as just another numeric doc-values column (ice/chunk.go)
// rather than a dedicated format; the spec calls for .nvd/.nvm as their own
// files, so the directory is reproduced here instead of folded into the
// doc-values column.
type NormsWriter struct {
	nvd    store.IndexOutput
	fields []normsFieldEntry
}

type normsFieldEntry struct {
	fieldNumber uint32
	offset      int64
	count       uint32
}

func NewNormsWriter(nvd store.IndexOutput) *NormsWriter {
	return &NormsWriter{nvd: nvd}
}

// WriteField appends one field's full norms array (index = doc-id, value =
// EncodeNorm(length)) to .nvd and records its directory entry.
func (w *NormsWriter) WriteField(fieldNumber uint32, norms []byte) error {
	offset := w.nvd.FilePointer()
	if err := w.nvd.WriteBytes(norms); err != nil {
		return err
	}
	w.fields = append(w.fields, normsFieldEntry{fieldNumber: fieldNumber, offset: offset, count: uint32(len(norms))})
	return nil
}

// Finish writes the .nvm directory.
func (w *NormsWriter) Finish(nvm store.IndexOutput) error {
	if err := nvm.WriteVInt(uint32(len(w.fields))); err != nil {
		return err
	}
	for _, f := range w.fields {
		if err := nvm.WriteVInt(f.fieldNumber); err != nil {
			return err
		}
		if err := nvm.WriteVLong(uint64(f.offset)); err != nil {
			return err
		}
		if err := nvm.WriteVInt(f.count); err != nil {
			return err
		}
	}
	return nil
}

// NormsReader loads a segment's .nvm directory and serves per-field norm
// byte lookups against .nvd.
type NormsReader struct {
	nvd     store.IndexInput
	byField map[uint32]normsFieldEntry
}

func ReadNormsDirectory(nvm store.IndexInput, nvd store.IndexInput) (*NormsReader, error) {
	count, err := nvm.ReadVInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read norms field count", err)
	}
	r := &NormsReader{nvd: nvd, byField: make(map[uint32]normsFieldEntry, count)}
	for i := uint32(0); i < count; i++ {
		fieldNumber, err := nvm.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read norms field number", err)
		}
		offset, err := nvm.ReadVLong()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read norms offset", err)
		}
		cnt, err := nvm.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read norms count", err)
		}
		r.byField[fieldNumber] = normsFieldEntry{fieldNumber: fieldNumber, offset: int64(offset), count: cnt}
	}
	return r, nil
}

// Norm returns the encoded norm byte for (fieldNumber, docID), or 127 (the
// empty-field encoding) if the field has no norms recorded.
func (r *NormsReader) Norm(fieldNumber uint32, docID uint32) (byte, error) {
	e, ok := r.byField[fieldNumber]
	if !ok || docID >= e.count {
		return 127, nil
	}
	in, err := r.nvd.Clone()
	if err != nil {
		return 0, errs.Wrap(errs.IO, "clone nvd", err)
	}
	defer in.Close()
	if err := in.Seek(e.offset + int64(docID)); err != nil {
		return 0, errs.Wrap(errs.IO, "seek nvd", err)
	}
	return in.ReadByte()
}

// HasField reports whether fieldNumber has a recorded norms column.
func (r *NormsReader) HasField(fieldNumber uint32) bool {
	_, ok := r.byField[fieldNumber]
	return ok
}
