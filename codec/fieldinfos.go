// Package codec implements the on-disk posting codec: term dictionary
// (an FST keyed by every term), postings (doc-ids, freqs, positions, block-max
// skip metadata), field metadata, norms, and numeric doc-values. Grounded on
// github.com/blugelabs/ice's dict.go/chunk.go/footer.go (FST-backed term
// dictionary, roaring-bitmap exclusion sets, chunked value columns) but
// restructured onto the spec's explicit multi-file-per-segment layout
// (.tim/.tip/.doc/.pos/.nvd/.nvm/.dvd/.dvm/.fnm/.si) rather than ice's
// single "zap" container file per segment.
package codec

import (
	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// CodecName is the codec identity embedded in every SegmentInfo, following
// the teacher's convention of a short per-format-generation code name (zap
// / ice in bluge's lineage).
const CodecName = "Diagon104"

// FormatVersion is this codec's on-disk format version.
const FormatVersion uint32 = 1

// FieldInfo is the per-segment, per-field metadata: a stable small field
// number, its name, index options, doc-values type, and whether norms are
// stored.
type FieldInfo struct {
	Number        uint32
	Name          string
	IndexOptions  document.IndexOptions
	DocValuesType document.DocValuesType
	OmitNorms     bool
	Stored        bool
	Tokenized     bool
}

// FieldInfos assigns field numbers on first appearance within a segment and
// is stable thereafter.
type FieldInfos struct {
	byNumber []*FieldInfo
	byName   map[string]*FieldInfo
}

func NewFieldInfos() *FieldInfos {
	return &FieldInfos{byName: map[string]*FieldInfo{}}
}

// GetOrAdd returns the FieldInfo for name, registering a new field number
// the first time name is seen. Subsequent appearances must report
// compatible flags; since the in-memory pipeline derives flags once per
// field from the first document that mentions it, this simply returns the
// existing record.
func (fi *FieldInfos) GetOrAdd(name string, ft document.FieldType) *FieldInfo {
	if existing, ok := fi.byName[name]; ok {
		return existing
	}
	info := &FieldInfo{
		Number:        uint32(len(fi.byNumber)),
		Name:          name,
		IndexOptions:  ft.IndexOptions,
		DocValuesType: ft.DocValuesType,
		OmitNorms:     ft.OmitNorms,
		Stored:        ft.Stored,
		Tokenized:     ft.Tokenized,
	}
	fi.byNumber = append(fi.byNumber, info)
	fi.byName[name] = info
	return info
}

func (fi *FieldInfos) ByName(name string) (*FieldInfo, bool) {
	f, ok := fi.byName[name]
	return f, ok
}

func (fi *FieldInfos) ByNumber(n uint32) (*FieldInfo, bool) {
	if int(n) >= len(fi.byNumber) {
		return nil, false
	}
	return fi.byNumber[n], true
}

// List returns fields in field-number order (the order segment merging
// walks them in; flush walks fields sorted by name).
func (fi *FieldInfos) List() []*FieldInfo {
	return fi.byNumber
}

const (
	flagOmitNorms = 1 << 0
	flagStored    = 1 << 1
	flagTokenized = 1 << 2
)

// WriteFieldInfos serializes the .fnm file.
func WriteFieldInfos(out store.IndexOutput, fi *FieldInfos) error {
	if err := out.WriteVInt(uint32(len(fi.byNumber))); err != nil {
		return err
	}
	for _, f := range fi.byNumber {
		if err := out.WriteString(f.Name); err != nil {
			return err
		}
		if err := out.WriteVInt(f.Number); err != nil {
			return err
		}
		if err := out.WriteByte(byte(f.IndexOptions)); err != nil {
			return err
		}
		if err := out.WriteByte(byte(f.DocValuesType)); err != nil {
			return err
		}
		var flags byte
		if f.OmitNorms {
			flags |= flagOmitNorms
		}
		if f.Stored {
			flags |= flagStored
		}
		if f.Tokenized {
			flags |= flagTokenized
		}
		if err := out.WriteByte(flags); err != nil {
			return err
		}
	}
	return nil
}

// ReadFieldInfos deserializes a .fnm file.
func ReadFieldInfos(in store.IndexInput) (*FieldInfos, error) {
	count, err := in.ReadVInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read field count", err)
	}
	fi := NewFieldInfos()
	for i := uint32(0); i < count; i++ {
		name, err := in.ReadString()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read field name", err)
		}
		number, err := in.ReadVInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read field number", err)
		}
		indexOptionsByte, err := in.ReadByte()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read index options", err)
		}
		dvByte, err := in.ReadByte()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read doc values type", err)
		}
		flags, err := in.ReadByte()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read flags", err)
		}
		info := &FieldInfo{
			Number:        number,
			Name:          name,
			IndexOptions:  document.IndexOptions(indexOptionsByte),
			DocValuesType: document.DocValuesType(dvByte),
			OmitNorms:     flags&flagOmitNorms != 0,
			Stored:        flags&flagStored != 0,
			Tokenized:     flags&flagTokenized != 0,
		}
		fi.byNumber = append(fi.byNumber, info)
		fi.byName[name] = info
	}
	return fi, nil
}
