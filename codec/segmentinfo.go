package codec

import (
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// SegmentInfo is the immutable record describing one segment's files and
// vital statistics. The same shape is written standalone as a segment's
// .si file (for crash-discovery) and embedded per-segment within the
// segments_<gen> commit manifest (index.SegmentInfos).
type SegmentInfo struct {
	Name          string
	Codec         string
	MaxDoc        uint32
	DelCount      uint32
	LiveDocsGen   uint64
	Files         []string
	Diagnostics   map[string]string
	FieldStats    map[string]FieldStat
}

// FieldStat records one field's length statistics within a segment: the
// per-segment average tokenized length BM25's length-normalization term
// divides by, and the number of docs it was averaged over (the weight
// search uses when combining several segments' averages). Computed from
// token counts at flush time and from the inputs' norm bytes at merge
// time; it is per-segment, not a collection-wide statistic, since every
// scoring decision in this module is already per-segment.
type FieldStat struct {
	AvgLen   float64
	DocCount uint32
}

func (si *SegmentInfo) NumDocs() uint32 {
	return si.MaxDoc - si.DelCount
}

// WriteSegmentInfo writes the shared segment-record encoding used by both
// .si files and segments_<gen> manifest entries.
func WriteSegmentInfo(out store.IndexOutput, si *SegmentInfo) error {
	if err := out.WriteString(si.Name); err != nil {
		return err
	}
	if err := out.WriteString(si.Codec); err != nil {
		return err
	}
	if err := out.WriteInt(si.MaxDoc); err != nil {
		return err
	}
	if err := out.WriteInt(si.DelCount); err != nil {
		return err
	}
	if err := out.WriteLong(si.LiveDocsGen); err != nil {
		return err
	}
	if err := out.WriteInt(uint32(len(si.Files))); err != nil {
		return err
	}
	for _, f := range si.Files {
		if err := out.WriteString(f); err != nil {
			return err
		}
	}
	if err := out.WriteInt(uint32(len(si.Diagnostics))); err != nil {
		return err
	}
	for k, v := range si.Diagnostics {
		if err := out.WriteString(k); err != nil {
			return err
		}
		if err := out.WriteString(v); err != nil {
			return err
		}
	}
	if err := out.WriteInt(uint32(len(si.FieldStats))); err != nil {
		return err
	}
	for name, stat := range si.FieldStats {
		if err := out.WriteString(name); err != nil {
			return err
		}
		if err := out.WriteInt(scoreToFloatBits(stat.AvgLen)); err != nil {
			return err
		}
		if err := out.WriteInt(stat.DocCount); err != nil {
			return err
		}
	}
	return nil
}

// ReadSegmentInfo reads one shared segment record.
func ReadSegmentInfo(in store.IndexInput) (*SegmentInfo, error) {
	si := &SegmentInfo{Diagnostics: map[string]string{}}
	var err error
	if si.Name, err = in.ReadString(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read segment name", err)
	}
	if si.Codec, err = in.ReadString(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read codec", err)
	}
	if si.Codec != CodecName {
		return nil, errs.New(errs.IllegalState, "unknown codec: "+si.Codec)
	}
	if si.MaxDoc, err = in.ReadInt(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read max doc", err)
	}
	if si.DelCount, err = in.ReadInt(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read del count", err)
	}
	if si.DelCount > si.MaxDoc {
		return nil, errs.New(errs.CorruptIndex, "del_count > max_doc")
	}
	if si.LiveDocsGen, err = in.ReadLong(); err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read live docs gen", err)
	}
	fileCount, err := in.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read file count", err)
	}
	si.Files = make([]string, fileCount)
	for i := range si.Files {
		if si.Files[i], err = in.ReadString(); err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read file name", err)
		}
	}
	diagCount, err := in.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read diagnostics count", err)
	}
	for i := uint32(0); i < diagCount; i++ {
		k, err := in.ReadString()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read diagnostic key", err)
		}
		v, err := in.ReadString()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read diagnostic value", err)
		}
		si.Diagnostics[k] = v
	}
	statCount, err := in.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read field stats count", err)
	}
	si.FieldStats = make(map[string]FieldStat, statCount)
	for i := uint32(0); i < statCount; i++ {
		name, err := in.ReadString()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read field stats name", err)
		}
		avgBits, err := in.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read field stats avg len", err)
		}
		docCount, err := in.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.CorruptIndex, "read field stats doc count", err)
		}
		si.FieldStats[name] = FieldStat{AvgLen: floatBitsToScore(avgBits), DocCount: docCount}
	}
	return si, nil
}

// SIFileName returns the standalone .si file name for a segment.
func SIFileName(name string) string { return "_" + name + ".si" }

// LiveDocsFileName returns the _<n>_<gen>.liv file name for a live-docs
// generation.
func LiveDocsFileName(segName string, gen uint64) string {
	return "_" + segName + "_" + uint64ToHex(gen) + ".liv"
}

func uint64ToHex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}
