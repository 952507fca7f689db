// Package index implements the in-memory indexing pipeline, the commit
// manifest, and the segment/directory reader side: the document write path
// from document.Document down to committed, reader-visible segments.
// Grounded on github.com/blugelabs/bluge/index (writer.go, snapshot.go,
// deletion.go), simplified from bluge's async epoch/introducer pipeline to
// the single-DWPT, synchronous-commit model spec.md §4.C/§5 describes.
package index

import (
	"sort"

	"github.com/model-collapse/diagon-sub000/codec"
	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// manifestMagic identifies a segments_<gen> file.
const manifestMagic uint32 = 0x3fd76c17

// manifestFormatVersion is this module's commit-manifest format version.
const manifestFormatVersion uint32 = 1

// SegmentInfos is the in-memory commit manifest: a generation number plus
// the ordered list of segments live in that commit. Grounded on
// bluge/index/snapshot.go's Snapshot (an ordered segment list plus an
// epoch), generalized to own its own on-disk manifest file instead of
// bluge's rootBolt-backed metadata store.
type SegmentInfos struct {
	Generation uint64
	Segments   []*codec.SegmentInfo
}

func NewSegmentInfos() *SegmentInfos {
	return &SegmentInfos{}
}

func (sis *SegmentInfos) clone() *SegmentInfos {
	cp := &SegmentInfos{Generation: sis.Generation, Segments: make([]*codec.SegmentInfo, len(sis.Segments))}
	copy(cp.Segments, sis.Segments)
	return cp
}

// manifestFileName returns "segments_<gen>" in lowercase hex.
func manifestFileName(gen uint64) string { return "segments_" + uint64ToHex(gen) }

// pendingManifestFileName returns "pending_segments_<gen>".
func pendingManifestFileName(gen uint64) string { return "pending_segments_" + uint64ToHex(gen) }

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

// writeManifest serializes sis per spec.md §6's segments_<gen> layout.
func writeManifest(out store.IndexOutput, sis *SegmentInfos) error {
	if err := out.WriteInt(manifestMagic); err != nil {
		return err
	}
	if err := out.WriteInt(manifestFormatVersion); err != nil {
		return err
	}
	if err := out.WriteLong(sis.Generation); err != nil {
		return err
	}
	if err := out.WriteInt(uint32(len(sis.Segments))); err != nil {
		return err
	}
	for _, si := range sis.Segments {
		if err := codec.WriteSegmentInfo(out, si); err != nil {
			return err
		}
	}
	return nil
}

// readManifest parses a segments_<gen> file, validating magic and the
// supported format-version range.
func readManifest(in store.IndexInput) (*SegmentInfos, error) {
	magic, err := in.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read manifest magic", err)
	}
	if magic != manifestMagic {
		return nil, errs.New(errs.CorruptIndex, "bad segments_ manifest magic")
	}
	version, err := in.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read manifest version", err)
	}
	if version == 0 || version > manifestFormatVersion {
		return nil, errs.New(errs.CorruptIndex, "unsupported manifest format version")
	}
	gen, err := in.ReadLong()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read manifest generation", err)
	}
	count, err := in.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptIndex, "read manifest segment count", err)
	}
	sis := &SegmentInfos{Generation: gen, Segments: make([]*codec.SegmentInfo, count)}
	for i := range sis.Segments {
		si, err := codec.ReadSegmentInfo(in)
		if err != nil {
			return nil, err
		}
		sis.Segments[i] = si
	}
	return sis, nil
}

// findLatestGeneration lists dir for segments_<gen> files and returns the
// name of the one with the highest generation, ignoring any
// pending_segments_* files per spec.md §7's crash-safety rule.
func findLatestGeneration(dir store.Directory) (string, uint64, bool, error) {
	names, err := dir.ListAll()
	if err != nil {
		return "", 0, false, err
	}
	var best string
	var bestGen uint64
	found := false
	for _, n := range names {
		gen, ok := parseManifestName(n)
		if !ok {
			continue
		}
		if !found || gen > bestGen {
			best, bestGen, found = n, gen, true
		}
	}
	return best, bestGen, found, nil
}

func parseManifestName(n string) (uint64, bool) {
	const prefix = "segments_"
	if len(n) <= len(prefix) || n[:len(prefix)] != prefix {
		return 0, false
	}
	hex := n[len(prefix):]
	var v uint64
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		default:
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

// OpenLatestSegmentInfos loads the current commit, or returns an empty,
// generation-0 SegmentInfos if the directory has never been committed to.
func OpenLatestSegmentInfos(dir store.Directory) (*SegmentInfos, error) {
	name, _, found, err := findLatestGeneration(dir)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewSegmentInfos(), nil
	}
	in, err := dir.OpenInput(name, store.IOContextRead)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return readManifest(in)
}

// commitManifest performs the pending-then-rename atomic commit sequence
// spec.md §4.D/§6 requires, fsyncing every segment file the new manifest
// references plus the pending manifest itself before the rename.
func commitManifest(dir store.Directory, sis *SegmentInfos) error {
	pendingName := pendingManifestFileName(sis.Generation)
	out, err := dir.CreateOutput(pendingName)
	if err != nil {
		return err
	}
	if err := writeManifest(out, sis); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := dir.Sync([]string{pendingName}); err != nil {
		return err
	}
	for _, si := range sis.Segments {
		if err := dir.Sync(si.Files); err != nil {
			return err
		}
	}
	finalName := manifestFileName(sis.Generation)
	if err := dir.Rename(pendingName, finalName); err != nil {
		_ = dir.DeleteFile(pendingName)
		return err
	}
	return dir.SyncMetadata()
}

// sortedSegmentNames returns the segment names sorted lexically by name.
// Nothing in the module calls it; ForceMerge picks victims with
// smallestSegments.
func sortedSegmentNames(sis *SegmentInfos) []string {
	names := make([]string, len(sis.Segments))
	for i, si := range sis.Segments {
		names[i] = si.Name
	}
	sort.Strings(names)
	return names
}
