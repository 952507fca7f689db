package index

import "github.com/model-collapse/diagon-sub000/codec"

// OpenMode controls how NewWriter treats an existing commit in the target
// directory.
type OpenMode int

const (
	OpenModeCreateOrAppend OpenMode = iota
	OpenModeCreate
	OpenModeAppend
)

// WriterConfig mirrors spec.md §6's IndexWriterConfig, grounded on bluge's
// Config struct (github.com/blugelabs/bluge/config.go) for field naming and
// defaults, generalized to this module's synchronous single-DWPT writer.
type WriterConfig struct {
	RAMBufferMB     float64
	MaxBufferedDocs uint32
	OpenMode        OpenMode
	CommitOnClose   bool
	CodecName       string

	// UseCompoundFile is stored but unused: compound-file packing is a
	// Non-goal, kept as a config field the way bluge keeps segment-format
	// knobs (WithSegmentType/WithSegmentVersion) it doesn't always act on.
	UseCompoundFile bool
}

// DefaultWriterConfig returns spec.md §6's defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		RAMBufferMB:     16,
		MaxBufferedDocs: 0,
		OpenMode:        OpenModeCreateOrAppend,
		CommitOnClose:   true,
		CodecName:       codec.CodecName,
		UseCompoundFile: true,
	}
}

func (c WriterConfig) ramBufferBytes() uint64 {
	if c.RAMBufferMB <= 0 {
		return 16 << 20
	}
	return uint64(c.RAMBufferMB * (1 << 20))
}
