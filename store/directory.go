// Package store implements the directory/IndexInput/IndexOutput abstraction:
// a name-keyed store of append-only binary files with atomic rename, fsync,
// a single-writer lock, and random-access read views. It is grounded on the
// locking and mmap-loading conventions of bluge's FileSystemDirectory
// (github.com/blugelabs/bluge/index/directory_fs.go), generalized from a
// single whole-segment file per generation to the many named per-segment
// files ("_<n>.<ext>") the on-disk format calls for.
package store

import "io"

// IOContext describes the access pattern a caller intends for a file, so a
// backend can tune read-ahead / madvise behavior.
type IOContext int

const (
	IOContextDefault IOContext = iota
	IOContextRead
	IOContextReadOnce
	IOContextMerge
)

// Lock represents a held, named advisory lock on a Directory. Release frees
// it. The lock is not freed when its holder crashes or exits without
// calling Release.
type Lock interface {
	Release() error
}

// Directory is a flat name -> byte stream store.
type Directory interface {
	// ListAll returns every file name currently present, order unspecified.
	ListAll() ([]string, error)
	DeleteFile(name string) error
	FileLength(name string) (int64, error)

	CreateOutput(name string) (IndexOutput, error)
	CreateTempOutput(prefix, suffix string) (IndexOutput, error)
	OpenInput(name string, ctx IOContext) (IndexInput, error)

	// Rename atomically replaces dst with the (fully written, fsynced) src.
	Rename(src, dst string) error
	// Sync fsyncs the named files' data.
	Sync(names []string) error
	// SyncMetadata fsyncs the directory's own metadata (e.g. its inode).
	SyncMetadata() error

	ObtainLock(name string) (Lock, error)
	Close() error
}

// IndexOutput is a write-only, forward-only, byte-buffered stream.
type IndexOutput interface {
	io.Writer
	Name() string
	FilePointer() int64

	WriteByte(b byte) error
	WriteBytes(b []byte) error
	WriteShort(v uint16) error
	WriteInt(v uint32) error
	WriteLong(v uint64) error
	WriteVInt(v uint32) error
	WriteVLong(v uint64) error
	WriteString(s string) error

	// Close flushes the buffer and releases the file handle. Durability to
	// disk is the Directory's responsibility via Sync.
	Close() error
}

// IndexInput is a read-only, random-access, clonable view over one file.
type IndexInput interface {
	io.Reader
	ReadByte() (byte, error)
	ReadBytes(n int) ([]byte, error)
	ReadShort() (uint16, error)
	ReadInt() (uint32, error)
	ReadLong() (uint64, error)
	ReadVInt() (uint32, error)
	ReadVLong() (uint64, error)
	ReadString() (string, error)

	GetFilePointer() int64
	Seek(pos int64) error
	Length() int64
	SkipBytes(n int64) error

	// Clone produces an independent cursor sharing the underlying bytes;
	// safe to use concurrently with the original and other clones.
	Clone() (IndexInput, error)
	// Slice returns a sub-view [offset, offset+length) with its own cursor
	// starting at 0.
	Slice(description string, offset, length int64) (IndexInput, error)

	Close() error
}
