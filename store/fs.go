package store

import (
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/model-collapse/diagon-sub000/errs"
)

const bufferSize = 8 * 1024

// FSDirectory is the buffered-file-I/O backend: every read and write goes
// through an os.File plus an in-process byte buffer. Locking follows bluge's
// FileSystemDirectory (github.com/blugelabs/bluge/index/directory_fs.go),
// generalized from one directory-wide pid file to one lock file per
// requested lock name.
type FSDirectory struct {
	path string

	mu    sync.Mutex
	locks map[string]*os.File
}

// OpenFSDirectory opens (creating if necessary) a buffered on-disk
// directory at path.
func OpenFSDirectory(path string) (*FSDirectory, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, errs.Wrap(errs.IO, "create directory "+path, err)
	}
	return &FSDirectory{path: path, locks: map[string]*os.File{}}, nil
}

func (d *FSDirectory) full(name string) string {
	return filepath.Join(d.path, name)
}

func (d *FSDirectory) ListAll() ([]string, error) {
	entries, err := ioutil.ReadDir(d.path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "list "+d.path, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func (d *FSDirectory) DeleteFile(name string) error {
	if err := os.Remove(d.full(name)); err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.FileNotFound, name, err)
		}
		return errs.Wrap(errs.IO, "delete "+name, err)
	}
	return nil
}

func (d *FSDirectory) FileLength(name string) (int64, error) {
	fi, err := os.Stat(d.full(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errs.Wrap(errs.FileNotFound, name, err)
		}
		return 0, errs.Wrap(errs.IO, "stat "+name, err)
	}
	return fi.Size(), nil
}

func (d *FSDirectory) CreateOutput(name string) (IndexOutput, error) {
	f, err := os.OpenFile(d.full(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "create "+name, err)
	}
	return newFSOutput(name, f), nil
}

func (d *FSDirectory) CreateTempOutput(prefix, suffix string) (IndexOutput, error) {
	name := fmt.Sprintf("%s_%08x%s", prefix, rand.Uint32(), suffix)
	return d.CreateOutput(name)
}

func (d *FSDirectory) OpenInput(name string, _ IOContext) (IndexInput, error) {
	f, err := os.Open(d.full(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.FileNotFound, name, err)
		}
		return nil, errs.Wrap(errs.IO, "open "+name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(errs.IO, "stat "+name, err)
	}
	return newFSInput(name, f, 0, fi.Size(), true), nil
}

func (d *FSDirectory) Rename(src, dst string) error {
	if err := os.Rename(d.full(src), d.full(dst)); err != nil {
		return errs.Wrap(errs.IO, fmt.Sprintf("rename %s -> %s", src, dst), err)
	}
	return nil
}

func (d *FSDirectory) Sync(names []string) error {
	for _, name := range names {
		f, err := os.Open(d.full(name))
		if err != nil {
			return errs.Wrap(errs.IO, "sync open "+name, err)
		}
		err = f.Sync()
		_ = f.Close()
		if err != nil {
			return errs.Wrap(errs.IO, "sync "+name, err)
		}
	}
	return nil
}

func (d *FSDirectory) SyncMetadata() error {
	f, err := os.Open(d.path)
	if err != nil {
		return errs.Wrap(errs.IO, "sync metadata open dir", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return errs.Wrap(errs.IO, "sync metadata", err)
	}
	return nil
}

func (d *FSDirectory) ObtainLock(name string) (Lock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, held := d.locks[name]; held {
		return nil, errs.New(errs.LockObtainFailed, name)
	}

	f, err := openExclusive(d.full(name))
	if err != nil {
		return nil, errs.Wrap(errs.LockObtainFailed, name, err)
	}
	d.locks[name] = f
	return &fsLock{dir: d, name: name}, nil
}

func (d *FSDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, f := range d.locks {
		_ = f.Close()
		delete(d.locks, name)
	}
	return nil
}

type fsLock struct {
	dir  *FSDirectory
	name string
}

func (l *fsLock) Release() error {
	l.dir.mu.Lock()
	defer l.dir.mu.Unlock()
	f, ok := l.dir.locks[l.name]
	if !ok {
		return nil
	}
	delete(l.dir.locks, l.name)
	err := f.Close()
	_ = os.Remove(l.dir.full(l.name))
	return err
}

// --- buffered output ---

type fsOutput struct {
	name string
	f    *os.File
	buf  []byte
	fp   int64
	tmp  [8]byte
}

func newFSOutput(name string, f *os.File) *fsOutput {
	return &fsOutput{name: name, f: f, buf: make([]byte, 0, bufferSize)}
}

func (o *fsOutput) Name() string        { return o.name }
func (o *fsOutput) FilePointer() int64  { return o.fp + int64(len(o.buf)) }

func (o *fsOutput) flushIfFull() error {
	if len(o.buf) >= bufferSize {
		return o.flush()
	}
	return nil
}

func (o *fsOutput) flush() error {
	if len(o.buf) == 0 {
		return nil
	}
	n, err := o.f.Write(o.buf)
	o.fp += int64(n)
	o.buf = o.buf[:0]
	if err != nil {
		return errs.Wrap(errs.IO, "write "+o.name, err)
	}
	return nil
}

func (o *fsOutput) Write(p []byte) (int, error) {
	if err := o.WriteBytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (o *fsOutput) WriteByte(b byte) error {
	o.buf = append(o.buf, b)
	return o.flushIfFull()
}

func (o *fsOutput) WriteBytes(b []byte) error {
	o.buf = append(o.buf, b...)
	for len(o.buf) >= bufferSize {
		if err := o.flush(); err != nil {
			return err
		}
	}
	return nil
}

func (o *fsOutput) WriteShort(v uint16) error {
	o.tmp[0], o.tmp[1] = byte(v), byte(v>>8)
	return o.WriteBytes(o.tmp[:2])
}

func (o *fsOutput) WriteInt(v uint32) error {
	o.tmp[0], o.tmp[1], o.tmp[2], o.tmp[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	return o.WriteBytes(o.tmp[:4])
}

func (o *fsOutput) WriteLong(v uint64) error {
	for i := 0; i < 8; i++ {
		o.tmp[i] = byte(v >> (8 * i))
	}
	return o.WriteBytes(o.tmp[:8])
}

func (o *fsOutput) WriteVInt(v uint32) error {
	var tmp [5]byte
	return o.WriteBytes(EncodeVInt(tmp[:0], v))
}

func (o *fsOutput) WriteVLong(v uint64) error {
	var tmp [9]byte
	return o.WriteBytes(EncodeVLong(tmp[:0], v))
}

func (o *fsOutput) WriteString(s string) error {
	if err := o.WriteVInt(uint32(len(s))); err != nil {
		return err
	}
	return o.WriteBytes([]byte(s))
}

func (o *fsOutput) Close() error {
	if err := o.flush(); err != nil {
		_ = o.f.Close()
		return err
	}
	return o.f.Close()
}

// --- buffered input ---

type fsInput struct {
	name   string
	f      *os.File
	base   int64 // absolute offset of position 0 within f
	length int64
	owns   bool // whether Close should close f (false for clones sharing it)

	buf     []byte
	bufBase int64 // absolute file position of buf[0]
	pos     int64 // logical position, [0, length)
}

func newFSInput(name string, f *os.File, base, length int64, owns bool) *fsInput {
	return &fsInput{name: name, f: f, base: base, length: length, owns: owns, bufBase: -1}
}

func (in *fsInput) fillBuffer() error {
	if in.pos >= in.bufBase && in.pos < in.bufBase+int64(len(in.buf)) {
		return nil
	}
	size := bufferSize
	if in.length-in.pos < int64(size) {
		size = int(in.length - in.pos)
	}
	if size <= 0 {
		return io.EOF
	}
	buf := make([]byte, size)
	n, err := in.f.ReadAt(buf, in.base+in.pos)
	if err != nil && err != io.EOF {
		return errs.Wrap(errs.IO, "read "+in.name, err)
	}
	in.buf = buf[:n]
	in.bufBase = in.pos
	if n == 0 {
		return io.EOF
	}
	return nil
}

func (in *fsInput) ensure(n int64) error {
	if in.pos+n > in.length {
		return errs.New(errs.EOF, in.name)
	}
	return nil
}

func (in *fsInput) ReadBytes(n int) ([]byte, error) {
	if err := in.ensure(int64(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	read := 0
	for read < n {
		if err := in.fillBuffer(); err != nil {
			return nil, errs.Wrap(errs.IO, "read "+in.name, err)
		}
		off := in.pos - in.bufBase
		c := copy(out[read:], in.buf[off:])
		in.pos += int64(c)
		read += c
	}
	return out, nil
}

func (in *fsInput) Read(p []byte) (int, error) {
	n := len(p)
	if int64(n) > in.length-in.pos {
		n = int(in.length - in.pos)
	}
	if n <= 0 {
		return 0, io.EOF
	}
	b, err := in.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	copy(p, b)
	return n, nil
}

func (in *fsInput) ReadByte() (byte, error) {
	b, err := in.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (in *fsInput) ReadShort() (uint16, error) {
	b, err := in.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (in *fsInput) ReadInt() (uint32, error) {
	b, err := in.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (in *fsInput) ReadLong() (uint64, error) {
	b, err := in.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v, nil
}

func (in *fsInput) ReadVInt() (uint32, error) {
	var v uint32
	var shift uint
	for {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

func (in *fsInput) ReadVLong() (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

func (in *fsInput) ReadString() (string, error) {
	n, err := in.ReadVInt()
	if err != nil {
		return "", err
	}
	b, err := in.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (in *fsInput) GetFilePointer() int64 { return in.pos }

func (in *fsInput) Seek(pos int64) error {
	if pos < 0 || pos > in.length {
		return errs.New(errs.IO, "seek out of range")
	}
	in.pos = pos
	return nil
}

func (in *fsInput) Length() int64 { return in.length }

func (in *fsInput) SkipBytes(n int64) error {
	return in.Seek(in.pos + n)
}

func (in *fsInput) Clone() (IndexInput, error) {
	c := newFSInput(in.name, in.f, in.base, in.length, false)
	c.pos = in.pos
	return c, nil
}

func (in *fsInput) Slice(description string, offset, length int64) (IndexInput, error) {
	if offset < 0 || length < 0 || offset+length > in.length {
		return nil, errs.New(errs.IO, "slice out of range: "+description)
	}
	return newFSInput(in.name+"/"+description, in.f, in.base+offset, length, false), nil
}

func (in *fsInput) Close() error {
	if in.owns {
		return in.f.Close()
	}
	return nil
}
