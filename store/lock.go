package store

import "os"

// openExclusive creates path only if it does not already exist, giving the
// directory lock its "fails if held" semantics. This mirrors the intent of
// bluge's lock.OpenExclusive helper (github.com/blugelabs/bluge/index/
// directory_fs.go's Lock method) without depending on a platform-specific
// flock syscall wrapper.
func openExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}
