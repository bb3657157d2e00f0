// Package fs is the filesystem seam used by the document store.
//
//   - [FS]: the operations storage needs, mirroring the [os] package
//   - [Real]: passthrough to [os]
//   - [Faulty]: wraps an FS and fails chosen operations, for tests
//   - [AtomicWriter]: temp file + fsync + rename writes
//
// Paths use OS semantics (like [os] and path/filepath), not the slash-separated
// paths of the standard library io/fs package.
package fs

import (
	"io"
	"os"
)

// File is an open file. It is satisfied by [os.File].
type File interface {
	io.ReadWriteCloser

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines the filesystem operations used for document persistence.
//
// Every method mirrors its [os] package equivalent, including error
// semantics (os.IsNotExist etc. keep working). Implementations must be safe
// for concurrent use.
type FS interface {
	// Open opens a file or directory for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads a whole file. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir lists a directory sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and its parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Exists reports whether path exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll deletes path and its children. See [os.RemoveAll].
	RemoveAll(path string) error

	// Rename moves a file, atomically on the same filesystem. See [os.Rename].
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)
