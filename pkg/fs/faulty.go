package fs

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"syscall"
)

// Op names an [FS] operation for fault injection.
type Op string

// Operations [Faulty] can fail.
const (
	OpOpen      Op = "open"
	OpOpenFile  Op = "openfile"
	OpReadFile  Op = "readfile"
	OpReadDir   Op = "readdir"
	OpMkdirAll  Op = "mkdirall"
	OpExists    Op = "exists"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "removeall"
	OpRename    Op = "rename"
)

// AnyPath matches every path in [Faulty.Fail].
const AnyPath = "*"

type faultKey struct {
	op   Op
	path string
}

// injectedError marks an error returned by [Faulty]. It wraps a
// *fs.PathError so os.IsPermission and friends keep working.
type injectedError struct {
	err error
}

func (e *injectedError) Error() string { return "injected: " + e.err.Error() }

func (e *injectedError) Unwrap() error { return e.err }

// IsInjected reports whether err was produced by [Faulty].
func IsInjected(err error) bool {
	var injected *injectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails selected operations with a chosen errno.
// Operations without a registered fault pass through.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	faults map[faultKey]syscall.Errno
}

// NewFaulty wraps fsys. Panics if fsys is nil.
func NewFaulty(fsys FS) *Faulty {
	if fsys == nil {
		panic("fs is nil")
	}

	return &Faulty{fs: fsys, faults: make(map[faultKey]syscall.Errno)}
}

// Fail makes op on path return errno until [Faulty.Reset]. Use [AnyPath] to
// match every path.
func (f *Faulty) Fail(op Op, path string, errno syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults[faultKey{op: op, path: path}] = errno
}

// Reset removes all faults.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	clear(f.faults)
}

func (f *Faulty) fault(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	errno, ok := f.faults[faultKey{op: op, path: path}]
	if !ok {
		errno, ok = f.faults[faultKey{op: op, path: AnyPath}]
	}

	if !ok {
		return nil
	}

	return &injectedError{err: &fs.PathError{Op: string(op), Path: path, Err: errno}}
}

func (f *Faulty) Open(path string) (File, error) {
	if err := f.fault(OpOpen, path); err != nil {
		return nil, err
	}

	return f.fs.Open(path)
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.fault(OpOpenFile, path); err != nil {
		return nil, err
	}

	return f.fs.OpenFile(path, flag, perm)
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.fault(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.fault(OpReadDir, path); err != nil {
		return nil, err
	}

	return f.fs.ReadDir(path)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.fault(OpMkdirAll, path); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.fault(OpExists, path); err != nil {
		return false, err
	}

	return f.fs.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.fault(OpRemove, path); err != nil {
		return err
	}

	return f.fs.Remove(path)
}

func (f *Faulty) RemoveAll(path string) error {
	if err := f.fault(OpRemoveAll, path); err != nil {
		return err
	}

	return f.fs.RemoveAll(path)
}

func (f *Faulty) Rename(oldpath, newpath string) error {
	if err := f.fault(OpRename, newpath); err != nil {
		return err
	}

	return f.fs.Rename(oldpath, newpath)
}

var _ FS = (*Faulty)(nil)
