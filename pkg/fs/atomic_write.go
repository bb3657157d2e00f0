package fs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync indicates the parent directory could not be synced after the
// rename. The new file is in place but may not survive a crash.
var ErrDirSync = errors.New("dir sync")

const (
	defaultFilePerm = 0o644
	maxTempAttempts = 10000
)

var tempCounter atomic.Uint64

// AtomicWriter replaces files so readers see either the old or the new
// content, never a partial write.
type AtomicWriter struct {
	fs      FS
	perm    os.FileMode
	syncDir bool
}

// AtomicOption configures an [AtomicWriter].
type AtomicOption func(*AtomicWriter)

// WithPerm sets the mode of written files. Default: 0644.
func WithPerm(perm os.FileMode) AtomicOption {
	return func(w *AtomicWriter) {
		if perm != 0 {
			w.perm = perm
		}
	}
}

// WithDirSync toggles syncing the parent directory after the rename.
// Default: true.
func WithDirSync(enabled bool) AtomicOption {
	return func(w *AtomicWriter) {
		w.syncDir = enabled
	}
}

// NewAtomicWriter returns a writer on fsys. Panics if fsys is nil.
func NewAtomicWriter(fsys FS, opts ...AtomicOption) *AtomicWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	w := &AtomicWriter{fs: fsys, perm: defaultFilePerm, syncDir: true}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteFile writes data to path: a temp file in the same directory is
// written, synced and renamed over path, then the directory is synced.
//
// The temp file is removed on every failure path. A failed directory sync
// satisfies errors.Is(err, ErrDirSync).
func (w *AtomicWriter) WriteFile(path string, data []byte) error {
	dir, base := filepath.Split(path)
	if base == "" || base == "." {
		return fmt.Errorf("invalid path %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmp, tmpPath, err := w.createTemp(dir, base)
	if err != nil {
		return err
	}

	discard := func() error {
		return errors.Join(closeFile(tmpPath, tmp), w.removeTemp(tmpPath))
	}

	err = tmp.Chmod(w.perm)
	if err != nil {
		return errors.Join(fmt.Errorf("chmod %q: %w", tmpPath, err), discard())
	}

	_, err = bytes.NewReader(data).WriteTo(tmp)
	if err != nil {
		return errors.Join(fmt.Errorf("write %q: %w", tmpPath, err), discard())
	}

	err = tmp.Sync()
	if err != nil {
		return errors.Join(fmt.Errorf("sync %q: %w", tmpPath, err), discard())
	}

	err = closeFile(tmpPath, tmp)
	if err != nil {
		return errors.Join(err, w.removeTemp(tmpPath))
	}

	err = w.fs.Rename(tmpPath, path)
	if err != nil {
		return errors.Join(fmt.Errorf("rename: %w", err), w.removeTemp(tmpPath))
	}

	if w.syncDir {
		return w.syncDirectory(dir)
	}

	return nil
}

func (w *AtomicWriter) createTemp(dir, base string) (File, string, error) {
	for range maxTempAttempts {
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, tempCounter.Add(1)))

		f, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, w.perm)
		if err == nil {
			return f, path, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create temp file: %w", err)
		}
	}

	return nil, "", fmt.Errorf("no free temp file name in %q", dir)
}

func (w *AtomicWriter) removeTemp(path string) error {
	err := w.fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp file %q: %w", path, err)
	}

	return nil
}

func (w *AtomicWriter) syncDirectory(dir string) error {
	d, err := w.fs.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open %q: %w", dir, err))
	}

	err = d.Sync()
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("%q: %w", dir, err), closeFile(dir, d))
	}

	return closeFile(dir, d)
}

func closeFile(path string, f File) error {
	err := f.Close()
	if err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}

	return nil
}
