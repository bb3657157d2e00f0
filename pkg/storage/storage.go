// Package storage persists documents as one codec file per document inside a
// collection directory, named "<id><ext>".
//
// Writes go through [fs.AtomicWriter], so a failed save leaves the previous
// file (or no file) in place rather than a truncated one.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvinalkan/docstore/pkg/codec"
	"github.com/calvinalkan/docstore/pkg/document"
	"github.com/calvinalkan/docstore/pkg/fs"
)

// DefaultExtension is the file extension used when none is configured.
const DefaultExtension = ".txt"

const dirPerm = 0o755

// ErrIO wraps unexpected filesystem failures.
var ErrIO = errors.New("storage i/o failure")

// Option configures a [Storage].
type Option func(*Storage)

// WithLogger sets the logger. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithExtension sets the document file extension. A missing leading dot is
// added. Default: [DefaultExtension].
func WithExtension(ext string) Option {
	return func(s *Storage) {
		if ext == "" {
			return
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		s.ext = ext
	}
}

// Storage reads and writes document files.
type Storage struct {
	fs     fs.FS
	writer *fs.AtomicWriter
	ext    string
	log    *slog.Logger
}

// New returns a Storage on fsys. Panics if fsys is nil.
func New(fsys fs.FS, opts ...Option) *Storage {
	if fsys == nil {
		panic("fs is nil")
	}

	s := &Storage{
		fs:     fsys,
		writer: fs.NewAtomicWriter(fsys),
		ext:    DefaultExtension,
		log:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Extension returns the configured file extension, including the dot.
func (s *Storage) Extension() string { return s.ext }

// Path returns the file path of the document with id inside dir.
func (s *Storage) Path(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10)+s.ext)
}

// Save writes doc to dir, replacing any previous file for the same id.
// Encoding errors ([codec.ErrMissingIdentity], [codec.ErrInvalidKey], ...)
// are returned unwrapped; filesystem errors wrap [ErrIO].
func (s *Storage) Save(dir string, doc *document.Document) error {
	data, err := codec.Marshal(doc)
	if err != nil {
		s.log.Error("failed to encode document", "path", dir, "err", err)

		return err
	}

	id, _ := doc.ID()
	path := s.Path(dir, id)

	err = s.writer.WriteFile(path, data)
	if err != nil {
		s.log.Error("failed to write document", "path", path, "err", err)

		return fmt.Errorf("%w: save %s: %w", ErrIO, path, err)
	}

	s.log.Debug("wrote document", "path", path, "id", id)

	return nil
}

// Load parses every document file in dir, in file name order.
//
// A file that cannot be read or parsed, or that has no id, is logged and
// skipped. Only a failure to list dir is returned (wrapping [ErrIO]).
func (s *Storage) Load(dir string) ([]*document.Document, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %w", ErrIO, dir, err)
	}

	var docs []*document.Document

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != s.ext {
			continue
		}

		path := filepath.Join(dir, name)

		doc, ok := s.loadFile(path)
		if ok {
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func (s *Storage) loadFile(path string) (*document.Document, bool) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		s.log.Error("failed to read document file", "path", path, "err", err)

		return nil, false
	}

	doc, err := codec.Parse(data)
	if err != nil {
		s.log.Error("failed to parse document file", "path", path, "err", err)

		return nil, false
	}

	id, ok := doc.ID()
	if !ok {
		s.log.Error("document file has no id", "path", path)

		return nil, false
	}

	if want := strconv.FormatUint(id, 10) + s.ext; filepath.Base(path) != want {
		s.log.Warn("document file name does not match id", "path", path, "id", id)
	}

	return doc, true
}

// Remove deletes the file of the document with id. A file that is already
// gone is logged, not reported.
func (s *Storage) Remove(dir string, id uint64) error {
	path := s.Path(dir, id)

	err := s.fs.Remove(path)

	switch {
	case err == nil:
		s.log.Debug("removed document file", "path", path, "id", id)

		return nil
	case errors.Is(err, os.ErrNotExist):
		s.log.Warn("document file does not exist", "path", path, "id", id)

		return nil
	default:
		s.log.Error("failed to remove document file", "path", path, "err", err)

		return fmt.Errorf("%w: remove %s: %w", ErrIO, path, err)
	}
}

// EnsureDir creates dir and its parents if missing.
func (s *Storage) EnsureDir(dir string) error {
	err := s.fs.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("%w: create dir %s: %w", ErrIO, dir, err)
	}

	return nil
}

// ResetDir deletes dir with all its contents and creates it again empty.
func (s *Storage) ResetDir(dir string) error {
	exists, err := s.fs.Exists(dir)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, dir, err)
	}

	if exists {
		s.log.Warn("clearing existing collection directory", "path", dir)

		err = s.fs.RemoveAll(dir)
		if err != nil {
			return fmt.Errorf("%w: clear dir %s: %w", ErrIO, dir, err)
		}
	}

	return s.EnsureDir(dir)
}

// Subdirs returns the names of the non-hidden directories directly in root,
// sorted by name. Plain files are ignored.
func (s *Storage) Subdirs(root string) ([]string, error) {
	entries, err := s.fs.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %w", ErrIO, root, err)
	}

	var names []string

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		names = append(names, entry.Name())
	}

	return names, nil
}
