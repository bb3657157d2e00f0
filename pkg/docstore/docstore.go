// Package docstore is an embedded document database: named collections of
// documents, each backed by a directory of codec files.
//
// Layout on disk:
//
//	<root>/
//	  <collection>/
//	    <id>.txt
//
// Every mutating call updates the in-memory [collection.Collection] first and
// then writes or deletes the affected files before returning. Documents the
// codec cannot write are rejected before anything changes. Writes are not
// transactional: if a file operation fails, the in-memory state already
// reflects the mutation and the error is returned.
//
// A DB is not safe for concurrent use.
package docstore

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/calvinalkan/docstore/pkg/codec"
	"github.com/calvinalkan/docstore/pkg/collection"
	"github.com/calvinalkan/docstore/pkg/document"
	"github.com/calvinalkan/docstore/pkg/fs"
	"github.com/calvinalkan/docstore/pkg/storage"
)

// Option configures [Open].
type Option func(*options)

type options struct {
	fs     fs.FS
	log    *slog.Logger
	ext    string
	seed   uint64
	seeded bool
}

// WithLogger sets the logger for the database and its collections.
// Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.log = logger
		}
	}
}

// WithFS sets the filesystem. Default: [fs.NewReal].
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithExtension sets the document file extension. Default: ".txt".
func WithExtension(ext string) Option {
	return func(o *options) {
		o.ext = ext
	}
}

// WithSeed makes identity generation deterministic. Each collection derives
// its own seed from seed and its name.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// DB routes operations to named collections and keeps their directories in
// sync.
type DB struct {
	root  string
	name  string
	opts  options
	store *storage.Storage
	cols  map[string]*collection.Collection
	log   *slog.Logger
}

// Open opens the database rooted at dir, creating dir if needed, and loads
// every non-hidden subdirectory as a collection. Files that cannot be parsed
// are logged and skipped.
func Open(dir string, opts ...Option) (*DB, error) {
	o := options{
		fs:  fs.NewReal(),
		log: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if dir == "" {
		return nil, errors.New("database directory is empty")
	}

	root := filepath.Clean(dir)

	db := &DB{
		root:  root,
		name:  filepath.Base(root),
		opts:  o,
		store: storage.New(o.fs, storage.WithLogger(o.log), storage.WithExtension(o.ext)),
		cols:  make(map[string]*collection.Collection),
		log:   o.log.With("db", filepath.Base(root)),
	}

	err := db.store.EnsureDir(root)
	if err != nil {
		return nil, err
	}

	names, err := db.store.Subdirs(root)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		err = db.load(name)
		if err != nil {
			return nil, withContext(err, name, 0)
		}
	}

	db.log.Info("loaded database", "path", root, "collections", len(db.cols))

	return db, nil
}

func (db *DB) load(name string) error {
	dir := db.dir(name)

	docs, err := db.store.Load(dir)
	if err != nil {
		return err
	}

	col := db.newCollection(name)

	for _, doc := range docs {
		before := doc.Clone()

		_, inserted, err := col.Insert(doc)
		if err != nil {
			return err
		}

		if !inserted || before.Equal(doc) {
			continue
		}

		// Nested documents were missing ids; persist the assigned ones.
		err = db.store.Save(dir, doc)
		if err != nil {
			return err
		}
	}

	db.cols[name] = col

	return nil
}

func (db *DB) newCollection(name string) *collection.Collection {
	opts := []collection.Option{collection.WithLogger(db.opts.log)}

	if db.opts.seeded {
		h := fnv.New64a()
		_, _ = h.Write([]byte(name))
		opts = append(opts, collection.WithSeed(db.opts.seed^h.Sum64()))
	}

	return collection.New(name, opts...)
}

// Name returns the base name of the root directory.
func (db *DB) Name() string { return db.name }

// Dir returns the root directory.
func (db *DB) Dir() string { return db.root }

// Names returns the collection names in sorted order.
func (db *DB) Names() []string {
	return slices.Sorted(maps.Keys(db.cols))
}

// Empty reports whether the database has no collections.
func (db *DB) Empty() bool { return len(db.cols) == 0 }

// AddCollection creates an empty collection. Any existing directory with the
// same name is cleared.
func (db *DB) AddCollection(name string) error {
	err := db.checkNew(name)
	if err != nil {
		return withContext(err, name, 0)
	}

	err = db.store.ResetDir(db.dir(name))
	if err != nil {
		return withContext(err, name, 0)
	}

	db.cols[name] = db.newCollection(name)
	db.log.Info("added collection", "collection", name)

	return nil
}

// InsertCollection registers col under its name, replacing the contents of
// its directory with col's documents. col is owned by the DB afterwards.
func (db *DB) InsertCollection(col *collection.Collection) error {
	name := col.Name()

	err := db.checkNew(name)
	if err != nil {
		return withContext(err, name, 0)
	}

	dir := db.dir(name)

	err = db.store.ResetDir(dir)
	if err != nil {
		return withContext(err, name, 0)
	}

	for _, doc := range col.All() {
		err = db.store.Save(dir, doc)
		if err != nil {
			id, _ := doc.ID()

			return withContext(err, name, id)
		}
	}

	db.cols[name] = col
	db.log.Info("inserted collection", "collection", name, "documents", col.Len())

	return nil
}

// Collection returns the live collection. Mutating it directly bypasses
// persistence.
func (db *DB) Collection(name string) (*collection.Collection, bool) {
	col, ok := db.cols[name]

	return col, ok
}

// CollectionCopy returns an independent deep copy of the collection.
func (db *DB) CollectionCopy(name string) (*collection.Collection, error) {
	col, err := db.get(name)
	if err != nil {
		return nil, err
	}

	return col.Clone(), nil
}

// Insert inserts doc and writes its file. The assigned ids are written back
// to doc. inserted is false if a document with doc's id already exists.
func (db *DB) Insert(name string, doc *document.Document) (id uint64, inserted bool, err error) {
	col, err := db.get(name)
	if err != nil {
		return 0, false, err
	}

	err = codec.Validate(doc)
	if err != nil {
		id, _ := doc.ID()

		return 0, false, withContext(err, name, id)
	}

	id, inserted, err = col.Insert(doc)
	if err != nil || !inserted {
		return id, false, withContext(err, name, id)
	}

	err = db.store.Save(db.dir(name), doc)
	if err != nil {
		return id, true, withContext(err, name, id)
	}

	return id, true, nil
}

// Find returns copies of the matching documents in storage order.
func (db *DB) Find(name string, pred collection.Predicate) ([]*document.Document, error) {
	col, err := db.get(name)
	if err != nil {
		return nil, err
	}

	return col.Find(pred), nil
}

// All returns copies of every document in the collection.
func (db *DB) All(name string) ([]*document.Document, error) {
	return db.Find(name, collection.All)
}

// GetByID returns a copy of the document with id.
func (db *DB) GetByID(name string, id uint64) (*document.Document, error) {
	col, err := db.get(name)
	if err != nil {
		return nil, err
	}

	doc, ok := col.GetByID(id)
	if !ok {
		return nil, withContext(ErrDocumentNotFound, name, id)
	}

	return doc, nil
}

// Update applies mod to every matching document and rewrites their files.
// It returns the ids of the modified documents. A document that mod leaves
// unwritable is restored, left out of the result and reported in the joined
// error.
func (db *DB) Update(name string, pred collection.Predicate, mod collection.Modifier) ([]uint64, error) {
	col, err := db.get(name)
	if err != nil {
		return nil, err
	}

	var (
		errs     []error
		restored = make(map[uint64]bool)
	)

	ids := col.Update(pred, func(d *document.Document) {
		before := d.Clone()

		mod(d)

		err := codec.Validate(d)
		if err != nil {
			id, _ := before.ID()
			errs = append(errs, withContext(err, name, id))
			restored[id] = true
			*d = *before
		}
	})

	ids = slices.DeleteFunc(ids, func(id uint64) bool { return restored[id] })

	for _, id := range ids {
		doc, _ := col.GetByID(id)

		err = db.store.Save(db.dir(name), doc)
		if err != nil {
			errs = append(errs, withContext(err, name, id))
		}
	}

	return ids, errors.Join(errs...)
}

// UpdateDocument replaces the stored document with doc's id and rewrites its
// file. It reports false if no document matched.
func (db *DB) UpdateDocument(name string, doc *document.Document) (bool, error) {
	col, err := db.get(name)
	if err != nil {
		return false, err
	}

	err = codec.Validate(doc)
	if err != nil {
		id, _ := doc.ID()

		return false, withContext(err, name, id)
	}

	if !col.UpdateDocument(doc) {
		return false, nil
	}

	id, _ := doc.ID()

	err = db.store.Save(db.dir(name), doc)
	if err != nil {
		return true, withContext(err, name, id)
	}

	return true, nil
}

// Remove deletes every matching document and its file. It returns the ids
// of the removed documents.
func (db *DB) Remove(name string, pred collection.Predicate) ([]uint64, error) {
	col, err := db.get(name)
	if err != nil {
		return nil, err
	}

	ids := col.Remove(pred)

	var errs []error

	for _, id := range ids {
		err = db.store.Remove(db.dir(name), id)
		if err != nil {
			errs = append(errs, withContext(err, name, id))
		}
	}

	return ids, errors.Join(errs...)
}

// RemoveDocument deletes the document with doc's id and its file.
func (db *DB) RemoveDocument(name string, doc *document.Document) (bool, error) {
	col, err := db.get(name)
	if err != nil {
		return false, err
	}

	if !col.RemoveDocument(doc) {
		return false, nil
	}

	id, _ := doc.ID()

	err = db.store.Remove(db.dir(name), id)
	if err != nil {
		return true, withContext(err, name, id)
	}

	return true, nil
}

// InsertNestedContainer stores container under field in target (inserting or
// replacing target) and writes target's file. See
// [collection.Collection.InsertNestedContainer].
func (db *DB) InsertNestedContainer(name string, container document.Value, field string, target *document.Document) (uint64, error) {
	col, err := db.get(name)
	if err != nil {
		return 0, err
	}

	candidate := target.Clone()
	if candidate.Set(field, container) == nil {
		err = codec.Validate(candidate)
		if err != nil {
			id, _ := target.ID()

			return 0, withContext(err, name, id)
		}
	}

	id, err := col.InsertNestedContainer(container, field, target)
	if err != nil {
		return 0, withContext(err, name, 0)
	}

	err = db.store.Save(db.dir(name), target)
	if err != nil {
		return id, withContext(err, name, id)
	}

	return id, nil
}

func (db *DB) get(name string) (*collection.Collection, error) {
	col, ok := db.cols[name]
	if !ok {
		db.log.Warn("collection does not exist", "collection", name)

		return nil, withContext(ErrCollectionNotFound, name, 0)
	}

	return col, nil
}

func (db *DB) checkNew(name string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if _, ok := db.cols[name]; ok {
		db.log.Warn("collection already exists", "collection", name)

		return ErrCollectionExists
	}

	return nil
}

func (db *DB) dir(name string) string {
	return filepath.Join(db.root, name)
}

func validName(name string) bool {
	return name != "" && name != ".." && !strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
