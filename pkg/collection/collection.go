// Package collection implements an in-memory, ordered set of documents with
// per-collection identity assignment.
//
// A [Collection] keeps documents in insertion order and guarantees that no two
// stored documents share the same identity (the reserved "id" field). The
// identity space covers the documents nested in Sequence and Mapping fields
// too: a generated identity is never one already carried by any stored
// document, top-level or nested. All lookups are linear scans in storage
// order.
//
// Documents handed to a Collection are copied in; documents handed out
// ([Collection.Find], [Collection.All], [Collection.GetByID]) are deep copies.
// Only [Collection.Update] exposes stored documents, to its [Modifier].
//
// A Collection is not safe for concurrent use. Callers that share one across
// goroutines must serialize access.
package collection

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/calvinalkan/docstore/pkg/document"
)

// ErrNotContainer is returned by [Collection.InsertNestedContainer] when the
// payload is not a Sequence or Mapping.
var ErrNotContainer = errors.New("value is not a sequence or mapping")

// Predicate selects documents. It must not mutate its argument.
type Predicate func(doc *document.Document) bool

// Modifier mutates a selected document in place.
type Modifier func(doc *document.Document)

// All is a [Predicate] matching every document.
func All(*document.Document) bool { return true }

// Option configures a [Collection].
type Option func(*Collection)

// WithLogger sets the logger for collection events. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithIDGenerator sets the identity source. Default: [NewRandomIDGenerator].
func WithIDGenerator(gen *IDGenerator) Option {
	return func(c *Collection) {
		if gen != nil {
			c.gen = gen
		}
	}
}

// WithSeed uses a deterministic identity source seeded with seed.
func WithSeed(seed uint64) Option {
	return func(c *Collection) {
		c.gen = NewSeededIDGenerator(seed)
	}
}

// Collection is a named, ordered set of documents.
type Collection struct {
	name string
	docs []*document.Document
	ids  map[uint64]struct{}
	gen  *IDGenerator
	log  *slog.Logger
}

// New returns an empty collection.
func New(name string, opts ...Option) *Collection {
	c := &Collection{
		name: name,
		ids:  make(map[uint64]struct{}),
		log:  slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.gen == nil {
		c.gen = NewRandomIDGenerator()
	}

	return c
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Len returns the number of stored documents.
func (c *Collection) Len() int { return len(c.docs) }

// Insert stores a copy of doc.
//
// If doc has no identity one is generated. Every document nested in a
// Sequence or Mapping (at any depth, depth-first pre-order) that lacks an
// identity gets one too; existing identities are never overwritten. The
// assigned identities are written back to doc.
//
// If doc already carries an identity used in the collection, nothing is
// stored and inserted is false. The only error is [ErrIdentityExhausted], in
// which case neither doc nor the collection is modified.
func (c *Collection) Insert(doc *document.Document) (id uint64, inserted bool, err error) {
	if id, ok := doc.ID(); ok && c.has(id) {
		c.log.Warn("rejected duplicate document", "collection", c.name, "id", id)

		return id, false, nil
	}

	work := doc.Clone()
	pending := nestedIDs(work)

	id, err = c.ensureID(work, pending)
	if err != nil {
		return 0, false, err
	}

	err = c.fillNested(work, pending)
	if err != nil {
		return 0, false, err
	}

	c.docs = append(c.docs, work)
	c.register(work)
	*doc = *work.Clone()

	c.log.Info("inserted document", "collection", c.name, "id", id)

	return id, true, nil
}

// Find returns deep copies of the documents matching pred, in storage order.
func (c *Collection) Find(pred Predicate) []*document.Document {
	var out []*document.Document

	for _, d := range c.docs {
		if pred(d) {
			out = append(out, d.Clone())
		}
	}

	return out
}

// All returns deep copies of every document in storage order.
func (c *Collection) All() []*document.Document {
	return c.Find(All)
}

// GetByID returns a copy of the document with the given identity.
func (c *Collection) GetByID(id uint64) (*document.Document, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}

	return c.docs[i].Clone(), true
}

// Update applies mod in place to every document matching pred, in storage
// order, and returns the identities of the modified documents.
//
// A document whose identity was removed by mod keeps the modification but is
// left out of the result. Identities are fixed: if mod assigns a different
// one, the original is restored.
func (c *Collection) Update(pred Predicate, mod Modifier) []uint64 {
	var (
		updated []uint64
		touched bool
	)

	for _, d := range c.docs {
		if !pred(d) {
			continue
		}

		touched = true
		before, hadID := d.ID()

		mod(d)

		after, ok := d.ID()
		if !ok {
			c.log.Warn("modified document has no id", "collection", c.name)

			continue
		}

		if hadID && after != before {
			c.log.Warn("modifier changed document id, restoring",
				"collection", c.name, "id", before, "attempted", after)
			d.SetID(before)
			after = before
		}

		updated = append(updated, after)
		c.log.Info("modified document", "collection", c.name, "id", after)
	}

	if touched {
		c.reindex()
	}

	return updated
}

// UpdateDocument replaces the stored document with doc's identity by a copy
// of doc. It reports false if doc has no identity or none matches.
func (c *Collection) UpdateDocument(doc *document.Document) bool {
	id, ok := doc.ID()
	if !ok {
		c.log.Warn("tried to update a document without id", "collection", c.name)

		return false
	}

	i := c.indexOf(id)
	if i < 0 {
		c.log.Warn("no document found to update", "collection", c.name, "id", id)

		return false
	}

	c.docs[i] = doc.Clone()
	c.reindex()
	c.log.Info("updated document", "collection", c.name, "id", id)

	return true
}

// Remove deletes every document matching pred and releases their
// identities. Matches are collected first and deleted from the highest
// position to the lowest, so the returned identities are in reverse storage
// order.
func (c *Collection) Remove(pred Predicate) []uint64 {
	var positions []int

	for i, d := range c.docs {
		if pred(d) {
			positions = append(positions, i)
		}
	}

	if len(positions) == 0 {
		c.log.Warn("tried to remove non existing document", "collection", c.name)

		return nil
	}

	removed := make([]uint64, 0, len(positions))

	for _, pos := range slices.Backward(positions) {
		d := c.docs[pos]
		c.docs = slices.Delete(c.docs, pos, pos+1)

		id, ok := d.ID()
		if !ok {
			c.log.Warn("removed document without id", "collection", c.name)

			continue
		}

		removed = append(removed, id)
		c.log.Info("removed document", "collection", c.name, "id", id)
	}

	c.reindex()

	return removed
}

// RemoveDocument deletes the stored document with doc's identity. It
// reports false if doc has no identity or none matches.
func (c *Collection) RemoveDocument(doc *document.Document) bool {
	id, ok := doc.ID()
	if !ok {
		c.log.Warn("tried to remove document without id", "collection", c.name)

		return false
	}

	i := c.indexOf(id)
	if i < 0 {
		c.log.Warn("tried to remove non existing document", "collection", c.name, "id", id)

		return false
	}

	c.docs = slices.Delete(c.docs, i, i+1)
	c.reindex()
	c.log.Info("removed document", "collection", c.name, "id", id)

	return true
}

// InsertNestedContainer upserts target with container stored under field.
//
// Every document directly in container that lacks an identity gets one
// (existing identities are kept), target gets an identity if it has none,
// and target[field] is set to container. Contained documents anywhere else
// in target that lack an identity are then filled as [Collection.Insert]
// does. If a document with target's identity is stored it is replaced,
// otherwise target is inserted. The result is written back to target.
//
// Fails with [ErrNotContainer] if container is not a Sequence or Mapping,
// with [document.ErrTypeConstraint] if field is the reserved id field, and
// with [ErrIdentityExhausted]. On error nothing is modified.
func (c *Collection) InsertNestedContainer(container document.Value, field string, target *document.Document) (uint64, error) {
	if k := container.Kind(); k != document.KindSequence && k != document.KindMapping {
		return 0, fmt.Errorf("%w: got %s", ErrNotContainer, k)
	}

	container = container.Clone()
	work := target.Clone()

	pending := nestedIDs(work)

	elements := containerDocs(container)
	for _, d := range elements {
		if id, ok := d.ID(); ok {
			pending[id] = struct{}{}
		}
	}

	for _, d := range elements {
		if _, ok := d.ID(); ok {
			continue
		}

		id, err := c.generate(pending)
		if err != nil {
			return 0, err
		}

		d.SetID(id)
	}

	id, err := c.ensureID(work, pending)
	if err != nil {
		return 0, err
	}

	err = work.Set(field, container)
	if err != nil {
		c.log.Error("failed to insert container into document",
			"collection", c.name, "id", id, "field", field, "err", err)

		return 0, err
	}

	err = c.fillNested(work, pending)
	if err != nil {
		return 0, err
	}

	if i := c.indexOf(id); i >= 0 {
		c.docs[i] = work
		c.reindex()
		c.log.Info("updated existing document", "collection", c.name, "id", id)
	} else {
		c.docs = append(c.docs, work)
		c.register(work)
		c.log.Info("inserted new document", "collection", c.name, "id", id)
	}

	*target = *work.Clone()

	return id, nil
}

// Clone returns an independent deep copy of c, including its identity set.
// The copy draws identities from its own generator.
func (c *Collection) Clone() *Collection {
	docs := make([]*document.Document, len(c.docs))
	for i, d := range c.docs {
		docs[i] = d.Clone()
	}

	return &Collection{
		name: c.name,
		docs: docs,
		ids:  maps.Clone(c.ids),
		gen:  c.gen.fork(),
		log:  c.log,
	}
}

// register adds d's identity and those of its contained documents to the
// identity set.
func (c *Collection) register(d *document.Document) {
	maps.Copy(c.ids, nestedIDs(d))
}

// reindex rebuilds the identity set from the stored documents.
func (c *Collection) reindex() {
	clear(c.ids)

	for _, d := range c.docs {
		c.register(d)
	}
}

func (c *Collection) has(id uint64) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *Collection) indexOf(id uint64) int {
	return slices.IndexFunc(c.docs, func(d *document.Document) bool {
		got, ok := d.ID()
		return ok && got == id
	})
}

// generate draws an identity unused by the collection and by pending, and
// adds it to pending.
func (c *Collection) generate(pending map[uint64]struct{}) (uint64, error) {
	id, err := c.gen.Generate(func(id uint64) bool {
		_, inPending := pending[id]
		return inPending || c.has(id)
	})
	if err != nil {
		c.log.Error("identity generation failed", "collection", c.name, "err", err)

		return 0, err
	}

	pending[id] = struct{}{}

	return id, nil
}

func (c *Collection) ensureID(d *document.Document, pending map[uint64]struct{}) (uint64, error) {
	if id, ok := d.ID(); ok {
		return id, nil
	}

	id, err := c.generate(pending)
	if err != nil {
		return 0, err
	}

	d.SetID(id)

	return id, nil
}

// fillNested assigns identities to container elements below d that lack one.
func (c *Collection) fillNested(d *document.Document, pending map[uint64]struct{}) error {
	return eachContained(d, func(nested *document.Document) error {
		if _, ok := nested.ID(); ok {
			return nil
		}

		id, err := c.generate(pending)
		if err != nil {
			return err
		}

		nested.SetID(id)

		return nil
	})
}

// nestedIDs collects d's own identity and every identity already present on
// container elements below it.
func nestedIDs(d *document.Document) map[uint64]struct{} {
	ids := make(map[uint64]struct{})
	if id, ok := d.ID(); ok {
		ids[id] = struct{}{}
	}

	_ = eachContained(d, func(nested *document.Document) error {
		if id, ok := nested.ID(); ok {
			ids[id] = struct{}{}
		}

		return nil
	})

	return ids
}

// eachContained visits, depth-first pre-order, every document that is an
// element of a Sequence or Mapping below d. Plain Document fields are
// descended into but not visited themselves. Mapping entries are visited in
// key order.
func eachContained(d *document.Document, fn func(*document.Document) error) error {
	for _, v := range d.Fields() {
		switch v.Kind() {
		case document.KindSequence, document.KindMapping:
			for _, nested := range containerDocs(v) {
				if err := fn(nested); err != nil {
					return err
				}

				if err := eachContained(nested, fn); err != nil {
					return err
				}
			}
		case document.KindDocument:
			nested, _ := v.AsDocument()
			if err := eachContained(nested, fn); err != nil {
				return err
			}
		case document.KindInt32, document.KindUint64, document.KindFloat64,
			document.KindText, document.KindBool, document.KindInvalid:
		}
	}

	return nil
}

// containerDocs returns the (borrowed) element documents of a Sequence in
// order or of a Mapping in key order.
func containerDocs(v document.Value) []*document.Document {
	if seq, ok := v.AsSequence(); ok {
		return seq
	}

	m, ok := v.AsMapping()
	if !ok {
		return nil
	}

	docs := make([]*document.Document, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		docs = append(docs, m[k])
	}

	return docs
}
