// Package document implements the typed, self-describing value model stored
// by docstore.
//
// A [Document] maps field names to [Value]s. A Value is a closed union over
// Integer32, UnsignedInteger64, Float64, Text, Boolean, Document,
// Sequence (ordered documents) and Mapping (documents by text key):
//
//	doc := document.New()
//	doc.MustSet("name", document.Text("alice"))
//	doc.MustSet("tags", document.Sequence(tagA, tagB))
//
// # Ownership
//
// A Document exclusively owns everything reachable from it. [Document.Set]
// and the container constructors deep-copy their inputs, so no nested
// document is ever shared between two parents.
//
// Accessors that return nested documents ([Document.Document],
// [Document.Sequence], [Document.Mapping], [Value.AsDocument], ...) return
// borrowed data: mutating it mutates the parent. Call [Document.Clone] to get
// an independent copy.
//
// # Reserved field
//
// The field named "id" ([IDField]) holds the document identity and may only
// be an UnsignedInteger64. Any other type is rejected with
// [ErrTypeConstraint].
package document

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// IDField is the reserved identity field name.
const IDField = "id"

// ErrTypeConstraint is returned when a value of the wrong type is stored under
// the reserved identity field.
var ErrTypeConstraint = errors.New("type constraint violation")

// Document is a mapping from field name to [Value]. The zero value is an
// empty document ready to use.
type Document struct {
	fields map[string]Value
}

// New returns an empty document.
func New() *Document {
	return &Document{fields: make(map[string]Value)}
}

// Set stores v under key, replacing any previous value. v is deep-copied.
//
// Fails with [ErrTypeConstraint] if key is [IDField] and v is not an
// UnsignedInteger64, or if v is the zero Value. On failure d is unchanged.
func (d *Document) Set(key string, v Value) error {
	if !v.IsValid() {
		return fmt.Errorf("%w: field %q: invalid value", ErrTypeConstraint, key)
	}

	if key == IDField && v.Kind() != KindUint64 {
		return fmt.Errorf("%w: field %q must be %s, got %s", ErrTypeConstraint, key, KindUint64, v.Kind())
	}

	if d.fields == nil {
		d.fields = make(map[string]Value)
	}

	d.fields[key] = v.Clone()

	return nil
}

// MustSet is like [Document.Set] but panics on error.
func (d *Document) MustSet(key string, v Value) {
	if err := d.Set(key, v); err != nil {
		panic(err)
	}
}

// SetID stores id under [IDField].
func (d *Document) SetID(id uint64) {
	d.MustSet(IDField, Uint64(id))
}

// ID returns the document identity, if present.
func (d *Document) ID() (uint64, bool) {
	return d.Uint64(IDField)
}

// Get returns the value stored under key. Container contents are borrowed.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}

	v, ok := d.fields[key]

	return v, ok
}

// Int32 returns the Integer32 stored under key. It reports false if the key
// is missing or holds any other type; no numeric coercion is done.
func (d *Document) Int32(key string) (int32, bool) {
	v, _ := d.Get(key)
	return v.AsInt32()
}

// Uint64 returns the UnsignedInteger64 stored under key.
func (d *Document) Uint64(key string) (uint64, bool) {
	v, _ := d.Get(key)
	return v.AsUint64()
}

// Float64 returns the Float64 stored under key.
func (d *Document) Float64(key string) (float64, bool) {
	v, _ := d.Get(key)
	return v.AsFloat64()
}

// Text returns the Text stored under key.
func (d *Document) Text(key string) (string, bool) {
	v, _ := d.Get(key)
	return v.AsText()
}

// Bool returns the Boolean stored under key.
func (d *Document) Bool(key string) (bool, bool) {
	v, _ := d.Get(key)
	return v.AsBool()
}

// Document returns the nested document stored under key (borrowed).
func (d *Document) Document(key string) (*Document, bool) {
	v, _ := d.Get(key)
	return v.AsDocument()
}

// Sequence returns the documents of the Sequence stored under key (borrowed).
func (d *Document) Sequence(key string) ([]*Document, bool) {
	v, _ := d.Get(key)
	return v.AsSequence()
}

// Mapping returns the documents of the Mapping stored under key (borrowed).
func (d *Document) Mapping(key string) (map[string]*Document, bool) {
	v, _ := d.Get(key)
	return v.AsMapping()
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Remove deletes key. Removing a missing key is a no-op.
func (d *Document) Remove(key string) {
	if d == nil {
		return
	}

	delete(d.fields, key)
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}

	return len(d.fields)
}

// Keys returns the field names with [IDField] first (if present) and the
// rest sorted.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}

	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		if k != IDField {
			keys = append(keys, k)
		}
	}

	slices.Sort(keys)

	if _, ok := d.fields[IDField]; ok {
		keys = slices.Insert(keys, 0, IDField)
	}

	return keys
}

// Fields iterates fields in [Document.Keys] order. Values are borrowed and
// must not be retained past the iteration if d may be mutated.
func (d *Document) Fields() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range d.Keys() {
			if !yield(k, d.fields[k]) {
				return
			}
		}
	}
}

// Clone returns a deep copy of d. Cloning a nil document yields an empty one.
func (d *Document) Clone() *Document {
	out := New()
	if d == nil {
		return out
	}

	for k, v := range d.fields {
		out.fields[k] = v.Clone()
	}

	return out
}

// Equal reports whether d and o hold the same key set with equal values.
// A nil document equals an empty one.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}

	if d.Len() == 0 {
		return true
	}

	return maps.EqualFunc(d.fields, o.fields, Value.Equal)
}
