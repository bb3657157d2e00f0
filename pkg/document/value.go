package document

import (
	"maps"
	"math"
	"slices"
	"strconv"
)

// Kind distinguishes the alternatives a [Value] may hold.
type Kind uint8

// Kind values enumerate the closed set of field types.
const (
	KindInvalid Kind = iota
	KindInt32
	KindUint64
	KindFloat64
	KindText
	KindBool
	KindDocument
	KindSequence
	KindMapping
)

var kindNames = [...]string{
	KindInvalid:  "Invalid",
	KindInt32:    "Integer32",
	KindUint64:   "UnsignedInteger64",
	KindFloat64:  "Float64",
	KindText:     "Text",
	KindBool:     "Boolean",
	KindDocument: "Document",
	KindSequence: "Sequence",
	KindMapping:  "Mapping",
}

// String returns the type tag used in dumps and in the on-disk format.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// KindFromString is the inverse of [Kind.String]. It reports false for
// unknown tags and for "Invalid".
func KindFromString(s string) (Kind, bool) {
	for k := KindInt32; k <= KindMapping; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}

	return KindInvalid, false
}

// Value is a tagged union over the supported field types. Exactly one
// alternative is active, selected by Kind. The zero Value is invalid and
// cannot be stored in a Document.
//
// Container alternatives (Document, Sequence, Mapping) hold pointers to
// documents owned by the Value. Constructors deep-copy their arguments, so a
// Value never shares nested documents with the caller.
type Value struct {
	kind Kind
	i32  int32
	u64  uint64
	f64  float64
	text string
	b    bool
	doc  *Document
	seq  []*Document
	m    map[string]*Document
}

// Int32 returns an Integer32 value.
func Int32(v int32) Value { return Value{kind: KindInt32, i32: v} }

// Uint64 returns an UnsignedInteger64 value.
func Uint64(v uint64) Value { return Value{kind: KindUint64, u64: v} }

// Float64 returns a Float64 value.
func Float64(v float64) Value { return Value{kind: KindFloat64, f64: v} }

// Text returns a Text value.
func Text(v string) Value { return Value{kind: KindText, text: v} }

// Bool returns a Boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Doc returns a Document value holding a deep copy of d. A nil d is stored
// as an empty document.
func Doc(d *Document) Value {
	return Value{kind: KindDocument, doc: d.Clone()}
}

// Sequence returns a Sequence value holding deep copies of docs, in order.
// Nil entries are stored as empty documents.
func Sequence(docs ...*Document) Value {
	seq := make([]*Document, len(docs))
	for i, d := range docs {
		seq[i] = d.Clone()
	}

	return Value{kind: KindSequence, seq: seq}
}

// Mapping returns a Mapping value holding deep copies of m's documents.
func Mapping(m map[string]*Document) Value {
	out := make(map[string]*Document, len(m))
	for k, d := range m {
		out[k] = d.Clone()
	}

	return Value{kind: KindMapping, m: out}
}

// Kind reports the active alternative.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the supported alternatives.
func (v Value) IsValid() bool { return v.kind >= KindInt32 && v.kind <= KindMapping }

// AsInt32 returns the Integer32 alternative. No numeric coercion is applied.
func (v Value) AsInt32() (int32, bool) { return v.i32, v.kind == KindInt32 }

// AsUint64 returns the UnsignedInteger64 alternative.
func (v Value) AsUint64() (uint64, bool) { return v.u64, v.kind == KindUint64 }

// AsFloat64 returns the Float64 alternative.
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }

// AsText returns the Text alternative.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsBool returns the Boolean alternative.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsDocument returns the nested document. The document is borrowed: it is
// owned by v (and by the Document holding v). Use [Document.Clone] to detach.
func (v Value) AsDocument() (*Document, bool) {
	if v.kind != KindDocument {
		return nil, false
	}

	return v.doc, true
}

// AsSequence returns the nested documents in order. The slice and its
// documents are borrowed.
func (v Value) AsSequence() ([]*Document, bool) {
	if v.kind != KindSequence {
		return nil, false
	}

	return v.seq, true
}

// AsMapping returns the nested documents by key. The map and its documents
// are borrowed.
func (v Value) AsMapping() (map[string]*Document, bool) {
	if v.kind != KindMapping {
		return nil, false
	}

	return v.m, true
}

// Equal reports whether v and o hold the same alternative with equal
// contents. Sequences compare in order, Mappings by key. Float64 values
// compare by bit pattern, so NaN equals itself and 0 differs from -0.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindInt32:
		return v.i32 == o.i32
	case KindUint64:
		return v.u64 == o.u64
	case KindFloat64:
		return math.Float64bits(v.f64) == math.Float64bits(o.f64)
	case KindText:
		return v.text == o.text
	case KindBool:
		return v.b == o.b
	case KindDocument:
		return v.doc.Equal(o.doc)
	case KindSequence:
		return slices.EqualFunc(v.seq, o.seq, (*Document).Equal)
	case KindMapping:
		return maps.EqualFunc(v.m, o.m, (*Document).Equal)
	default:
		return true
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindDocument:
		return Doc(v.doc)
	case KindSequence:
		return Sequence(v.seq...)
	case KindMapping:
		return Mapping(v.m)
	default:
		return v
	}
}
