package document

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

const dumpIndent = "  "

// Dump returns a deterministic, human-readable listing of d for debugging
// and log output. It is not the persistence format; see package codec.
//
//	id: 7 (UnsignedInteger64)
//	name: "alice" (Text)
//	tags: [
//	  [0] {
//	    value: 1 (Integer32)
//	  }
//	]
func (d *Document) Dump() string {
	var b strings.Builder

	dumpFields(&b, d, 0)

	return b.String()
}

// String implements fmt.Stringer using [Document.Dump].
func (d *Document) String() string {
	return d.Dump()
}

func dumpFields(b *strings.Builder, d *Document, depth int) {
	for key, v := range d.Fields() {
		writeIndent(b, depth)
		b.WriteString(key)
		b.WriteString(": ")
		dumpValue(b, v, depth)
		b.WriteByte('\n')
	}
}

func dumpValue(b *strings.Builder, v Value, depth int) {
	switch v.Kind() {
	case KindInt32:
		b.WriteString(strconv.FormatInt(int64(v.i32), 10))
	case KindUint64:
		b.WriteString(strconv.FormatUint(v.u64, 10))
	case KindFloat64:
		b.WriteString(strconv.FormatFloat(v.f64, 'g', -1, 64))
	case KindText:
		b.WriteString(strconv.Quote(v.text))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))
	case KindDocument:
		b.WriteString("{\n")
		dumpFields(b, v.doc, depth+1)
		writeIndent(b, depth)
		b.WriteString("}")

		return
	case KindSequence:
		b.WriteString("[\n")

		for i, d := range v.seq {
			writeIndent(b, depth+1)
			b.WriteString("[" + strconv.Itoa(i) + "] {\n")
			dumpFields(b, d, depth+2)
			writeIndent(b, depth+1)
			b.WriteString("}\n")
		}

		writeIndent(b, depth)
		b.WriteString("]")

		return
	case KindMapping:
		b.WriteString("{\n")

		for _, k := range slices.Sorted(maps.Keys(v.m)) {
			writeIndent(b, depth+1)
			b.WriteString(k + ": {\n")
			dumpFields(b, v.m[k], depth+2)
			writeIndent(b, depth+1)
			b.WriteString("}\n")
		}

		writeIndent(b, depth)
		b.WriteString("}")

		return
	default:
		b.WriteString("<invalid>")

		return
	}

	b.WriteString(" (" + v.Kind().String() + ")")
}

func writeIndent(b *strings.Builder, depth int) {
	for range depth {
		b.WriteString(dumpIndent)
	}
}
