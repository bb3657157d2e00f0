package codec

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/calvinalkan/docstore/pkg/document"
)

// Marshal returns the text form of doc. doc must carry an id.
func Marshal(doc *document.Document) ([]byte, error) {
	if _, ok := doc.ID(); !ok {
		return nil, ErrMissingIdentity
	}

	var buf bytes.Buffer

	buf.WriteString(openDoc + "\n")

	err := writeFields(&buf, doc, 1, 1)
	if err != nil {
		return nil, err
	}

	buf.WriteString(closeDoc + "\n")

	return buf.Bytes(), nil
}

// Validate returns the error [Marshal] would return for doc, ignoring a
// missing id.
func Validate(doc *document.Document) error {
	var buf bytes.Buffer

	return writeFields(&buf, doc, 1, 1)
}

// Encoder writes documents to an output stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the text form of doc. Nothing is written if doc cannot be
// encoded.
func (e *Encoder) Encode(doc *document.Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	_, err = e.w.Write(data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}

// writeFields writes doc's fields at indent depth. level counts the open
// documents, root included.
func writeFields(buf *bytes.Buffer, doc *document.Document, depth, level int) error {
	for key, v := range doc.Fields() {
		if !ValidKey(key) {
			return fmt.Errorf("%w: field %q", ErrInvalidKey, key)
		}

		err := writeField(buf, key, v, depth, level)
		if err != nil {
			return err
		}
	}

	return nil
}

func writeField(buf *bytes.Buffer, key string, v document.Value, depth, level int) error {
	indent(buf, depth)
	buf.WriteString(key)
	buf.WriteString(" (")
	buf.WriteString(v.Kind().String())
	buf.WriteString(")")

	switch v.Kind() {
	case document.KindInt32:
		n, _ := v.AsInt32()
		writeScalar(buf, strconv.FormatInt(int64(n), 10))
	case document.KindUint64:
		n, _ := v.AsUint64()
		writeScalar(buf, strconv.FormatUint(n, 10))
	case document.KindFloat64:
		f, _ := v.AsFloat64()
		writeScalar(buf, strconv.FormatFloat(f, 'g', -1, 64))
	case document.KindText:
		s, _ := v.AsText()
		writeScalar(buf, escapeText(s))
	case document.KindBool:
		b, _ := v.AsBool()
		writeScalar(buf, strconv.FormatBool(b))
	case document.KindDocument:
		nested, _ := v.AsDocument()

		buf.WriteString(mappingEntry + "\n")

		return writeNested(buf, nested, depth, level)
	case document.KindSequence:
		seq, _ := v.AsSequence()

		buf.WriteString(valueSep + openSeq + "\n")

		for i, nested := range seq {
			indent(buf, depth+1)
			buf.WriteString("[" + strconv.Itoa(i) + "]\n")

			err := writeNested(buf, nested, depth+1, level)
			if err != nil {
				return err
			}
		}

		indent(buf, depth)
		buf.WriteString(closeSeq + "\n")
	case document.KindMapping:
		m, _ := v.AsMapping()

		buf.WriteString(valueSep + openDoc + "\n")

		for _, sub := range slices.Sorted(maps.Keys(m)) {
			if !ValidKey(sub) {
				return fmt.Errorf("%w: mapping key %q in field %q", ErrInvalidKey, sub, key)
			}

			indent(buf, depth+1)
			buf.WriteString(sub + mappingEntry + "\n")

			err := writeNested(buf, m[sub], depth+1, level)
			if err != nil {
				return err
			}
		}

		indent(buf, depth)
		buf.WriteString(closeDoc + "\n")
	case document.KindInvalid:
		return fmt.Errorf("%w: field %q", ErrUnknownValueType, key)
	default:
		return fmt.Errorf("%w: field %q has kind %d", ErrUnknownValueType, key, v.Kind())
	}

	return nil
}

func writeScalar(buf *bytes.Buffer, text string) {
	buf.WriteString(valueSep)
	buf.WriteString(text)
	buf.WriteByte('\n')
}

func writeNested(buf *bytes.Buffer, doc *document.Document, depth, level int) error {
	if level+1 > maxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrTooDeep, maxDepth)
	}

	indent(buf, depth)
	buf.WriteString(openDoc + "\n")

	err := writeFields(buf, doc, depth+1, level+1)
	if err != nil {
		return err
	}

	indent(buf, depth)
	buf.WriteString(closeDoc + "\n")

	return nil
}

func indent(buf *bytes.Buffer, depth int) {
	for range depth {
		buf.WriteString(indentUnit)
	}
}
