package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/calvinalkan/docstore/pkg/codec"
	"github.com/calvinalkan/docstore/pkg/collection"
	"github.com/calvinalkan/docstore/pkg/document"
)

// ErrInvalidAssignment is returned by [ParseAssignment] for malformed input.
var ErrInvalidAssignment = errors.New("invalid assignment")

// Assignment sets one field to a typed value.
type Assignment struct {
	Field string
	Value document.Value
}

// typeNames maps the short type names accepted in assignments to kinds.
var typeNames = map[string]document.Kind{
	"int":    document.KindInt32,
	"int32":  document.KindInt32,
	"uint":   document.KindUint64,
	"uint64": document.KindUint64,
	"float":  document.KindFloat64,
	"text":   document.KindText,
	"string": document.KindText,
	"bool":   document.KindBool,
}

// ParseAssignment parses "field:type=value", for example "age:int=42" or
// "name:text=alice". Without ":type" the value is text. Types: int, uint,
// float, text, bool (and the aliases int32, uint64, string).
func ParseAssignment(s string) (Assignment, error) {
	lhs, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %q: expected field:type=value", ErrInvalidAssignment, s)
	}

	field, typ, hasType := strings.Cut(lhs, ":")
	if !hasType {
		typ = "text"
	}

	if !codec.ValidKey(field) {
		return Assignment{}, fmt.Errorf("%w: %q: invalid field name %q", ErrInvalidAssignment, s, field)
	}

	kind, ok := typeNames[strings.ToLower(typ)]
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %q: unknown type %q", ErrInvalidAssignment, s, typ)
	}

	if field == document.IDField && kind != document.KindUint64 {
		return Assignment{}, fmt.Errorf("%w: %q: id must be uint", document.ErrTypeConstraint, s)
	}

	v, err := parseScalar(kind, raw)
	if err != nil {
		return Assignment{}, fmt.Errorf("%w: %q: %w", ErrInvalidAssignment, s, err)
	}

	return Assignment{Field: field, Value: v}, nil
}

// ParseAssignments parses each element of specs.
func ParseAssignments(specs []string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(specs))

	for _, spec := range specs {
		a, err := ParseAssignment(spec)
		if err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, nil
}

// Apply sets every assignment on doc.
func Apply(doc *document.Document, assignments ...Assignment) error {
	for _, a := range assignments {
		err := doc.Set(a.Field, a.Value)
		if err != nil {
			return fmt.Errorf("set %s: %w", a.Field, err)
		}
	}

	return nil
}

// Modifier returns a modifier applying assignments in order. Assignments
// produced by [ParseAssignment] always apply cleanly.
func Modifier(assignments ...Assignment) collection.Modifier {
	return func(doc *document.Document) {
		_ = Apply(doc, assignments...)
	}
}

func parseScalar(kind document.Kind, raw string) (document.Value, error) {
	switch kind {
	case document.KindInt32:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return document.Value{}, err
		}

		return document.Int32(int32(n)), nil
	case document.KindUint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return document.Value{}, err
		}

		return document.Uint64(n), nil
	case document.KindFloat64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return document.Value{}, err
		}

		return document.Float64(f), nil
	case document.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return document.Value{}, err
		}

		return document.Bool(b), nil
	case document.KindText:
		return document.Text(raw), nil
	default:
		return document.Value{}, fmt.Errorf("unsupported type %s", kind)
	}
}
