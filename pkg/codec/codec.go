// Package codec reads and writes the hierarchical text form of a
// [document.Document].
//
// One document is written per file. The root is enclosed in braces and every
// field is one line, indented one tab per nesting level:
//
//	{
//		id (UnsignedInteger64) : 7
//		name (Text) : alice
//		tags (Sequence) : [
//			[0]
//			{
//				value (Integer32) : 1
//			}
//		]
//		address (Mapping) : {
//			home :
//			{
//				street (Text) : Main
//			}
//		}
//		owner (Document) :
//		{
//			name (Text) : bob
//		}
//	}
//
// Fields are written with id first, then in key order; Mapping entries are
// written in key order. Text values escape backslash, newline, carriage return
// and tab. Field names and Mapping keys are restricted so every line parses
// unambiguously (see [ValidKey]).
//
// The parser ignores indentation and blank lines. Every structural error is
// reported as a [*ParseError] carrying the 1-based line number.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingIdentity is returned when writing a document without an id.
	ErrMissingIdentity = errors.New("document has no id")
	// ErrUnknownValueType is returned when writing a value of no known kind.
	ErrUnknownValueType = errors.New("unknown value type")
	// ErrInvalidKey is returned when a field name or Mapping key cannot be
	// represented in the text format.
	ErrInvalidKey = errors.New("invalid key")
	// ErrTooDeep is returned when writing a document nested deeper than the
	// parser accepts.
	ErrTooDeep = errors.New("document nested too deeply")
	// ErrParse matches every [*ParseError].
	ErrParse = errors.New("corrupt document")
)

const (
	openDoc      = "{"
	closeDoc     = "}"
	openSeq      = "["
	closeSeq     = "]"
	valueSep     = " : "
	mappingEntry = " :"
	indentUnit   = "\t"

	// maxDepth bounds document nesting, root included, on both the parser
	// and the writer.
	maxDepth = 256
)

// reservedKeyChars may not appear in field names or Mapping keys.
const reservedKeyChars = "(){}[]:\\"

// ParseError describes malformed input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrParse, e.Line, e.Msg)
}

// Unwrap makes errors.Is(err, ErrParse) hold for every ParseError.
func (e *ParseError) Unwrap() error { return ErrParse }

func parseErr(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// ValidKey reports whether key can be used as a field name or Mapping key.
// Keys must be non-empty and contain no whitespace and none of (){}[]:\.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}

	for _, r := range key {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			return false
		}

		if strings.ContainsRune(reservedKeyChars, r) {
			return false
		}
	}

	return true
}

func escapeText(s string) string {
	if !strings.ContainsAny(s, "\\\n\r\t") {
		return s
	}

	var b strings.Builder

	b.Grow(len(s) + 4)

	for i := range len(s) {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func unescapeText(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)

			continue
		}

		i++
		if i == len(s) {
			return "", errors.New("dangling escape")
		}

		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			return "", fmt.Errorf("unknown escape %q", s[i-1:i+1])
		}
	}

	return b.String(), nil
}
