package codec

import (
	"strconv"
	"strings"

	"github.com/calvinalkan/docstore/pkg/document"
)

// Parse reconstructs a document from its text form.
//
// The input must hold exactly one brace-enclosed document; anything but blank
// lines after its closing brace is an error. Parse does not require the root
// to carry an id, but an id field of any type other than UnsignedInteger64 is
// rejected.
func Parse(src []byte) (*document.Document, error) {
	p := newParser(src)

	tok, ok := p.nextNonBlank()
	if !ok {
		return nil, parseErr(p.lastLine(), "empty input")
	}

	if tok.text != openDoc {
		return nil, parseErr(tok.num, "expected %q, got %q", openDoc, tok.text)
	}

	doc, err := p.parseDocument(tok.num)
	if err != nil {
		return nil, err
	}

	if tok, ok := p.nextNonBlank(); ok {
		return nil, parseErr(tok.num, "unexpected content after document: %q", tok.text)
	}

	return doc, nil
}

type lineToken struct {
	raw  string // without indentation or trailing CR
	text string // raw with trailing blanks removed
	num  int
}

type parser struct {
	lines []string
	idx   int
	depth int
}

func newParser(src []byte) *parser {
	return &parser{lines: strings.Split(string(src), "\n")}
}

func (p *parser) nextNonBlank() (lineToken, bool) {
	for p.idx < len(p.lines) {
		line := p.lines[p.idx]
		p.idx++

		raw := strings.TrimLeft(strings.TrimSuffix(line, "\r"), " \t")

		text := strings.TrimRight(raw, " \t")
		if text == "" {
			continue
		}

		return lineToken{raw: raw, text: text, num: p.idx}, true
	}

	return lineToken{}, false
}

// lastLine is the number of the final line, not counting the empty string
// after a trailing newline.
func (p *parser) lastLine() int {
	n := len(p.lines)
	if n > 1 && p.lines[n-1] == "" {
		n--
	}

	return n
}

// parseDocument reads fields up to the closing brace of a document whose
// opening brace was on line open.
func (p *parser) parseDocument(open int) (*document.Document, error) {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > maxDepth {
		return nil, parseErr(open, "nesting deeper than %d levels", maxDepth)
	}

	doc := document.New()

	for {
		tok, ok := p.nextNonBlank()
		if !ok {
			return nil, parseErr(p.lastLine(), "unexpected end of input: document opened on line %d is not closed", open)
		}

		if tok.text == closeDoc {
			return doc, nil
		}

		key, kind, value, err := splitField(tok)
		if err != nil {
			return nil, err
		}

		if doc.Has(key) {
			return nil, parseErr(tok.num, "duplicate key %q", key)
		}

		if key == document.IDField && kind != document.KindUint64 {
			return nil, parseErr(tok.num, "id must be %s, got %s", document.KindUint64, kind)
		}

		v, err := p.parseValue(tok, kind, value)
		if err != nil {
			return nil, err
		}

		err = doc.Set(key, v)
		if err != nil {
			return nil, parseErr(tok.num, "%v", err)
		}
	}
}

// splitField splits "key (Tag) : value" into its parts. value is everything
// after the separator, untrimmed.
func splitField(tok lineToken) (string, document.Kind, string, error) {
	key, rest, ok := strings.Cut(tok.raw, " (")
	if !ok {
		return "", document.KindInvalid, "", parseErr(tok.num, "expected 'key (Type) : value', got %q", tok.text)
	}

	if !ValidKey(key) {
		return "", document.KindInvalid, "", parseErr(tok.num, "invalid key %q", key)
	}

	tag, rest, ok := strings.Cut(rest, ")")
	if !ok {
		return "", document.KindInvalid, "", parseErr(tok.num, "unterminated type tag")
	}

	kind, ok := document.KindFromString(tag)
	if !ok {
		return "", document.KindInvalid, "", parseErr(tok.num, "unknown type %q", tag)
	}

	switch {
	case strings.HasPrefix(rest, valueSep):
		return key, kind, rest[len(valueSep):], nil
	case strings.TrimRight(rest, " \t") == mappingEntry:
		return key, kind, "", nil
	default:
		return "", document.KindInvalid, "", parseErr(tok.num, "expected %q after type", valueSep)
	}
}

func (p *parser) parseValue(tok lineToken, kind document.Kind, value string) (document.Value, error) {
	switch kind {
	case document.KindInt32:
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return document.Value{}, parseErr(tok.num, "invalid %s %q", kind, value)
		}

		return document.Int32(int32(n)), nil
	case document.KindUint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return document.Value{}, parseErr(tok.num, "invalid %s %q", kind, value)
		}

		return document.Uint64(n), nil
	case document.KindFloat64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return document.Value{}, parseErr(tok.num, "invalid %s %q", kind, value)
		}

		return document.Float64(f), nil
	case document.KindBool:
		switch value {
		case "true":
			return document.Bool(true), nil
		case "false":
			return document.Bool(false), nil
		default:
			return document.Value{}, parseErr(tok.num, "invalid %s %q", kind, value)
		}
	case document.KindText:
		s, err := unescapeText(value)
		if err != nil {
			return document.Value{}, parseErr(tok.num, "invalid %s: %v", kind, err)
		}

		return document.Text(s), nil
	case document.KindDocument:
		if strings.TrimRight(value, " \t") != "" {
			return document.Value{}, parseErr(tok.num, "unexpected value after %s", kind)
		}

		open, err := p.expectOpen(tok)
		if err != nil {
			return document.Value{}, err
		}

		nested, err := p.parseDocument(open)
		if err != nil {
			return document.Value{}, err
		}

		return document.Doc(nested), nil
	case document.KindSequence:
		if strings.TrimRight(value, " \t") != openSeq {
			return document.Value{}, parseErr(tok.num, "expected %q after %s", openSeq, kind)
		}

		return p.parseSequence(tok)
	case document.KindMapping:
		if strings.TrimRight(value, " \t") != openDoc {
			return document.Value{}, parseErr(tok.num, "expected %q after %s", openDoc, kind)
		}

		return p.parseMapping(tok)
	case document.KindInvalid:
	}

	return document.Value{}, parseErr(tok.num, "unknown type %q", kind)
}

// expectOpen consumes the "{" that must follow tok.
func (p *parser) expectOpen(tok lineToken) (int, error) {
	next, ok := p.nextNonBlank()
	if !ok {
		return 0, parseErr(p.lastLine(), "unexpected end of input: expected %q after line %d", openDoc, tok.num)
	}

	if next.text != openDoc {
		return 0, parseErr(next.num, "expected %q after line %d, got %q", openDoc, tok.num, next.text)
	}

	return next.num, nil
}

func (p *parser) parseSequence(header lineToken) (document.Value, error) {
	var docs []*document.Document

	for {
		tok, ok := p.nextNonBlank()
		if !ok {
			return document.Value{}, parseErr(p.lastLine(), "unexpected end of input: sequence opened on line %d is not closed", header.num)
		}

		switch {
		case tok.text == closeSeq:
			return document.Sequence(docs...), nil
		case tok.text == openDoc:
			nested, err := p.parseDocument(tok.num)
			if err != nil {
				return document.Value{}, err
			}

			docs = append(docs, nested)
		case isIndexMarker(tok.text):
			continue
		default:
			return document.Value{}, parseErr(tok.num, "expected sequence element, got %q", tok.text)
		}
	}
}

func (p *parser) parseMapping(header lineToken) (document.Value, error) {
	m := make(map[string]*document.Document)

	for {
		tok, ok := p.nextNonBlank()
		if !ok {
			return document.Value{}, parseErr(p.lastLine(), "unexpected end of input: mapping opened on line %d is not closed", header.num)
		}

		if tok.text == closeDoc {
			return document.Mapping(m), nil
		}

		sub, ok := strings.CutSuffix(tok.text, mappingEntry)
		if !ok || !ValidKey(sub) {
			return document.Value{}, parseErr(tok.num, "expected 'key :' mapping entry, got %q", tok.text)
		}

		if _, dup := m[sub]; dup {
			return document.Value{}, parseErr(tok.num, "duplicate mapping key %q", sub)
		}

		open, err := p.expectOpen(tok)
		if err != nil {
			return document.Value{}, err
		}

		nested, err := p.parseDocument(open)
		if err != nil {
			return document.Value{}, err
		}

		m[sub] = nested
	}
}

// isIndexMarker reports whether s has the form "[n]".
func isIndexMarker(s string) bool {
	inner, ok := strings.CutPrefix(s, openSeq)
	if !ok {
		return false
	}

	inner, ok = strings.CutSuffix(inner, closeSeq)
	if !ok || inner == "" {
		return false
	}

	for _, c := range inner {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
