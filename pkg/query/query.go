// Package query turns text into collection predicates and modifiers.
//
// Predicates are boolean expressions in the expr language
// (github.com/expr-lang/expr), evaluated with the document's fields as
// variables:
//
//	age >= 18 && name startsWith "a"
//	address.home.street == "Main"
//	len(children) > 1
//
// Field values map to Go as Integer32 → int, UnsignedInteger64 → uint64,
// Float64 → float64, Text → string, Boolean → bool, Document → map,
// Sequence → []any of maps, Mapping → map of maps. Fields absent from a
// document are nil.
package query

import (
	"errors"
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/calvinalkan/docstore/pkg/collection"
	"github.com/calvinalkan/docstore/pkg/document"
)

// ErrInvalidExpression is returned for expressions that do not compile.
var ErrInvalidExpression = errors.New("invalid expression")

// Compile returns a predicate for expression. An empty expression matches
// every document. A document for which evaluation fails (for example
// comparing an absent field with a number) does not match.
func Compile(expression string) (collection.Predicate, error) {
	if strings.TrimSpace(expression) == "" {
		return collection.All, nil
	}

	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidExpression, expression, err)
	}

	return predicate(program), nil
}

func predicate(program *exprvm.Program) collection.Predicate {
	return func(doc *document.Document) bool {
		out, err := exprlang.Run(program, Env(doc))
		if err != nil {
			return false
		}

		matched, ok := out.(bool)

		return ok && matched
	}
}

// Env converts doc into the variable map expressions are evaluated against.
func Env(doc *document.Document) map[string]any {
	env := make(map[string]any, doc.Len())

	for key, v := range doc.Fields() {
		env[key] = native(v)
	}

	return env
}

func native(v document.Value) any {
	switch v.Kind() {
	case document.KindInt32:
		n, _ := v.AsInt32()
		return int(n)
	case document.KindUint64:
		n, _ := v.AsUint64()
		return n
	case document.KindFloat64:
		f, _ := v.AsFloat64()
		return f
	case document.KindText:
		s, _ := v.AsText()
		return s
	case document.KindBool:
		b, _ := v.AsBool()
		return b
	case document.KindDocument:
		d, _ := v.AsDocument()
		return Env(d)
	case document.KindSequence:
		seq, _ := v.AsSequence()

		out := make([]any, len(seq))
		for i, d := range seq {
			out[i] = Env(d)
		}

		return out
	case document.KindMapping:
		m, _ := v.AsMapping()

		out := make(map[string]any, len(m))
		for k, d := range m {
			out[k] = Env(d)
		}

		return out
	case document.KindInvalid:
	}

	return nil
}
