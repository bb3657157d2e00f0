package query_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docstore/pkg/document"
	"github.com/calvinalkan/docstore/pkg/query"
)

func person() *document.Document {
	home := document.New()
	home.MustSet("street", document.Text("Main"))

	kid := document.New()
	kid.MustSet("name", document.Text("kid"))

	d := document.New()
	d.SetID(7)
	d.MustSet("name", document.Text("alice"))
	d.MustSet("age", document.Int32(30))
	d.MustSet("score", document.Float64(9.5))
	d.MustSet("active", document.Bool(true))
	d.MustSet("address", document.Mapping(map[string]*document.Document{"home": home}))
	d.MustSet("children", document.Sequence(kid, kid))
	d.MustSet("owner", document.Doc(kid))

	return d
}

func Test_Compile_Matches_Document_Fields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		want bool
	}{
		{expr: "", want: true},
		{expr: "   ", want: true},
		{expr: `name == "alice"`, want: true},
		{expr: `name startsWith "b"`, want: false},
		{expr: "age >= 18 && active", want: true},
		{expr: "age > 30", want: false},
		{expr: "score < 10.0", want: true},
		{expr: "id == 7", want: true},
		{expr: `address.home.street == "Main"`, want: true},
		{expr: "len(children) == 2", want: true},
		{expr: `children[0].name == "kid"`, want: true},
		{expr: `owner.name == "kid"`, want: true},
		{expr: "missing == nil", want: true},
		{expr: "missing > 3", want: false},
	}

	doc := person()

	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()

			pred, err := query.Compile(tc.expr)
			require.NoError(t, err)

			if got := pred(doc); got != tc.want {
				t.Fatalf("pred(%q)=%v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func Test_Compile_Fails_When_Expression_Invalid(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"age >", "1 + 2", `"text"`} {
		_, err := query.Compile(expr)
		if !errors.Is(err, query.ErrInvalidExpression) {
			t.Fatalf("Compile(%q) err=%v, want ErrInvalidExpression", expr, err)
		}
	}
}

func Test_Env_Converts_Values_To_Native_Types(t *testing.T) {
	t.Parallel()

	doc := document.New()
	doc.SetID(1)
	doc.MustSet("n", document.Int32(-2))
	doc.MustSet("seq", document.Sequence(document.New()))

	want := map[string]any{
		"id":  uint64(1),
		"n":   -2,
		"seq": []any{map[string]any{}},
	}

	if diff := cmp.Diff(want, query.Env(doc)); diff != "" {
		t.Fatalf("env mismatch (-want +got):\n%s", diff)
	}
}

func Test_ParseAssignment_Parses_Typed_Values(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want query.Assignment
	}{
		{in: "name:text=alice", want: query.Assignment{Field: "name", Value: document.Text("alice")}},
		{in: "name=a=b", want: query.Assignment{Field: "name", Value: document.Text("a=b")}},
		{in: "empty:string=", want: query.Assignment{Field: "empty", Value: document.Text("")}},
		{in: "age:int=-4", want: query.Assignment{Field: "age", Value: document.Int32(-4)}},
		{in: "big:uint=18446744073709551615", want: query.Assignment{Field: "big", Value: document.Uint64(18446744073709551615)}},
		{in: "f:float=1.5", want: query.Assignment{Field: "f", Value: document.Float64(1.5)}},
		{in: "ok:BOOL=true", want: query.Assignment{Field: "ok", Value: document.Bool(true)}},
		{in: "id:uint64=3", want: query.Assignment{Field: "id", Value: document.Uint64(3)}},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := query.ParseAssignment(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Field, got.Field)
			assert.True(t, tc.want.Value.Equal(got.Value), "value %v, want %v", got.Value, tc.want.Value)
		})
	}
}

func Test_ParseAssignment_Fails_When_Malformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want error
	}{
		{in: "name", want: query.ErrInvalidAssignment},
		{in: "=x", want: query.ErrInvalidAssignment},
		{in: "first name=x", want: query.ErrInvalidAssignment},
		{in: "age:int=old", want: query.ErrInvalidAssignment},
		{in: "age:int=4294967296", want: query.ErrInvalidAssignment},
		{in: "x:date=2020", want: query.ErrInvalidAssignment},
		{in: "id:int=3", want: document.ErrTypeConstraint},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			_, err := query.ParseAssignment(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func Test_Modifier_Applies_Assignments_In_Order(t *testing.T) {
	t.Parallel()

	assignments, err := query.ParseAssignments([]string{"n:int=1", "n:int=2", "tag=x"})
	require.NoError(t, err)

	doc := document.New()
	query.Modifier(assignments...)(doc)

	n, ok := doc.Int32("n")
	assert.True(t, ok)
	assert.Equal(t, int32(2), n)

	tag, _ := doc.Text("tag")
	assert.Equal(t, "x", tag)

	_, err = query.ParseAssignments([]string{"ok=1", "bad"})
	require.ErrorIs(t, err, query.ErrInvalidAssignment)
}
