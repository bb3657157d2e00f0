package docstore

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/calvinalkan/docstore/pkg/document"
)

// Demo collection names created by [Seed].
const (
	ExampleCollection = "example_collection"
	SimpleCollection  = "simple_collection"
	MixedCollection   = "mixed_collection"
)

// Seed fills an empty database with demo collections exercising every value
// kind and nesting shape. A database with any collection is left untouched
// and Seed reports false.
func Seed(db *DB) (bool, error) {
	if !db.Empty() {
		db.log.Info("database is not empty, skipped seeding")

		return false, nil
	}

	sets := []struct {
		name string
		docs []*document.Document
	}{
		{name: ExampleCollection, docs: exampleDocs()},
		{name: SimpleCollection, docs: simpleDocs()},
		{name: MixedCollection, docs: mixedDocs()},
	}

	for _, set := range sets {
		err := db.AddCollection(set.name)
		if err != nil {
			return false, fmt.Errorf("seed: %w", err)
		}

		for _, doc := range set.docs {
			_, _, err = db.Insert(set.name, doc)
			if err != nil {
				return false, fmt.Errorf("seed: %w", err)
			}
		}
	}

	db.log.Info("seeded database", "collections", len(sets))

	return true, nil
}

func field(key string, v document.Value) *document.Document {
	d := document.New()
	d.MustSet(key, v)

	return d
}

func exampleDocs() []*document.Document {
	location := document.Mapping(map[string]*document.Document{
		"city": field("value", document.Text("New York")),
		"zip":  field("value", document.Text("10001")),
	})

	one := field("name", document.Text("Document One"))
	one.MustSet("address", document.Mapping(map[string]*document.Document{
		"street":   field("value", document.Text("Main Street")),
		"number":   field("value", document.Int32(42)),
		"location": field("value", location),
	}))
	one.MustSet("tags", document.Sequence(
		field("value", document.Int32(1)),
		field("value", document.Int32(2)),
		field("value", document.Int32(2)),
	))

	childOne := field("name", document.Text("Child One"))
	childOne.MustSet("age", document.Int32(10))

	childTwo := field("name", document.Text("Child Two"))
	childTwo.MustSet("age", document.Int32(12))

	parent := field("name", document.Text("Parent Document"))
	parent.MustSet("children", document.Sequence(childOne, childTwo))

	row := document.Sequence(document.New(), document.New())
	rows := document.New()
	rows.MustSet("row1", row)
	rows.MustSet("row2", row)

	matrix := field("name", document.Text("Matrix Holder"))
	matrix.MustSet("matrix", document.Sequence(rows, document.New()))

	complexDoc := field("name", document.Text("Complex One"))
	complexDoc.MustSet("metadata", document.Mapping(map[string]*document.Document{
		"version": field("value", document.Float64(1.2)),
		"active":  field("value", document.Bool(true)),
		"docs": field("value", document.Sequence(
			field("meta", document.Text("A")),
			field("meta", document.Text("B")),
		)),
	}))

	return []*document.Document{one, parent, matrix, complexDoc}
}

func simpleDocs() []*document.Document {
	first := field("title", document.Text("Simple Doc 1"))
	first.MustSet("value", document.Int32(123))
	first.MustSet("ref", document.Text(uuid.NewString()))

	second := field("title", document.Text("Simple Doc 2"))
	second.MustSet("active", document.Bool(false))
	second.MustSet("ref", document.Text(uuid.NewString()))

	return []*document.Document{first, second}
}

func mixedDocs() []*document.Document {
	numbers := field("description", document.Text("Mixed Doc with nested vector"))
	numbers.MustSet("numbers", document.Sequence(
		field("value", document.Int32(10)),
		field("value", document.Int32(20)),
		field("value", document.Int32(30)),
	))

	info := field("info", document.Mapping(map[string]*document.Document{
		"foo": field("value", document.Text("bar")),
		"baz": field("value", document.Int32(42)),
	}))

	return []*document.Document{numbers, info}
}
