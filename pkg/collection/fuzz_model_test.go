package collection_test

import (
	"testing"

	"github.com/calvinalkan/docstore/pkg/collection"
	"github.com/calvinalkan/docstore/pkg/document"
)

// modelEntry is what the model remembers about a stored document.
type modelEntry struct {
	id     uint64
	number int32
	nested bool
}

// FuzzCollection_MatchesModel drives a collection with a random operation
// sequence and compares it after every step with a plain ordered slice.
// Odd-numbered documents carry a nested child, whose identity must not
// collide with any other.
func FuzzCollection_MatchesModel(f *testing.F) {
	f.Add(uint64(1), []byte{0, 1, 0, 2, 2, 1, 3, 0})
	f.Add(uint64(7), []byte{0, 0, 0, 0, 1, 1, 2, 3, 3, 3})
	f.Add(uint64(42), []byte{3, 2, 1, 0})

	f.Fuzz(func(t *testing.T, seed uint64, ops []byte) {
		c := collection.New("fuzz", collection.WithSeed(seed))

		var model []modelEntry

		for step := 0; step+1 < len(ops); step += 2 {
			op, arg := ops[step]%4, int32(ops[step+1]%8)

			switch op {
			case 0: // insert
				d := numbered(arg)
				if arg%2 == 1 {
					d.MustSet("children", document.Sequence(document.New()))
				}

				id, inserted, err := c.Insert(d)
				if err != nil || !inserted {
					t.Fatalf("step %d: insert: inserted=%v err=%v", step, inserted, err)
				}

				if got, _ := d.ID(); got != id {
					t.Fatalf("step %d: id %d not written back (got %d)", step, id, got)
				}

				model = append(model, modelEntry{id: id, number: arg, nested: arg%2 == 1})
			case 1: // duplicate insert
				if len(model) == 0 {
					continue
				}

				dup := numbered(99)
				dup.SetID(model[int(arg)%len(model)].id)

				_, inserted, err := c.Insert(dup)
				if err != nil || inserted {
					t.Fatalf("step %d: duplicate insert: inserted=%v err=%v", step, inserted, err)
				}
			case 2: // update number == arg to arg+1
				updated := c.Update(numberWhere(func(n int32) bool { return n == arg }), func(d *document.Document) {
					d.MustSet("number", document.Int32(arg+1))
				})

				var want []uint64

				for i := range model {
					if model[i].number == arg {
						model[i].number = arg + 1
						want = append(want, model[i].id)
					}
				}

				assertIDs(t, step, "update", want, updated)
			case 3: // remove number == arg
				removed := c.Remove(numberWhere(func(n int32) bool { return n == arg }))

				var (
					want []uint64
					kept []modelEntry
				)

				for _, e := range model {
					if e.number == arg {
						want = append([]uint64{e.id}, want...)
					} else {
						kept = append(kept, e)
					}
				}

				model = kept

				assertIDs(t, step, "remove", want, removed)
			}

			checkAgainstModel(t, step, c, model)
		}
	})
}

func assertIDs(t *testing.T, step int, op string, want, got []uint64) {
	t.Helper()

	if len(want) != len(got) {
		t.Fatalf("step %d: %s returned %v, want %v", step, op, got, want)
	}

	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("step %d: %s returned %v, want %v", step, op, got, want)
		}
	}
}

func checkAgainstModel(t *testing.T, step int, c *collection.Collection, model []modelEntry) {
	t.Helper()

	all := c.All()
	if len(all) != len(model) || c.Len() != len(model) {
		t.Fatalf("step %d: len=%d/%d, model=%d", step, len(all), c.Len(), len(model))
	}

	seen := make(map[uint64]bool, len(all))

	for i, d := range all {
		id, _ := d.ID()
		n, _ := d.Int32("number")

		if seen[id] {
			t.Fatalf("step %d: duplicate id %d", step, id)
		}

		seen[id] = true

		want := 0
		if model[i].nested {
			want = 1
		}

		children, _ := d.Sequence("children")
		if len(children) != want {
			t.Fatalf("step %d: document %d has %d children", step, id, len(children))
		}

		for _, child := range children {
			childID, ok := child.ID()
			if !ok || seen[childID] {
				t.Fatalf("step %d: nested id %d (set=%v) missing or reused", step, childID, ok)
			}

			seen[childID] = true
		}

		if id != model[i].id || n != model[i].number {
			t.Fatalf("step %d: position %d = (%d, %d), model (%d, %d)", step, i, id, n, model[i].id, model[i].number)
		}
	}
}
