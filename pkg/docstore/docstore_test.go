package docstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docstore/pkg/codec"
	"github.com/calvinalkan/docstore/pkg/collection"
	"github.com/calvinalkan/docstore/pkg/docstore"
	"github.com/calvinalkan/docstore/pkg/document"
	"github.com/calvinalkan/docstore/pkg/fs"
	"github.com/calvinalkan/docstore/pkg/storage"
)

var docComparer = cmp.Comparer(func(a, b *document.Document) bool { return a.Equal(b) })

func openDB(t *testing.T, dir string, opts ...docstore.Option) *docstore.DB {
	t.Helper()

	db, err := docstore.Open(dir, append([]docstore.Option{docstore.WithSeed(1)}, opts...)...)
	require.NoError(t, err)

	return db
}

func named(name string) *document.Document {
	d := document.New()
	d.MustSet("name", document.Text(name))

	return d
}

func byName(name string) collection.Predicate {
	return func(d *document.Document) bool {
		got, _ := d.Text("name")
		return got == name
	}
}

func docPath(dir, col string, id uint64) string {
	return filepath.Join(dir, col, strconv.FormatUint(id, 10)+storage.DefaultExtension)
}

func Test_DB_Open_Creates_Root_When_Missing(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "mydb")
	db := openDB(t, dir)

	assert.DirExists(t, dir)
	assert.Equal(t, "mydb", db.Name())
	assert.Equal(t, dir, db.Dir())
	assert.True(t, db.Empty())
}

func Test_DB_Insert_Persists_And_Reopen_Restores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)

	require.NoError(t, db.AddCollection("users"))

	doc := named("alice")
	doc.MustSet("pets", document.Sequence(named("rex")))

	id, inserted, err := db.Insert("users", doc)
	require.NoError(t, err)
	require.True(t, inserted)
	assert.FileExists(t, docPath(dir, "users", id))

	reopened := openDB(t, dir)
	assert.Equal(t, []string{"users"}, reopened.Names())

	got, err := reopened.All("users")
	require.NoError(t, err)

	if diff := cmp.Diff([]*document.Document{doc}, got, docComparer); diff != "" {
		t.Fatalf("reloaded mismatch (-want +got):\n%s", diff)
	}
}

func Test_DB_Insert_Reports_Not_Inserted_When_ID_Taken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	first := named("first")
	first.SetID(3)
	_, _, err := db.Insert("c", first)
	require.NoError(t, err)

	dup := named("dup")
	dup.SetID(3)

	id, inserted, err := db.Insert("c", dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, uint64(3), id)

	data, err := os.ReadFile(docPath(dir, "c", 3))
	require.NoError(t, err)

	parsed, err := codec.Parse(data)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(first))
}

func Test_DB_Operations_Fail_When_Collection_Unknown(t *testing.T) {
	t.Parallel()

	db := openDB(t, t.TempDir())

	_, _, err := db.Insert("nope", named("x"))
	require.ErrorIs(t, err, docstore.ErrCollectionNotFound)

	var dbErr *docstore.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "nope", dbErr.Collection)
	assert.Equal(t, "collection not found (collection=nope)", err.Error())

	_, err = db.Find("nope", collection.All)
	require.ErrorIs(t, err, docstore.ErrCollectionNotFound)

	_, err = db.Remove("nope", collection.All)
	require.ErrorIs(t, err, docstore.ErrCollectionNotFound)

	_, err = db.CollectionCopy("nope")
	require.ErrorIs(t, err, docstore.ErrCollectionNotFound)

	_, ok := db.Collection("nope")
	assert.False(t, ok)
}

func Test_DB_AddCollection_Fails_When_Name_Taken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	id, _, err := db.Insert("c", named("keep"))
	require.NoError(t, err)

	err = db.AddCollection("c")
	require.ErrorIs(t, err, docstore.ErrCollectionExists)

	_, err = db.GetByID("c", id)
	require.NoError(t, err)
	assert.FileExists(t, docPath(dir, "c", id))
}

func Test_DB_AddCollection_Fails_When_Name_Invalid(t *testing.T) {
	t.Parallel()

	db := openDB(t, t.TempDir())

	for _, name := range []string{"", ".", "..", ".hidden", "a/b", `a\b`} {
		err := db.AddCollection(name)
		if !errors.Is(err, docstore.ErrInvalidName) {
			t.Fatalf("AddCollection(%q) err=%v, want ErrInvalidName", name, err)
		}
	}
}

func Test_DB_AddCollection_Clears_Directory_When_It_Already_Exists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)

	stray := filepath.Join(dir, "c", "99.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stray), 0o755))
	require.NoError(t, os.WriteFile(stray, []byte("junk"), 0o644))

	require.NoError(t, db.AddCollection("c"))

	entries, err := os.ReadDir(filepath.Join(dir, "c"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	docs, err := db.All("c")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func Test_DB_Open_Skips_Malformed_Files_And_Hidden_Directories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	id, _, err := db.Insert("c", named("ok"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c", "5.txt"), []byte("{\n\tbroken"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), nil, 0o644))

	reopened := openDB(t, dir)
	assert.Equal(t, []string{"c"}, reopened.Names())

	docs, err := reopened.All("c")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got, _ := docs[0].ID()
	assert.Equal(t, id, got)
}

func Test_DB_Open_Persists_Nested_IDs_When_File_Lacks_Them(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "c"), 0o755))

	src := "{\n\tid (UnsignedInteger64) : 4\n\titems (Sequence) : [\n\t\t[0]\n\t\t{\n\t\t}\n\t]\n}\n"
	require.NoError(t, os.WriteFile(docPath(dir, "c", 4), []byte(src), 0o644))

	db := openDB(t, dir)

	doc, err := db.GetByID("c", 4)
	require.NoError(t, err)

	items, _ := doc.Sequence("items")
	require.Len(t, items, 1)

	_, ok := items[0].ID()
	require.True(t, ok)

	data, err := os.ReadFile(docPath(dir, "c", 4))
	require.NoError(t, err)

	onDisk, err := codec.Parse(data)
	require.NoError(t, err)
	assert.True(t, onDisk.Equal(doc))
}

func Test_DB_Update_Rewrites_Files_Of_Modified_Documents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	a, _, err := db.Insert("c", named("a"))
	require.NoError(t, err)

	_, _, err = db.Insert("c", named("b"))
	require.NoError(t, err)

	ids, err := db.Update("c", byName("a"), func(d *document.Document) {
		d.MustSet("seen", document.Bool(true))
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{a}, ids)

	reopened := openDB(t, dir)

	doc, err := reopened.GetByID("c", a)
	require.NoError(t, err)

	seen, ok := doc.Bool("seen")
	assert.True(t, ok)
	assert.True(t, seen)
}

func Test_DB_UpdateDocument_Rewrites_File_When_ID_Matches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	id, _, err := db.Insert("c", named("old"))
	require.NoError(t, err)

	replacement := named("new")
	replacement.SetID(id)

	ok, err := db.UpdateDocument("c", replacement)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.UpdateDocument("c", named("no id"))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := openDB(t, dir).GetByID("c", id)
	require.NoError(t, err)
	assert.True(t, got.Equal(replacement))
}

func Test_DB_Remove_Deletes_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	a, _, _ := db.Insert("c", named("a"))
	b, _, _ := db.Insert("c", named("b"))
	keep, _, _ := db.Insert("c", named("keep"))

	ids, err := db.Remove("c", func(d *document.Document) bool { return !byName("keep")(d) })
	require.NoError(t, err)
	assert.Equal(t, []uint64{b, a}, ids)

	assert.NoFileExists(t, docPath(dir, "c", a))
	assert.NoFileExists(t, docPath(dir, "c", b))
	assert.FileExists(t, docPath(dir, "c", keep))

	doc, err := db.GetByID("c", keep)
	require.NoError(t, err)

	ok, err := db.RemoveDocument("c", doc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, docPath(dir, "c", keep))

	_, err = db.GetByID("c", keep)
	require.ErrorIs(t, err, docstore.ErrDocumentNotFound)
}

func Test_DB_Remove_Returns_Error_When_File_Cannot_Be_Deleted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	faulty := fs.NewFaulty(fs.NewReal())
	db := openDB(t, dir, docstore.WithFS(faulty))
	require.NoError(t, db.AddCollection("c"))

	id, _, err := db.Insert("c", named("a"))
	require.NoError(t, err)

	faulty.Fail(fs.OpRemove, docPath(dir, "c", id), syscall.EACCES)

	ids, err := db.Remove("c", collection.All)
	assert.Equal(t, []uint64{id}, ids)
	require.ErrorIs(t, err, storage.ErrIO)

	var dbErr *docstore.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, id, dbErr.ID)
}

func Test_DB_InsertNestedContainer_Persists_Target(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	target := named("holder")

	id, err := db.InsertNestedContainer("c", document.Mapping(map[string]*document.Document{
		"home": named("Main"),
	}), "address", target)
	require.NoError(t, err)

	got, err := openDB(t, dir).GetByID("c", id)
	require.NoError(t, err)
	assert.True(t, got.Equal(target))

	_, err = db.InsertNestedContainer("c", document.Int32(1), "x", named("bad"))
	require.ErrorIs(t, err, collection.ErrNotContainer)
}

func Test_DB_Rejects_Unwritable_Documents_Before_Changing_State(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)
	require.NoError(t, db.AddCollection("c"))

	bad := document.New()
	bad.MustSet("first name", document.Text("x"))

	_, inserted, err := db.Insert("c", bad)
	require.ErrorIs(t, err, codec.ErrInvalidKey)
	assert.False(t, inserted)
	assert.False(t, bad.Has(document.IDField))

	id, _, err := db.Insert("c", named("good"))
	require.NoError(t, err)

	replacement := named("replaced")
	replacement.MustSet("bad:key", document.Int32(1))
	replacement.SetID(id)

	ok, err := db.UpdateDocument("c", replacement)
	require.ErrorIs(t, err, codec.ErrInvalidKey)
	assert.False(t, ok)

	_, err = db.InsertNestedContainer("c", document.Mapping(map[string]*document.Document{
		"a b": named("x"),
	}), "m", named("holder"))
	require.ErrorIs(t, err, codec.ErrInvalidKey)

	ids, err := db.Update("c", collection.All, func(d *document.Document) {
		d.MustSet("name", document.Text("changed"))
		d.MustSet("{oops}", document.Bool(true))
	})
	require.ErrorIs(t, err, codec.ErrInvalidKey)
	assert.Empty(t, ids)

	// Memory and disk agree: only the untouched good document exists.
	want := named("good")
	want.SetID(id)

	for _, check := range []*docstore.DB{db, openDB(t, dir)} {
		got, err := check.All("c")
		require.NoError(t, err)

		if diff := cmp.Diff([]*document.Document{want}, got, docComparer); diff != "" {
			t.Fatalf("state mismatch (-want +got):\n%s", diff)
		}
	}
}

func Test_DB_Insert_Fails_When_Document_Nested_Too_Deep(t *testing.T) {
	t.Parallel()

	db := openDB(t, t.TempDir())
	require.NoError(t, db.AddCollection("c"))

	root := document.New()
	cur := root

	for range 300 {
		next := document.New()
		cur.MustSet("d", document.Doc(next))
		cur = next
	}

	_, _, err := db.Insert("c", root)
	require.ErrorIs(t, err, codec.ErrTooDeep)

	all, err := db.All("c")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func Test_DB_InsertCollection_Writes_All_Documents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := openDB(t, dir)

	col := collection.New("imported", collection.WithSeed(3))
	a, _, err := col.Insert(named("a"))
	require.NoError(t, err)
	b, _, err := col.Insert(named("b"))
	require.NoError(t, err)

	require.NoError(t, db.InsertCollection(col))
	assert.FileExists(t, docPath(dir, "imported", a))
	assert.FileExists(t, docPath(dir, "imported", b))

	require.ErrorIs(t, db.InsertCollection(collection.New("imported")), docstore.ErrCollectionExists)
}

func Test_DB_CollectionCopy_Is_Independent(t *testing.T) {
	t.Parallel()

	db := openDB(t, t.TempDir())
	require.NoError(t, db.AddCollection("c"))

	_, _, err := db.Insert("c", named("a"))
	require.NoError(t, err)

	cp, err := db.CollectionCopy("c")
	require.NoError(t, err)
	cp.Remove(collection.All)

	docs, err := db.All("c")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func Test_Error_Formats_Cause_And_Context(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *docstore.Error
		want string
	}{
		{name: "all", err: &docstore.Error{Collection: "c", ID: 7, Err: errors.New("boom")}, want: "boom (collection=c doc_id=7)"},
		{name: "cause only", err: &docstore.Error{Err: errors.New("boom")}, want: "boom"},
		{name: "context only", err: &docstore.Error{Collection: "c"}, want: "(collection=c)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error()=%q, want %q", got, tc.want)
			}
		})
	}
}
