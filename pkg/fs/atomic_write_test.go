package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/calvinalkan/docstore/pkg/fs"
)

func Test_AtomicWriter_WriteFile_Replaces_Content_When_File_Exists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "7.txt")
	w := fs.NewAtomicWriter(fs.NewReal())

	if err := w.WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := w.WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "second" {
		t.Fatalf("content=%q, want %q", got, "second")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if info.Mode().Perm() != 0o644 {
		t.Fatalf("perm=%v, want 0644", info.Mode().Perm())
	}

	assertOnlyEntries(t, dir, "7.txt")
}

func Test_AtomicWriter_WriteFile_Keeps_Old_Content_When_Rename_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "1.txt")

	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.Fail(fs.OpRename, path, syscall.EIO)

	err := fs.NewAtomicWriter(faulty).WriteFile(path, []byte("new"))
	if !errors.Is(err, syscall.EIO) {
		t.Fatalf("err=%v, want EIO", err)
	}

	if !fs.IsInjected(err) {
		t.Fatalf("err=%v, want injected error", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Fatalf("content=%q, want %q", got, "old")
	}

	assertOnlyEntries(t, dir, "1.txt")
}

func Test_AtomicWriter_WriteFile_Reports_DirSync_When_Directory_Cannot_Be_Opened(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "2.txt")

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.Fail(fs.OpOpen, dir, syscall.EACCES)

	err := fs.NewAtomicWriter(faulty).WriteFile(path, []byte("data"))
	if !errors.Is(err, fs.ErrDirSync) {
		t.Fatalf("err=%v, want ErrDirSync", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "data" {
		t.Fatalf("content=%q, want file in place", got)
	}

	err = fs.NewAtomicWriter(faulty, fs.WithDirSync(false)).WriteFile(path, []byte("again"))
	if err != nil {
		t.Fatalf("WriteFile without dir sync: %v", err)
	}
}

func Test_AtomicWriter_WriteFile_Fails_When_Path_Has_No_Name(t *testing.T) {
	t.Parallel()

	w := fs.NewAtomicWriter(fs.NewReal())

	if err := w.WriteFile(t.TempDir()+string(os.PathSeparator), []byte("x")); err == nil {
		t.Fatal("err=nil, want invalid path error")
	}
}

func Test_AtomicWriter_WithPerm_Sets_File_Mode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.txt")

	if err := fs.NewAtomicWriter(fs.NewReal(), fs.WithPerm(0o600)).WriteFile(path, nil); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm=%v, want 0600", info.Mode().Perm())
	}
}

func Test_Faulty_Passes_Through_When_No_Fault_Registered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	faulty := fs.NewFaulty(fs.NewReal())
	faulty.Fail(fs.OpRemove, fs.AnyPath, syscall.EPERM)

	path := filepath.Join(dir, "x")
	if err := fs.NewAtomicWriter(faulty).WriteFile(path, []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := faulty.Remove(path)
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err=%v, want permission error", err)
	}

	faulty.Reset()

	if err := faulty.Remove(path); err != nil {
		t.Fatalf("Remove after Reset: %v", err)
	}
}

func assertOnlyEntries(t *testing.T, dir string, names ...string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Name())
	}

	if len(got) != len(names) {
		t.Fatalf("entries=%v, want %v", got, names)
	}

	for i := range names {
		if got[i] != names[i] {
			t.Fatalf("entries=%v, want %v", got, names)
		}
	}
}
