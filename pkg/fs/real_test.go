package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Exists_Reports_Presence(t *testing.T) {
	t.Parallel()

	fsys := NewReal()
	dir := t.TempDir()

	file := filepath.Join(dir, "exists.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{name: "file", path: file, want: true},
		{name: "directory", path: sub, want: true},
		{name: "missing", path: filepath.Join(dir, "missing.txt"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := fsys.Exists(tc.path)
			if err != nil {
				t.Fatalf("err=%v, want nil", err)
			}

			if got != tc.want {
				t.Fatalf("exists=%v, want=%v", got, tc.want)
			}
		})
	}
}
