package fsutil

import (
	"log/slog"
	"testing"

	"github.com/spf13/afero"
)

func TestDirIsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/empty", 0755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/full/file.txt", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	empty, err := DirIsEmpty(fs, "/empty")
	if err != nil || !empty {
		t.Errorf("DirIsEmpty(/empty) = %v, %v; want true, nil", empty, err)
	}

	full, err := DirIsEmpty(fs, "/full")
	if err != nil || full {
		t.Errorf("DirIsEmpty(/full) = %v, %v; want false, nil", full, err)
	}
}

func TestRecreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/dir/stale.txt", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Recreate(fs, "/dir"); err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}

	empty, err := DirIsEmpty(fs, "/dir")
	if err != nil || !empty {
		t.Errorf("after Recreate, DirIsEmpty = %v, %v; want true, nil", empty, err)
	}
}

func TestPurgeExceptDotEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/dest/a.txt", []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/dest/sub/b.txt", []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := PurgeExceptDotEntries(fs, "/dest", slog.Default()); err != nil {
		t.Fatalf("PurgeExceptDotEntries() error = %v", err)
	}

	empty, err := DirIsEmpty(fs, "/dest")
	if err != nil || !empty {
		t.Errorf("after purge, DirIsEmpty(/dest) = %v, %v; want true, nil", empty, err)
	}
}

func TestRemoveTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/mirror/objects/pack/x", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveTree(fs, "/mirror"); err != nil {
		t.Fatalf("RemoveTree() error = %v", err)
	}

	if exists, _ := afero.DirExists(fs, "/mirror"); exists {
		t.Error("RemoveTree() left /mirror in place")
	}
}
