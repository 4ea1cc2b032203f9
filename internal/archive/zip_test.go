package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func buildZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fix.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListFilesExcludesDirectories(t *testing.T) {
	path := buildZip(t, map[string]string{
		"bin/":         "",
		"bin/game.dll": "dll",
		"readme.txt":   "hi",
	})

	s := NewZipService()
	files, err := s.ListFiles(path, t.TempDir(), "", "")
	if err != nil {
		t.Fatal(err)
	}

	for _, f := range files {
		if f == "bin/" {
			t.Fatal("directory entry leaked into file list")
		}
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", files)
	}
}

func TestListFilesJoinsSubfolder(t *testing.T) {
	path := buildZip(t, map[string]string{"game.dll": "dll"})

	s := NewZipService()
	files, err := s.ListFiles(path, t.TempDir(), "mods/hd", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(files, []string{"mods/hd/game.dll"}) {
		t.Fatalf("files = %v", files)
	}
}

func TestListFilesFiltersVariant(t *testing.T) {
	path := buildZip(t, map[string]string{
		"standard/game.dll": "a",
		"widescreen/ui.dll": "b",
	})

	s := NewZipService()
	files, err := s.ListFiles(path, t.TempDir(), "", "widescreen")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(files, []string{"ui.dll"}) {
		t.Fatalf("files = %v, want [ui.dll]", files)
	}
}

func TestUnpackExtractsContent(t *testing.T) {
	path := buildZip(t, map[string]string{
		"bin/game.dll": "new dll",
		"readme.txt":   "notes",
	})
	dest := t.TempDir()

	s := NewZipService()
	if err := s.Unpack(context.Background(), path, dest, ""); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "bin", "game.dll"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new dll" {
		t.Fatalf("content = %q", data)
	}
}

func TestUnpackVariantStripsPrefix(t *testing.T) {
	path := buildZip(t, map[string]string{
		"standard/game.dll":   "std",
		"widescreen/game.dll": "wide",
	})
	dest := t.TempDir()

	s := NewZipService()
	if err := s.Unpack(context.Background(), path, dest, "widescreen"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "game.dll"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "wide" {
		t.Fatalf("content = %q, want wide", data)
	}
	if _, err := os.Stat(filepath.Join(dest, "standard")); !os.IsNotExist(err) {
		t.Fatal("other variant should not be extracted")
	}
}

func TestListFilesRejectsEscapingMembers(t *testing.T) {
	path := buildZip(t, map[string]string{
		"../victim.txt": "oops",
		"fine.txt":      "ok",
	})

	s := NewZipService()
	if _, err := s.ListFiles(path, t.TempDir(), "", ""); err == nil {
		t.Fatal("zip-slip member should fail the listing")
	}
}

func TestUnpackRejectsEscapingMembers(t *testing.T) {
	path := buildZip(t, map[string]string{"../evil.txt": "oops"})
	dest := t.TempDir()

	s := NewZipService()
	if err := s.Unpack(context.Background(), path, dest, ""); err == nil {
		t.Fatal("zip-slip member should be rejected")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt")); !os.IsNotExist(err) {
		t.Fatal("escaping member must not be written")
	}
}

func TestUnpackHonorsCancellation(t *testing.T) {
	path := buildZip(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewZipService()
	if err := s.Unpack(ctx, path, t.TempDir(), ""); err == nil {
		t.Fatal("cancelled context should abort unpack")
	}
}
