package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	appErr "eduoj/pkg/errors"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			t.Fatalf("close archive: %v", err)
		}
	}()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("finish archive: %v", err)
	}
}

func TestExtractFileReturnsEntryContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	path := store.ArchivePath("s001")
	writeZip(t, path, map[string]string{
		"readme.txt": "notes",
		"p1.py":      "print('hello')\n",
	})

	got, err := store.ExtractFile(context.Background(), path, "p1.py", "")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "print('hello')\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestExtractFileEntryNotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	path := store.ArchivePath("s001")
	writeZip(t, path, map[string]string{"other.py": "pass\n"})

	_, err := store.ExtractFile(context.Background(), path, "p1.py", "")
	if !appErr.Is(err, appErr.SubmissionEntryNotFound) {
		t.Fatalf("expected SubmissionEntryNotFound, got %v", err)
	}
}

func TestExtractFileArchiveMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	_, err := store.ExtractFile(context.Background(), store.ArchivePath("absent"), "p1.py", "")
	if !appErr.Is(err, appErr.SubmissionArchiveMissing) {
		t.Fatalf("expected SubmissionArchiveMissing, got %v", err)
	}
}

func TestExtractFileRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	path := store.ArchivePath("s001")
	writeZip(t, path, map[string]string{"p1.py": string([]byte{0xff, 0xfe, 0x41})})

	_, err := store.ExtractFile(context.Background(), path, "p1.py", "")
	if !appErr.Is(err, appErr.ArchiveDecodeFailed) {
		t.Fatalf("expected ArchiveDecodeFailed, got %v", err)
	}
}

func TestExtractFileDecodesNamedEncoding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	path := store.ArchivePath("s001")
	// 0xE9 is é in ISO 8859-1 and invalid on its own in UTF-8.
	writeZip(t, path, map[string]string{"p1.py": "caf" + string([]byte{0xe9})})

	got, err := store.ExtractFile(context.Background(), path, "p1.py", "iso-8859-1")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "café" {
		t.Fatalf("unexpected decoded content: %q", got)
	}
}

func TestExtractFileUnknownEncoding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	path := store.ArchivePath("s001")
	writeZip(t, path, map[string]string{"p1.py": "pass\n"})

	_, err := store.ExtractFile(context.Background(), path, "p1.py", "no-such-encoding")
	if !appErr.Is(err, appErr.ArchiveDecodeFailed) {
		t.Fatalf("expected ArchiveDecodeFailed, got %v", err)
	}
}

func TestListSubmissionsWalksNestedDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir)
	writeZip(t, filepath.Join(dir, "alice.zip"), map[string]string{"a": "1"})
	if err := os.MkdirAll(filepath.Join(dir, "late", "deep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeZip(t, filepath.Join(dir, "late", "deep", "bob.ZIP"), map[string]string{"b": "2"})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ids, err := store.ListSubmissions(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	sort.Strings(ids)
	want := []string{"alice", "bob"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestListSubmissionsMissingRoot(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "absent"))
	_, err := store.ListSubmissions(context.Background())
	if !appErr.Is(err, appErr.ArchiveReadFailed) {
		t.Fatalf("expected ArchiveReadFailed, got %v", err)
	}
}
