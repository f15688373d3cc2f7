package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanDirectoryFiltersAndDedupes(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "a.pdf", "scan one")
	write(t, dir, "sub/b.pdf", "scan two")
	write(t, dir, "sub/copy-of-a.pdf", "scan one") // same bytes as a.pdf
	write(t, dir, "notes.txt", "not a scan")
	write(t, dir, ".hidden/c.pdf", "hidden scan")

	s := NewScanner(nil)
	results, stats, err := s.ScanDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if stats.Matched != 3 {
		t.Fatalf("matched %d, want 3", stats.Matched)
	}
	if stats.Accepted != 2 {
		t.Fatalf("accepted %d, want 2", stats.Accepted)
	}
	if stats.Deduplicated != 1 {
		t.Fatalf("deduplicated %d, want 1", stats.Deduplicated)
	}

	paths := Accepted(results)
	if len(paths) != 2 {
		t.Fatalf("accepted paths %v", paths)
	}
	found := false
	for _, p := range paths {
		if p == a {
			found = true
		}
		if filepath.Base(p) == "copy-of-a.pdf" {
			t.Fatal("duplicate content accepted")
		}
	}
	if !found {
		t.Fatalf("original missing from %v", paths)
	}
}

func TestScanDirectoryRequiresRoot(t *testing.T) {
	if _, _, err := NewScanner(nil).ScanDirectory(context.Background(), "  "); err == nil {
		t.Fatal("blank root accepted")
	}
}

func TestScannerDedupesAcrossScans(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	write(t, dirA, "one.pdf", "same bytes")
	write(t, dirB, "two.pdf", "same bytes")

	s := NewScanner(nil)
	if _, stats, err := s.ScanDirectory(context.Background(), dirA); err != nil || stats.Accepted != 1 {
		t.Fatalf("first scan: %v %+v", err, stats)
	}
	_, stats, err := s.ScanDirectory(context.Background(), dirB)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if stats.Deduplicated != 1 || stats.Accepted != 0 {
		t.Fatalf("cross-scan dedupe missed: %+v", stats)
	}
}
