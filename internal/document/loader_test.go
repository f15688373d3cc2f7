package document

import (
	"context"
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/joseph-ayodele/retypeset/internal/common"
)

func testOCRConfig(maxPages int) common.OCRConfig {
	return common.OCRConfig{DPI: 300, MaxPages: maxPages}
}

// rasterStub pretends to be pdftoppm: it writes n PNGs under the prefix it
// was called with.
type rasterStub struct {
	pages int
}

func (r rasterStub) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	prefix := args[len(args)-1]
	for i := 1; i <= r.pages; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 40, 60))
		img.Set(5, 5, color.Black)
		f, err := os.Create(prefix + "-" + strconv.Itoa(i) + ".png")
		if err != nil {
			return nil, nil, err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return nil, nil, err
		}
		if err := f.Close(); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func writePDF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadHashesAndDecodesPages(t *testing.T) {
	l := NewLoader(testOCRConfig(0), nil)
	l.runner = rasterStub{pages: 3}

	path := writePDF(t, "%PDF-1.4 fake body")
	doc, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := sha256.Sum256([]byte("%PDF-1.4 fake body"))
	if doc.Hash != want {
		t.Fatal("document hash is not the sha256 of the file bytes")
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(doc.Pages))
	}
	for i, pg := range doc.Pages {
		if pg.Index != i {
			t.Fatalf("page %d has index %d", i, pg.Index)
		}
		if pg.Image == nil || pg.Width != 40 || pg.Height != 60 {
			t.Fatalf("page %d geometry: %dx%d", i, pg.Width, pg.Height)
		}
		if pg.DPI != 300 {
			t.Fatalf("page %d dpi %d", i, pg.DPI)
		}
	}
}

func TestLoadCapsPages(t *testing.T) {
	l := NewLoader(testOCRConfig(2), nil)
	l.runner = rasterStub{pages: 5}

	doc, err := l.Load(context.Background(), writePDF(t, "x"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("cap ignored: %d pages", len(doc.Pages))
	}
}

func TestLoadFailsWithoutPages(t *testing.T) {
	l := NewLoader(testOCRConfig(0), nil)
	l.runner = rasterStub{pages: 0}

	if _, err := l.Load(context.Background(), writePDF(t, "x")); err == nil {
		t.Fatal("zero rendered pages accepted")
	}
}
