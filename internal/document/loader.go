package document

import (
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	_ "image/png"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
	"github.com/joseph-ayodele/retypeset/internal/ocr"
)

// Loader turns a scanned PDF on disk into an in-memory Document: the
// document hash over the raw bytes, plus one grayscale raster per page.
type Loader struct {
	cfg    common.OCRConfig
	runner ocr.Runner
	logger *slog.Logger
}

func NewLoader(cfg common.OCRConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Loader{cfg: cfg, runner: ocr.NewExecRunner(), logger: logger}
}

// Load reads and hashes the PDF, rasterizes it with pdftoppm and decodes
// every page to grayscale. MaxPages caps the page count when set.
func (l *Loader) Load(ctx context.Context, path string) (*entity.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}

	doc := &entity.Document{
		SourcePath: abs,
		Hash:       sha256.Sum256(raw),
	}

	tmpDir, err := os.MkdirTemp("", "rt-pp-*")
	if err != nil {
		return nil, fmt.Errorf("raster temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			l.logger.Warn("document.tmpdir.remove_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -gray -png <in.pdf> <tmp/page>
	_, errb, err := l.runner.Run(ctx, l.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", l.cfg.DPI), "-gray", "-png", abs, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm %s: %w (%s)", abs, err, errb)
	}

	// pdftoppm zero-pads page numbers, so a lexical sort is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if l.cfg.MaxPages > 0 && len(matches) > l.cfg.MaxPages {
		l.logger.Warn("document.pages.capped", "path", abs, "pages", len(matches), "max", l.cfg.MaxPages)
		matches = matches[:l.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no pages for %s", common.ErrInvalidInput, abs)
	}

	for i, imgPath := range matches {
		gray, err := loadGray(imgPath)
		if err != nil {
			return nil, fmt.Errorf("decode page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, entity.Page{
			Index:  i,
			Image:  gray,
			Width:  gray.Bounds().Dx(),
			Height: gray.Bounds().Dy(),
			DPI:    l.cfg.DPI,
		})
	}

	l.logger.Info("document.loaded", "path", abs, "hash", doc.HashHex(), "pages", len(doc.Pages), "dpi", l.cfg.DPI)
	return doc, nil
}

func loadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray, nil
}
