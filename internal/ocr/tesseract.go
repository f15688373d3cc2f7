package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// TesseractEngine shells out to the tesseract binary in TSV mode, which
// reports per-word bounding boxes and confidences in one pass. This is the
// default engine: no cgo, and the Runner seam keeps it testable.
type TesseractEngine struct {
	cfg     Config
	runner  Runner
	logger  *slog.Logger
	version string
}

func NewTesseractEngine(cfg Config, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &TesseractEngine{cfg: cfg, runner: execRunner{}, logger: logger}
}

// ResolveVersion probes the binary once and caches the version string for
// fingerprinting. It must succeed before any page is processed: without a
// version every cache key would be wrong.
func (e *TesseractEngine) ResolveVersion(ctx context.Context) (string, error) {
	if e.version != "" {
		return e.version, nil
	}
	out, _, err := e.runner.Run(ctx, e.cfg.Binary, "--version")
	if err != nil {
		return "", fmt.Errorf("probe tesseract version: %w", err)
	}
	// First line looks like "tesseract 5.3.4".
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", fmt.Errorf("unrecognized tesseract version output %q", line)
	}
	e.version = "tesseract/" + fields[1]
	e.logger.Info("ocr.engine.resolved", "version", e.version)
	return e.version, nil
}

func (e *TesseractEngine) Version() string { return e.version }

// Recognize writes the image to a temp file, runs tesseract in TSV mode and
// parses word-level rows. Timeouts arrive via ctx and surface as the
// command's error.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]entity.Word, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", "rt-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmpdir.remove_failed", "dir", tmpDir, "error", err)
		}
	}()

	imgPath := filepath.Join(tmpDir, "region.png")
	f, err := os.Create(imgPath)
	if err != nil {
		return nil, fmt.Errorf("ocr temp file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("encode region: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close region file: %w", err)
	}

	args := []string{imgPath, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract tsv: %w (%s)", err, truncate(string(errb), 512))
	}
	return parseTSV(string(out)), nil
}

func (e *TesseractEngine) Close() error { return nil }

// parseTSV extracts word-level rows (level 5) from tesseract TSV output.
// Columns: level page block par line word left top width height conf text.
func parseTSV(out string) []entity.Word {
	var words []entity.Word
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" {
			continue
		}
		left, err1 := strconv.Atoi(cols[6])
		top, err2 := strconv.Atoi(cols[7])
		width, err3 := strconv.Atoi(cols[8])
		height, err4 := strconv.Atoi(cols[9])
		conf, err5 := strconv.ParseFloat(cols[10], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if text == "" || conf < 0 {
			continue
		}
		words = append(words, entity.Word{
			Box:        image.Rect(left, top, left+width, top+height),
			Text:       text,
			Confidence: conf / 100.0,
		})
	}
	return words
}
