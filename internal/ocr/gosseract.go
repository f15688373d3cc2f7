//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// GosseractEngine runs Tesseract in-process through gosseract, avoiding a
// subprocess per region. Requires cgo and an installed libtesseract; build
// with -tags gosseract.
type GosseractEngine struct {
	cfg     Config
	client  *gosseract.Client
	logger  *slog.Logger
	version string
}

func NewGosseractEngine(cfg Config, logger *slog.Logger) (*GosseractEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	if cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set page seg mode: %w", err)
		}
	}
	return &GosseractEngine{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		version: "gosseract/" + client.Version(),
	}, nil
}

func (e *GosseractEngine) Version() string { return e.version }

func (e *GosseractEngine) Recognize(ctx context.Context, img image.Image) ([]entity.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get bounding boxes: %w", err)
	}
	words := make([]entity.Word, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		words = append(words, entity.Word{
			Box:        b.Box,
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
		})
	}
	return words, nil
}

func (e *GosseractEngine) Close() error {
	return e.client.Close()
}
