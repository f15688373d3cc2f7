// Package ocr wraps the recognition engine behind a small collaborator
// boundary: pixels in, (box, text, confidence) triples out. The engine is
// assumed deterministic given identical pixels and engine version; the
// version string feeds the fingerprint so an engine upgrade misses the cache.
package ocr

import (
	"context"
	"image"
	"time"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Engine is the OCR collaborator contract.
type Engine interface {
	// Recognize runs OCR over the image and returns one Word per recognized
	// token, in engine order. Context cancellation and deadlines apply.
	Recognize(ctx context.Context, img image.Image) ([]entity.Word, error)

	// Version identifies the engine build for fingerprinting.
	Version() string

	Close() error
}

// Config holds engine configuration. Language, PSM and OEM feed the
// fingerprint via the extraction parameters.
type Config struct {
	Binary   string // tesseract binary name or absolute path
	Language string
	PSM      int
	OEM      int
	Timeout  time.Duration // per Recognize call; 0 = caller-controlled only
}
