//go:build !gosseract

package ocr

import (
	"errors"
	"log/slog"
)

// ErrGosseractNotEnabled is returned when the in-process engine is requested
// but the binary was built without the gosseract tag.
var ErrGosseractNotEnabled = errors.New("in-process OCR not enabled; rebuild with -tags gosseract")

// NewGosseractEngine is a stub; the default build recognizes via the
// tesseract binary instead.
func NewGosseractEngine(_ Config, _ *slog.Logger) (Engine, error) {
	return nil, ErrGosseractNotEnabled
}
