//go:build !gosseract

package ocr

import (
	"errors"
	"testing"
)

func TestGosseractEngineNeedsBuildTag(t *testing.T) {
	engine, err := NewGosseractEngine(Config{Language: "eng"}, nil)
	if !errors.Is(err, ErrGosseractNotEnabled) {
		t.Fatalf("got %v, want ErrGosseractNotEnabled", err)
	}
	if engine != nil {
		t.Fatal("stub returned a usable engine")
	}
}
