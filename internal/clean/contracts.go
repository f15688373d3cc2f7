package clean

import "context"

// Cleaner repairs OCR artifacts in extracted text. Implementations must be
// conservative: when in doubt, return the input unchanged.
type Cleaner interface {
	CleanText(ctx context.Context, text string) (string, error)
}

// NoopCleaner passes text through untouched. Used with --no-clean and in
// tests.
type NoopCleaner struct{}

func (NoopCleaner) CleanText(_ context.Context, text string) (string, error) {
	return text, nil
}
