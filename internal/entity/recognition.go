package entity

import "image"

// Word is one recognition triple from the OCR engine: a bounding box in the
// coordinates of the recognized image, the decoded text, and the engine's
// confidence in 0..1. Order within a recognition result is engine order and
// carries no layout meaning; stitching re-orders by coordinates.
type Word struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}
