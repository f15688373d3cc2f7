// Package fingerprint derives the cache identity of one page extraction.
//
// The fingerprint must cover every input that affects extraction output:
// the document content hash, the page index, the classifier and OCR engine
// versions, and all recognition/segmentation parameters. Omitting an input
// here is a correctness bug (stale cache hits), not a performance one.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Params are the extraction parameters that feed the fingerprint.
type Params struct {
	DPI                int
	Language           string
	PSM                int
	OEM                int
	MinTableConfidence float64
	MinGapPx           int
	MarginPx           int
	LowConfidence      float64
}

// Validate rejects zero values that would silently collapse distinct
// configurations onto the same cache key.
func (p Params) Validate() error {
	if p.Language == "" {
		return fmt.Errorf("%w: language", common.ErrFingerprintInput)
	}
	if p.DPI <= 0 {
		return fmt.Errorf("%w: dpi", common.ErrFingerprintInput)
	}
	if p.MinTableConfidence <= 0 {
		return fmt.Errorf("%w: min table confidence", common.ErrFingerprintInput)
	}
	if p.LowConfidence <= 0 {
		return fmt.Errorf("%w: low confidence threshold", common.ErrFingerprintInput)
	}
	return nil
}

// Compute derives the fingerprint for one page. Pure and deterministic:
// equal inputs always produce equal fingerprints, and every field is
// length-prefixed before hashing so adjacent fields cannot alias.
func Compute(docHash [32]byte, pageIndex int, classifierVersion, ocrVersion string, params Params) entity.Fingerprint {
	h := sha256.New()

	writeField(h.Write, docHash[:])
	writeField(h.Write, []byte(strconv.Itoa(pageIndex)))
	writeField(h.Write, []byte(classifierVersion))
	writeField(h.Write, []byte(ocrVersion))

	writeField(h.Write, []byte(strconv.Itoa(params.DPI)))
	writeField(h.Write, []byte(params.Language))
	writeField(h.Write, []byte(strconv.Itoa(params.PSM)))
	writeField(h.Write, []byte(strconv.Itoa(params.OEM)))
	writeField(h.Write, []byte(strconv.FormatFloat(params.MinTableConfidence, 'g', -1, 64)))
	writeField(h.Write, []byte(strconv.Itoa(params.MinGapPx)))
	writeField(h.Write, []byte(strconv.Itoa(params.MarginPx)))
	writeField(h.Write, []byte(strconv.FormatFloat(params.LowConfidence, 'g', -1, 64)))

	var fp entity.Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

func writeField(write func([]byte) (int, error), field []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(field)))
	_, _ = write(n[:])
	_, _ = write(field)
}
