package cache

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Encode serializes content for storage. JSON keeps entries inspectable with
// sqlite tooling and round-trips line order and grid layout exactly.
func Encode(content *entity.ExtractedContent) ([]byte, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	return json.Marshal(content)
}

// Decode deserializes a stored entry and re-checks its invariants, so a
// corrupt or truncated row is reported before it can reach a reader.
func Decode(blob []byte) (*entity.ExtractedContent, error) {
	var content entity.ExtractedContent
	if err := json.Unmarshal(blob, &content); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("decoded entry invalid: %w", err)
	}
	return &content, nil
}
