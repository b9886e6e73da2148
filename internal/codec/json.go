package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"diffkit/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a metadata tree from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.Metadata, error) {
	md := domain.NewMetadata()
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(md); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return md, nil
}

// Export writes a metadata tree as indented JSON
func (c *JSONCodec) Export(md *domain.Metadata, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(md); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
