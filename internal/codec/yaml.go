package codec

import (
	"fmt"
	"io"

	"diffkit/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads a metadata tree from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Metadata, error) {
	md := domain.NewMetadata()
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(md); err != nil {
		if err == io.EOF {
			return md, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return md, nil
}

// Export writes a metadata tree as YAML
func (c *YAMLCodec) Export(md *domain.Metadata, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(md); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}
