package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"diffkit/internal/domain"
)

var ErrUnknownFormat = errors.New("unknown metadata format")

// Importer interface for reading metadata trees from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.Metadata, error)
	Format() string
}

// Exporter interface for writing metadata trees to various formats
type Exporter interface {
	Export(md *domain.Metadata, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
}

var codecs = map[string]Codec{
	"json": NewJSONCodec(),
	"yaml": NewYAMLCodec(),
	"yml":  NewYAMLCodec(),
}

// ForFormat returns the codec for a format name. An empty name selects YAML.
func ForFormat(name string) (Codec, error) {
	if name == "" {
		name = "yaml"
	}
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return c, nil
}

// Formats lists the canonical format names.
func Formats() []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range codecs {
		if !seen[c.Format()] {
			seen[c.Format()] = true
			names = append(names, c.Format())
		}
	}
	sort.Strings(names)
	return names
}
