package loader

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format identifies a supported file format
type Format int8

const (
	FormatUnknown Format = iota
	FormatHSPY
	FormatBLO
	FormatMIB
)

var formatNames = map[Format]string{
	FormatUnknown: "unknown",
	FormatHSPY:    "hspy",
	FormatBLO:     "blo",
	FormatMIB:     "mib",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int8(f))
}

// ParseFormat maps a format name ("hspy", "blo", "mib") to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	for f, n := range formatNames {
		if f != FormatUnknown && n == name {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// FormatFromPath returns the format implied by the file suffix.
// ".hdr" is the Merlin acquisition header and maps to FormatMIB.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hspy":
		return FormatHSPY
	case ".blo":
		return FormatBLO
	case ".mib", ".hdr":
		return FormatMIB
	default:
		return FormatUnknown
	}
}

var (
	hdf5Signature = []byte("\x89HDF\r\n\x1a\n")
	bloSignature  = []byte("IMGBLO")
	mibSignature  = []byte("MQ1,")
)

// HDF5 allows the superblock at 0 or any power of two from 512 on.
var hdf5SignatureOffsets = []int64{0, 512, 1024, 2048}

// Sniff identifies a format from its magic bytes.
func Sniff(r io.ReaderAt) Format {
	head := make([]byte, len(hdf5Signature))
	n, _ := r.ReadAt(head, 0)
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, bloSignature):
		return FormatBLO
	case bytes.HasPrefix(head, mibSignature):
		return FormatMIB
	}

	buf := make([]byte, len(hdf5Signature))
	for _, off := range hdf5SignatureOffsets {
		if n, _ := r.ReadAt(buf, off); n == len(buf) && bytes.Equal(buf, hdf5Signature) {
			return FormatHSPY
		}
	}
	return FormatUnknown
}
