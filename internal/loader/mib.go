package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"

	"diffkit/internal/domain"
)

var (
	ErrScanMismatch = errors.New("frame count does not match scan size")
	ErrInvalidScan  = errors.New("invalid scan parameters")
)

// mibLead is enough to hold the fixed leading header fields.
const mibLead = 128

type mibHeader struct {
	Sequence   int
	HeaderSize int
	Chips      int
	Width      int
	Height     int
	Depth      string
	Bytes      int
	Layout     string
	Exposure   float64 // s, zero when absent
}

func parseMIBHeader(b []byte) (*mibHeader, error) {
	fields := strings.Split(string(b), ",")
	if len(fields) < 7 || fields[0] != "MQ1" {
		return nil, fmt.Errorf("%w: not a Merlin frame header", ErrCorruptFile)
	}

	ints := make([]int, 5)
	for i := range ints {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i+1]))
		if err != nil {
			return nil, fmt.Errorf("%w: header field %d: %v", ErrCorruptFile, i+1, err)
		}
		ints[i] = v
	}
	h := &mibHeader{
		Sequence:   ints[0],
		HeaderSize: ints[1],
		Chips:      ints[2],
		Width:      ints[3],
		Height:     ints[4],
		Depth:      strings.TrimSpace(fields[6]),
	}

	switch h.Depth {
	case "U08":
		h.Bytes = 1
	case "U16":
		h.Bytes = 2
	case "U32":
		h.Bytes = 4
	case "U64":
		h.Bytes = 8
	default:
		return nil, fmt.Errorf("%w: pixel depth %q", ErrUnsupportedFormat, h.Depth)
	}
	if h.HeaderSize <= 0 || h.Width <= 0 || h.Height <= 0 {
		return nil, fmt.Errorf("%w: frame %dx%d with header size %d", ErrCorruptFile, h.Width, h.Height, h.HeaderSize)
	}

	if len(fields) > 7 {
		h.Layout = strings.TrimSpace(fields[7])
	}
	if len(fields) > 10 {
		h.Exposure, _ = strconv.ParseFloat(strings.TrimSpace(fields[10]), 64)
	}
	return h, nil
}

func (h *mibHeader) frameSize() int {
	return h.HeaderSize + h.Width*h.Height*h.Bytes
}

func (h *mibHeader) decode(dst []float64, src []byte) {
	for i := range dst {
		switch h.Bytes {
		case 1:
			dst[i] = float64(src[i])
		case 2:
			dst[i] = float64(binary.BigEndian.Uint16(src[2*i:]))
		case 4:
			dst[i] = float64(binary.BigEndian.Uint32(src[4*i:]))
		case 8:
			dst[i] = float64(binary.BigEndian.Uint64(src[8*i:]))
		}
	}
}

// readHDR parses a Merlin acquisition header into a flat dictionary.
// Numeric values are stored as float64.
func readHDR(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]any)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = hdrKey(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		// ParseFloat accepts "NaN" and "Inf"; those stay text.
		if v, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[key] = v
		} else {
			out[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// hdrKey turns "Frames in Acquisition (Number)" into
// "Frames_in_Acquisition_Number".
func hdrKey(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "_")
}

// mibPaths returns the .mib data file and the optional .hdr header for path.
func mibPaths(path string) (mib, hdr string) {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		return stem + ".mib", path
	}
	hdr = stem + ".hdr"
	if _, err := os.Stat(hdr); err != nil {
		hdr = ""
	}
	return path, hdr
}

// MIBLoader reads Medipix/Merlin .mib frame streams
type MIBLoader struct{}

func (l *MIBLoader) Format() Format {
	return FormatMIB
}

// Load reads every frame into a (frames, height, width) stack. A .hdr path
// loads its .mib sibling.
func (l *MIBLoader) Load(ctx context.Context, path string) (*domain.Signal, error) {
	mibPath, hdrPath := mibPaths(path)

	f, err := os.Open(mibPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	lead := make([]byte, mibLead)
	n, err := f.ReadAt(lead, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	h, err := parseMIBHeader(lead[:n])
	if err != nil {
		return nil, err
	}

	size := int64(h.frameSize())
	if info.Size() == 0 || info.Size()%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d byte frames", ErrCorruptFile, info.Size(), size)
	}
	frames := int(info.Size() / size)

	r := bufio.NewReader(f)
	pixels := h.Width * h.Height
	data := make([]float64, frames*pixels)
	head := make([]byte, h.HeaderSize)
	raw := make([]byte, pixels*h.Bytes)
	for i := 0; i < frames; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := io.ReadFull(r, head); err != nil {
			return nil, fmt.Errorf("%w: frame %d header: %v", ErrCorruptFile, i, err)
		}
		if !bytes.HasPrefix(head, mibSignature) {
			return nil, fmt.Errorf("%w: frame %d has no MQ1 header", ErrCorruptFile, i)
		}
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("%w: frame %d data: %v", ErrCorruptFile, i, err)
		}
		h.decode(data[i*pixels:(i+1)*pixels], raw)
	}

	md := domain.NewMetadata()
	md.Set(domain.MetaOriginalFilename, filepath.Base(mibPath))
	md.Set(domain.MetaDetector+".name", "Merlin")
	md.Set(domain.MetaDetector+".chips", int64(h.Chips))
	md.Set(domain.MetaDetector+".counter_depth", h.Depth)
	if h.Layout != "" {
		md.Set(domain.MetaDetector+".layout", h.Layout)
	}
	if h.Exposure > 0 {
		md.Set(domain.MetaExposureTime, h.Exposure)
	}

	var original *domain.Metadata
	if hdrPath != "" {
		hdr, err := readHDR(hdrPath)
		if err != nil {
			return nil, fmt.Errorf("reading acquisition header: %w", err)
		}
		md.Set(domain.MetaDetector+".acquisition", hdr)
		original = domain.NewMetadata()
		original.Set("mib_hdr", hdr)
	}

	return domain.NewSignal(data, []int{frames, h.Height, h.Width},
		domain.WithNavigationDims(1),
		domain.WithTitle(titleFromPath(mibPath)),
		domain.WithMetadata(md),
		domain.WithOriginalMetadata(original),
	)
}

type mibOptions struct {
	sumLength int
	flip      bool
	loader    Loader
}

// MIBOption configures LoadMIB
type MIBOption func(*mibOptions)

// WithSumLength sets how many scan rows are summed to find the flyback
// column. The default is 10.
func WithSumLength(n int) MIBOption {
	return func(o *mibOptions) {
		o.sumLength = n
	}
}

// WithFlipPatterns controls the vertical flip of every pattern. Enabled by
// default.
func WithFlipPatterns(flip bool) MIBOption {
	return func(o *mibOptions) {
		o.flip = flip
	}
}

// WithFrameLoader replaces the loader that reads the raw frame stack.
func WithFrameLoader(l Loader) MIBOption {
	return func(o *mibOptions) {
		o.loader = l
	}
}

// LoadMIB loads a square scan of Merlin frames and removes the flyback
// column.
//
// The frames are arranged as a scanSize x scanSize grid. The flyback column
// is the first column with the largest total intensity over the first
// sumLength rows. The first row and the flyback column are dropped and the
// columns after the flyback are moved to the front, so the result has
// navigation shape (scanSize-1, scanSize-1).
func LoadMIB(ctx context.Context, path string, scanSize int, opts ...MIBOption) (*domain.Signal, error) {
	o := mibOptions{sumLength: 10, flip: true, loader: &MIBLoader{}}
	for _, opt := range opts {
		opt(&o)
	}
	if scanSize < 2 {
		return nil, fmt.Errorf("%w: scan size %d", ErrInvalidScan, scanSize)
	}
	if o.sumLength < 1 {
		return nil, fmt.Errorf("%w: sum length %d", ErrInvalidScan, o.sumLength)
	}

	raw, err := o.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if n := raw.NavigationSize(); n != scanSize*scanSize {
		return nil, fmt.Errorf("%w: %d frames for a %dx%d scan", ErrScanMismatch, n, scanSize, scanSize)
	}

	sig := raw.SignalShape()
	if len(sig) != 2 {
		return nil, fmt.Errorf("%w: frames have shape %v", domain.ErrInvalidShape, sig)
	}
	height, width := sig[0], sig[1]
	frameSize := height * width
	frame := func(row, col int) []float64 {
		i := (row*scanSize + col) * frameSize
		return raw.Data[i : i+frameSize]
	}

	edge := flybackColumn(scanSize, min(o.sumLength, scanSize), frame)
	cols := keptColumns(scanSize, edge)

	side := scanSize - 1
	data := make([]float64, side*side*frameSize)
	for r := 1; r < scanSize; r++ {
		for j, c := range cols {
			dst := data[((r-1)*side+j)*frameSize:][:frameSize]
			src := frame(r, c)
			if !o.flip {
				copy(dst, src)
				continue
			}
			for y := 0; y < height; y++ {
				copy(dst[y*width:(y+1)*width], src[(height-1-y)*width:(height-y)*width])
			}
		}
	}

	out, err := domain.NewSignal(data, []int{side, side, height, width},
		domain.WithNavigationDims(2),
		domain.WithMetadataFrom(raw),
		domain.WithOriginalMetadata(raw.OriginalMetadata),
		domain.WithType(domain.SignalTypeElectronDiffraction),
	)
	if err != nil {
		return nil, err
	}
	out.Metadata.Set(domain.MetaDetector+".flyback_column", int64(edge))
	return out, nil
}

// flybackColumn returns the first column whose summed intensity over the
// first rows is largest.
func flybackColumn(scanSize, rows int, frame func(row, col int) []float64) int {
	trace := make([]float64, scanSize)
	for r := 0; r < rows; r++ {
		for c := 0; c < scanSize; c++ {
			trace[c] += floats.Sum(frame(r, c))
		}
	}
	return floats.MaxIdx(trace)
}

// keptColumns lists the scan columns kept after removing the flyback edge,
// starting with the column after it.
func keptColumns(scanSize, edge int) []int {
	cols := make([]int, 0, scanSize-1)
	if edge != scanSize-1 {
		for c := edge + 1; c < scanSize; c++ {
			cols = append(cols, c)
		}
	}
	for c := 0; c < edge; c++ {
		cols = append(cols, c)
	}
	return cols
}
