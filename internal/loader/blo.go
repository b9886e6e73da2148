package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"diffkit/internal/domain"
)

const (
	bloMagic      = 0x0102
	bloFrameMagic = 0x55AA
	bloFrameHead  = 6 // u16 magic + u32 frame id
)

var ErrCorruptFile = errors.New("corrupt file")

// bloHeader is the packed little-endian blockfile header
type bloHeader struct {
	ID              [6]byte
	Magic           uint16
	DataOffset1     uint32 // virtual bright field image
	DataOffset2     uint32 // first diffraction frame
	Unknown1        uint32
	DPSize          uint16 // pattern edge length in pixels
	DPRotation      uint16
	NX              uint16
	NY              uint16
	ScanRotation    uint16
	SX              float64 // scan step, nm
	SY              float64
	BeamEnergy      uint32 // V
	SDP             uint16 // pattern scale, pixels per 1/nm x100
	CameraLength    uint32
	AcquisitionTime float64
	Centering       [8]uint16
	Distortion      [14]float64
}

// BLOLoader reads NanoMEGAS blockfiles
type BLOLoader struct{}

func (l *BLOLoader) Format() Format {
	return FormatBLO
}

// Load reads the diffraction frames of a blockfile into an
// (NY, NX, DP, DP) stack.
func (l *BLOLoader) Load(ctx context.Context, path string) (*domain.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var h bloHeader
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptFile, err)
	}
	if !bytes.Equal(h.ID[:], bloSignature) {
		return nil, fmt.Errorf("%w: missing IMGBLO signature", ErrCorruptFile)
	}
	if h.Magic != bloMagic {
		return nil, fmt.Errorf("%w: header magic %#04x", ErrCorruptFile, h.Magic)
	}
	if h.NX == 0 || h.NY == 0 || h.DPSize == 0 {
		return nil, fmt.Errorf("%w: empty scan %dx%d with pattern size %d", ErrCorruptFile, h.NX, h.NY, h.DPSize)
	}

	// uint64 holds the largest size a header can describe.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	scan := uint64(h.NX) * uint64(h.NY)
	pattern := uint64(h.DPSize) * uint64(h.DPSize)
	if need := uint64(h.DataOffset2) + scan*(bloFrameHead+pattern); need > uint64(info.Size()) {
		return nil, fmt.Errorf("%w: header describes %d bytes, file holds %d", ErrCorruptFile, need, info.Size())
	}

	if _, err := f.Seek(int64(h.DataOffset2), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to frames: %w", err)
	}
	r := bufio.NewReader(f)

	frames := int(scan)
	frameSize := int(pattern)
	data := make([]float64, frames*frameSize)
	head := make([]byte, bloFrameHead)
	pixels := make([]byte, frameSize)
	for i := 0; i < frames; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := io.ReadFull(r, head); err != nil {
			return nil, fmt.Errorf("%w: frame %d header: %v", ErrCorruptFile, i, err)
		}
		if magic := binary.LittleEndian.Uint16(head); magic != bloFrameMagic {
			return nil, fmt.Errorf("%w: frame %d magic %#04x", ErrCorruptFile, i, magic)
		}
		if _, err := io.ReadFull(r, pixels); err != nil {
			return nil, fmt.Errorf("%w: frame %d data: %v", ErrCorruptFile, i, err)
		}
		out := data[i*frameSize : (i+1)*frameSize]
		for j, p := range pixels {
			out[j] = float64(p)
		}
	}

	md := domain.NewMetadata()
	md.Set(domain.MetaOriginalFilename, filepath.Base(path))
	md.Set(domain.MetaBeamEnergy, float64(h.BeamEnergy)/1000)
	md.Set(domain.MetaCameraLength, float64(h.CameraLength))
	md.Set(domain.MetaExposureTime, h.AcquisitionTime)

	original := domain.NewMetadata()
	original.Set("blockfile_header", bloHeaderDict(&h))

	var recip float64
	if h.SDP > 0 {
		recip = 100 / float64(h.SDP)
	}
	axes := []domain.Axis{
		{Name: "y", Scale: h.SY, Units: "nm"},
		{Name: "x", Scale: h.SX, Units: "nm"},
		{Name: "dy", Scale: recip, Offset: -recip * float64(h.DPSize) / 2, Units: "1/nm"},
		{Name: "dx", Scale: recip, Offset: -recip * float64(h.DPSize) / 2, Units: "1/nm"},
	}

	return domain.NewSignal(data,
		[]int{int(h.NY), int(h.NX), int(h.DPSize), int(h.DPSize)},
		domain.WithNavigationDims(2),
		domain.WithAxes(axes),
		domain.WithTitle(titleFromPath(path)),
		domain.WithMetadata(md),
		domain.WithOriginalMetadata(original),
	)
}

func bloHeaderDict(h *bloHeader) map[string]any {
	centering := make([]int64, len(h.Centering))
	for i, c := range h.Centering {
		centering[i] = int64(c)
	}
	return map[string]any{
		"MAGIC":            int64(h.Magic),
		"Data_offset_1":    int64(h.DataOffset1),
		"Data_offset_2":    int64(h.DataOffset2),
		"DP_SZ":            int64(h.DPSize),
		"DP_rotation":      int64(h.DPRotation),
		"NX":               int64(h.NX),
		"NY":               int64(h.NY),
		"Scan_rotation":    int64(h.ScanRotation),
		"SX":               h.SX,
		"SY":               h.SY,
		"Beam_energy":      int64(h.BeamEnergy),
		"SDP":              int64(h.SDP),
		"Camera_length":    int64(h.CameraLength),
		"Acquisition_time": h.AcquisitionTime,
		"Centering":        centering,
		"Distortion":       append([]float64(nil), h.Distortion[:]...),
	}
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
