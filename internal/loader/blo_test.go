package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffkit/internal/domain"
)

type bloFixture struct {
	nx, ny, dp int
	beamEnergy uint32 // V
	frameMagic uint16
	truncate   int
}

// pixel value of frame i at offset j
func bloPixel(i, j int) byte {
	return byte((i*7 + j) % 251)
}

func writeBLO(t *testing.T, dir string, fx bloFixture) string {
	t.Helper()
	if fx.frameMagic == 0 {
		fx.frameMagic = bloFrameMagic
	}

	headerSize := binary.Size(bloHeader{})
	vbfSize := fx.nx * fx.ny
	h := bloHeader{
		Magic:           bloMagic,
		DataOffset1:     uint32(headerSize),
		DataOffset2:     uint32(headerSize + vbfSize),
		DPSize:          uint16(fx.dp),
		NX:              uint16(fx.nx),
		NY:              uint16(fx.ny),
		SX:              1.5,
		SY:              2.5,
		BeamEnergy:      fx.beamEnergy,
		SDP:             200,
		CameraLength:    12,
		AcquisitionTime: 0.01,
	}
	copy(h.ID[:], bloSignature)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, h))
	buf.Write(make([]byte, vbfSize))
	for i := 0; i < fx.nx*fx.ny; i++ {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, fx.frameMagic))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(i)))
		for j := 0; j < fx.dp*fx.dp; j++ {
			buf.WriteByte(bloPixel(i, j))
		}
	}

	data := buf.Bytes()
	data = data[:len(data)-fx.truncate]
	path := filepath.Join(dir, "scan.blo")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestBLOLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("reads frames and header", func(t *testing.T) {
		path := writeBLO(t, t.TempDir(), bloFixture{nx: 3, ny: 2, dp: 4, beamEnergy: 200000})

		s, err := (&BLOLoader{}).Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, []int{2, 3, 4, 4}, s.Shape)
		assert.Equal(t, []int{2, 3}, s.NavigationShape())
		assert.Equal(t, "scan", s.Title())

		frame, err := s.Frame(4)
		require.NoError(t, err)
		for j, v := range frame {
			assert.Equal(t, float64(bloPixel(4, j)), v)
		}

		energy, ok := s.Metadata.GetFloat(domain.MetaBeamEnergy)
		require.True(t, ok)
		assert.Equal(t, 200.0, energy)

		exposure, ok := s.Metadata.GetFloat(domain.MetaExposureTime)
		require.True(t, ok)
		assert.Equal(t, 0.01, exposure)

		assert.Equal(t, 2.5, s.Axes[0].Scale)
		assert.Equal(t, 1.5, s.Axes[1].Scale)
		assert.Equal(t, "nm", s.Axes[1].Units)
		assert.Equal(t, 0.5, s.Axes[2].Scale)

		nx, ok := s.OriginalMetadata.GetFloat("blockfile_header.NX")
		require.True(t, ok)
		assert.Equal(t, 3.0, nx)
	})

	t.Run("bad frame magic", func(t *testing.T) {
		path := writeBLO(t, t.TempDir(), bloFixture{nx: 2, ny: 2, dp: 2, frameMagic: 0x1234})
		_, err := (&BLOLoader{}).Load(ctx, path)
		assert.ErrorIs(t, err, ErrCorruptFile)
	})

	t.Run("truncated", func(t *testing.T) {
		path := writeBLO(t, t.TempDir(), bloFixture{nx: 2, ny: 2, dp: 2, truncate: 3})
		_, err := (&BLOLoader{}).Load(ctx, path)
		assert.ErrorIs(t, err, ErrCorruptFile)
	})

	t.Run("header larger than file", func(t *testing.T) {
		h := bloHeader{
			Magic:       bloMagic,
			DataOffset2: uint32(binary.Size(bloHeader{})),
			DPSize:      0xFFFF,
			NX:          0xFFFF,
			NY:          0xFFFF,
		}
		copy(h.ID[:], bloSignature)
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, h))
		path := filepath.Join(t.TempDir(), "huge.blo")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

		_, err := (&BLOLoader{}).Load(ctx, path)
		assert.ErrorIs(t, err, ErrCorruptFile)
	})

	t.Run("frames offset past end", func(t *testing.T) {
		path := writeBLO(t, t.TempDir(), bloFixture{nx: 1, ny: 1, dp: 2})
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		// Data_offset_2 sits after the 6 byte ID, the magic and Data_offset_1.
		binary.LittleEndian.PutUint32(raw[12:], 1<<30)
		require.NoError(t, os.WriteFile(path, raw, 0644))

		_, err = (&BLOLoader{}).Load(ctx, path)
		assert.ErrorIs(t, err, ErrCorruptFile)
	})

	t.Run("not a blockfile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scan.blo")
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, 300), 0644))
		_, err := (&BLOLoader{}).Load(ctx, path)
		assert.ErrorIs(t, err, ErrCorruptFile)
	})
}
