package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMetadataSetGet(t *testing.T) {
	t.Run("creates inner nodes", func(t *testing.T) {
		md := NewMetadata()
		md.Set(MetaBeamEnergy, 200.0)

		v, ok := md.GetFloat(MetaBeamEnergy)
		require.True(t, ok)
		assert.Equal(t, 200.0, v)

		inner, ok := md.Get("Acquisition_instrument.TEM")
		require.True(t, ok)
		assert.Equal(t, map[string]any{"beam_energy": 200.0}, inner)
	})

	t.Run("missing path", func(t *testing.T) {
		md := NewMetadata()
		_, ok := md.Get("General.title")
		assert.False(t, ok)
		assert.False(t, md.Has("General"))
	})

	t.Run("path through a leaf is missing", func(t *testing.T) {
		md := NewMetadata()
		md.Set("General.title", "scan")
		_, ok := md.Get("General.title.extra")
		assert.False(t, ok)
	})

	t.Run("leaf replaced by inner node", func(t *testing.T) {
		md := NewMetadata()
		md.Set("General", "flat")
		md.Set("General.title", "scan")
		title, ok := md.GetString("General.title")
		require.True(t, ok)
		assert.Equal(t, "scan", title)
	})

	t.Run("integer values read as float", func(t *testing.T) {
		md := NewMetadata()
		md.Set("Detector.frames", int64(65536))
		v, ok := md.GetFloat("Detector.frames")
		require.True(t, ok)
		assert.Equal(t, 65536.0, v)
	})

	t.Run("nil metadata is empty", func(t *testing.T) {
		var md *Metadata
		_, ok := md.Get("General.title")
		assert.False(t, ok)
		assert.Empty(t, md.AsDictionary())
		assert.Equal(t, 0, md.Len())
	})
}

func TestMetadataCopies(t *testing.T) {
	src := map[string]any{
		"General": map[string]any{"title": "a"},
	}
	md := MetadataFromDict(src)

	src["General"].(map[string]any)["title"] = "changed"
	title, _ := md.GetString(MetaTitle)
	assert.Equal(t, "a", title, "input dictionary must be copied")

	dict := md.AsDictionary()
	dict["General"].(map[string]any)["title"] = "changed"
	title, _ = md.GetString(MetaTitle)
	assert.Equal(t, "a", title, "AsDictionary must return a copy")

	clone := md.Clone()
	clone.Set(MetaTitle, "b")
	title, _ = md.GetString(MetaTitle)
	assert.Equal(t, "a", title, "Clone must be independent")
}

func TestMetadataDelete(t *testing.T) {
	md := NewMetadata()
	md.Set("General.title", "scan")
	md.Set("General.date", "2019-01-01")

	assert.True(t, md.Delete("General.title"))
	assert.False(t, md.Delete("General.title"))
	assert.False(t, md.Delete("Missing.path"))
	assert.True(t, md.Has("General.date"))
}

func TestMetadataMerge(t *testing.T) {
	base := NewMetadata()
	base.Set("General.title", "base")
	base.Set("Acquisition_instrument.TEM.beam_energy", 200.0)

	other := NewMetadata()
	other.Set("General.title", "other")
	other.Set("Acquisition_instrument.TEM.camera_length", 12.0)

	base.Merge(other)

	title, _ := base.GetString("General.title")
	assert.Equal(t, "other", title)
	assert.True(t, base.Has("Acquisition_instrument.TEM.beam_energy"))
	assert.True(t, base.Has("Acquisition_instrument.TEM.camera_length"))

	base.Merge(nil)
	assert.Equal(t, 3, base.Len())
}

func TestMetadataWalk(t *testing.T) {
	md := NewMetadata()
	md.Set("b.z", 1)
	md.Set("a", 2)
	md.Set("b.a", 3)

	var paths []string
	err := md.Walk(func(path string, _ any) error {
		paths = append(paths, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.a", "b.z"}, paths)

	stop := errors.New("stop")
	count := 0
	err = md.Walk(func(string, any) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestMetadataEncoding(t *testing.T) {
	md := NewMetadata()
	md.Set(MetaTitle, "scan")
	md.Set(MetaBeamEnergy, 300.0)

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(md)
		require.NoError(t, err)

		var decoded Metadata
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, md.AsDictionary(), decoded.AsDictionary())
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := yaml.Marshal(md)
		require.NoError(t, err)

		var decoded Metadata
		require.NoError(t, yaml.Unmarshal(data, &decoded))
		title, _ := decoded.GetString(MetaTitle)
		assert.Equal(t, "scan", title)
		energy, ok := decoded.GetFloat(MetaBeamEnergy)
		require.True(t, ok)
		assert.Equal(t, 300.0, energy)
	})
	t.Run("json with non-finite leaves", func(t *testing.T) {
		md := NewMetadata()
		md.Set("Stage.temperature", math.NaN())
		md.Set("Signal.noise_floor", math.Inf(-1))
		md.Set("Signal.levels", []float64{1, math.Inf(1)})

		data, err := json.Marshal(md)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"Stage": {"temperature": "NaN"},
			"Signal": {"noise_floor": "-Inf", "levels": [1, "+Inf"]}
		}`, string(data))

		v, _ := md.GetFloat("Stage.temperature")
		assert.True(t, math.IsNaN(v), "encoding leaves the tree alone")
	})
}
