package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/unit"
)

func TestWavelength(t *testing.T) {
	tests := []struct {
		voltage unit.Voltage
		wantPM  float64
	}{
		{100000, 3.701},
		{200000, 2.507},
		{300000, 1.968},
	}

	for _, tt := range tests {
		got, err := Wavelength(tt.voltage)
		require.NoError(t, err)
		assert.InDelta(t, tt.wantPM, Picometres(got), 0.001, "Wavelength(%v)", float64(tt.voltage))
	}
}

func TestWavelengths(t *testing.T) {
	voltages := []float64{100000, 200000, 300000}

	got, err := Wavelengths(voltages)
	require.NoError(t, err)
	require.Len(t, got, len(voltages))

	want := []float64{3.701, 2.507, 1.968}
	for i, v := range voltages {
		scalar, err := Wavelength(unit.Voltage(v))
		require.NoError(t, err)
		assert.Equal(t, float64(scalar), got[i], "element %d must equal the scalar result", i)
		assert.InDelta(t, want[i], got[i]/unit.Pico, 0.001)
	}
}

func TestWavelengthsOfIntegers(t *testing.T) {
	got, err := WavelengthsOf([]int{100000, 200000, 300000})
	require.NoError(t, err)

	floats, err := Wavelengths([]float64{100000, 200000, 300000})
	require.NoError(t, err)
	assert.Equal(t, floats, got)

	single, err := WavelengthsOf([]float32{200000})
	require.NoError(t, err)
	assert.InDelta(t, 2.507, single[0]/unit.Pico, 0.001)
}

func TestWavelengthsEmpty(t *testing.T) {
	got, err := Wavelengths(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWavelengthMonotonic(t *testing.T) {
	prev := math.Inf(1)
	for v := 1.0; v <= 1e7; v *= 1.7 {
		l, err := Wavelength(unit.Voltage(v))
		require.NoError(t, err)
		assert.Less(t, float64(l), prev, "wavelength must decrease at %g V", v)
		prev = float64(l)
	}
}

func TestWavelengthDeterministic(t *testing.T) {
	a, err := Wavelength(123456.789)
	require.NoError(t, err)
	b, err := Wavelength(123456.789)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(float64(a)), math.Float64bits(float64(b)))
}

func TestWavelengthInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		voltage float64
		want    error
	}{
		{"zero", 0, ErrSingularInput},
		{"negative", -200000, ErrInvalidInput},
		{"nan", math.NaN(), ErrInvalidInput},
		{"positive infinity", math.Inf(1), ErrInvalidInput},
		{"negative infinity", math.Inf(-1), ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wavelength(unit.Voltage(tt.voltage))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWavelengthsReportsElement(t *testing.T) {
	_, err := Wavelengths([]float64{100000, 0, -5})
	require.Error(t, err)

	var elemErr *ElementError
	require.True(t, errors.As(err, &elemErr))
	assert.Equal(t, 1, elemErr.Index)
	assert.Equal(t, 0.0, elemErr.Voltage)
	assert.ErrorIs(t, err, ErrSingularInput)
}

func TestMustWavelengthPanics(t *testing.T) {
	assert.Panics(t, func() { MustWavelength(-1) })
	assert.NotPanics(t, func() { MustWavelength(200 * KiloVolt) })
}

func TestFromKiloelectronVolts(t *testing.T) {
	assert.Equal(t, unit.Voltage(200000), FromKiloelectronVolts(200))

	l, err := Wavelength(FromKiloelectronVolts(300))
	require.NoError(t, err)
	assert.InDelta(t, 1.968, Picometres(l), 0.001)
}
