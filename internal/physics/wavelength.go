// Package physics holds the electron-optics formulas used when annotating
// diffraction data.
//
// Wavelength converts an accelerating voltage to the relativistic de Broglie
// wavelength of the electrons it produces:
//
//	λ(V) = h / sqrt(2·m₀·e·V · (1 + e·V / (2·m₀·c²)))
//
// Voltages must be strictly positive and finite. Zero is reported as
// ErrSingularInput and negative or non-finite values as ErrInvalidInput;
// nothing is silently mapped to Inf or NaN. Results are always float64.
package physics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/unit"
)

var (
	// ErrInvalidInput reports a negative, NaN or infinite voltage.
	ErrInvalidInput = errors.New("invalid accelerating voltage")
	// ErrSingularInput reports a zero voltage, for which the wavelength is undefined.
	ErrSingularInput = errors.New("undefined wavelength for zero accelerating voltage")
)

// ElementError locates the element of a collection that failed conversion.
type ElementError struct {
	Index   int
	Voltage float64
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d (%g V): %v", e.Index, e.Voltage, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// Number is any real input accepted by WavelengthsOf.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Wavelength returns the relativistic electron wavelength for an
// accelerating voltage.
func Wavelength(v unit.Voltage) (unit.Length, error) {
	if err := validate(float64(v)); err != nil {
		return 0, err
	}
	return unit.Length(wavelength(float64(v))), nil
}

// MustWavelength is like Wavelength but panics on invalid input.
func MustWavelength(v unit.Voltage) unit.Length {
	l, err := Wavelength(v)
	if err != nil {
		panic(err)
	}
	return l
}

// Wavelengths converts each voltage independently. The result has the same
// length and order as vs.
func Wavelengths(vs []float64) ([]float64, error) {
	return WavelengthsOf(vs)
}

// WavelengthsOf is the generic form of Wavelengths.
func WavelengthsOf[T Number](vs []T) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, raw := range vs {
		v := float64(raw)
		if err := validate(v); err != nil {
			return nil, &ElementError{Index: i, Voltage: v, Err: err}
		}
		out[i] = wavelength(v)
	}
	return out, nil
}

func validate(v float64) error {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0):
		return fmt.Errorf("%w: %v", ErrInvalidInput, v)
	case v < 0:
		return fmt.Errorf("%w: %g V is negative", ErrInvalidInput, v)
	case v == 0:
		return ErrSingularInput
	}
	return nil
}

func wavelength(v float64) float64 {
	eV := elementaryCharge * v
	momentum2 := 2 * electronMass * eV * (1 + eV/restEnergy2)
	return planck / math.Sqrt(momentum2)
}
