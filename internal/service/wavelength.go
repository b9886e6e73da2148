package service

import (
	"gonum.org/v1/gonum/unit"

	"diffkit/internal/physics"
)

// WavelengthEntry pairs an accelerating voltage with its electron wavelength
type WavelengthEntry struct {
	Voltage      float64 `json:"voltage_v"`
	Wavelength   float64 `json:"wavelength_m"`
	WavelengthPM float64 `json:"wavelength_pm"`
}

// Wavelengths converts accelerating voltages (V) to electron wavelengths.
// It fails on the first voltage that is not positive and finite.
func Wavelengths(volts []float64) ([]WavelengthEntry, error) {
	lambdas, err := physics.Wavelengths(volts)
	if err != nil {
		return nil, err
	}

	entries := make([]WavelengthEntry, len(volts))
	for i, v := range volts {
		entries[i] = WavelengthEntry{
			Voltage:      v,
			Wavelength:   lambdas[i],
			WavelengthPM: physics.Picometres(unit.Length(lambdas[i])),
		}
	}
	return entries, nil
}
