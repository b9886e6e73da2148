package physics

import (
	"gonum.org/v1/gonum/unit"
	"gonum.org/v1/gonum/unit/constant"
)

// ElectronRestMass is the CODATA 2018 electron rest mass.
const ElectronRestMass = unit.Mass(9.1093837015e-31)

var (
	planck           = float64(constant.Planck)
	elementaryCharge = float64(constant.ElementaryCharge)
	speedOfLight     = float64(constant.LightSpeedInVacuum)
	electronMass     = float64(ElectronRestMass)

	// restEnergy2 is 2·m₀·c² in joules.
	restEnergy2 = 2 * electronMass * speedOfLight * speedOfLight
)

// KiloVolt is 1000 V.
const KiloVolt = 1000 * unit.Volt

// FromKiloelectronVolts converts a beam energy in keV to the accelerating
// voltage that produces it.
func FromKiloelectronVolts(keV float64) unit.Voltage {
	return unit.Voltage(keV) * KiloVolt
}

// Picometres returns l in picometres.
func Picometres(l unit.Length) float64 {
	return float64(l) / unit.Pico
}
