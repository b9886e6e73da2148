package domain

import (
	"errors"
	"fmt"
)

// SignalType names the kind of data a signal holds
type SignalType string

const (
	SignalTypeGeneric             SignalType = ""
	SignalTypeElectronDiffraction SignalType = "electron_diffraction"
	SignalTypeTemplateMatching    SignalType = "template_matching"
	SignalTypeDiffractionVectors  SignalType = "diffraction_vectors"
)

// ErrUnknownSignalType is returned for signal type names outside the
// known set.
var ErrUnknownSignalType = errors.New("unknown signal type")

// KnownSignalTypes lists the typed kinds, excluding the generic one.
func KnownSignalTypes() []SignalType {
	return []SignalType{
		SignalTypeElectronDiffraction,
		SignalTypeTemplateMatching,
		SignalTypeDiffractionVectors,
	}
}

// ParseSignalType converts a stored signal_type string to a SignalType.
// The empty string parses as SignalTypeGeneric.
func ParseSignalType(s string) (SignalType, error) {
	switch s {
	case "":
		return SignalTypeGeneric, nil
	case "electron_diffraction":
		return SignalTypeElectronDiffraction, nil
	case "template_matching":
		return SignalTypeTemplateMatching, nil
	case "diffraction_vectors":
		return SignalTypeDiffractionVectors, nil
	default:
		return SignalTypeGeneric, fmt.Errorf("%w: %q", ErrUnknownSignalType, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *SignalType) UnmarshalText(text []byte) error {
	parsed, err := ParseSignalType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsGeneric reports whether t carries no diffraction-specific meaning.
func (t SignalType) IsGeneric() bool {
	return t == SignalTypeGeneric
}

// String returns the stored name, or "generic" for the empty type.
func (t SignalType) String() string {
	if t == SignalTypeGeneric {
		return "generic"
	}
	return string(t)
}
