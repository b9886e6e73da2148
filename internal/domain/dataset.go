package domain

import "time"

// LoadKind records whether a file was loaded as a typed diffraction signal
// or as a generic fallback
type LoadKind string

const (
	LoadKindTyped   LoadKind = "typed"
	LoadKindGeneric LoadKind = "generic"
)

// Dataset is a catalog entry for an ingested file
type Dataset struct {
	ID            string     `json:"id"`
	Path          string     `json:"path"`
	Format        string     `json:"format"`
	SignalType    SignalType `json:"signal_type"`
	LoadKind      LoadKind   `json:"load_kind"`
	Notice        string     `json:"notice,omitempty"`
	Shape         []int      `json:"shape"`
	NavigationDim int        `json:"navigation_dims"`
	BeamEnergyKeV *float64   `json:"beam_energy_kev,omitempty"`
	WavelengthPM  *float64   `json:"wavelength_pm,omitempty"`
	Metadata      *Metadata  `json:"metadata,omitempty"`
	LoadedAt      time.Time  `json:"loaded_at"`
}

// DatasetFilter narrows ListDatasets. Zero fields match everything.
type DatasetFilter struct {
	Format     string
	SignalType *SignalType
	LoadKind   LoadKind
	Limit      int
}

// NewDataset builds a catalog entry from a loaded signal.
func NewDataset(id, path, format string, s *Signal, kind LoadKind, notice string) *Dataset {
	return &Dataset{
		ID:            id,
		Path:          path,
		Format:        format,
		SignalType:    s.Type,
		LoadKind:      kind,
		Notice:        notice,
		Shape:         append([]int(nil), s.Shape...),
		NavigationDim: s.NavigationDims(),
		Metadata:      s.Metadata.Clone(),
		LoadedAt:      time.Now().UTC(),
	}
}
