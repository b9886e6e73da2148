package domain

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrShapeMismatch = errors.New("data length does not match shape")
	ErrInvalidShape  = errors.New("invalid shape")
	ErrIndexRange    = errors.New("index out of range")
)

// Axis describes one dimension of a signal
type Axis struct {
	Name     string  `json:"name" yaml:"name"`
	Size     int     `json:"size" yaml:"size"`
	Scale    float64 `json:"scale" yaml:"scale"`
	Offset   float64 `json:"offset" yaml:"offset"`
	Units    string  `json:"units,omitempty" yaml:"units,omitempty"`
	Navigate bool    `json:"navigate" yaml:"navigate"`
}

// MetadataSource is anything that carries a metadata tree. Signals built
// with WithMetadataFrom inherit the tree of such a source.
type MetadataSource interface {
	MetadataDict() map[string]any
}

// Signal is an n-dimensional array with axes and metadata. Data is stored
// row-major; Shape lists navigation axes first, then signal axes.
type Signal struct {
	Type             SignalType `json:"signal_type"`
	Data             []float64  `json:"-"`
	Shape            []int      `json:"shape"`
	Axes             []Axis     `json:"axes"`
	Metadata         *Metadata  `json:"metadata"`
	OriginalMetadata *Metadata  `json:"original_metadata,omitempty"`
}

// SignalOption configures NewSignal
type SignalOption func(*signalOptions)

type signalOptions struct {
	title    string
	typ      *SignalType
	navDims  int
	axes     []Axis
	metadata []*Metadata
	original *Metadata
}

// WithTitle sets General.title.
func WithTitle(title string) SignalOption {
	return func(o *signalOptions) {
		o.title = title
	}
}

// WithType sets the signal type.
func WithType(t SignalType) SignalOption {
	return func(o *signalOptions) {
		o.typ = &t
	}
}

// WithNavigationDims sets how many leading axes are navigation axes.
// The default treats the last two axes as the signal (a 2D pattern stack).
func WithNavigationDims(n int) SignalOption {
	return func(o *signalOptions) {
		o.navDims = n
	}
}

// WithAxes supplies explicit axes. Sizes are overwritten from the shape.
func WithAxes(axes []Axis) SignalOption {
	return func(o *signalOptions) {
		o.axes = axes
	}
}

// WithMetadata merges md into the new signal's metadata.
func WithMetadata(md *Metadata) SignalOption {
	return func(o *signalOptions) {
		if md != nil {
			o.metadata = append(o.metadata, md)
		}
	}
}

// WithOriginalMetadata attaches the unmodified file-level metadata.
func WithOriginalMetadata(md *Metadata) SignalOption {
	return func(o *signalOptions) {
		o.original = md
	}
}

// WithMetadataFrom pushes the metadata of src through to the new signal.
// Sources without metadata, such as plain slices or nil, are ignored.
func WithMetadataFrom(src any) SignalOption {
	return func(o *signalOptions) {
		ms, ok := src.(MetadataSource)
		if !ok {
			return
		}
		dict := ms.MetadataDict()
		if dict == nil {
			return
		}
		o.metadata = append(o.metadata, MetadataFromDict(dict))
	}
}

// NewSignal wraps data with the given shape.
func NewSignal(data []float64, shape []int, opts ...SignalOption) (*Signal, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrInvalidShape)
	}
	size := 1
	for i, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dimension %d has size %d", ErrInvalidShape, i, d)
		}
		size *= d
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}

	options := signalOptions{navDims: -1}
	for _, opt := range opts {
		opt(&options)
	}

	navDims := options.navDims
	if navDims < 0 {
		navDims = defaultNavDims(len(shape))
	}
	if navDims > len(shape) {
		return nil, fmt.Errorf("%w: %d navigation axes for %d dimensions", ErrInvalidShape, navDims, len(shape))
	}

	s := &Signal{
		Data:             data,
		Shape:            append([]int(nil), shape...),
		Axes:             buildAxes(shape, navDims, options.axes),
		Metadata:         NewMetadata(),
		OriginalMetadata: options.original,
	}
	for _, md := range options.metadata {
		s.Metadata.Merge(md)
	}
	if options.title != "" {
		s.Metadata.Set(MetaTitle, options.title)
	}

	switch {
	case options.typ != nil:
		s.SetType(*options.typ)
	default:
		stored, _ := s.Metadata.GetString(MetaSignalType)
		if t, err := ParseSignalType(stored); err == nil {
			s.Type = t
		}
	}

	return s, nil
}

func defaultNavDims(ndim int) int {
	if ndim <= 2 {
		return 0
	}
	return ndim - 2
}

func buildAxes(shape []int, navDims int, given []Axis) []Axis {
	axes := make([]Axis, len(shape))
	for i, size := range shape {
		if i < len(given) {
			axes[i] = given[i]
		} else {
			axes[i] = Axis{Scale: 1}
		}
		if axes[i].Scale == 0 {
			axes[i].Scale = 1
		}
		axes[i].Size = size
		axes[i].Navigate = i < navDims
	}
	return axes
}

// Title returns General.title.
func (s *Signal) Title() string {
	t, _ := s.Metadata.GetString(MetaTitle)
	return t
}

// SetType sets the signal type and mirrors it into Signal.signal_type.
func (s *Signal) SetType(t SignalType) {
	s.Type = t
	if s.Metadata == nil {
		s.Metadata = NewMetadata()
	}
	s.Metadata.Set(MetaSignalType, string(t))
}

// MetadataDict implements MetadataSource
func (s *Signal) MetadataDict() map[string]any {
	if s == nil || s.Metadata == nil {
		return nil
	}
	return s.Metadata.AsDictionary()
}

// Size returns the number of elements.
func (s *Signal) Size() int {
	return len(s.Data)
}

// NDim returns the number of dimensions.
func (s *Signal) NDim() int {
	return len(s.Shape)
}

// NavigationDims returns the number of navigation axes.
func (s *Signal) NavigationDims() int {
	n := 0
	for _, a := range s.Axes {
		if a.Navigate {
			n++
		}
	}
	return n
}

// NavigationShape returns the sizes of the navigation axes.
func (s *Signal) NavigationShape() []int {
	return append([]int(nil), s.Shape[:s.NavigationDims()]...)
}

// SignalShape returns the sizes of the signal axes.
func (s *Signal) SignalShape() []int {
	return append([]int(nil), s.Shape[s.NavigationDims():]...)
}

// NavigationSize returns the number of frames.
func (s *Signal) NavigationSize() int {
	return product(s.NavigationShape())
}

// FrameSize returns the number of elements per frame.
func (s *Signal) FrameSize() int {
	return product(s.SignalShape())
}

// Frame returns frame i (row-major over the navigation axes). The slice
// aliases the signal data.
func (s *Signal) Frame(i int) ([]float64, error) {
	if i < 0 || i >= s.NavigationSize() {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrIndexRange, i, s.NavigationSize())
	}
	n := s.FrameSize()
	return s.Data[i*n : (i+1)*n], nil
}

// Reshape returns a signal sharing s's data with a new shape and
// navigation split. Axis calibrations are reset.
func (s *Signal) Reshape(shape []int, navDims int) (*Signal, error) {
	return NewSignal(s.Data, shape,
		WithNavigationDims(navDims),
		WithMetadataFrom(s),
		WithType(s.Type),
		WithOriginalMetadata(s.OriginalMetadata),
	)
}

// Clone returns a deep copy.
func (s *Signal) Clone() *Signal {
	out := &Signal{
		Type:     s.Type,
		Data:     append([]float64(nil), s.Data...),
		Shape:    append([]int(nil), s.Shape...),
		Axes:     append([]Axis(nil), s.Axes...),
		Metadata: s.Metadata.Clone(),
	}
	if s.OriginalMetadata != nil {
		out.OriginalMetadata = s.OriginalMetadata.Clone()
	}
	return out
}

// AsType returns a copy of s cast to t.
func (s *Signal) AsType(t SignalType) *Signal {
	out := s.Clone()
	out.SetType(t)
	return out
}

// Sum returns the sum of all elements.
func (s *Signal) Sum() float64 {
	return floats.Sum(s.Data)
}

func product(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}
