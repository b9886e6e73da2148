package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"diffkit/internal/domain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrUseMIBLoader      = errors.New("mib files must be loaded with LoadMIB")
)

// Notices attached to results that fell back to a generic signal
const (
	NoticeNoDiffraction = "no diffraction functionality used"
	NoticeUnknownSuffix = "file suffix unknown"
	NoticeMultipleFiles = "multiple files given"
)

// Kind says whether a result was dispatched to a diffraction signal type
type Kind int

const (
	KindTyped Kind = iota
	KindGeneric
)

func (k Kind) String() string {
	if k == KindTyped {
		return "typed"
	}
	return "generic"
}

// LoadKind converts k to its catalog representation.
func (k Kind) LoadKind() domain.LoadKind {
	if k == KindTyped {
		return domain.LoadKindTyped
	}
	return domain.LoadKindGeneric
}

// Result is a loaded signal together with how it was dispatched
type Result struct {
	Signal *domain.Signal
	Format Format
	Kind   Kind
	// Notice explains a fallback; empty when none happened.
	Notice string
}

// FormatError reports a file that no loader accepts
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

type options struct {
	cast     bool
	registry *Registry
}

// Option configures Load and LoadMany
type Option func(*options)

// WithCastToElectronDiffraction controls whether signals without a known
// diffraction type are cast to electron_diffraction. Enabled by default.
func WithCastToElectronDiffraction(cast bool) Option {
	return func(o *options) {
		o.cast = cast
	}
}

// WithRegistry overrides the loader table.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

func buildOptions(opts []Option) options {
	o := options{cast: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	return o
}

// Load reads a single file and dispatches it to a signal type.
//
// .hspy and .blo files keep a stored diffraction type, or are cast to
// electron_diffraction when the cast option is set. Files with any other
// suffix are identified by content and returned as generic signals. .mib
// files need a scan size and are rejected with ErrUseMIBLoader.
func Load(ctx context.Context, path string, opts ...Option) (*Result, error) {
	o := buildOptions(opts)

	format := FormatFromPath(path)
	switch format {
	case FormatMIB:
		return nil, &FormatError{Path: path, Err: ErrUseMIBLoader}
	case FormatHSPY, FormatBLO:
		s, err := loadWith(ctx, o.registry, format, path)
		if err != nil {
			return nil, err
		}
		return dispatch(s, format, o.cast), nil
	}

	format, err := sniffFile(path)
	if err != nil {
		return nil, err
	}
	s, err := loadWith(ctx, o.registry, format, path)
	if err != nil {
		return nil, err
	}
	return &Result{Signal: s, Format: format, Kind: KindGeneric, Notice: NoticeUnknownSuffix}, nil
}

// LoadMany loads several files as generic signals, in order. It stops at
// the first failure.
func LoadMany(ctx context.Context, paths []string, opts ...Option) ([]*Result, error) {
	o := buildOptions(opts)

	results := make([]*Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		format := FormatFromPath(path)
		if format == FormatUnknown {
			var err error
			if format, err = sniffFile(path); err != nil {
				return nil, err
			}
		}
		s, err := loadWith(ctx, o.registry, format, path)
		if err != nil {
			return nil, err
		}
		results = append(results, &Result{Signal: s, Format: format, Kind: KindGeneric, Notice: NoticeMultipleFiles})
	}
	return results, nil
}

func dispatch(s *domain.Signal, format Format, cast bool) *Result {
	stored, _ := s.Metadata.GetString(domain.MetaSignalType)
	if t, err := domain.ParseSignalType(stored); err == nil && !t.IsGeneric() {
		s.SetType(t)
		return &Result{Signal: s, Format: format, Kind: KindTyped}
	}

	if cast {
		s.SetType(domain.SignalTypeElectronDiffraction)
		r := &Result{Signal: s, Format: format, Kind: KindTyped}
		if stored != "" {
			r.Notice = fmt.Sprintf("signal type %q cast to %s", stored, domain.SignalTypeElectronDiffraction)
		}
		return r
	}

	s.Type = domain.SignalTypeGeneric
	return &Result{Signal: s, Format: format, Kind: KindGeneric, Notice: NoticeNoDiffraction}
}

func loadWith(ctx context.Context, r *Registry, format Format, path string) (*domain.Signal, error) {
	l, err := r.Lookup(format)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	s, err := l.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s file %s: %w", format, path, err)
	}
	return s, nil
}

func sniffFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	format := Sniff(f)
	if format == FormatUnknown {
		return FormatUnknown, &FormatError{Path: path, Err: ErrUnsupportedFormat}
	}
	return format, nil
}
