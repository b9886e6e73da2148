package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	"diffkit/internal/codec"
	"diffkit/internal/domain"
	"diffkit/internal/loader"
	"diffkit/internal/physics"
	"diffkit/internal/repository"
)

// CatalogService loads files and records them in the catalog
type CatalogService struct {
	repo     repository.Repository
	eventBus *EventBus
	registry *loader.Registry
	cast     bool
	mibOpts  []loader.MIBOption
	log      log.FieldLogger
}

// CatalogOption configures a CatalogService
type CatalogOption func(*CatalogService)

// WithLogger sets the logger. The default is logrus' standard logger.
func WithLogger(l log.FieldLogger) CatalogOption {
	return func(s *CatalogService) {
		s.log = l
	}
}

// WithCast sets whether untyped files are cast to electron_diffraction.
func WithCast(cast bool) CatalogOption {
	return func(s *CatalogService) {
		s.cast = cast
	}
}

// WithRegistry overrides the loader table.
func WithRegistry(r *loader.Registry) CatalogOption {
	return func(s *CatalogService) {
		s.registry = r
	}
}

// WithMIBOptions sets the options passed to loader.LoadMIB.
func WithMIBOptions(opts ...loader.MIBOption) CatalogOption {
	return func(s *CatalogService) {
		s.mibOpts = opts
	}
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo repository.Repository, eventBus *EventBus, opts ...CatalogOption) *CatalogService {
	s := &CatalogService{
		repo:     repo,
		eventBus: eventBus,
		registry: loader.DefaultRegistry(),
		cast:     true,
		log:      log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest loads a .hspy or .blo file (or any file identified by content)
// and records it.
func (s *CatalogService) Ingest(ctx context.Context, path string) (*domain.Dataset, error) {
	res, err := loader.Load(ctx, path,
		loader.WithCastToElectronDiffraction(s.cast),
		loader.WithRegistry(s.registry),
	)
	if err != nil {
		return nil, err
	}

	if res.Notice != "" {
		s.log.WithFields(log.Fields{
			"path":   path,
			"format": res.Format.String(),
			"kind":   res.Kind.String(),
		}).Warn(res.Notice)
	}

	return s.record(ctx, path, res.Format, res.Signal, res.Kind, res.Notice)
}

// IngestMIB loads a Merlin scan with flyback correction and records it.
func (s *CatalogService) IngestMIB(ctx context.Context, path string, scanSize int) (*domain.Dataset, error) {
	sig, err := loader.LoadMIB(ctx, path, scanSize, s.mibOpts...)
	if err != nil {
		return nil, err
	}
	return s.RecordMIB(ctx, path, sig)
}

// RecordMIB records a Merlin scan that has already been loaded and
// corrected.
func (s *CatalogService) RecordMIB(ctx context.Context, path string, sig *domain.Signal) (*domain.Dataset, error) {
	if sig == nil {
		return nil, fmt.Errorf("recording %s: no signal", path)
	}
	return s.record(ctx, path, loader.FormatMIB, sig, loader.KindTyped, "")
}

func (s *CatalogService) record(ctx context.Context, path string, format loader.Format, sig *domain.Signal, kind loader.Kind, notice string) (*domain.Dataset, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	logger := s.log.WithField("path", path)

	energy, lambda := s.annotateWavelength(sig, logger)

	d := domain.NewDataset(xid.New().String(), path, format.String(), sig, kind.LoadKind(), notice)
	d.BeamEnergyKeV = energy
	d.WavelengthPM = lambda

	if err := s.repo.CreateDataset(ctx, d); err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"id":          d.ID,
		"signal_type": d.SignalType.String(),
		"shape":       d.Shape,
	}).Info("dataset ingested")

	s.eventBus.Publish(Event{
		Type: EventDatasetIngested,
		Payload: DatasetEvent{
			DatasetID:  d.ID,
			Path:       d.Path,
			SignalType: d.SignalType.String(),
			LoadKind:   string(d.LoadKind),
		},
	})

	return d, nil
}

// annotateWavelength derives the electron wavelength from the beam energy
// and stores it in the signal metadata. Missing or unusable energies leave
// the signal untouched.
func (s *CatalogService) annotateWavelength(sig *domain.Signal, logger log.FieldLogger) (energy, lambda *float64) {
	keV, ok := sig.Metadata.GetFloat(domain.MetaBeamEnergy)
	if !ok {
		return nil, nil
	}
	if math.IsNaN(keV) || math.IsInf(keV, 0) {
		logger.WithField("beam_energy_kev", keV).Warn("beam energy is not a finite number")
		return nil, nil
	}
	energy = &keV

	l, err := physics.Wavelength(physics.FromKiloelectronVolts(keV))
	if err != nil {
		logger.WithError(err).WithField("beam_energy_kev", keV).Warn("no wavelength for beam energy")
		return energy, nil
	}
	pm := physics.Picometres(l)
	sig.Metadata.Set(domain.MetaWavelength, pm)
	return energy, &pm
}

// Get retrieves a dataset by ID
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Dataset, error) {
	return s.repo.GetDataset(ctx, id)
}

// List returns datasets matching filter
func (s *CatalogService) List(ctx context.Context, filter domain.DatasetFilter) ([]*domain.Dataset, error) {
	return s.repo.ListDatasets(ctx, filter)
}

// Delete removes a dataset from the catalog. The file is left alone.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteDataset(ctx, id); err != nil {
		return err
	}

	s.log.WithField("id", id).Info("dataset deleted")
	s.eventBus.Publish(Event{
		Type:    EventDatasetDeleted,
		Payload: DatasetEvent{DatasetID: id},
	})

	return nil
}

// Metadata writes the metadata tree of a dataset in the named format
// ("yaml" or "json").
func (s *CatalogService) Metadata(ctx context.Context, id, format string, w io.Writer) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}

	d, err := s.repo.GetDataset(ctx, id)
	if err != nil {
		return err
	}

	if err := c.Export(d.Metadata, w); err != nil {
		return fmt.Errorf("export metadata: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the dataset does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
