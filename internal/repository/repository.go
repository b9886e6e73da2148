package repository

import (
	"context"
	"errors"

	"diffkit/internal/domain"
)

// ErrNotFound is returned when a dataset does not exist
var ErrNotFound = errors.New("not found")

// Repository defines the interface for catalog data access
type Repository interface {
	// Read operations
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)
	ListDatasets(ctx context.Context, filter domain.DatasetFilter) ([]*domain.Dataset, error)

	// Write operations
	CreateDataset(ctx context.Context, d *domain.Dataset) error
	DeleteDataset(ctx context.Context, id string) error

	// Close releases resources
	Close() error
}
