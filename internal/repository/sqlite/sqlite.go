package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"diffkit/internal/domain"
	"diffkit/internal/repository"

	_ "modernc.org/sqlite"
)

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository. dbPath ":memory:" opens a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		signal_type TEXT NOT NULL DEFAULT '',
		load_kind TEXT NOT NULL,
		notice TEXT,
		shape JSON NOT NULL,
		navigation_dims INTEGER NOT NULL DEFAULT 0,
		beam_energy_kev REAL,
		wavelength_pm REAL,
		metadata JSON,
		loaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_format ON datasets(format);
	CREATE INDEX IF NOT EXISTS idx_datasets_signal_type ON datasets(signal_type);
	CREATE INDEX IF NOT EXISTS idx_datasets_loaded_at ON datasets(loaded_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateDataset inserts a new catalog record
func (r *Repository) CreateDataset(ctx context.Context, d *domain.Dataset) error {
	shape, err := json.Marshal(d.Shape)
	if err != nil {
		return fmt.Errorf("failed to marshal shape: %w", err)
	}
	metadataJSON, err := jsonColumn(d.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO datasets (id, path, format, signal_type, load_kind, notice, shape,
			navigation_dims, beam_energy_kev, wavelength_pm, metadata, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Path, d.Format, string(d.SignalType), string(d.LoadKind), optional(d.Notice), string(shape),
		d.NavigationDim, fromPtr(d.BeamEnergyKeV), fromPtr(d.WavelengthPM), metadataJSON,
		formatTime(d.LoadedAt))
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	return nil
}

const datasetColumns = `id, path, format, signal_type, load_kind, notice, shape,
	navigation_dims, beam_energy_kev, wavelength_pm, metadata, loaded_at`

// GetDataset retrieves a dataset by ID
func (r *Repository) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id)

	d, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDatasets returns datasets matching filter, newest first
func (r *Repository) ListDatasets(ctx context.Context, filter domain.DatasetFilter) ([]*domain.Dataset, error) {
	var (
		where []string
		args  []any
	)
	if filter.Format != "" {
		where = append(where, "format = ?")
		args = append(args, filter.Format)
	}
	if filter.SignalType != nil {
		where = append(where, "signal_type = ?")
		args = append(args, string(*filter.SignalType))
	}
	if filter.LoadKind != "" {
		where = append(where, "load_kind = ?")
		args = append(args, string(filter.LoadKind))
	}

	query := `SELECT ` + datasetColumns + ` FROM datasets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY loaded_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	datasets := []*domain.Dataset{}
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}

	return datasets, nil
}

// DeleteDataset removes a dataset
func (r *Repository) DeleteDataset(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("dataset %s: %w", id, repository.ErrNotFound)
	}

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(s scanner) (*domain.Dataset, error) {
	var (
		d                   domain.Dataset
		signalType, kind    string
		notice, metadata    sql.Null[string]
		shape, loadedAt     string
		beamEnergy, lambdaP sql.Null[float64]
	)

	err := s.Scan(&d.ID, &d.Path, &d.Format, &signalType, &kind, &notice, &shape,
		&d.NavigationDim, &beamEnergy, &lambdaP, &metadata, &loadedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}

	d.SignalType = domain.SignalType(signalType)
	d.LoadKind = domain.LoadKind(kind)
	d.Notice = orZero(notice)
	d.BeamEnergyKeV = toPtr(beamEnergy)
	d.WavelengthPM = toPtr(lambdaP)

	if err := json.Unmarshal([]byte(shape), &d.Shape); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shape: %w", err)
	}

	var dict map[string]any
	if err := decodeJSONColumn(metadata, &dict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	d.Metadata = domain.MetadataFromDict(dict)

	if d.LoadedAt, err = parseTime(loadedAt); err != nil {
		return nil, fmt.Errorf("failed to parse loaded_at: %w", err)
	}

	return &d, nil
}
