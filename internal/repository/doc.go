// Package repository defines the data access interface for the dataset
// catalog.
//
// The catalog keeps one record per ingested file: where it came from, how
// it was dispatched, its shape, the beam energy and derived wavelength, and
// a copy of its metadata tree. Signal data itself is never stored.
//
// # SQLite Implementation
//
// The sqlite subpackage implements Repository on the pure-Go
// modernc.org/sqlite driver with WAL mode. Shape and metadata are stored as
// JSON columns; the fields used for filtering have their own indexed
// columns. The schema is migrated on open.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
