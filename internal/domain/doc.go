// Package domain defines the core types for diffraction data handling.
//
// # Signals
//
// Signal is an n-dimensional float64 array with calibrated axes and a
// metadata tree. Leading axes are navigation axes (scan positions); the
// remaining axes form the signal, usually a 2D diffraction pattern.
// SignalType tags what the data represents: electron diffraction patterns,
// template matching results, diffraction vectors, or a generic signal.
//
// # Metadata
//
// Metadata is a nested dictionary addressed by dotted paths such as
// "Acquisition_instrument.TEM.beam_energy". New signals can inherit the
// metadata of an existing one through WithMetadataFrom; sources that carry
// no metadata (plain arrays) are ignored.
//
// # Catalog
//
// Dataset is the catalog record kept for every ingested file, with the
// derived beam energy and electron wavelength when they are known.
//
// # Design Principles
//
// - No database or file format dependencies
// - Values are copied on the way in and out of Metadata
package domain
