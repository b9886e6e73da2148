// Package service implements the catalog logic for diffkit.
//
// CatalogService sits between the CLI/HTTP handlers and the repository: it
// loads files through the loader package, annotates the beam energy with
// the relativistic electron wavelength, records the dataset and publishes
// an event on the EventBus. Loader fallbacks (generic signals, unknown
// suffixes) are logged, never silently dropped.
//
// # Event System
//
// Events are delivered to subscribers without blocking; the HTTP hub turns
// them into Server-Sent Events.
package service
