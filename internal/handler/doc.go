// Package handler implements the HTTP API for the diffraction catalog.
//
// # Routes
//
//	GET    /api/wavelength?voltage=V&kv=kV   electron wavelengths
//	GET    /api/datasets                     list (format, signal_type, load_kind, limit)
//	POST   /api/datasets                     ingest {"path", "scan_size"}
//	GET    /api/datasets/{id}                one dataset
//	DELETE /api/datasets/{id}                remove from the catalog
//	GET    /api/datasets/{id}/metadata       metadata tree (?format=yaml|json)
//	GET    /api/events                       server-sent events
//
// Success responses are JSON with 200 or 201. Errors are JSON objects with
// {error, details} and a matching status code.
//
// Chain, Recover, CORS and Logger are the middleware the serve command wraps
// around the mux.
package handler
