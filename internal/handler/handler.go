package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"diffkit/internal/codec"
	"diffkit/internal/domain"
	"diffkit/internal/loader"
	"diffkit/internal/service"
)

// CatalogHandler handles dataset API requests
type CatalogHandler struct {
	svc *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// Routes registers the API on mux. events serves the SSE stream.
func Routes(mux *http.ServeMux, h *CatalogHandler, events http.Handler) {
	mux.HandleFunc("GET /api/wavelength", GetWavelength)

	mux.HandleFunc("GET /api/datasets", h.ListDatasets)
	mux.HandleFunc("POST /api/datasets", h.CreateDataset)
	mux.HandleFunc("GET /api/datasets/{id}", h.GetDataset)
	mux.HandleFunc("DELETE /api/datasets/{id}", h.DeleteDataset)
	mux.HandleFunc("GET /api/datasets/{id}/metadata", h.GetMetadata)

	if events != nil {
		mux.Handle("GET /api/events", events)
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// IngestRequest asks the server to load a file it can read. A positive
// ScanSize routes the file through the MIB flyback loader.
type IngestRequest struct {
	Path     string `json:"path"`
	ScanSize int    `json:"scan_size,omitempty"`
}

// ListDatasets returns catalog entries, newest first
func (h *CatalogHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, "Invalid filter", err.Error(), http.StatusBadRequest)
		return
	}

	datasets, err := h.svc.List(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("failed to list datasets")
		writeError(w, "Failed to list datasets", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, datasets, http.StatusOK)
}

func parseFilter(r *http.Request) (domain.DatasetFilter, error) {
	q := r.URL.Query()
	filter := domain.DatasetFilter{
		Format:   q.Get("format"),
		LoadKind: domain.LoadKind(q.Get("load_kind")),
	}

	if raw, ok := q["signal_type"]; ok {
		name := raw[0]
		if name == "generic" {
			name = ""
		}
		t, err := domain.ParseSignalType(name)
		if err != nil {
			return filter, err
		}
		filter.SignalType = &t
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

// GetDataset returns a single dataset
func (h *CatalogHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "Invalid dataset ID", "Dataset ID is required", http.StatusBadRequest)
		return
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if service.IsNotFound(err) {
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.WithError(err).WithField("id", id).Error("failed to get dataset")
		writeError(w, "Failed to get dataset", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

// CreateDataset loads a file from the server's filesystem and records it
func (h *CatalogHandler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, "Path is required", "", http.StatusBadRequest)
		return
	}

	var (
		d   *domain.Dataset
		err error
	)
	if req.ScanSize > 0 {
		d, err = h.svc.IngestMIB(r.Context(), req.Path, req.ScanSize)
	} else {
		d, err = h.svc.Ingest(r.Context(), req.Path)
	}
	if err != nil {
		status := ingestStatus(err)
		if status == http.StatusInternalServerError {
			log.WithError(err).WithField("path", req.Path).Error("failed to ingest dataset")
		}
		writeError(w, "Failed to load file", err.Error(), status)
		return
	}

	writeJSON(w, d, http.StatusCreated)
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, loader.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, loader.ErrUseMIBLoader),
		errors.Is(err, loader.ErrInvalidScan),
		errors.Is(err, loader.ErrScanMismatch):
		return http.StatusBadRequest
	case errors.Is(err, loader.ErrCorruptFile),
		errors.Is(err, loader.ErrNoExperiment):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// DeleteDataset removes a dataset from the catalog
func (h *CatalogHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "Invalid dataset ID", "Dataset ID is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if service.IsNotFound(err) {
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.WithError(err).WithField("id", id).Error("failed to delete dataset")
		writeError(w, "Failed to delete dataset", err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMetadata exports a dataset's metadata tree as YAML (default) or JSON
func (h *CatalogHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.URL.Query().Get("format")

	var buf bytes.Buffer
	if err := h.svc.Metadata(r.Context(), id, format, &buf); err != nil {
		switch {
		case errors.Is(err, codec.ErrUnknownFormat):
			writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		case service.IsNotFound(err):
			writeError(w, "Not found", err.Error(), http.StatusNotFound)
		default:
			log.WithError(err).WithField("id", id).Error("failed to export metadata")
			writeError(w, "Failed to export metadata", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	contentType := "application/yaml"
	if format == "json" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.WithError(err).Warn("failed to write metadata response")
	}
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode JSON")
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error:   error,
		Details: details,
	}, statusCode)
}
