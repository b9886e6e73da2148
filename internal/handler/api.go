package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"diffkit/internal/service"
)

// GetWavelength converts accelerating voltages to electron wavelengths.
// Voltages come from repeated voltage= parameters (V) or kv= parameters
// (kV); both may be mixed and are answered in request order, volts first.
func GetWavelength(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var volts []float64
	for _, p := range []struct {
		key   string
		scale float64
	}{{"voltage", 1}, {"kv", 1e3}} {
		for _, raw := range q[p.key] {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				writeError(w, "Invalid voltage", fmt.Sprintf("%s=%q is not a number", p.key, raw), http.StatusBadRequest)
				return
			}
			volts = append(volts, v*p.scale)
		}
	}
	if len(volts) == 0 {
		writeError(w, "Voltage is required", "pass voltage=<V> or kv=<kV>", http.StatusBadRequest)
		return
	}

	entries, err := service.Wavelengths(volts)
	if err != nil {
		writeError(w, "Invalid voltage", err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, entries, http.StatusOK)
}
