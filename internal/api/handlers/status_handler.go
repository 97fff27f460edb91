// internal/api/handlers/status_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/go-chi/chi/v5"
)

type StatusHandler struct {
	registry *registry.Registry
}

func NewStatusHandler(reg *registry.Registry) *StatusHandler {
	return &StatusHandler{
		registry: reg,
	}
}

// GetSummary serves the aggregate view the dashboard polls once per
// second. It is read-only and derived on demand.
func (h *StatusHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	report := h.registry.Report()
	json.NewEncoder(w).Encode(report)
}

// GetRun serves the detail view for a single run.
func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}

	run, ok := h.registry.Get(port)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(run.Snapshot())
}
