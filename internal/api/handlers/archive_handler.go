// internal/api/handlers/archive_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fawad-mazhar/helios/internal/storage/postgres"
)

const defaultArchiveLimit = 100

type ArchiveHandler struct {
	db *postgres.Client
}

func NewArchiveHandler(db *postgres.Client) *ArchiveHandler {
	return &ArchiveHandler{
		db: db,
	}
}

// ListRuns serves the most recently archived terminal runs.
func (h *ArchiveHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultArchiveLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.db.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list archived runs", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(runs)
}
