// internal/api/handlers/run_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fawad-mazhar/helios/internal/lifecycle"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/fawad-mazhar/helios/internal/storage/leveldb"
	"github.com/go-chi/chi/v5"
)

// RunHandler serves the one-shot control commands. Commands are
// fire-and-forget: the dashboard re-polls the summary to observe
// their effect. A command on an unknown or terminal run is a no-op,
// not an error.
type RunHandler struct {
	controller *lifecycle.Controller
	registry   *registry.Registry
	store      *leveldb.Client
}

func NewRunHandler(controller *lifecycle.Controller, reg *registry.Registry, store *leveldb.Client) *RunHandler {
	return &RunHandler{
		controller: controller,
		registry:   reg,
		store:      store,
	}
}

// CommandAll applies a named command to every eligible run.
func (h *RunHandler) CommandAll(command string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.controller.ApplyAll(command); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "command dispatched",
			"command": command + "_all",
		})
	}
}

// CommandSim applies a named command to the run on the given port.
func (h *RunHandler) CommandSim(command string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		port, err := strconv.Atoi(chi.URLParam(r, "port"))
		if err != nil {
			http.Error(w, "invalid port", http.StatusBadRequest)
			return
		}

		if err := h.controller.Apply(command, port); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"message": "command dispatched",
			"command": command,
			"port":    strconv.Itoa(port),
		})
	}
}

// FetchSim retrieves a run's result payload: the live registry entry
// first, then the persisted store for runs that are already gone.
func (h *RunHandler) FetchSim(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}

	if run, ok := h.registry.Get(port); ok {
		if result := run.Result(); result != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(result)
			return
		}
	}

	if h.store != nil {
		result, err := h.store.GetResult(port)
		if err != nil {
			http.Error(w, "failed to read result store", http.StatusInternalServerError)
			return
		}
		if result != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(result)
			return
		}
	}

	http.Error(w, "no result for port", http.StatusNotFound)
}
