// internal/inspect/server.go
package inspect

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/go-chi/chi/v5"
)

// Keyboard codes understood by the control shim, matching the
// simulation library's own web server: space toggles pause, q ends.
const (
	KeySpace = 32
	KeyQ     = 81
)

// Server is the per-run inspection endpoint. It binds the run's own
// port, serves the latest simulation snapshot, and accepts the
// keyboard-style control commands the upstream viewer sends. The port
// is released as soon as the run stops.
type Server struct {
	run *registry.Run
	srv *http.Server
	ln  net.Listener
}

// Start binds the run's inspection port and begins serving.
func Start(run *registry.Run) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", run.Port()))
	if err != nil {
		return nil, fmt.Errorf("failed to bind inspection port %d: %w", run.Port(), err)
	}

	s := &Server{
		run: run,
		ln:  ln,
	}

	r := chi.NewRouter()
	r.Get("/simulation", s.handleSimulation)
	r.Get("/keyboard/{code}", s.handleKeyboard)
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{Handler: r}
	go func() {
		// Serve returns ErrServerClosed on Stop; the run is done
		// with the port either way.
		_ = s.srv.Serve(ln)
	}()
	return s, nil
}

// Stop closes the server and releases the inspection port
// immediately.
func (s *Server) Stop() {
	s.srv.Close()
}

// Addr returns the bound address of the inspection server.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// handleSimulation serves the worker's latest published snapshot. The
// payload is opaque to helios; the run state is served as a fallback
// when the worker has not published anything yet.
func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	if payload := s.run.Payload(); payload != nil {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.run.Snapshot())
}

// handleKeyboard applies a keyboard-style control command to the run.
func (s *Server) handleKeyboard(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, "invalid key code", http.StatusBadRequest)
		return
	}

	switch code {
	case KeySpace:
		s.toggle()
	case KeyQ:
		s.run.End()
	default:
		http.Error(w, "unsupported key code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.run.Snapshot())
}

func (s *Server) toggle() {
	switch s.run.Status() {
	case models.RunStatusRunning:
		s.run.Pause()
	case models.RunStatusPaused:
		s.run.Resume()
	}
}
