package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type installRequest struct {
	Path string `json:"path"`
	// Start starts the plugin right after install.
	Start bool `json:"start"`
}

func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Plugins())
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	info, err := s.app.Plugin(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be {\"path\": \"...\"}"})
		return
	}
	info, err := s.app.Install(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Start {
		if err := s.app.Start(r.Context(), info.ID); err != nil {
			writeError(w, err)
			return
		}
		if info, err = s.app.Plugin(info.ID); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.app.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.app.Stop)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	id := mux.Vars(r)["id"]
	if err := op(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	info, err := s.app.Plugin(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Uninstall(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEntry returns raw archive bytes; a missing entry is an empty 200.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, err := s.app.Entry(vars["id"], vars["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
