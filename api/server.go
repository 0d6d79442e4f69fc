// Package api serves the admin endpoints of the plugin runtime and hands
// every other request to the live plugin route table.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcx/hotplug/log"
	"github.com/lcx/hotplug/plugin"
	"github.com/lcx/hotplug/route"
)

// Lifecycle is the part of plugin.Application the API drives.
type Lifecycle interface {
	Install(ctx context.Context, path string) (plugin.Info, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Uninstall(ctx context.Context, id string) error
	Plugins() []plugin.Info
	Plugin(id string) (plugin.Info, error)
	Entry(id, name string) ([]byte, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server is the HTTP front of the host.
type Server struct {
	router  *mux.Router
	app     Lifecycle
	routes  http.Handler
	metrics http.Handler
	srv     *http.Server
}

// NewServer listens on addr. Requests no admin route matches go to routes.
func NewServer(addr string, app Lifecycle, routes http.Handler, opts ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		app:    app,
		routes: routes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = s.routes

	plugins := s.router.PathPrefix("/plugins").Subrouter()
	plugins.HandleFunc("", s.handleListPlugins).Methods(http.MethodGet)
	plugins.HandleFunc("", s.handleInstall).Methods(http.MethodPost)
	plugins.HandleFunc("/{id}", s.handleGetPlugin).Methods(http.MethodGet)
	plugins.HandleFunc("/{id}", s.handleUninstall).Methods(http.MethodDelete)
	plugins.HandleFunc("/{id}/start", s.handleStart).Methods(http.MethodPost)
	plugins.HandleFunc("/{id}/stop", s.handleStop).Methods(http.MethodPost)
	plugins.HandleFunc("/{id}/entries", s.handleEntry).Methods(http.MethodGet).Queries("name", "{name}")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps lifecycle errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, plugin.ErrUnknownPlugin):
		status = http.StatusNotFound
	case errors.Is(err, plugin.ErrAlreadyInstalled):
		status = http.StatusConflict
	case errors.Is(err, route.ErrRouteRegistration):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
