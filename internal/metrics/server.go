package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finstack/pkg/logging"
)

// StatusProvider supplies the current service status for /services
type StatusProvider func() interface{}

// Server exposes the supervisor's metrics and status over HTTP
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
}

// NewServer builds the HTTP server on the given port
func NewServer(port int, sup *Supervisor, status StatusProvider, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(sup.Registry(), promhttp.HandlerOpts{}))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	router.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var payload interface{}
		if status != nil {
			payload = status()
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}).Methods("GET")

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.WithField("component", "metrics"),
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("metrics server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
