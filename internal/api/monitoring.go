package api

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency of the service is usable
type ReadinessCheck func(ctx context.Context) error

type MonitoringServer struct {
	router *mux.Router
	config *config.Config
	checks map[string]ReadinessCheck
}

func NewMonitoringServer(r *mux.Router, cfg *config.Config) *MonitoringServer {
	return &MonitoringServer{
		router: r,
		config: cfg,
		checks: map[string]ReadinessCheck{},
	}
}

// WithReadinessCheck makes /readiness fail while the named check fails
func (s *MonitoringServer) WithReadinessCheck(name string, check ReadinessCheck) *MonitoringServer {
	s.checks[name] = check
	return s
}

func (s *MonitoringServer) Routes() {
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/liveness", s.handleLiveness()).Methods(http.MethodGet)
	s.router.HandleFunc("/readiness", s.handleReadiness()).Methods(http.MethodGet)

	if s.config.Profile {
		logger.Log.Warn("WARNING: Enabling the profiler endpoint!!")
		s.router.PathPrefix("/debug").Handler(http.DefaultServeMux)
	}
}

func (s *MonitoringServer) handleLiveness() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func (s *MonitoringServer) handleReadiness() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
		defer cancel()

		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				logger.Log.WithFields(logrus.Fields{"check": name, "error": err}).Warn("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
