package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/mux"
)

func init() {
	logger.InitLogger()
}

func TestMonitoringEndpoints(t *testing.T) {
	tests := []struct {
		endpoint       string
		httpMethod     string
		expectedStatus int
	}{
		{
			endpoint:       "/metrics",
			httpMethod:     "GET",
			expectedStatus: http.StatusOK,
		},
		{
			endpoint:       "/metrics",
			httpMethod:     "POST",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			endpoint:       "/liveness",
			httpMethod:     "GET",
			expectedStatus: http.StatusOK,
		},
		{
			endpoint:       "/readiness",
			httpMethod:     "GET",
			expectedStatus: http.StatusOK,
		},
		{
			endpoint:       "/readiness",
			httpMethod:     "POST",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			endpoint:       "/debug/pprof/",
			httpMethod:     "GET",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.httpMethod+" "+tc.endpoint, func(t *testing.T) {
			req, err := http.NewRequest(tc.httpMethod, tc.endpoint, nil)
			assert.Equal(t, err, nil)

			rr := httptest.NewRecorder()

			cfg := config.GetConfig()
			apiMux := mux.NewRouter()
			monitoringServer := NewMonitoringServer(apiMux, cfg)
			monitoringServer.Routes()

			monitoringServer.router.ServeHTTP(rr, req)

			assert.Equal(t, rr.Code, tc.expectedStatus)
		})
	}
}

func TestReadinessFollowsChecks(t *testing.T) {
	databaseErr := errors.New("connection refused")

	monitoringServer := NewMonitoringServer(mux.NewRouter(), config.GetConfig()).
		WithReadinessCheck("database", func(ctx context.Context) error { return databaseErr })
	monitoringServer.Routes()

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/readiness", nil)
	monitoringServer.router.ServeHTTP(rr, req)
	assert.Equal(t, rr.Code, http.StatusServiceUnavailable)

	databaseErr = nil

	rr = httptest.NewRecorder()
	monitoringServer.router.ServeHTTP(rr, req)
	assert.Equal(t, rr.Code, http.StatusOK)
}

func TestProfilerEndpointWhenEnabled(t *testing.T) {
	cfg := config.GetConfig()
	cfg.Profile = true

	monitoringServer := NewMonitoringServer(mux.NewRouter(), cfg)
	monitoringServer.Routes()

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	monitoringServer.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)
}
