package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const readHeaderTimeout = 5 * time.Second

// StartHTTPServer serves handler in the background, a listen failure is fatal
func StartHTTPServer(addr, name string, handler *mux.Router) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Log.Infof("Starting %s server:  %s", name, addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithFields(logrus.Fields{"error": err}).Fatalf("%s server error", name)
		}
	}()

	return srv
}

func ShutdownHTTPServer(ctx context.Context, name string, srv *http.Server) {
	logger.Log.Infof("Shutting down %s server", name)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Infof("Error shutting down %s server", name)
	}
}

// GetHostname falls back to "unknown" so client ids stay well formed
func GetHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Unable to read the hostname")
		return "unknown"
	}

	return name
}
