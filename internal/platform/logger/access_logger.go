package logger

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

// AccessLoggerMiddleware logs every monitoring request, server errors at WARN
func AccessLoggerMiddleware(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, logrusAccessLogAdapter)
}

// handlers only writes to an io.Writer, the formatter callback is used to
// emit a logrus entry instead
func logrusAccessLogAdapter(_ io.Writer, params handlers.LogFormatterParams) {
	entry := Log.WithFields(logrus.Fields{
		"remote_addr": params.Request.RemoteAddr,
		"method":      params.Request.Method,
		"path":        params.URL.Path,
		"status":      params.StatusCode,
		"size":        params.Size,
		"user_agent":  params.Request.UserAgent(),
	})

	if params.StatusCode >= http.StatusInternalServerError {
		entry.Warn("access")
		return
	}
	entry.Debug("access")
}
