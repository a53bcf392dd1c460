package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusCodeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myelectricaldata_importer_http_status_code_counter",
		Help: "The number of http status codes per route",
	}, []string{"route", "status_code"})
)

// MetricsMiddleware counts the answers of the monitoring server
type MetricsMiddleware struct {
}

func (mw *MetricsMiddleware) RecordHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {

		resp := &wrappedResponseWriter{w, http.StatusOK}

		next.ServeHTTP(resp, req)

		statusCodeCounter.With(prometheus.Labels{
			"route":       routeTemplate(req),
			"status_code": strconv.Itoa(resp.statusCode)}).Inc()
	})
}

// routeTemplate keeps the label cardinality bounded on unmatched paths
func routeTemplate(req *http.Request) string {
	route := mux.CurrentRoute(req)
	if route == nil {
		return "unmatched"
	}
	template, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return template
}

type wrappedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (ww *wrappedResponseWriter) WriteHeader(status int) {
	ww.statusCode = status
	ww.ResponseWriter.WriteHeader(status)
}
