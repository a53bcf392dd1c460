package middlewares

import (
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MetricsMiddleware", func() {

	var router *mux.Router

	BeforeEach(func() {
		mw := &MetricsMiddleware{}

		router = mux.NewRouter()
		router.Use(mw.RecordHTTPMetrics)
		router.HandleFunc("/readiness", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		router.HandleFunc("/liveness", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
	})

	It("counts the status code written by the handler", func() {
		counter := statusCodeCounter.WithLabelValues("/readiness", "503")
		before := counterValue(counter)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

		Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(counterValue(counter)).To(Equal(before + 1))
	})

	It("defaults to 200 when the handler never writes a header", func() {
		counter := statusCodeCounter.WithLabelValues("/liveness", "200")
		before := counterValue(counter)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/liveness", nil))

		Expect(counterValue(counter)).To(Equal(before + 1))
	})
})

func counterValue(counter prometheus.Counter) float64 {
	var metric dto.Metric
	Expect(counter.Write(&metric)).To(Succeed())
	return metric.GetCounter().GetValue()
}
