package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

// routes are the path labels reported as-is; everything else collapses to
// a parameterised label or "other" so label cardinality stays bounded.
var routes = map[string]bool{
	"/api/v1/search":           true,
	"/api/v1/compare":          true,
	"/api/v1/corpus/stats":     true,
	"/api/v1/corpus/reload":    true,
	"/api/v1/runs":             true,
	"/api/v1/cache/stats":      true,
	"/api/v1/cache/invalidate": true,
	"/api/v1/analytics":        true,
	"/health":                  true,
	"/ready":                   true,
	"/metrics":                 true,
}

// Metrics records request count and latency per route plus the in-flight
// gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				m.HTTPRequestsInFlight.Dec()
				route := routeLabel(r.URL.Path)
				m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

func routeLabel(path string) string {
	if routes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/runs/") {
		return "/api/v1/runs/{id}"
	}
	return "other"
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}
