package middleware

import (
	"net/http"
	"time"

	"petshop-kart/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Metrics records request counts and latency by route pattern, so that
// path parameters do not multiply label values.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			m.Observe(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
