package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"petshop-kart/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()

	r := chi.NewRouter()
	r.Use(Metrics(metrics.NewHTTPMetrics(registry)))
	r.Delete("/api/cart/items/{lineId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/cart/items/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	expected := `
# HELP petshop_http_requests_total HTTP requests grouped by method, route and status.
# TYPE petshop_http_requests_total counter
petshop_http_requests_total{method="DELETE",route="/api/cart/items/{lineId}",status="204"} 3
petshop_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "petshop_http_requests_total"))
}
