package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/kringle/internal/metrics"
)

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Metrics(m)(mux)

	for _, path := range []string{"/groups/1", "/groups/2", "/nowhere"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	want := `kringle_http_requests_total{method="GET",route="GET /groups/{id}",status="418"} 2`
	if !strings.Contains(body, want) {
		t.Errorf("missing %s in exposition", want)
	}
	if !strings.Contains(body, `route="unmatched",status="404"`) {
		t.Error("unmatched request not recorded")
	}
}
