package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/odyssey-erp/sitepay/internal/observability"
	payrollhttp "github.com/odyssey-erp/sitepay/internal/payroll/http"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:         &Config{AppEnv: "test"},
		PayrollHandler: payrollhttp.NewHandler(nil, payrollhttp.Config{}),
		Metrics:        observability.NewMetrics(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rr.Code)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("expected secure headers, got %v", rr.Header())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payroll/reports/not-a-date", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "sitepay_http_requests_total") {
		t.Fatalf("expected request metrics in /metrics output")
	}
}
