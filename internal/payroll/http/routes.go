package payrollhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/sitepay/internal/platform/httpx"
)

const exportRateWindow = time.Minute

// MountRoutes registers the payroll endpoints. Exports are rate limited per
// client IP.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.exportLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)

	r.Get("/reports/{date}", h.getReport)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/reports/{date}/export", h.exportReport)
	})
	r.Get("/review", h.listReview)
	r.Get("/entries/{id}", h.getEntry)
	r.Get("/entries/{id}/history", h.entryHistory)
	r.Post("/entries/{id}/review", h.markReviewed)
	r.Post("/records", h.ingestRecords)
	r.Post("/records/import", h.importRecords)
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
