package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/analytics", func(ar chi.Router) {
		ar.Get("/time-series-metrics", h.handleTimeSeries)
		ar.Get("/product-break-even", h.handleBreakeven)
		ar.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/time-series-metrics/export.csv", h.handleTimeSeriesCSV)
			gr.Get("/product-break-even/export.csv", h.handleBreakevenCSV)
		})
		if h.invalidator != nil {
			ar.Post("/events", h.handleEvent)
			ar.Post("/cache/bump", h.handleBump)
		}
	})
}
