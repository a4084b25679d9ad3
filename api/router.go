// Package api wires the introspection HTTP endpoints of the advisor.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/parkadvisor/api/decisions"
	"github.com/kilianp07/parkadvisor/core/decisionlog"
)

// RouterConfig holds the dependencies of the router.
type RouterConfig struct {
	Store decisionlog.Store
	// Token protects the decision log when non-empty.
	Token string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Ready reports whether the service can take decisions.
	Ready func() error
}

// NewRouter creates the chi router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := map[string]string{"status": "ok"}
		if cfg.Ready != nil {
			if err := cfg.Ready(); err != nil {
				status = map[string]string{"status": "unavailable", "error": err.Error()}
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	if cfg.Store != nil {
		r.Method(http.MethodGet, "/api/decisions", decisions.NewHandler(cfg.Store, cfg.Token))
	}
	return r
}
