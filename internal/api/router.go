// SPDX-License-Identifier: MIT

// Package api exposes the daemon's operational HTTP surface: liveness,
// readiness and Prometheus metrics. It carries no orchestration state.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dlgram/dlgram/internal/health"
)

// NewRouter builds the operational router.
func NewRouter(hm *health.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
