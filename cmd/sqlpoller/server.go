package main

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
	"github.com/ajitpratap0/sqlpoller/pkg/observability"
)

// healthReporter is satisfied by *pipeline.Runner
type healthReporter interface {
	Health() core.HealthStatus
	Healthy() bool
}

// newStatusServer serves /metrics and /healthz
func newStatusServer(addr string, hr healthReporter) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := hr.Health()
		w.Header().Set("Content-Type", "application/json")
		if !hr.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           observability.TracingMiddleware("sqlpoller")(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
