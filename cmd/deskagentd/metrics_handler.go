package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promMetricsHandler exposes every promauto-registered collector in
// internal/observability/metrics.go on the default registry; no custom
// registry wiring is needed since NewMetrics registers globally.
func promMetricsHandler() http.Handler {
	return promhttp.Handler()
}
