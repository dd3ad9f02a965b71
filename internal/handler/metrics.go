package handler

import (
	"net/http"
)

// MetricsHandler exposes Prometheus metrics.
type MetricsHandler struct {
	exporter http.Handler
}

// NewMetricsHandler wraps an exposition handler. A nil exporter means
// metrics are disabled and the endpoint answers 404.
func NewMetricsHandler(exporter http.Handler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// Metrics serves the Prometheus text format.
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeMessage(w, http.StatusNotFound, "Metrics disabled")
		return
	}
	h.exporter.ServeHTTP(w, r)
}
