package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the chat endpoints plus /healthz and /metrics.
func NewRouter(h *Handler, metrics *Metrics) http.Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}

	mux := http.NewServeMux()
	mux.Handle("/register", h.instrument("register", metrics, h.Register))
	mux.Handle("/send_message", h.instrument("send_message", metrics, h.SendMessage))
	mux.Handle("/get_messages", h.instrument("get_messages", metrics, h.GetMessages))
	mux.Handle("/healthz", h.instrument("healthz", metrics, h.Health))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}))
	return mux
}
