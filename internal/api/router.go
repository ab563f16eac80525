// Package api exposes the document services over HTTP under /api/v1.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxBatchSize is the largest batch accepted by POST /docai/parse/batch.
const MaxBatchSize = 20

// NewRouter wires h into a router. /metrics is served outside /api/v1.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	r.Use(requestID)
	r.Use(accessLog)
	r.Use(recovery)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	api.HandleFunc("/ocr", h.OCR).Methods(http.MethodPost)
	api.HandleFunc("/docai/config", h.DocAIConfig).Methods(http.MethodGet)
	api.HandleFunc("/docai/parse", h.Parse).Methods(http.MethodPost)
	api.HandleFunc("/docai/parse/batch", h.ParseBatch).Methods(http.MethodPost)
	api.HandleFunc("/pipeline", h.Pipeline).Methods(http.MethodPost)
	api.HandleFunc("/pipeline/{id}/status", h.PipelineStatus).Methods(http.MethodGet)
	api.HandleFunc("/results/{id}", h.Results).Methods(http.MethodGet)

	return r
}
