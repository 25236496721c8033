// internal/api/http/status_handler.go
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"aci-dispatcher/internal/dispatch"
	"aci-dispatcher/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatsSource reports dispatch loop stats.
type StatsSource interface {
	Snapshot() dispatch.Stats
}

// StatusHandler serves the dispatcher's liveness and status endpoints.
type StatusHandler struct {
	source StatsSource
	queue  string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewStatusHandler creates a handler reporting on source.
func NewStatusHandler(source StatsSource, queue string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		source: source,
		queue:  queue,
		logger: logger.With("component", "status-handler"),
		tracer: otel.Tracer("aci-dispatcher-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers /status and /healthz on mux.
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/status", h.instrument("/status", http.HandlerFunc(h.handleStatus)))
	mux.Handle("/healthz", h.instrument("/healthz", http.HandlerFunc(h.handleHealthz)))
}

func (h *StatusHandler) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r.WithContext(ctx))

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

// handleStatus handles GET /status
func (h *StatusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := NewStatusResponse(h.queue, h.source.Snapshot())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("error encoding status", "error", err)
	}
}

// handleHealthz reports 200 while the loop runs and 503 once it stopped.
func (h *StatusHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.source.Snapshot().State == dispatch.StateStopped {
		http.Error(w, "stopped", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
