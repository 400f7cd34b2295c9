package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/link-rotator/internal/metrics"
	"github.com/angeloszaimis/link-rotator/internal/rotator"
)

// RedirectHandler answers every request with a 302 to the destination the
// engine resolves. It never returns an error status.
type RedirectHandler struct {
	logger           *slog.Logger
	engine           *rotator.Engine
	metricsCollector *metrics.Collector
}

func (rh *RedirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	referer := refererOf(r)

	res := rh.engine.Resolve(r.Context(), referer)
	duration := time.Since(start)

	w.Header().Set("Location", res.Destination.String())
	w.Header().Set("Cache-Control", "no-store")
	if rh.engine.Tagging() {
		w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
	}
	w.WriteHeader(http.StatusFound)

	attrs := []any{
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("from", extractClientIP(r)),
		slog.String("path", r.URL.Path),
		slog.String("strategy", rh.engine.Strategy().Name()),
		slog.Int("index", res.Index),
		slog.String("destination", res.Destination.String()),
		slog.Bool("tagged", res.Tagged),
		slog.Duration("duration", duration),
	}

	if res.FellBack() {
		reason := rotator.Reason(res.Err)
		rh.logger.Info("Redirected to fallback", append(attrs, slog.String("reason", reason))...)
		rh.emitEvent(metrics.MetricEvent{
			Type:        metrics.EventFallbackServed,
			Timestamp:   start,
			Destination: res.Destination.String(),
			Reason:      reason,
			Duration:    duration,
		})
		return
	}

	rh.logger.Info("Redirected", attrs...)
	rh.emitEvent(metrics.MetricEvent{
		Type:        metrics.EventRedirectServed,
		Timestamp:   start,
		Destination: res.Candidate,
		Duration:    duration,
	})
}

func (rh *RedirectHandler) emitEvent(event metrics.MetricEvent) {
	if rh.metricsCollector == nil {
		return
	}

	rh.metricsCollector.Emit(event)
}

// refererOf reads Referer, accepting the correctly spelled Referrer as well.
func refererOf(r *http.Request) string {
	if ref := r.Header.Get("Referer"); ref != "" {
		return ref
	}

	return r.Header.Get("Referrer")
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewRedirectHandler builds the redirect endpoint. collector may be nil.
func NewRedirectHandler(logger *slog.Logger, engine *rotator.Engine, collector *metrics.Collector) *RedirectHandler {
	return &RedirectHandler{
		logger:           logger,
		engine:           engine,
		metricsCollector: collector,
	}
}
