package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/angeloszaimis/link-rotator/internal/circuitbreaker"
	"github.com/angeloszaimis/link-rotator/internal/destination"
	"github.com/angeloszaimis/link-rotator/internal/rotator"
)

// Resetter resets rotation state. strategy.Counter satisfies it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// BreakerStatus lists source circuit breakers. *circuitbreaker.Registry
// satisfies it.
type BreakerStatus interface {
	Status() []circuitbreaker.OriginStatus
}

func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Proof redirects straight to the fallback so operators can check it.
func Proof(fallback destination.Destination) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", fallback.String())
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusFound)
	}
}

// Preview lists the current candidates as numbered plain text. Failures are
// reported with a 500 and the error message.
func Preview(source rotator.ListSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := source.Get(r.Context())
		if err != nil {
			http.Error(w, "Error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Total links: %d\n", len(list))
		for i, c := range list {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(b.String()))
	}
}

// Reset restarts the sequential rotation from the first candidate.
func Reset(resetter Resetter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := resetter.Reset(r.Context()); err != nil {
			logger.Error("Failed to reset rotation", slog.String("error", err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		logger.Info("Rotation reset", slog.String("request_id", RequestIDFrom(r.Context())))
		w.WriteHeader(http.StatusNoContent)
	}
}

// Breakers reports the state of every source circuit breaker as JSON.
func Breakers(status BreakerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := sonic.Marshal(status.Status())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	}
}
