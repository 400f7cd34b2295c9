package main

import (
	"net/http"

	"github.com/angeloszaimis/link-rotator/internal/handler"
)

func setupRouter(a *app) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /proof", handler.Proof(a.engine.Fallback()))
	mux.Handle("GET /preview", handler.Preview(a.cache))
	mux.Handle("GET /stats", a.collector.Handler(a.engine.Strategy().Name()))
	mux.Handle("GET /metrics", a.prom.Handler())
	mux.Handle("GET /breakers", handler.Breakers(a.breakers))

	if a.cfg.Admin.Enabled {
		mux.Handle("POST /admin/reset", handler.Reset(a.counter, a.log))
	}

	mux.Handle("/", handler.NewRedirectHandler(a.log, a.engine, a.collector))

	var h http.Handler = mux
	if a.cfg.Bot.BypassEnabled {
		h = handler.BotGate(h, botPage(a.cfg.Bot), a.log, a.collector)
	}

	return handler.RequestID(h)
}
