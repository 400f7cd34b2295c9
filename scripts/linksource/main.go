// Linksource serves a generated link list for running the rotator locally.
//
// Usage:
//
//	go run ./scripts/linksource -port 8081 -links 5 -format csv
//	go run ./scripts/linksource -port 8081 -fail-every 3
//
// The list is served on /links.txt. With -fail-every N every Nth request
// answers 503 to exercise the fallback and circuit breaker paths.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/angeloszaimis/link-rotator/pkg/logger"
)

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	links := flag.Int("links", 5, "number of links to serve")
	format := flag.String("format", "plain", "plain, csv or markdown")
	failEvery := flag.Int("fail-every", 0, "answer 503 on every Nth request (0 disables)")
	flag.Parse()

	log := logger.New("info", false, "dev")

	body, err := render(*format, *links)
	if err != nil {
		log.Error("invalid flags", slog.Any("err", err))
		os.Exit(1)
	}

	var served atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /links.txt", func(w http.ResponseWriter, r *http.Request) {
		n := served.Add(1)
		if *failEvery > 0 && n%int64(*failEvery) == 0 {
			log.Info("failing request", slog.Int64("n", n))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		log.Info("serving links", slog.Int64("n", n), slog.String("user_agent", r.UserAgent()))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(body)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting link source", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func render(format string, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("links must be at least 1")
	}

	var out []byte
	for i := 1; i <= n; i++ {
		link := fmt.Sprintf("https://shop.example.test/item/%d", i)
		switch format {
		case "plain":
			out = fmt.Appendf(out, "%s\n", link)
		case "csv":
			out = fmt.Appendf(out, "\"%s\",\n", link)
		case "markdown":
			out = fmt.Appendf(out, "- [Item %d](%s)\n", i, link)
		default:
			return nil, fmt.Errorf("unknown format %q", format)
		}
	}

	return out, nil
}
