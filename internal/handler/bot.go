package handler

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/angeloszaimis/link-rotator/internal/metrics"
)

// BotPattern matches the link-preview crawlers of the common chat and social
// platforms.
var BotPattern = regexp.MustCompile(`(?i)facebookexternalhit|WhatsApp|TelegramBot|Twitterbot|Discordbot|Googlebot|bingbot`)

// BotPage is the Open Graph metadata shown to crawlers.
type BotPage struct {
	Title       string
	Description string
	Image       string
}

var botTemplate = template.Must(template.New("bot").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
{{- if .Image}}
<meta property="og:image" content="{{.Image}}">
{{- end}}
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
<h1>Redirecting...</h1>
</body>
</html>
`))

// BotGate answers crawler requests with the placeholder page before any
// other handler runs, so previews never consume a rotation slot or a fetch.
func BotGate(next http.Handler, page BotPage, logger *slog.Logger, collector *metrics.Collector) http.Handler {
	var buf bytes.Buffer
	if err := botTemplate.Execute(&buf, page); err != nil {
		panic(err)
	}
	body := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.UserAgent()
		if !BotPattern.MatchString(ua) {
			next.ServeHTTP(w, r)
			return
		}

		logger.Debug("Served bot placeholder",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("user_agent", ua))

		if collector != nil {
			collector.Emit(metrics.MetricEvent{Type: metrics.EventBotServed})
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}
