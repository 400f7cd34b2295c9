package metrics

import (
	"net/http"

	"github.com/bytedance/sonic"
)

// Handler serves the JSON snapshot.
func (c *Collector) Handler(strategy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := sonic.Marshal(c.Snapshot(strategy))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
