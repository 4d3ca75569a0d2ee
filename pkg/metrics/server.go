package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const indexPage = `<html><head><title>search-dialect</title></head><body>
<h1>search-dialect metrics</h1><p><a href="/metrics">/metrics</a></p>
</body></html>`

// NewServer returns a server exposing g on /metrics. A nil g means the
// default registry.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	scrape := Handler()
	if g != nil {
		scrape = HandlerFor(g)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", scrape)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexPage)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// StartServer serves the default registry on port in the background.
func StartServer(port int) (shutdown func(context.Context) error) {
	server := NewServer(fmt.Sprintf(":%d", port), nil)
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}
