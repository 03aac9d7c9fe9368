package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"meters-poller/internal/logger"
)

// Server exposes /metrics and /health over HTTP
type Server struct {
	srv *http.Server
}

// NewServer builds the HTTP server. A nil handler leaves its route unregistered.
func NewServer(port int, metricsHandler, healthHandler http.Handler) *Server {
	mux := http.NewServeMux()
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	if healthHandler != nil {
		mux.Handle("/health", healthHandler)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html>
<head><title>meters-poller</title></head>
<body>
<h1>meters-poller</h1>
<ul>
<li><a href="/health">Health Check</a></li>
<li><a href="/metrics">Metrics</a></li>
</ul>
</body>
</html>`)
	})

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Handler returns the route multiplexer
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		logger.LogInfo("📈 Metrics server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError("❌ Metrics server failed: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
