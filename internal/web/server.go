package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/session"
)

// Idle sessions are dropped after sessionMaxIdle, checked every pruneInterval.
const (
	sessionMaxIdle = 24 * time.Hour
	pruneInterval  = 10 * time.Minute
)

// NewServer creates and configures the HTTP server for the Backseat API.
func NewServer(h *Handlers, bind string, port int) *http.Server {
	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/message", h.HandleMessage)
	mux.HandleFunc("GET /api/profiles", h.HandleProfiles)
	mux.HandleFunc("GET /api/profiles/export", h.HandleExport)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("GET /metrics", h.metrics.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server, prunes idle sessions in the background, and
// handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, sessions *session.Manager, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stopPrune := make(chan struct{})
	defer close(stopPrune)
	go pruneSessions(sessions, logger, stopPrune)

	logger.Info("backseat API listening", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func pruneSessions(sessions *session.Manager, logger *zap.Logger, stop <-chan struct{}) {
	if sessions == nil {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := sessions.Prune(sessionMaxIdle); n > 0 {
				logger.Info("pruned idle sessions", zap.Int("count", n))
			}
		}
	}
}
