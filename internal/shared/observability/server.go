package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"handbook/internal/shared/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig configures the metrics/health listener.
type ServerConfig struct {
	Address        string
	RequestsPerSec float64
	Burst          int
	// Health reports component status; nil means always up.
	Health HealthChecker
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	HeapAllocMB uint64            `json:"heapAllocMB"`
	Components  map[string]string `json:"components"`
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Server exposes /metrics and /health, rate limited per client IP.
type Server struct {
	httpServer *http.Server
	limiters   *util.LimiterRegistry
	health     HealthChecker
	started    time.Time
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	s := &Server{
		limiters: util.NewLimiterRegistry(cfg.RequestsPerSec, cfg.Burst, 5*time.Minute),
		health:   cfg.Health,
		started:  time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler is the rate-limited mux; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	return s.limit(mux)
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.Get(clientIP(r)).Allow(1) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "up", Components: map[string]string{}}
	if s.health != nil {
		status = s.health.Check(r.Context())
	}
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now().UTC()
	}
	status.Uptime = time.Since(s.started).Round(time.Second).String()
	status.HeapAllocMB = util.HeapAllocMB()

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.limiters.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.limiters.Close()
	return err
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
