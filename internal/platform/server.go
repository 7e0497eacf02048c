package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mdsarfarazalam840/devops-microshop-windows/internal/metrics"
)

// DefaultShutdownTimeout bounds how long in-flight requests may drain.
const DefaultShutdownTimeout = 5 * time.Second

// HTTPServerConfig holds HTTP server tunables. Zero timeouts mean none,
// except ShutdownTimeout where zero means DefaultShutdownTimeout.
type HTTPServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	EnableTLS       bool   // whether to use HTTPS
	CertFile        string // path to TLS certificate
	KeyFile         string // path to TLS private key
}

// MetricsPath is where the registry is exposed. Scrapes are not instrumented.
const MetricsPath = "/metrics"

// NewRouter wires the service routes behind RequestTiming.
func NewRouter(m *Metrics, observers ...RequestObserver) (chi.Router, error) {
	skip := []string{MetricsPath}

	r := chi.NewRouter()
	r.Use(RequestTiming(m, TimingOptions{Observers: observers, SkipRoutes: skip}))
	r.Use(middleware.RequestID)
	r.Use(CaptureRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	// metrics endpoint
	r.Method(http.MethodGet, MetricsPath, MetricsHandler(m.Registry))

	// application routes
	r.Get("/", Welcome)
	r.Get("/health", Health)
	r.Get("/healthz", Health)

	if err := seedRouteSeries(r, m, skip); err != nil {
		return nil, err
	}
	return r, nil
}

// seedRouteSeries creates a zero series for every route's success code so the
// instruments are exported before the first request arrives.
func seedRouteSeries(routes chi.Routes, m *Metrics, skip []string) error {
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if slices.Contains(skip, route) {
			return nil
		}
		labels := metrics.Labels{Method: method, Route: route, Code: "200"}
		m.Duration.Init(labels)
		m.Requests.Init(labels)
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed route series: %w", err)
	}
	return nil
}

// RunHTTPServer serves handler until ctx is cancelled, then drains in-flight
// requests for at most cfg.ShutdownTimeout. The returned channel receives
// ctx.Err() after a clean drain, the shutdown error otherwise, or the listen
// error if the server could not start.
func RunHTTPServer(ctx context.Context, handler http.Handler, cfg HTTPServerConfig) <-chan error {
	errCh := make(chan error, 2)
	logger := slog.Default().With("component", "http", "port", cfg.Port)

	drain := cfg.ShutdownTimeout
	if drain <= 0 {
		drain = DefaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Draining HTTP server", "timeout", drain)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server did not drain in time", "err", err)
			errCh <- err
			return
		}
		logger.Info("HTTP server drained")
		errCh <- ctx.Err()
	}()

	go func() {
		logger.Info("Server listening", "tls", cfg.EnableTLS)
		var err error
		if cfg.EnableTLS {
			err = srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
	}()

	return errCh
}
