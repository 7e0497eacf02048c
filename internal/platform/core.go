package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Run builds the metrics registry, optionally starts the request event
// stream, and serves HTTP until ctx is cancelled or a component fails.
func Run(ctx context.Context, cfg *AppConfig) error {
	m, err := NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	var (
		observers []RequestObserver
		natsErrCh <-chan error
	)
	if cfg.Flags.EventsEnabled {
		nc, ns, errCh, err := RunEmbeddedServer(ctx, *cfg.NatsCfg)
		if err != nil {
			return fmt.Errorf("embedded server: %w", err)
		}
		defer ns.Shutdown()
		defer nc.Close()
		natsErrCh = errCh

		pub, err := NewEventPublisher(ctx, nc)
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		observers = append(observers, pub)
	}

	router, err := NewRouter(m, observers...)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	httpErrCh := RunHTTPServer(ctx, router, *cfg.HTTPSrvCfg)

	select {
	case err = <-httpErrCh:
	case err = <-natsErrCh:
		// The event bus only reports cancellation; keep it up until the HTTP
		// server has drained so in-flight requests still get recorded.
		if errors.Is(err, context.Canceled) {
			err = <-httpErrCh
		}
	}
	if errors.Is(err, context.Canceled) {
		slog.Info("Run: shutdown requested")
		return nil
	}
	return err
}
