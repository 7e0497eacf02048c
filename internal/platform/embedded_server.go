package platform

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EmbeddedServerConfig holds options for running the embedded server that
// carries request events.
type EmbeddedServerConfig struct {
	InProcess     bool
	EnableLogging bool
	JetStream     bool
	StoreDir      string // optional, JetStream falls back to a temp dir
}

// RunEmbeddedServer starts an embedded NATS server with the given config and returns a client connection, the server instance, and an error channel.
func RunEmbeddedServer(ctx context.Context, cfg EmbeddedServerConfig) (*nats.Conn, *server.Server, <-chan error, error) {
	opts := &server.Options{
		ServerName: "microshop_events",
		DontListen: cfg.InProcess,
		JetStream:  cfg.JetStream,
		StoreDir:   cfg.StoreDir,
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.EnableLogging {
		ns.SetLogger(NewNATSServerLogger(slog.Default()), false, false)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, nil, nil, errors.New("NATS Server timeout")
	}

	clientOpts := []nats.Option{nats.Name("microshop")}
	if cfg.InProcess {
		clientOpts = append(clientOpts, nats.InProcessServer(ns))
	}

	nc, err := nats.Connect(ns.ClientURL(), clientOpts...)
	if err != nil {
		ns.Shutdown()
		return nil, nil, nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		// The caller shuts the server down (deferred ns.Shutdown()); doing it
		// here as well would close its internal channels twice.
		errCh <- ctx.Err()
	}()

	return nc, ns, errCh, nil
}
