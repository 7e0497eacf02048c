package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdsarfarazalam840/devops-microshop-windows/internal/platform"
)

func main() {
	platform.InitLogger(platform.LogConfig{Level: slog.LevelInfo, Format: platform.LogFormatJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appCfg := platform.LoadAppConfig()
	platform.InitLogger(*appCfg.LogCfg)

	if err := platform.Run(ctx, appCfg); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}
