package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nats-io/nats-server/v2/server"
)

// Supported LOG_FORMAT values.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// LogConfig controls the process logger.
type LogConfig struct {
	Level     slog.Level
	Format    string
	AddSource bool
}

// InitLogger sets up the global slog logger from cfg.
func InitLogger(cfg LogConfig) {
	slog.SetDefault(NewLogger(os.Stdout, cfg))
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: cfg.AddSource, Level: cfg.Level}
	if cfg.Format == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// natsLog forwards embedded-server log lines into slog. Notices are demoted
// to debug so startup chatter stays out of the request log; the server's own
// severity is kept in the "nats_level" attribute.
type natsLog struct {
	logger *slog.Logger
}

// NewNATSServerLogger wraps logger (slog.Default when nil) for Server.SetLogger.
func NewNATSServerLogger(logger *slog.Logger) server.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return natsLog{logger: logger.With("component", "nats")}
}

func (l natsLog) emit(level slog.Level, natsLevel, format string, v []any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, v...), "nats_level", natsLevel)
}

func (l natsLog) Noticef(format string, v ...any) { l.emit(slog.LevelDebug, "notice", format, v) }
func (l natsLog) Warnf(format string, v ...any)   { l.emit(slog.LevelWarn, "warn", format, v) }
func (l natsLog) Errorf(format string, v ...any)  { l.emit(slog.LevelError, "error", format, v) }
func (l natsLog) Fatalf(format string, v ...any)  { l.emit(slog.LevelError, "fatal", format, v) }
func (l natsLog) Debugf(format string, v ...any)  { l.emit(slog.LevelDebug, "debug", format, v) }
func (l natsLog) Tracef(format string, v ...any)  { l.emit(slog.LevelDebug, "trace", format, v) }

// promErrorLogger routes promhttp errors into slog.
type promErrorLogger struct {
	logger *slog.Logger
}

func (l promErrorLogger) Println(v ...interface{}) {
	l.logger.Error("metrics exposition", "err", fmt.Sprint(v...))
}
