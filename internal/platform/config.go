package platform

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultPort is used when PORT is unset or cannot be parsed.
const DefaultPort = 3000

// FlagsConfig holds all boolean or string flags for the app.
type FlagsConfig struct {
	// EventsEnabled starts the embedded NATS server and publishes one event per request.
	EventsEnabled bool
}

// AppConfig contains the configuration for the app.
type AppConfig struct {
	Flags      *FlagsConfig
	NatsCfg    *EmbeddedServerConfig
	HTTPSrvCfg *HTTPServerConfig
	LogCfg     *LogConfig
}

// envConfig mirrors the variables the service understands. PORT stays a
// string so a malformed value never fails the whole parse.
type envConfig struct {
	Port          string        `env:"PORT"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"json"`
	EventsEnabled bool          `env:"EVENTS_ENABLED"`
	ReadTimeout   time.Duration `env:"HTTP_READ_TIMEOUT"`
	WriteTimeout  time.Duration `env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout   time.Duration `env:"HTTP_IDLE_TIMEOUT"`
	DrainTimeout  time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"`
	CertFile      string        `env:"TLS_CERT_FILE"`
	KeyFile       string        `env:"TLS_KEY_FILE"`
}

// LoadAppConfig loads application configuration from .env and environment variables and returns an AppConfig.
func LoadAppConfig() *AppConfig {
	return loadAppConfig(".env", env.ToMap(os.Environ()))
}

// loadAppConfig layers defaults, then the dotenv file (if present), then
// environ. Problems are logged and the affected values keep their defaults.
func loadAppConfig(dotenvPath string, environ map[string]string) *AppConfig {
	cfg := &AppConfig{
		Flags:      defaultFlagsCfg(),
		NatsCfg:    defaultNatsCfg(),
		HTTPSrvCfg: defaultHTTPServerCfg(),
		LogCfg:     defaultLogCfg(),
	}

	merged := make(map[string]string, len(environ))
	if dotenv, err := godotenv.Read(dotenvPath); err == nil {
		for k, v := range dotenv {
			merged[k] = v
		}
	} else if !os.IsNotExist(err) {
		slog.Warn("Ignoring unreadable dotenv file", "path", dotenvPath, "err", err)
	}
	for k, v := range environ {
		merged[k] = v
	}

	var ec envConfig
	if err := parseEnv(&ec, merged); err != nil {
		slog.Warn("Falling back to default configuration", "err", err)
		return cfg
	}

	port, ok := parsePort(ec.Port)
	if !ok {
		slog.Warn("Invalid PORT, using default", "value", ec.Port, "default", DefaultPort)
	}
	cfg.HTTPSrvCfg.Port = port
	cfg.HTTPSrvCfg.ReadTimeout = ec.ReadTimeout
	cfg.HTTPSrvCfg.WriteTimeout = ec.WriteTimeout
	cfg.HTTPSrvCfg.IdleTimeout = ec.IdleTimeout
	if ec.DrainTimeout > 0 {
		cfg.HTTPSrvCfg.ShutdownTimeout = ec.DrainTimeout
	}
	if ec.CertFile != "" && ec.KeyFile != "" {
		cfg.HTTPSrvCfg.EnableTLS = true
		cfg.HTTPSrvCfg.CertFile = ec.CertFile
		cfg.HTTPSrvCfg.KeyFile = ec.KeyFile
	}

	cfg.Flags.EventsEnabled = ec.EventsEnabled

	if err := cfg.LogCfg.Level.UnmarshalText([]byte(ec.LogLevel)); err != nil {
		slog.Warn("Invalid LOG_LEVEL, using info", "value", ec.LogLevel)
		cfg.LogCfg.Level = slog.LevelInfo
	}
	switch format := strings.ToLower(ec.LogFormat); format {
	case LogFormatJSON, LogFormatText:
		cfg.LogCfg.Format = format
	default:
		slog.Warn("Invalid LOG_FORMAT, using json", "value", ec.LogFormat)
	}

	return cfg
}

// parseEnv fills target from environ.
func parseEnv(target any, environ map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// parsePort returns DefaultPort for an empty value. ok is false when a
// non-empty value was rejected.
func parsePort(s string) (port int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPort, true
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return DefaultPort, false
	}
	return p, true
}

// defaultFlagsCfg returns the default FlagsConfig.
func defaultFlagsCfg() *FlagsConfig {
	return &FlagsConfig{
		EventsEnabled: false,
	}
}

// defaultHTTPServerCfg returns sane defaults for the HTTP server.
func defaultHTTPServerCfg() *HTTPServerConfig {
	return &HTTPServerConfig{
		Port:            DefaultPort,
		ShutdownTimeout: DefaultShutdownTimeout,
		EnableTLS:       false,
	}
}

// defaultNatsCfg returns the default EmbeddedServerConfig.
func defaultNatsCfg() *EmbeddedServerConfig {
	return &EmbeddedServerConfig{
		InProcess:     true,
		EnableLogging: true,
		JetStream:     true,
	}
}

func defaultLogCfg() *LogConfig {
	return &LogConfig{
		Level:  slog.LevelInfo,
		Format: LogFormatJSON,
	}
}
