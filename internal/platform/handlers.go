package platform

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mdsarfarazalam840/devops-microshop-windows/internal/metrics"
)

// WelcomeMessage is the payload of GET /.
const WelcomeMessage = "Welcome to devops-microshop!"

// Welcome returns the service greeting.
func Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

// Health returns 200 OK.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound answers requests no route matched.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// MethodNotAllowed answers requests whose path exists under another method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

// MetricsHandler serves the registry in the Prometheus exposition format.
// Every scrape gathers afresh.
func MetricsHandler(reg *metrics.Registry) http.Handler {
	return promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{logger: slog.Default()},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}
