package platform

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mdsarfarazalam840/devops-microshop-windows/internal/metrics"
)

// UnmatchedRoute is the route label for requests no route pattern matched.
const UnmatchedRoute = "unmatched"

// RequestRecord describes one finished request.
type RequestRecord struct {
	Labels     metrics.Labels
	Path       string
	RequestID  string
	RemoteAddr string
	Start      time.Time
	DurationMS float64
}

type requestIDSlot struct{}

// CaptureRequestID hands the id assigned by middleware.RequestID back to
// RequestTiming, which runs outside of it. Mount it right after RequestID.
func CaptureRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(requestIDSlot{}).(*string); ok {
			*slot = middleware.GetReqID(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

// RequestObserver is notified after each request has been recorded.
// Implementations must not block.
type RequestObserver interface {
	ObserveRequest(RequestRecord)
}

// TimingOptions configures RequestTiming.
type TimingOptions struct {
	Observers []RequestObserver
	// SkipRoutes lists route patterns that are neither recorded nor observed.
	SkipRoutes []string
}

// RequestTiming times every request and records it into m labeled by method,
// matched route pattern and final status code. Mount it first so the timing
// covers every other middleware.
func RequestTiming(m *Metrics, opts TimingOptions) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(opts.SkipRoutes))
	for _, route := range opts.SkipRoutes {
		skip[route] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			timer := m.Duration.StartTimer()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			var requestID string
			r = r.WithContext(context.WithValue(r.Context(), requestIDSlot{}, &requestID))

			defer func() {
				rec := recover()

				status := ww.Status()
				if status == 0 {
					// Nothing was written: net/http sends 200 on return and
					// drops the connection on panic.
					status = http.StatusOK
					if rec != nil {
						status = http.StatusInternalServerError
					}
				}
				route := routeLabel(r)
				if _, ok := skip[route]; ok {
					if rec != nil {
						panic(rec)
					}
					return
				}
				labels := metrics.Labels{
					Method: r.Method,
					Route:  route,
					Code:   strconv.Itoa(status),
				}
				elapsed := timer.Stop(labels)
				m.Requests.Inc(labels)

				slog.Info("http",
					"method", r.Method,
					"path", r.URL.Path,
					"route", labels.Route,
					"request_id", requestID,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", elapsed,
				)

				record := RequestRecord{
					Labels:     labels,
					Path:       r.URL.Path,
					RequestID:  requestID,
					RemoteAddr: r.RemoteAddr,
					Start:      start,
					DurationMS: elapsed,
				}
				for _, o := range opts.Observers {
					o.ObserveRequest(record)
				}

				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// routeLabel returns the chi route pattern that matched r.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return UnmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return UnmatchedRoute
}
