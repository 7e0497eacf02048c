package platform

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"

	"github.com/mdsarfarazalam840/devops-microshop-windows/internal/metrics"
)

// Namespace prefixes every application metric.
const Namespace = "microshop"

// Metrics bundles the registry with the HTTP instruments recorded by RequestTiming.
type Metrics struct {
	Registry *metrics.Registry
	Duration *metrics.Histogram
	Requests *metrics.Counter
}

// NewMetrics builds the process registry: default runtime metrics, build
// info, the request duration histogram and the request counter.
func NewMetrics() (*Metrics, error) {
	reg := metrics.NewRegistry(Namespace)
	if err := reg.CollectDefaultRuntimeMetrics(); err != nil {
		return nil, fmt.Errorf("runtime metrics: %w", err)
	}

	m := &Metrics{
		Registry: reg,
		Duration: metrics.NewHistogram(metrics.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_ms",
			Help:      "Duration of HTTP requests in milliseconds, labeled by method, route and status code.",
			Buckets:   metrics.DefaultDurationBuckets,
		}),
		Requests: metrics.NewCounter(metrics.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed, labeled by method, route and status code.",
		}),
	}

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Constant 1, labeled with the Go version and a per-process instance id.",
		ConstLabels: prometheus.Labels{
			"go_version":  runtime.Version(),
			"instance_id": xid.New().String(),
		},
	})
	buildInfo.Set(1)

	for _, in := range []metrics.Instrument{
		metrics.Named("build_info", buildInfo),
		m.Duration,
		m.Requests,
	} {
		if err := reg.Register(in); err != nil {
			return nil, err
		}
	}
	return m, nil
}
