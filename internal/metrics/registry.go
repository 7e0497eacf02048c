// Package metrics holds the process metric registry and the HTTP instruments
// recorded into it.
package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Names under which CollectDefaultRuntimeMetrics registers its instruments.
const (
	GoRuntimeName     = "go_runtime"
	ProcessName       = "process"
	ProcessUptimeName = "process_uptime"
)

// Instrument is a collector registered under a unique name.
type Instrument interface {
	prometheus.Collector
	Name() string
}

// DuplicateNameError is returned by Register when the name (or the collector
// itself) is already present in the registry.
type DuplicateNameError struct {
	Name string
	Err  error
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("metric %q already registered", e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return e.Err }

type namedCollector struct {
	prometheus.Collector
	name string
}

func (n namedCollector) Name() string { return n.name }

// Named attaches a registry name to an arbitrary collector.
func Named(name string, c prometheus.Collector) Instrument {
	return namedCollector{Collector: c, name: name}
}

// Registry holds every instrument of the process. One instance is built at
// startup and passed to whatever needs to record or expose metrics.
type Registry struct {
	namespace string

	mu    sync.Mutex
	reg   *prometheus.Registry
	names map[string]struct{}
	order []string
}

// NewRegistry returns an empty registry. namespace prefixes the metrics the
// registry creates itself (currently the uptime gauge).
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace: namespace,
		reg:       prometheus.NewRegistry(),
		names:     make(map[string]struct{}),
	}
}

// Register adds in under in.Name().
func (r *Registry) Register(in Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := in.Name()
	if _, ok := r.names[name]; ok {
		return &DuplicateNameError{Name: name}
	}
	if err := r.reg.Register(in); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return &DuplicateNameError{Name: name, Err: err}
		}
		return fmt.Errorf("register %s: %w", name, err)
	}
	r.names[name] = struct{}{}
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers every instrument and panics on the first failure.
// Use it for instruments wired at startup, where a failure is a programming error.
func (r *Registry) MustRegister(ins ...Instrument) {
	for _, in := range ins {
		if err := r.Register(in); err != nil {
			panic(err)
		}
	}
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// CollectDefaultRuntimeMetrics registers the Go runtime collector, the process
// collector (CPU, memory, open fds) and an uptime gauge. All of them are
// sampled at gather time. A second call fails with DuplicateNameError.
func (r *Registry) CollectDefaultRuntimeMetrics() error {
	start := time.Now()
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      "process_uptime_seconds",
		Help:      "Seconds since the metrics registry started collecting runtime metrics.",
	}, func() float64 {
		return time.Since(start).Seconds()
	})

	for _, in := range []Instrument{
		Named(GoRuntimeName, collectors.NewGoCollector()),
		Named(ProcessName, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
		Named(ProcessUptimeName, uptime),
	} {
		if err := r.Register(in); err != nil {
			return err
		}
	}
	return nil
}

// Gatherer exposes the underlying gatherer, e.g. for promhttp.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Serialize renders a snapshot of every metric family in the Prometheus text
// exposition format. Families are ordered by fully-qualified name and series
// by label values, not by registration order (Names keeps that), so two calls
// without intervening observations differ only in time-varying runtime gauges.
func (r *Registry) Serialize() ([]byte, error) {
	mfs, gatherErr := r.reg.Gather()

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return buf.Bytes(), fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if gatherErr != nil {
		return buf.Bytes(), fmt.Errorf("gather: %w", gatherErr)
	}
	return buf.Bytes(), nil
}
