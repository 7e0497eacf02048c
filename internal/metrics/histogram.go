package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDurationBuckets are the upper bounds, in milliseconds, used for
// request durations. +Inf is implicit.
var DefaultDurationBuckets = []float64{50, 100, 200, 300, 500, 1000}

// LabelNames are the label keys carried by every HTTP instrument.
var LabelNames = []string{"method", "route", "code"}

// ErrInvalidObservation is returned for negative, NaN or infinite values.
var ErrInvalidObservation = errors.New("observation must be a finite non-negative number")

// Labels identifies one series of an HTTP instrument.
type Labels struct {
	Method string
	Route  string
	Code   string
}

func (l Labels) values() []string {
	return []string{l.Method, l.Route, l.Code}
}

// HistogramOpts configures NewHistogram.
type HistogramOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	// Buckets must be sorted ascending. Nil means DefaultDurationBuckets.
	Buckets []float64
}

// Histogram buckets observations per label combination.
type Histogram struct {
	name string
	vec  *prometheus.HistogramVec
	now  func() time.Time
}

// NewHistogram builds a histogram labeled by LabelNames.
func NewHistogram(opts HistogramOpts) *Histogram {
	buckets := opts.Buckets
	if buckets == nil {
		buckets = DefaultDurationBuckets
	}
	return &Histogram{
		name: prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name),
		vec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
			Buckets:   buckets,
		}, LabelNames),
		now: time.Now,
	}
}

// Name returns the fully-qualified metric name.
func (h *Histogram) Name() string { return h.name }

func (h *Histogram) Describe(ch chan<- *prometheus.Desc) { h.vec.Describe(ch) }

func (h *Histogram) Collect(ch chan<- prometheus.Metric) { h.vec.Collect(ch) }

// Observe records value for labels.
func (h *Histogram) Observe(value float64, labels Labels) error {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s: %w: %v", h.name, ErrInvalidObservation, value)
	}
	obs, err := h.vec.GetMetricWithLabelValues(labels.values()...)
	if err != nil {
		return fmt.Errorf("%s: %w", h.name, err)
	}
	obs.Observe(value)
	return nil
}

// Init creates the series for labels without observing anything, so it is
// exported with zero counts.
func (h *Histogram) Init(labels Labels) {
	h.vec.WithLabelValues(labels.values()...)
}

// StartTimer captures the current time.
func (h *Histogram) StartTimer() *Timer {
	return &Timer{h: h, start: h.now()}
}

// Timer measures one duration. Stop records it into the owning histogram.
type Timer struct {
	h     *Histogram
	start time.Time

	once    sync.Once
	elapsed float64
}

// Stop observes the milliseconds elapsed since StartTimer under labels and
// returns them. Only the first call records; later calls return the same value.
// The observation cannot be rejected: elapsed is clamped to >= 0 and finite,
// and Labels always carries exactly len(LabelNames) values.
func (t *Timer) Stop(labels Labels) float64 {
	t.once.Do(func() {
		t.elapsed = float64(t.h.now().Sub(t.start)) / float64(time.Millisecond)
		if t.elapsed < 0 {
			t.elapsed = 0
		}
		if err := t.h.Observe(t.elapsed, labels); err != nil {
			slog.Debug("timer observation dropped", "metric", t.h.name, "err", err)
		}
	})
	return t.elapsed
}
