package metrics

import "github.com/prometheus/client_golang/prometheus"

// CounterOpts configures NewCounter.
type CounterOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
}

// Counter counts events per label combination.
type Counter struct {
	name string
	vec  *prometheus.CounterVec
}

func NewCounter(opts CounterOpts) *Counter {
	return &Counter{
		name: prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name),
		vec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
		}, LabelNames),
	}
}

func (c *Counter) Name() string { return c.name }

func (c *Counter) Describe(ch chan<- *prometheus.Desc) { c.vec.Describe(ch) }

func (c *Counter) Collect(ch chan<- prometheus.Metric) { c.vec.Collect(ch) }

func (c *Counter) Inc(labels Labels) {
	c.vec.WithLabelValues(labels.values()...).Inc()
}

func (c *Counter) Init(labels Labels) {
	c.vec.WithLabelValues(labels.values()...)
}
