package cell

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/storesync/pkg/storage"
)

// MetricsConfig configures cell metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "storesync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "cell").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures cell metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors for cells.
//
// Metrics collected:
//   - storesync_cell_writes_total: values persisted, by scope
//   - storesync_cell_reverts_total: reverts to the initial value, by scope and reason
//   - storesync_cell_adopts_total: values adopted from storage, by scope and source
//   - storesync_cell_poll_frames_total: fallback poll runs
//   - storesync_cell_attached: attached cells, by scope
//
// A nil *Metrics records nothing.
type Metrics struct {
	writes     *prometheus.CounterVec
	reverts    *prometheus.CounterVec
	adopts     *prometheus.CounterVec
	pollFrames prometheus.Counter
	attached   *prometheus.GaugeVec
}

// NewMetrics creates and registers the cell collectors.
// Registering twice with the same registry panics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "storesync",
		Subsystem: "cell",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of values persisted by cells",
			ConstLabels: config.ConstLabels,
		}, []string{"scope"}),

		reverts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reverts_total",
			Help:        "Total number of reverts to the initial value",
			ConstLabels: config.ConstLabels,
		}, []string{"scope", "reason"}),

		adopts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "adopts_total",
			Help:        "Total number of values adopted from storage",
			ConstLabels: config.ConstLabels,
		}, []string{"scope", "source"}),

		pollFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "poll_frames_total",
			Help:        "Total number of fallback poll runs",
			ConstLabels: config.ConstLabels,
		}),

		attached: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "attached",
			Help:        "Number of attached cells",
			ConstLabels: config.ConstLabels,
		}, []string{"scope"}),
	}
}

// Adoption sources.
const (
	sourceAttach    = "attach"
	sourceNative    = "native"
	sourceSynthetic = "synthetic"
	sourcePoll      = "poll"
)

func (m *Metrics) recordWrite(scope storage.Scope) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(scope.String()).Inc()
}

func (m *Metrics) recordRevert(scope storage.Scope, reason string) {
	if m == nil {
		return
	}
	m.reverts.WithLabelValues(scope.String(), reason).Inc()
}

func (m *Metrics) recordAdopt(scope storage.Scope, source string) {
	if m == nil {
		return
	}
	m.adopts.WithLabelValues(scope.String(), source).Inc()
}

func (m *Metrics) recordPoll() {
	if m == nil {
		return
	}
	m.pollFrames.Inc()
}

func (m *Metrics) recordAttached(scope storage.Scope, delta float64) {
	if m == nil {
		return
	}
	m.attached.WithLabelValues(scope.String()).Add(delta)
}
