package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	MetricsNamespace         = "bot_testkit"
	MetricsSubsystemTurns    = "turns"
	MetricsSubsystemActivity = "activities"
	MetricsSubsystemTokens   = "tokens"

	MetricsAdapterLabel = "adapter"

	DiscardReasonTraceDisabled = "trace_disabled"
	DiscardReasonDelay         = "delay"

	TokenLookupFound         = "found"
	TokenLookupNotFound      = "not_found"
	TokenLookupMagicCodeUsed = "magic_code_used"
)

type InstanceInfo struct {
	// AdapterName distinguishes several adapters sharing a process.
	AdapterName string
}

// Metrics used to instrument turns, activities and token lookups in prometheus.
type Metrics struct {
	registry *prometheus.Registry

	turnTime *prometheus.HistogramVec

	receivedActivityTotal  *prometheus.CounterVec
	sentActivityTotal      *prometheus.CounterVec
	discardedActivityTotal *prometheus.CounterVec

	tokenLookupTotal *prometheus.CounterVec
	signOutTotal     prometheus.Counter
}

// NewMetrics Factory method to create a new metrics collector.
func NewMetrics(info InstanceInfo) *Metrics {
	m := &Metrics{}

	m.registry = prometheus.NewRegistry()
	options := collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}
	m.registry.MustRegister(collectors.NewProcessCollector(options))
	m.registry.MustRegister(collectors.NewGoCollector())

	additionalLabels := map[string]string{}
	if info.AdapterName != "" {
		additionalLabels[MetricsAdapterLabel] = info.AdapterName
	}

	m.turnTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   MetricsSubsystemTurns,
			Name:        "time",
			Help:        "Time to run a turn through the middleware pipeline and bot callback",
			ConstLabels: additionalLabels,
		},
		[]string{"activity_type", "success"},
	)
	m.registry.MustRegister(m.turnTime)

	m.receivedActivityTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemActivity,
		Name:        "received_total",
		Help:        "The total number of inbound activities processed.",
		ConstLabels: additionalLabels,
	}, []string{"activity_type"})
	m.registry.MustRegister(m.receivedActivityTotal)

	m.sentActivityTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemActivity,
		Name:        "sent_total",
		Help:        "The total number of outbound activities queued as replies.",
		ConstLabels: additionalLabels,
	}, []string{"activity_type"})
	m.registry.MustRegister(m.sentActivityTotal)

	m.discardedActivityTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemActivity,
		Name:        "discarded_total",
		Help:        "The total number of outbound activities that were not queued.",
		ConstLabels: additionalLabels,
	}, []string{"activity_type", "discarded_reason"})
	m.registry.MustRegister(m.discardedActivityTotal)

	m.tokenLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemTokens,
		Name:        "lookup_total",
		Help:        "The total number of user token lookups.",
		ConstLabels: additionalLabels,
	}, []string{"result"})
	m.registry.MustRegister(m.tokenLookupTotal)

	m.signOutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemTokens,
		Name:        "sign_out_total",
		Help:        "The total number of user sign outs.",
		ConstLabels: additionalLabels,
	})
	m.registry.MustRegister(m.signOutTotal)

	return m
}

// Registry exposes the underlying registry, e.g. for a promhttp handler in a test harness.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTurnDuration(activityType string, success bool, elapsed float64) {
	if m != nil {
		successLabel := "false"
		if success {
			successLabel = "true"
		}
		m.turnTime.With(prometheus.Labels{"activity_type": activityType, "success": successLabel}).Observe(elapsed)
	}
}

func (m *Metrics) ObserveReceivedActivity(activityType string) {
	if m != nil {
		m.receivedActivityTotal.With(prometheus.Labels{"activity_type": activityType}).Inc()
	}
}

func (m *Metrics) ObserveSentActivity(activityType string) {
	if m != nil {
		m.sentActivityTotal.With(prometheus.Labels{"activity_type": activityType}).Inc()
	}
}

func (m *Metrics) ObserveDiscardedActivity(activityType, discardedReason string) {
	if m != nil {
		m.discardedActivityTotal.With(prometheus.Labels{"activity_type": activityType, "discarded_reason": discardedReason}).Inc()
	}
}

func (m *Metrics) ObserveTokenLookup(result string) {
	if m != nil {
		m.tokenLookupTotal.With(prometheus.Labels{"result": result}).Inc()
	}
}

func (m *Metrics) IncrementSignOuts() {
	if m != nil {
		m.signOutTotal.Inc()
	}
}
