package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetricFamily(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func TestMetrics(t *testing.T) {
	t.Run("counters", func(t *testing.T) {
		m := NewMetrics(InstanceInfo{})

		m.ObserveReceivedActivity("message")
		m.ObserveReceivedActivity("message")
		m.ObserveSentActivity("message")
		m.ObserveDiscardedActivity("trace", DiscardReasonTraceDisabled)
		m.ObserveTokenLookup(TokenLookupFound)
		m.ObserveTokenLookup(TokenLookupNotFound)
		m.IncrementSignOuts()

		assert.Equal(t, 2.0, testutil.ToFloat64(m.receivedActivityTotal.WithLabelValues("message")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.sentActivityTotal.WithLabelValues("message")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.discardedActivityTotal.WithLabelValues("trace", DiscardReasonTraceDisabled)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenLookupTotal.WithLabelValues(TokenLookupFound)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenLookupTotal.WithLabelValues(TokenLookupNotFound)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.signOutTotal))
	})

	t.Run("turn histogram", func(t *testing.T) {
		m := NewMetrics(InstanceInfo{})
		m.ObserveTurnDuration("message", true, 0.25)
		m.ObserveTurnDuration("message", false, 0.5)

		family := findMetricFamily(t, m, "bot_testkit_turns_time")
		require.NotNil(t, family)
		require.Len(t, family.GetMetric(), 2)

		var total uint64
		for _, metric := range family.GetMetric() {
			total += metric.GetHistogram().GetSampleCount()
		}
		assert.EqualValues(t, 2, total)
	})

	t.Run("adapter label", func(t *testing.T) {
		m := NewMetrics(InstanceInfo{AdapterName: "echo"})
		m.ObserveSentActivity("message")

		family := findMetricFamily(t, m, "bot_testkit_activities_sent_total")
		require.NotNil(t, family)
		require.Len(t, family.GetMetric(), 1)

		labels := map[string]string{}
		for _, label := range family.GetMetric()[0].GetLabel() {
			labels[label.GetName()] = label.GetValue()
		}
		assert.Equal(t, "echo", labels[MetricsAdapterLabel])
		assert.Equal(t, "message", labels["activity_type"])
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.ObserveReceivedActivity("message")
			m.ObserveSentActivity("message")
			m.ObserveDiscardedActivity("delay", DiscardReasonDelay)
			m.ObserveTokenLookup(TokenLookupFound)
			m.ObserveTurnDuration("message", true, 1)
			m.IncrementSignOuts()
		})
		assert.Nil(t, m.Registry())
	})
}
