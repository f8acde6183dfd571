package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/icc/asyncerr"
	"github.com/arloliu/icc/metrics"
)

func TestRegisterExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &metrics.ConnectionMetrics{}

	require.NoError(t, m.Register(metrics.WithRegisterer(reg), metrics.WithNamespace("icctest")))

	m.IncGetSendCount()
	m.IncGetSendCount()
	m.IncAckRecvCount()
	m.IncInflightCount()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	found := map[string]float64{}
	for _, fam := range families {
		for _, metric := range fam.Metric {
			switch fam.GetName() {
			case "icctest_get_send_total":
				found["get"] = metric.GetCounter().GetValue()
			case "icctest_ack_recv_total":
				found["ack"] = metric.GetCounter().GetValue()
			case "icctest_inflight_commands":
				found["inflight"] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, float64(2), found["get"])
	assert.Equal(t, float64(1), found["ack"])
	assert.Equal(t, float64(1), found["inflight"])
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &metrics.ConnectionMetrics{}

	require.NoError(t, m.Register(metrics.WithRegisterer(reg)))
	require.Error(t, m.Register(metrics.WithRegisterer(reg)))
}

func TestRegisterWithAsyncErrorQueueReflectsQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &metrics.ConnectionMetrics{}
	aq := asyncerr.New(func() bool { return true })

	require.NoError(t, m.Register(
		metrics.WithRegisterer(reg),
		metrics.WithNamespace("icctest"),
		metrics.WithAsyncErrorQueue(aq),
	))

	aq.Enqueue("boom")
	aq.Enqueue("bang")

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, fam := range families {
		for _, metric := range fam.Metric {
			switch fam.GetName() {
			case "icctest_async_error_total":
				found["total"] = metric.GetCounter().GetValue()
			case "icctest_async_error_queue_depth":
				found["depth"] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, float64(2), found["total"])
	assert.Equal(t, float64(2), found["depth"])
}
