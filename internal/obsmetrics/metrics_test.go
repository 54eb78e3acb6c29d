package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserveFrameSentIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.ObserveFrameSent(128, true)
	o.ObserveFrameSent(64, false)

	metrics, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, mf := range metrics {
		if mf.GetName() == "hostlink_frames_sent_total" {
			found = mf
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Metric, 2)
}

func TestObserveQueueDepthSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.ObserveQueueDepth("tx", 3)
	o.ObserveQueueDepth("tx", 5)

	metrics, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, mf := range metrics {
		if mf.GetName() == "hostlink_queue_depth" {
			found = mf
		}
	}
	require.NotNil(t, found)
	require.Equal(t, 5.0, found.Metric[0].GetGauge().GetValue())
}

func TestObserveFileChunkRecordsRetryOnlyOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.ObserveFileChunk(16384, 2, true)
	o.ObserveFileChunk(16384, 1, false)

	metrics, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.MetricFamily
	for _, mf := range metrics {
		if mf.GetName() == "hostlink_file_chunk_retries" {
			hist = mf
		}
	}
	require.NotNil(t, hist)
	require.Equal(t, uint64(1), hist.Metric[0].GetHistogram().GetSampleCount())
}
