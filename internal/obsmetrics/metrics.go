// Package obsmetrics implements interfaces.Observer on top of
// Prometheus client metrics, replacing the teacher's atomic-counter
// Metrics struct with real exported gauges/counters/histograms.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
)

// PrometheusObserver implements interfaces.Observer by recording every
// event against a set of Prometheus collectors registered under the
// "hostlink" namespace.
type PrometheusObserver struct {
	framesSent      *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	ackTimeouts     prometheus.Counter
	recoverAttempts *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec
	fileChunkBytes  *prometheus.CounterVec
	fileChunkRetry  prometheus.Histogram
}

// NewPrometheusObserver builds a PrometheusObserver and registers its
// collectors against reg. Passing prometheus.NewRegistry() isolates the
// metrics for tests and is also what cmd/hostlinkctl's run command
// passes before serving that registry on /metrics.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostlink",
			Name:      "frames_sent_total",
			Help:      "Frames written to the serial port, labeled by outcome.",
		}, []string{"outcome"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostlink",
			Name:      "frames_received_total",
			Help:      "Frames parsed from the serial port, labeled by outcome.",
		}, []string{"outcome"}),
		ackTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostlink",
			Name:      "ack_timeouts_total",
			Help:      "Times a transmit or file-request wait exceeded rx_timeout_s.",
		}),
		recoverAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hostlink",
			Name:      "recover_attempts",
			Help:      "Number of 0x00 bytes injected by Recover() before a frame arrived or it gave up.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 1024, 65536},
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hostlink",
			Name:      "queue_depth",
			Help:      "Current depth of a bounded queue (tx, command, file_request).",
		}, []string{"queue"}),
		fileChunkBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostlink",
			Name:      "file_chunk_bytes_total",
			Help:      "Bytes transferred per file chunk, labeled by outcome.",
		}, []string{"outcome"}),
		fileChunkRetry: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hostlink",
			Name:      "file_chunk_retries",
			Help:      "Retry count consumed per successfully transferred chunk.",
			Buckets:   []float64{0, 1, 2, 3},
		}),
	}

	reg.MustRegister(o.framesSent, o.framesReceived, o.ackTimeouts, o.recoverAttempts, o.queueDepth, o.fileChunkBytes, o.fileChunkRetry)
	return o
}

func outcome(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}

func (o *PrometheusObserver) ObserveFrameSent(bytes uint64, success bool) {
	o.framesSent.WithLabelValues(outcome(success)).Inc()
}

func (o *PrometheusObserver) ObserveFrameReceived(bytes uint64, success bool) {
	o.framesReceived.WithLabelValues(outcome(success)).Inc()
}

func (o *PrometheusObserver) ObserveAckTimeout() {
	o.ackTimeouts.Inc()
}

func (o *PrometheusObserver) ObserveRecover(attempts int, success bool) {
	o.recoverAttempts.WithLabelValues(outcome(success)).Observe(float64(attempts))
}

func (o *PrometheusObserver) ObserveQueueDepth(queue string, depth int) {
	o.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (o *PrometheusObserver) ObserveFileChunk(bytes uint64, retry int, success bool) {
	o.fileChunkBytes.WithLabelValues(outcome(success)).Add(float64(bytes))
	if success {
		o.fileChunkRetry.Observe(float64(retry))
	}
}

var _ interfaces.Observer = (*PrometheusObserver)(nil)
