// Package metrics provides detector observability metrics as Prometheus
// collectors, scoped to the handful of counters/gauges the pipeline
// actually emits.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// DetectorMetrics holds the Prometheus collectors for one detector
// instance. All collectors are registered against the Registry passed to
// NewDetectorMetrics, so multiple detectors in the same process can run
// with independent registries.
type DetectorMetrics struct {
	registry *prometheus.Registry

	detectionsTotal   *prometheus.CounterVec
	candidatesCreated *prometheus.CounterVec
	candidatesExpired *prometheus.CounterVec
	candidateQueueLen *prometheus.GaugeVec
	matchCoefficient  *prometheus.HistogramVec
	bufferPoolHits    *prometheus.CounterVec
	bufferPoolMisses  *prometheus.CounterVec
}

// NewDetectorMetrics creates and registers the detector's metrics against
// registry. Passing a fresh prometheus.NewRegistry() is recommended for
// tests; production code typically uses prometheus.DefaultRegisterer's
// registry.
func NewDetectorMetrics(registry *prometheus.Registry) *DetectorMetrics {
	m := &DetectorMetrics{
		registry: registry,
		detectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seisdetect",
			Name:      "detections_total",
			Help:      "Total number of detections emitted by the linker.",
		}, []string{"reason"}),
		candidatesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seisdetect",
			Name:      "candidates_created_total",
			Help:      "Total number of candidates created by the linker.",
		}, []string{}),
		candidatesExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seisdetect",
			Name:      "candidates_expired_total",
			Help:      "Total number of candidates discarded at expiry without meeting minArrivals.",
		}, []string{}),
		candidateQueueLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "seisdetect",
			Name:      "candidate_queue_length",
			Help:      "Current number of candidates held by the linker queue.",
		}, []string{}),
		matchCoefficient: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seisdetect",
			Name:      "match_coefficient",
			Help:      "Distribution of accepted cross-correlation coefficients.",
			Buckets:   prometheus.LinearBuckets(0.5, 0.05, 10),
		}, []string{"processor"}),
		bufferPoolHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seisdetect",
			Name:      "sample_buffer_pool_hits_total",
			Help:      "Number of sample buffer pool Get calls served from a reused buffer.",
		}, []string{"pool"}),
		bufferPoolMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seisdetect",
			Name:      "sample_buffer_pool_misses_total",
			Help:      "Number of sample buffer pool Get calls that allocated a new buffer.",
		}, []string{"pool"}),
	}

	registry.MustRegister(
		m.detectionsTotal,
		m.candidatesCreated,
		m.candidatesExpired,
		m.candidateQueueLen,
		m.matchCoefficient,
		m.bufferPoolHits,
		m.bufferPoolMisses,
	)

	return m
}

func (m *DetectorMetrics) RecordDetection(reason string) {
	if m == nil {
		return
	}
	m.detectionsTotal.WithLabelValues(reason).Inc()
}

func (m *DetectorMetrics) RecordCandidateCreated() {
	if m == nil {
		return
	}
	m.candidatesCreated.WithLabelValues().Inc()
}

func (m *DetectorMetrics) RecordCandidateExpired() {
	if m == nil {
		return
	}
	m.candidatesExpired.WithLabelValues().Inc()
}

func (m *DetectorMetrics) SetCandidateQueueLength(n int) {
	if m == nil {
		return
	}
	m.candidateQueueLen.WithLabelValues().Set(float64(n))
}

func (m *DetectorMetrics) RecordMatchCoefficient(processor string, coefficient float64) {
	if m == nil {
		return
	}
	m.matchCoefficient.WithLabelValues(processor).Observe(coefficient)
}

func (m *DetectorMetrics) RecordBufferPoolHit(pool string) {
	if m == nil {
		return
	}
	m.bufferPoolHits.WithLabelValues(pool).Inc()
}

func (m *DetectorMetrics) RecordBufferPoolMiss(pool string) {
	if m == nil {
		return
	}
	m.bufferPoolMisses.WithLabelValues(pool).Inc()
}
