// Package metrics exposes the enumerator's Prometheus instrumentation:
// discovery cycle duration, known/assigned/finished split gauges, the
// listing-inconsistency counter, and assignment batch size.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the surface the enumerator drives. NewRecorder returns the
// Prometheus-backed implementation; Noop lets tests swap in a no-op.
type Recorder interface {
	ObserveDiscoveryDuration(seconds float64)
	SetKnownSplits(n float64)
	SetAssignedSplits(n float64)
	SetFinishedSplits(n float64)
	IncInconsistency()
	ObserveAssignmentBatchSize(n float64)
}

type prometheusRecorder struct {
	discoveryDuration    prometheus.Histogram
	knownSplits          prometheus.Gauge
	assignedSplits       prometheus.Gauge
	finishedSplits       prometheus.Gauge
	inconsistencyTotal   prometheus.Counter
	assignmentBatchSize  prometheus.Histogram
}

// NewRecorder registers the enumerator's metric family on reg and returns a
// Recorder backed by it. streamARN is attached as a constant label so a
// process enumerating multiple streams doesn't collide metric series.
func NewRecorder(reg prometheus.Registerer, streamARN string) Recorder {
	labels := prometheus.Labels{"stream_arn": streamARN}

	r := &prometheusRecorder{
		discoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "streamshard",
			Subsystem:   "enumerator",
			Name:        "discovery_duration_seconds",
			Help:        "Duration of one listShards+ShardGraphTracker resolution cycle.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		knownSplits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "streamshard",
			Subsystem:   "enumerator",
			Name:        "known_splits",
			Help:        "Number of splits currently known to the SplitTracker.",
			ConstLabels: labels,
		}),
		assignedSplits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "streamshard",
			Subsystem:   "enumerator",
			Name:        "assigned_splits",
			Help:        "Number of splits currently in ASSIGNED status.",
			ConstLabels: labels,
		}),
		finishedSplits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "streamshard",
			Subsystem:   "enumerator",
			Name:        "finished_splits",
			Help:        "Number of splits currently in FINISHED status.",
			ConstLabels: labels,
		}),
		inconsistencyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "streamshard",
			Subsystem:   "enumerator",
			Name:        "listing_inconsistency_total",
			Help:        "Count of discovery cycles that ended with an unresolved listing inconsistency.",
			ConstLabels: labels,
		}),
		assignmentBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "streamshard",
			Subsystem:   "enumerator",
			Name:        "assignment_batch_size",
			Help:        "Number of splits assigned in a single assignAll/assignChildren call.",
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250},
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			r.discoveryDuration,
			r.knownSplits,
			r.assignedSplits,
			r.finishedSplits,
			r.inconsistencyTotal,
			r.assignmentBatchSize,
		)
	}

	return r
}

func (r *prometheusRecorder) ObserveDiscoveryDuration(seconds float64) {
	r.discoveryDuration.Observe(seconds)
}
func (r *prometheusRecorder) SetKnownSplits(n float64)    { r.knownSplits.Set(n) }
func (r *prometheusRecorder) SetAssignedSplits(n float64) { r.assignedSplits.Set(n) }
func (r *prometheusRecorder) SetFinishedSplits(n float64) { r.finishedSplits.Set(n) }
func (r *prometheusRecorder) IncInconsistency()           { r.inconsistencyTotal.Inc() }
func (r *prometheusRecorder) ObserveAssignmentBatchSize(n float64) {
	r.assignmentBatchSize.Observe(n)
}

// Noop is a Recorder that discards every observation, for tests and for
// callers that don't want a Prometheus registry.
type Noop struct{}

func (Noop) ObserveDiscoveryDuration(float64)    {}
func (Noop) SetKnownSplits(float64)              {}
func (Noop) SetAssignedSplits(float64)           {}
func (Noop) SetFinishedSplits(float64)           {}
func (Noop) IncInconsistency()                   {}
func (Noop) ObserveAssignmentBatchSize(float64)  {}
