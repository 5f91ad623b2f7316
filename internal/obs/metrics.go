package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters/histograms observed on the hot paths of
// the snapshot pipeline and vector index, mirroring the
// metrics.KVDBUpdate / metrics.LockUpdate observe-on-hot-path style
// from disksing-faketikv/raftstore/engine.go.
type Metrics struct {
	SnapshotSaveTotal    *prometheus.CounterVec
	SnapshotSaveDuration *prometheus.HistogramVec
	SnapshotLoadTotal    *prometheus.CounterVec
	SnapshotLoadDuration prometheus.Histogram
	VectorIndexOpTotal   *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// global default registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SnapshotSaveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_engine",
			Subsystem: "raft_snapshot",
			Name:      "save_total",
			Help:      "Count of raft snapshot save attempts by policy and outcome.",
		}, []string{"policy", "outcome"}),
		SnapshotSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "region_engine",
			Subsystem: "raft_snapshot",
			Name:      "save_duration_seconds",
			Help:      "Latency of raft snapshot save by policy.",
		}, []string{"policy"}),
		SnapshotLoadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_engine",
			Subsystem: "raft_snapshot",
			Name:      "load_total",
			Help:      "Count of raft snapshot load attempts by outcome.",
		}, []string{"outcome"}),
		SnapshotLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "region_engine",
			Subsystem: "raft_snapshot",
			Name:      "load_duration_seconds",
			Help:      "Latency of raft snapshot load.",
		}),
		VectorIndexOpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_engine",
			Subsystem: "vector_index",
			Name:      "op_total",
			Help:      "Count of vector index operations by variant and op.",
		}, []string{"variant", "op"}),
	}
	reg.MustRegister(m.SnapshotSaveTotal, m.SnapshotSaveDuration, m.SnapshotLoadTotal,
		m.SnapshotLoadDuration, m.VectorIndexOpTotal)
	return m
}

// ObserveSnapshotSave records the outcome and duration of one raft
// snapshot save attempt. m may be nil, in which case the observation
// is a no-op, letting callers that don't care about metrics pass nil
// rather than threading a disabled-metrics sentinel around.
func (m *Metrics) ObserveSnapshotSave(policy string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.SnapshotSaveTotal.WithLabelValues(policy, outcomeLabel(err)).Inc()
	m.SnapshotSaveDuration.WithLabelValues(policy).Observe(took.Seconds())
}

// ObserveSnapshotLoad records the outcome and duration of one raft
// snapshot load attempt. m may be nil.
func (m *Metrics) ObserveSnapshotLoad(took time.Duration, err error) {
	if m == nil {
		return
	}
	m.SnapshotLoadTotal.WithLabelValues(outcomeLabel(err)).Inc()
	m.SnapshotLoadDuration.Observe(took.Seconds())
}

// ObserveVectorIndexOp records one vector index operation. m may be nil.
func (m *Metrics) ObserveVectorIndexOp(variant, op string) {
	if m == nil {
		return
	}
	m.VectorIndexOpTotal.WithLabelValues(variant, op).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
