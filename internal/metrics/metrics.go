package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives provisioning events.
type Recorder interface {
	RecordSync(entity, outcome string)
	RecordTokenFetch(success bool)
	RecordBatch(duration time.Duration, courses int)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	SyncTotal        *prometheus.CounterVec
	TokenFetchTotal  *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	BatchCoursesSeen prometheus.Gauge
	LastBatchUnix    prometheus.Gauge
}

// New registers the metrics on reg. Passing a fresh registry keeps tests
// independent of the global default one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proctor_sync",
			Name:      "sync_total",
			Help:      "Entity synchronizer calls by entity and outcome.",
		}, []string{"entity", "outcome"}),
		TokenFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proctor_sync",
			Name:      "token_fetch_total",
			Help:      "Access token requests by result.",
		}, []string{"result"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proctor_sync",
			Name:      "batch_duration_seconds",
			Help:      "Duration of full-catalog provisioning runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),
		BatchCoursesSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor_sync",
			Name:      "batch_courses",
			Help:      "Courses visited by the last provisioning run.",
		}),
		LastBatchUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor_sync",
			Name:      "batch_last_completed_timestamp_seconds",
			Help:      "Completion time of the last provisioning run.",
		}),
	}
	reg.MustRegister(m.SyncTotal, m.TokenFetchTotal, m.BatchDuration, m.BatchCoursesSeen, m.LastBatchUnix)
	return m
}

func (m *Metrics) RecordSync(entity, outcome string) {
	m.SyncTotal.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) RecordTokenFetch(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.TokenFetchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBatch(duration time.Duration, courses int) {
	m.BatchDuration.Observe(duration.Seconds())
	m.BatchCoursesSeen.Set(float64(courses))
	m.LastBatchUnix.SetToCurrentTime()
}
