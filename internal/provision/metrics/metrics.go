package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TenantsInitialized prometheus.Counter
	TenantsConfirmed   prometheus.Counter
	PipelineOutcomes   *prometheus.CounterVec
	PipelineDuration   prometheus.Histogram
	StepDuration       *prometheus.HistogramVec
	QueueDepth         prometheus.Gauge
	QueueRejections    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TenantsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vendo_tenants_initialized_total",
			Help: "Total number of tenant registrations accepted",
		}),
		TenantsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vendo_tenants_confirmed_total",
			Help: "Total number of tenants confirmed and enqueued for provisioning",
		}),
		PipelineOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vendo_provisioning_runs_total",
			Help: "Provisioning pipeline runs by outcome",
		}, []string{"outcome"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendo_provisioning_duration_seconds",
			Help:    "Duration of full provisioning pipeline runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendo_provisioning_step_duration_seconds",
			Help:    "Duration of individual provisioning steps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vendo_provisioning_queue_depth",
			Help: "Jobs currently waiting in the provisioning queue",
		}),
		QueueRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vendo_provisioning_queue_rejections_total",
			Help: "Enqueue attempts rejected because the queue was full",
		}),
	}
}

func (m *Metrics) IncrementInitialized() {
	m.TenantsInitialized.Inc()
}

func (m *Metrics) IncrementConfirmed() {
	m.TenantsConfirmed.Inc()
}

func (m *Metrics) ObservePipeline(outcome string, start time.Time) {
	m.PipelineOutcomes.WithLabelValues(outcome).Inc()
	m.PipelineDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveStep(step string, start time.Time) {
	m.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) IncrementQueueRejected() {
	m.QueueRejections.Inc()
}
