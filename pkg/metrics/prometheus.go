package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles      prometheus.Counter
	cycleTime   prometheus.Histogram
	cycleTasks  prometheus.Gauge
	tasks       *prometheus.CounterVec
	signals     *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inFlight    prometheus.Gauge
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg. Tests pass a
// fresh prometheus.NewRegistry() so construction can be repeated.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "signalscan_scan_cycles_total",
			Help: "Total number of completed scan cycles",
		}),
		cycleTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalscan_scan_cycle_duration_seconds",
			Help:    "Duration of a full scan cycle in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		cycleTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalscan_scan_cycle_tasks",
			Help: "Number of (symbol, timeframe) tasks in the last cycle",
		}),
		tasks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_scan_tasks_total",
				Help: "Scan task outcomes",
			},
			[]string{"outcome"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_signals_total",
				Help: "Total number of emitted signals",
			},
			[]string{"symbol", "direction"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_synthetic_fallbacks_total",
				Help: "Series served from the synthetic generator",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalscan_scan_tasks_in_flight",
			Help: "Scan tasks currently holding an admission slot",
		}),
	}
}

// RecordCycle records a finished scan cycle.
func (r *Recorder) RecordCycle(seconds float64, tasks int) {
	r.cycles.Inc()
	r.cycleTime.Observe(seconds)
	r.cycleTasks.Set(float64(tasks))
}

// RecordTask records the outcome of one scan task.
func (r *Recorder) RecordTask(outcome string) {
	r.tasks.WithLabelValues(outcome).Inc()
}

// RecordSignal records an emitted signal.
func (r *Recorder) RecordSignal(symbol string, direction models.Direction) {
	r.signals.WithLabelValues(symbol, string(direction)).Inc()
}

// RecordFallback records a synthetic series served for symbol.
func (r *Recorder) RecordFallback(symbol string) {
	r.fallbacks.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetInFlight(n int) {
	r.inFlight.Set(float64(n))
}

var _ repository.Metrics = (*Recorder)(nil)
