package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes metrics
type Collector struct {
	registry     *prometheus.Registry
	filesTotal   *prometheus.CounterVec
	batchesTotal *prometheus.CounterVec
	bytesTotal   prometheus.Counter
	inflight     prometheus.Gauge
	duration     prometheus.Histogram
}

// New creates a new metrics collector with its own registry, so repeated
// construction (one per process, many per test run) never collides.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uplink_files_total",
				Help: "Total number of file uploads by terminal status",
			},
			[]string{"status"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uplink_batches_total",
				Help: "Total number of upload batches by outcome",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "uplink_bytes_total",
				Help: "Total bytes uploaded",
			},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "uplink_inflight_uploads",
				Help: "Number of uploads currently in flight",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uplink_file_duration_seconds",
				Help:    "Time taken to upload one file",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	c.registry.MustRegister(c.filesTotal)
	c.registry.MustRegister(c.batchesTotal)
	c.registry.MustRegister(c.bytesTotal)
	c.registry.MustRegister(c.inflight)
	c.registry.MustRegister(c.duration)

	return c
}

// IncUploaded counts one successful upload and its bytes
func (c *Collector) IncUploaded(bytes int64) {
	c.filesTotal.WithLabelValues("uploaded").Inc()
	c.bytesTotal.Add(float64(bytes))
}

// IncFailed counts one file that exhausted its attempts
func (c *Collector) IncFailed() {
	c.filesTotal.WithLabelValues("failed").Inc()
}

// IncRetried counts one retry scheduled
func (c *Collector) IncRetried() {
	c.filesTotal.WithLabelValues("retried").Inc()
}

// IncBatch counts one finished batch by outcome
func (c *Collector) IncBatch(outcome string) {
	c.batchesTotal.WithLabelValues(outcome).Inc()
}

// IncInflight marks one upload started
func (c *Collector) IncInflight() {
	c.inflight.Inc()
}

// DecInflight marks one upload finished
func (c *Collector) DecInflight() {
	c.inflight.Dec()
}

// ObserveDuration observes one upload duration
func (c *Collector) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
