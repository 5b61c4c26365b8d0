package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Drain metrics
	DrainCycles     *prometheus.CounterVec
	DrainDuration   prometheus.Histogram
	BytesDrained    prometheus.Counter
	LinesEmitted    prometheus.Counter
	LinesSynthetic  prometheus.Counter
	SinkErrors      prometheus.Counter
	ReassemblyErrs  prometheus.Counter
	RearmFailures   prometheus.Counter
	ReaderOffset    prometheus.Gauge
	WriterOffset    prometheus.Gauge
	SessionsActive  prometheus.Gauge
	AttachFailures  *prometheus.CounterVec
	TailConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the status API
type Snapshot struct {
	Cycles         int64     `json:"cycles"`
	SkippedCycles  int64     `json:"skipped_cycles"`
	Bytes          int64     `json:"bytes"`
	Lines          int64     `json:"lines"`
	SyntheticLines int64     `json:"synthetic_lines"`
	SinkErrors     int64     `json:"sink_errors"`
	LastDrain      time.Time `json:"last_drain"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	start := time.Now()

	m := &Metrics{
		registry:  registry,
		startTime: start,

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teelog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teelog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		// Drain metrics
		DrainCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teelog_drain_cycles_total",
				Help: "Drain cycles by outcome",
			},
			[]string{"result"},
		),
		DrainDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "teelog_drain_duration_seconds",
				Help:    "Time spent in one drain cycle",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
		),
		BytesDrained: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teelog_bytes_drained_total",
				Help: "Bytes read out of the shared ring",
			},
		),
		LinesEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teelog_lines_emitted_total",
				Help: "Lines handed to the sink",
			},
		),
		LinesSynthetic: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teelog_lines_synthetic_total",
				Help: "Lines cut at the length limit or at a drain boundary",
			},
		),
		SinkErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teelog_sink_errors_total",
				Help: "Lines the sink rejected",
			},
		),
		ReassemblyErrs: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teelog_reassembly_errors_total",
				Help: "Drain cycles that left bytes unconsumed",
			},
		),
		RearmFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teelog_rearm_failures_total",
				Help: "Times the periodic drain could not be re-armed",
			},
		),
		ReaderOffset: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "teelog_reader_offset_bytes",
				Help: "Consumer cursor after the last drain",
			},
		),
		WriterOffset: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "teelog_writer_offset_bytes",
				Help: "Producer cursor seen by the last drain",
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "teelog_sessions_active",
				Help: "Attached shared memory sessions",
			},
		),
		AttachFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teelog_attach_failures_total",
				Help: "Failed attach attempts by reason",
			},
			[]string{"reason"},
		),
		TailConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "teelog_tail_connections",
				Help: "Connected live-tail WebSocket clients",
			},
		),

		// System metrics
		Uptime: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "teelog_uptime_seconds",
				Help: "Process uptime in seconds",
			},
			func() float64 { return time.Since(start).Seconds() },
		),
	}

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDrain records one drain cycle
func (m *Metrics) ObserveDrain(stats shmlog.Stats, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
		m.ReassemblyErrs.Inc()
	case stats.Skipped:
		result = "skipped"
	case stats.Bytes == 0:
		result = "empty"
	}
	m.DrainCycles.WithLabelValues(result).Inc()
	m.DrainDuration.Observe(stats.Duration.Seconds())

	if !stats.Skipped {
		m.BytesDrained.Add(float64(stats.Bytes))
		m.LinesEmitted.Add(float64(stats.Lines))
		m.LinesSynthetic.Add(float64(stats.Synthetic))
		m.SinkErrors.Add(float64(stats.SinkErrors))
		m.ReaderOffset.Set(float64(stats.Reader))
		m.WriterOffset.Set(float64(stats.Writer))
	}

	// Update snapshot
	m.mu.Lock()
	m.snapshot.Cycles++
	if stats.Skipped {
		m.snapshot.SkippedCycles++
	}
	m.snapshot.Bytes += int64(stats.Bytes)
	m.snapshot.Lines += int64(stats.Lines)
	m.snapshot.SyntheticLines += int64(stats.Synthetic)
	m.snapshot.SinkErrors += int64(stats.SinkErrors)
	m.snapshot.LastDrain = time.Now()
	m.mu.Unlock()
}

// StartTime is when the collector was created
func (m *Metrics) StartTime() time.Time {
	return m.startTime
}

// Snapshot returns a copy of the running totals
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncRearmFailures counts a failed re-arm of the drain timer
func (m *Metrics) IncRearmFailures() {
	m.RearmFailures.Inc()
}

// RecordAttachFailure counts a failed attach attempt
func (m *Metrics) RecordAttachFailure(reason string) {
	m.AttachFailures.WithLabelValues(reason).Inc()
}

// SetSessionsActive sets the number of attached sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// IncTailConnections increments live-tail connections
func (m *Metrics) IncTailConnections() {
	m.TailConnections.Inc()
}

// DecTailConnections decrements live-tail connections
func (m *Metrics) DecTailConnections() {
	m.TailConnections.Dec()
}
