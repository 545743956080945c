package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tube_courier"

// Metrics holds Prometheus counters and gauges for the bot. All methods are
// safe to call on a nil *Metrics, which disables recording (e.g. in tests).
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	sessionsCreated   prometheus.Counter
	lookupsFailed     *prometheus.CounterVec
	selections        *prometheus.CounterVec
	downloadsFinished *prometheus.CounterVec
	downloadDuration  prometheus.Histogram
	bytesDelivered    prometheus.Counter
	sessionsExpired   prometheus.Counter
	filesSwept        prometheus.Counter
	activeDownloads   prometheus.Gauge
	sessions          *prometheus.GaugeVec
	downloadDirFree   prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created after a successful lookup",
		}),
		lookupsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_failed_total",
			Help:      "Lookups that did not produce a session, by result code",
		}, []string{"code"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Encoding selections received, by result code",
		}, []string{"code"}),
		downloadsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_finished_total",
			Help:      "Download tasks that reached an end state, by outcome",
		}, []string{"outcome"}),
		downloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time from selection to delivery or failure",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),
		bytesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_delivered_total",
			Help:      "Bytes uploaded to chats",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the housekeeper",
		}),
		filesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_swept_total",
			Help:      "Stale files removed from the download directory",
		}),
		activeDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_downloads",
			Help:      "Downloads currently in flight",
		}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions held in memory, by state",
		}, []string{"state"}),
		downloadDirFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "download_dir_free_bytes",
			Help:      "Free bytes on the filesystem holding the download directory",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessionsCreated,
		m.lookupsFailed,
		m.selections,
		m.downloadsFinished,
		m.downloadDuration,
		m.bytesDelivered,
		m.sessionsExpired,
		m.filesSwept,
		m.activeDownloads,
		m.sessions,
		m.downloadDirFree,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncSessionsCreated increments the created sessions counter.
func (m *Metrics) IncSessionsCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// IncLookupFailed records a lookup that ended with the given result code.
func (m *Metrics) IncLookupFailed(code string) {
	if m == nil {
		return
	}
	m.lookupsFailed.WithLabelValues(code).Inc()
}

// IncSelection records an encoding selection and its result code.
func (m *Metrics) IncSelection(code string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(code).Inc()
}

// ObserveDownload records a finished download task.
func (m *Metrics) ObserveDownload(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.downloadsFinished.WithLabelValues(outcome).Inc()
	m.downloadDuration.Observe(elapsed.Seconds())
}

// AddBytesDelivered adds n uploaded bytes.
func (m *Metrics) AddBytesDelivered(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesDelivered.Add(float64(n))
}

// AddSessionsExpired adds n swept sessions.
func (m *Metrics) AddSessionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsExpired.Add(float64(n))
}

// AddFilesSwept adds n removed stale files.
func (m *Metrics) AddFilesSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.filesSwept.Add(float64(n))
}

// SetActiveDownloads sets the in-flight downloads gauge.
func (m *Metrics) SetActiveDownloads(n int) {
	if m == nil {
		return
	}
	m.activeDownloads.Set(float64(n))
}

// SetSessions replaces the per-state session gauges.
func (m *Metrics) SetSessions(byState map[string]int) {
	if m == nil {
		return
	}
	m.sessions.Reset()
	for state, n := range byState {
		m.sessions.WithLabelValues(state).Set(float64(n))
	}
}

// SetDownloadDirFree sets the free bytes gauge.
func (m *Metrics) SetDownloadDirFree(free uint64) {
	if m == nil {
		return
	}
	m.downloadDirFree.Set(float64(free))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. session counts).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
