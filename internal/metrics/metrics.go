package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_events_total",
			Help: "Inbound chat events by platform and kind.",
		},
		[]string{"platform", "kind"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_events_dropped_total",
			Help: "Inbound chat events dropped before handling.",
		},
		[]string{"reason"},
	)

	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_remote_requests_total",
			Help: "Calls to text-generation backends by outcome.",
		},
		[]string{"backend", "outcome"},
	)

	RemoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pocket_remote_request_duration_seconds",
			Help:    "Text-generation backend latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"backend"},
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_quota_rejections_total",
			Help: "Requests refused because a daily limit was reached.",
		},
		[]string{"counter"},
	)

	QuotaSnapshotErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pocket_quota_snapshot_errors_total",
			Help: "Failed quota snapshot writes.",
		},
	)

	ValidationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_validation_rejections_total",
			Help: "Uploads or inputs rejected before a remote call.",
		},
		[]string{"reason"},
	)

	BusyIndicatorsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pocket_busy_indicators_active",
			Help: "Typing indicators currently running.",
		},
	)

	RenderFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_render_fallbacks_total",
			Help: "Generated files that fell back to plain text delivery.",
		},
		[]string{"variant"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		EventsTotal,
		EventsDroppedTotal,
		RemoteRequestsTotal,
		RemoteRequestDuration,
		QuotaRejectionsTotal,
		QuotaSnapshotErrorsTotal,
		ValidationRejectionsTotal,
		BusyIndicatorsActive,
		RenderFallbacksTotal,
	)
}
