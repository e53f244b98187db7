package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TranscriptionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicejournal_transcription_failures_total",
			Help: "Speech-to-text calls that returned an error",
		},
	)

	SummaryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicejournal_summary_failures_total",
			Help: "Summary calls that returned an error",
		},
	)

	// op is "create" or "append"
	JournalItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicejournal_journal_items_total",
			Help: "Journal items written",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TranscriptionFailuresTotal,
		SummaryFailuresTotal,
		JournalItemsTotal,
	)
}
