package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels failed analyses (storage or dependency issues).
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_rca",
			Name:      "analyses_total",
			Help:      "Total number of analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pipeline_rca",
			Name:      "analysis_seconds",
			Help:      "Analysis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 5, 8},
		},
	)

	documentsMissingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_rca",
			Name:      "documents_missing_total",
			Help:      "Telemetry documents absent from storage, partitioned by document kind.",
		},
		[]string{"document"},
	)

	samplesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_rca",
			Name:      "samples_skipped_total",
			Help:      "Malformed metric samples dropped during normalization, partitioned by domain.",
		},
		[]string{"domain"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_rca",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, partitioned by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register attaches pipeline-rca collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		documentsMissingTotal,
		samplesSkippedTotal,
		httpRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveDocumentMissing counts a telemetry document absent from storage.
func ObserveDocumentMissing(document string) {
	documentsMissingTotal.WithLabelValues(document).Inc()
}

// ObserveSamplesSkipped counts malformed samples dropped for a domain.
func ObserveSamplesSkipped(domain string, count int) {
	if count <= 0 {
		return
	}
	samplesSkippedTotal.WithLabelValues(domain).Add(float64(count))
}

// ObserveHTTPRequest counts one served HTTP request.
func ObserveHTTPRequest(route, code string) {
	httpRequestsTotal.WithLabelValues(route, code).Inc()
}
