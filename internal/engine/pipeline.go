package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/store"
	"github.com/pipelinesight/pipeline-rca/internal/thresholds"
)

// DocumentSource defines the storage lookup behaviour used by the pipeline.
type DocumentSource interface {
	Fetch(ctx context.Context, date string, kind models.DocKind) ([]byte, error)
}

// Options tune one pipeline instance. Zero values fall back to defaults.
type Options struct {
	SLALimitHours float64
	ClusterGap    time.Duration
}

// Pipeline runs the full analysis flow for one date: load, normalize,
// evaluate, scan, correlate, summarize, assemble. It is stateless across
// invocations; the only shared state is the read-only threshold table.
type Pipeline struct {
	logger     *slog.Logger
	source     DocumentSource
	normalizer *Normalizer
	scanner    *Scanner
	correlator *Correlator
	limitHours float64
}

// NewPipeline constructs an analysis pipeline.
func NewPipeline(logger *slog.Logger, source DocumentSource, table *thresholds.Table, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.SLALimitHours
	if limit <= 0 {
		limit = DefaultSLALimitHours
	}
	return &Pipeline{
		logger:     logger,
		source:     source,
		normalizer: NewNormalizer(table, logger),
		scanner:    NewScanner(table, logger),
		correlator: NewCorrelator(opts.ClusterGap),
		limitHours: limit,
	}
}

// Analyze produces the structured diagnosis for one date. It is
// deterministic and side-effect-free: identical storage contents yield
// byte-identical reports. override, when non-nil, replaces the derived
// processing window for breach scanning.
//
// Missing documents degrade the affected stage to "unavailable"; only a
// failing source or a cancelled context produce an error.
func (p *Pipeline) Analyze(ctx context.Context, date string, override *models.Window) (models.Report, error) {
	if p.source == nil {
		return models.Report{}, fmt.Errorf("document source not configured")
	}

	docs, err := p.loadDocuments(ctx, date)
	if err != nil {
		return models.Report{}, err
	}
	bundle := p.normalizer.Normalize(date, docs)

	sla := EvaluateSLA(bundle, p.limitHours)
	window := ProcessingWindow(sla)
	if override != nil {
		window = *override
	}

	scan, err := p.scanner.Scan(ctx, bundle, window)
	if err != nil {
		return models.Report{}, err
	}

	corr := p.correlator.Correlate(bundle, sla, scan.Breaches)
	causes := Summarize(sla, bundle.Trigger, corr)
	timeline := AssembleTimeline(bundle, sla, corr)

	report := models.Report{
		Date:               date,
		SLA:                sla,
		RootCauses:         causes,
		Timeline:           timeline,
		Summary:            buildSummary(bundle, sla, scan),
		SkippedSamples:     skippedByDomain(bundle),
		BackgroundBreaches: scan.Background,
		Recommendations:    recommendations(sla, corr),
		FailureLog:         failureLogStatus(bundle),
		ScanState:          "ok",
	}
	if scan.Deferred {
		report.ScanState = models.ValueDeferred
	}

	// Serialized reports must never carry null collections.
	if report.RootCauses == nil {
		report.RootCauses = []models.RootCause{}
	}
	if report.Timeline == nil {
		report.Timeline = []models.TimelineEvent{}
	}
	if report.BackgroundBreaches == nil {
		report.BackgroundBreaches = []models.Breach{}
	}
	if report.Recommendations == nil {
		report.Recommendations = []string{}
	}

	return report, nil
}

// loadDocuments fetches the five metric documents and the optional failure
// log in parallel. A not-found is recorded by omission; any other storage
// failure aborts the invocation.
func (p *Pipeline) loadDocuments(ctx context.Context, date string) (RawDocs, error) {
	kinds := append([]models.DocKind(nil), models.DocKinds...)
	kinds = append(kinds, models.KindFailureLog)

	var mu sync.Mutex
	docs := make(RawDocs, len(kinds))

	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			data, err := p.source.Fetch(ctx, date, kind)
			if err != nil {
				if errors.Is(err, store.ErrDocumentNotFound) {
					p.logger.Debug("document absent",
						slog.String("date", date),
						slog.String("kind", string(kind)))
					return nil
				}
				return fmt.Errorf("fetch %s: %w", kind, err)
			}
			mu.Lock()
			docs[kind] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func buildSummary(bundle *models.Bundle, sla models.SLAStatus, scan ScanResult) models.Summary {
	summary := models.Summary{
		MarkerEvent:   models.ValueUnavailable,
		JobProcessing: models.ValueUnavailable,
		EKSStatus:     models.ValueUnavailable,
		RDSStatus:     models.ValueUnavailable,
		SQSStatus:     models.ValueUnavailable,
	}

	if bundle.Trigger != nil {
		if bundle.Trigger.Late() {
			summary.MarkerEvent = fmt.Sprintf("Delayed (%d min)", int(bundle.Trigger.Delay().Minutes()))
		} else {
			summary.MarkerEvent = "On time"
		}
	}

	if bundle.Available(models.KindJobRuns) {
		if sla.State == models.SLAIncomplete {
			summary.JobProcessing = models.ValueIncomplete
		} else {
			failed := 0
			for _, run := range bundle.Runs {
				if run.Failed() {
					failed++
				}
			}
			summary.JobProcessing = fmt.Sprintf("%d runs across %d DAGs (%d failed)",
				len(bundle.Runs), bundle.DistinctDAGs, failed)
			if bundle.SkippedRuns > 0 {
				summary.JobProcessing += fmt.Sprintf(", %d records skipped", bundle.SkippedRuns)
			}
		}
	}

	breaching := make(map[models.Domain]int, len(models.Domains))
	for _, breach := range scan.Breaches {
		breaching[breach.Domain]++
	}
	domainLine := func(domain models.Domain) string {
		if !bundle.Available(models.DomainKind(domain)) {
			return models.ValueUnavailable
		}
		if scan.Deferred {
			return models.ValueDeferred
		}
		return fmt.Sprintf("%d samples, %d breaching", len(bundle.Samples[domain]), breaching[domain])
	}
	summary.EKSStatus = domainLine(models.DomainCompute)
	summary.RDSStatus = domainLine(models.DomainStorage)
	summary.SQSStatus = domainLine(models.DomainQueue)

	return summary
}

// failureLogStatus lifts the analyzed stderr capture into the report, or the
// unavailable sentinel when no capture exists for the date.
func failureLogStatus(bundle *models.Bundle) models.FailureLog {
	if bundle.Logs == nil {
		return models.FailureLog{
			Summary:  models.ValueUnavailable,
			Contexts: []models.ErrorContext{},
		}
	}
	return *bundle.Logs
}

func skippedByDomain(bundle *models.Bundle) map[models.Domain]int {
	skipped := make(map[models.Domain]int, len(models.Domains))
	for _, domain := range models.Domains {
		skipped[domain] = bundle.Skipped[domain]
	}
	return skipped
}

// recommendations derives remediation hints from the attribution outcome.
// Order is fixed so repeated analyses stay byte-identical.
func recommendations(sla models.SLAStatus, corr Correlation) []string {
	if !sla.Breached() {
		return nil
	}

	var recs []string
	add := func(items ...string) {
		for _, item := range items {
			seen := false
			for _, existing := range recs {
				if existing == item {
					seen = true
					break
				}
			}
			if !seen {
				recs = append(recs, item)
			}
		}
	}

	if corr.Decision.Kind == DecisionMarkerDelay {
		add(
			"Alert on marker arrivals more than 15 minutes late",
			"Agree a delivery SLA with the upstream marker producer",
		)
	}
	for _, cluster := range corr.Clusters {
		for _, domain := range cluster.Domains {
			switch domain {
			case models.DomainCompute:
				add(
					"Enable horizontal autoscaling for the processing pods",
					"Review pod resource requests and limits",
				)
			case models.DomainStorage:
				add(
					"Scale up the database instance or add read replicas",
					"Review slow queries and index coverage",
				)
			case models.DomainQueue:
				add(
					"Increase queue consumer concurrency",
					"Add a dead-letter queue for poison messages",
				)
			}
		}
	}
	if corr.Decision.Kind == DecisionUnexplained && len(corr.Clusters) == 0 {
		add("Extend telemetry coverage: no configured metric explains the breach")
	}
	add("Add predictive monitoring to flag SLA risk before the deadline")

	return recs
}
