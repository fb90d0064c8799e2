package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pipelinesight/pipeline-rca/internal/engine"
	"github.com/pipelinesight/pipeline-rca/internal/metrics"
	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/narrative"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

// DateLister enumerates the dates that have at least one telemetry document.
type DateLister interface {
	Dates(ctx context.Context) ([]string, error)
}

// RCAService is the facade the HTTP layer talks to. It validates input,
// runs the analysis pipeline and tracks latency and outcome metrics.
type RCAService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	lister    DateLister
	formatter narrative.Formatter
	latencies *utils.LatencyTracker
}

// NewRCAService constructs the analysis service facade.
func NewRCAService(logger *slog.Logger, pipeline *engine.Pipeline, lister DateLister, formatter narrative.Formatter) *RCAService {
	if logger == nil {
		logger = slog.Default()
	}
	if formatter == nil {
		formatter = narrative.NewRuleFormatter()
	}
	return &RCAService{
		logger:    logger,
		pipeline:  pipeline,
		lister:    lister,
		formatter: formatter,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Analyze runs the full diagnosis for one date.
func (s *RCAService) Analyze(ctx context.Context, date string, override *models.Window) (models.Report, error) {
	if s.pipeline == nil {
		return models.Report{}, utils.NewAppError("services.Analyze", "pipeline not configured", nil)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return models.Report{}, utils.NewAppError("services.Analyze", fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date), utils.ErrInvalidInput)
	}

	start := time.Now()
	report, err := s.pipeline.Analyze(ctx, date, override)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		s.logger.Error("analysis failed", slog.String("date", date), slog.Any("error", err))
		return models.Report{}, utils.NewAppError("services.Analyze", "analysis failed", err)
	}

	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	s.observeDegradation(report)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("analysis latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return report, nil
}

// Chat analyzes a date and renders the report as prose for the query.
func (s *RCAService) Chat(ctx context.Context, query, date string) (string, models.Report, error) {
	report, err := s.Analyze(ctx, date, nil)
	if err != nil {
		return "", models.Report{}, err
	}
	answer, err := s.formatter.Render(ctx, query, report)
	if err != nil {
		s.logger.Error("narrative rendering failed", slog.String("date", date), slog.Any("error", err))
		return "", models.Report{}, utils.NewAppError("services.Chat", "narrative rendering failed", err)
	}
	return answer, report, nil
}

// Dates lists analyzable dates, newest first.
func (s *RCAService) Dates(ctx context.Context) ([]string, error) {
	if s.lister == nil {
		return nil, utils.NewAppError("services.Dates", "date lister not configured", nil)
	}
	dates, err := s.lister.Dates(ctx)
	if err != nil {
		s.logger.Error("date listing failed", slog.Any("error", err))
		return nil, utils.NewAppError("services.Dates", "date listing failed", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// LatencyP95 returns the current p95 analysis latency.
func (s *RCAService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *RCAService) observeDegradation(report models.Report) {
	summaries := map[string]string{
		string(models.KindMarkerEvent):    report.Summary.MarkerEvent,
		string(models.KindJobRuns):        report.Summary.JobProcessing,
		string(models.KindComputeMetrics): report.Summary.EKSStatus,
		string(models.KindStorageMetrics): report.Summary.RDSStatus,
		string(models.KindQueueMetrics):   report.Summary.SQSStatus,
	}
	for kind, value := range summaries {
		if value == models.ValueUnavailable {
			metrics.ObserveDocumentMissing(kind)
		}
	}
	for domain, count := range report.SkippedSamples {
		metrics.ObserveSamplesSkipped(domain.Code(), count)
	}
}
