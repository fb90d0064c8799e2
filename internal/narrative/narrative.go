// Package narrative renders a structured analysis report as prose for the
// chat endpoint. The model-backed formatter is optional; the rule-based one
// always works and keeps output deterministic.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// Formatter turns a report into a human-readable answer to a query.
type Formatter interface {
	Render(ctx context.Context, query string, report models.Report) (string, error)
}

// RuleFormatter produces a fixed-template narrative with no external calls.
type RuleFormatter struct{}

// NewRuleFormatter constructs the deterministic fallback formatter.
func NewRuleFormatter() *RuleFormatter {
	return &RuleFormatter{}
}

// Render walks the report top-down: verdict, causes, timeline, summary.
func (f *RuleFormatter) Render(_ context.Context, _ string, report models.Report) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Analysis for %s\n\n", report.Date)
	b.WriteString(verdictLine(report.SLA))
	b.WriteString("\n")

	if len(report.RootCauses) > 0 {
		b.WriteString("\nRoot causes:\n")
		for _, cause := range report.RootCauses {
			fmt.Fprintf(&b, "- [%s] %s (%.0f%% contribution)", cause.Severity, cause.Cause, cause.Contribution)
			if cause.Cascading {
				b.WriteString(" [cascading]")
			}
			b.WriteString("\n")
			if cause.Evidence != "" {
				fmt.Fprintf(&b, "  Evidence: %s\n", cause.Evidence)
			}
		}
	}

	if len(report.Timeline) > 0 {
		b.WriteString("\nTimeline:\n")
		for _, event := range report.Timeline {
			fmt.Fprintf(&b, "- %s  %s", event.Timestamp.Format("15:04"), event.Label)
			if event.Detail != "" {
				fmt.Fprintf(&b, ": %s", event.Detail)
			}
			b.WriteString("\n")
		}
	}

	if report.FailureLog.TotalErrors > 0 {
		fmt.Fprintf(&b, "\nFailure log: %s\n", report.FailureLog.Summary)
	}

	b.WriteString("\nStatus summary:\n")
	fmt.Fprintf(&b, "- Marker event: %s\n", report.Summary.MarkerEvent)
	fmt.Fprintf(&b, "- Job processing: %s\n", report.Summary.JobProcessing)
	fmt.Fprintf(&b, "- EKS: %s\n", report.Summary.EKSStatus)
	fmt.Fprintf(&b, "- RDS: %s\n", report.Summary.RDSStatus)
	fmt.Fprintf(&b, "- SQS: %s\n", report.Summary.SQSStatus)

	if len(report.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String(), nil
}

func verdictLine(sla models.SLAStatus) string {
	switch sla.State {
	case models.SLABreached:
		return fmt.Sprintf("The pipeline missed its %.1f hour SLA: processing took %.2f hours (%.2f hours over).",
			sla.LimitHours, sla.DurationHours, sla.ExcessHours)
	case models.SLAMet:
		return fmt.Sprintf("The pipeline met its %.1f hour SLA: processing took %.2f hours.",
			sla.LimitHours, sla.DurationHours)
	case models.SLAIncomplete:
		return "Processing has not finished yet, so the SLA cannot be evaluated."
	default:
		return "No marker event was recorded for this date, so the SLA cannot be evaluated."
	}
}
