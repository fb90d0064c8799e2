package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

// Summarize aggregates correlated clusters into named root causes with
// relative contribution scores. Exactly one entry is produced per cluster,
// plus one for a marker delay when the decision attributes it. When the SLA
// is breached and no cluster exists at all, the required degenerate case is
// a single "unexplained" entry at 100% rather than a silent omission.
func Summarize(sla models.SLAStatus, trigger *models.TriggerEvent, corr Correlation) []models.RootCause {
	clusters := corr.Clusters
	causes := make([]models.RootCause, 0, len(clusters)+1)

	switch corr.Decision.Kind {
	case DecisionMarkerDelay:
		causes = append(causes, markerDelayCause(sla, trigger, len(clusters) == 0))
		causes = append(causes, clusterCauses(clusters, -1, false)...)
	case DecisionInfrastructure:
		causes = append(causes, clusterCauses(clusters, corr.Decision.RootIndex, false)...)
	case DecisionUnexplained:
		if len(clusters) == 0 {
			causes = append(causes, models.RootCause{
				Category:     models.CategoryUnexplained,
				Severity:     models.SeverityWarning,
				Cause:        fmt.Sprintf("SLA exceeded by %.2f hours without correlated telemetry", sla.ExcessHours),
				Evidence:     "no threshold data correlates with the processing window",
				Contribution: 100,
			})
		} else {
			// In-window clusters exist but none starts strictly inside the
			// window; report them as evidence instead of claiming a blind spot.
			causes = append(causes, clusterCauses(clusters, 0, false)...)
		}
	default:
		// SLA met: infrastructure findings are near-miss information only
		// and the marker-delay category never appears.
		causes = append(causes, clusterCauses(clusters, -1, true)...)
	}

	return causes
}

func markerDelayCause(sla models.SLAStatus, trigger *models.TriggerEvent, soleCause bool) models.RootCause {
	delay := trigger.Delay()
	contribution := 100.0
	if !soleCause && sla.ExcessHours > 0 {
		contribution = math.Min(100, delay.Hours()/sla.ExcessHours*100)
	}
	name := trigger.Name
	if name == "" {
		name = "upstream"
	}
	return models.RootCause{
		Category: models.CategoryMarkerDelay,
		Severity: models.SeverityCritical,
		Cause:    fmt.Sprintf("Marker event delayed by %d minutes", int(delay.Minutes())),
		Evidence: fmt.Sprintf("%s marker arrived at %s, scheduled %s",
			name,
			utils.FormatTimestamp(trigger.ActualArrival, models.ValueUnavailable),
			utils.FormatTimestamp(trigger.ScheduledTime, models.ValueUnavailable)),
		Contribution: contribution,
	}
}

// clusterCauses emits one RootCause per cluster. Contribution is each
// cluster's critical-sample count over the total across clusters, scaled to
// 100; with zero critical samples anywhere the ratio falls back to warning
// counts. rootIndex marks the non-cascading entry; -1 means every cluster
// cascades from an earlier cause (or, for near-misses, that no cause
// relationship is claimed).
func clusterCauses(clusters []models.Cluster, rootIndex int, nearMiss bool) []models.RootCause {
	if len(clusters) == 0 {
		return nil
	}

	totalCritical, totalWarning := 0, 0
	for _, cluster := range clusters {
		totalCritical += cluster.CriticalCount
		totalWarning += cluster.WarningCount
	}

	causes := make([]models.RootCause, 0, len(clusters))
	for i, cluster := range clusters {
		share := 0.0
		switch {
		case totalCritical > 0:
			share = float64(cluster.CriticalCount) / float64(totalCritical) * 100
		case totalWarning > 0:
			share = float64(cluster.WarningCount) / float64(totalWarning) * 100
		default:
			share = 100.0 / float64(len(clusters))
		}

		severity := models.SeverityWarning
		if cluster.CriticalCount > 0 {
			severity = models.SeverityCritical
		}
		if nearMiss {
			severity = models.SeverityInfo
		}

		causes = append(causes, models.RootCause{
			Category:     models.CategoryInfrastructure,
			Severity:     severity,
			Cause:        fmt.Sprintf("%s performance degradation", domainLabels(cluster.Domains)),
			Evidence:     clusterEvidence(cluster),
			Contribution: share,
			Cascading:    !nearMiss && (rootIndex < 0 || i != rootIndex),
		})
	}
	return causes
}

func clusterEvidence(cluster models.Cluster) string {
	span := cluster.End.Sub(cluster.Start)
	return fmt.Sprintf("%d critical, %d warning samples over %s starting %s; peak: %s",
		cluster.CriticalCount,
		cluster.WarningCount,
		formatSpan(span),
		utils.FormatTimestamp(cluster.Start, models.ValueUnavailable),
		cluster.Representative.Detail)
}

func domainLabels(domains []models.Domain) string {
	labels := make([]string, 0, len(domains))
	for _, d := range domains {
		labels = append(labels, d.Label())
	}
	return strings.Join(labels, "/")
}

func formatSpan(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
