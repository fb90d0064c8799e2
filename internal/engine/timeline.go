package engine

import (
	"fmt"
	"sort"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// AssembleTimeline merges trigger milestones, job-run milestones, and
// cluster representatives into the externally consumed ordered sequence.
// The output is always sorted ascending by timestamp, with the fixed source
// ranks breaking ties, regardless of the correlator's internal merge order.
func AssembleTimeline(bundle *models.Bundle, sla models.SLAStatus, corr Correlation) []models.TimelineEvent {
	type rankedEvent struct {
		event models.TimelineEvent
		rank  int
	}
	var events []rankedEvent
	add := func(rank int, event models.TimelineEvent) {
		events = append(events, rankedEvent{event: event, rank: rank})
	}

	trigger := bundle.Trigger
	if trigger != nil {
		if trigger.Late() {
			delayEvent := models.TimelineEvent{
				Timestamp: trigger.ScheduledTime,
				Label:     "Marker Event Delay",
				Severity:  models.SeverityWarning,
				Detail:    fmt.Sprintf("%s marker delayed by %d minutes", markerName(trigger), int(trigger.Delay().Minutes())),
			}
			if corr.Decision.Kind == DecisionMarkerDelay {
				delayEvent.Severity = models.SeverityCritical
				delayEvent.Impact = "Root cause: delays every downstream job run"
			}
			add(rankTrigger, delayEvent)
		}
		add(rankTrigger, models.TimelineEvent{
			Timestamp: trigger.ActualArrival,
			Label:     "Marker Event Arrival",
			Severity:  models.SeverityInfo,
			Detail:    fmt.Sprintf("%s marker arrives", markerName(trigger)),
			Impact:    "Processing can begin",
		})
	}

	if len(bundle.Runs) > 0 {
		failed := 0
		for _, run := range bundle.Runs {
			if run.Failed() {
				failed++
			}
		}

		add(rankJobRun, models.TimelineEvent{
			Timestamp: bundle.Runs[0].Start,
			Label:     "Job Processing Starts",
			Severity:  models.SeverityInfo,
			Detail:    fmt.Sprintf("Started processing %d job runs", len(bundle.Runs)),
		})

		for _, run := range bundle.Runs {
			if !run.Failed() || !run.Completed() {
				continue
			}
			detail := fmt.Sprintf("Run %s failed after %.1f minutes", shortRunID(run), run.End.Sub(run.Start).Minutes())
			if bundle.Logs != nil && len(bundle.Logs.Contexts) > 0 {
				primary := bundle.Logs.Contexts[0]
				detail += fmt.Sprintf("; stderr: %s: %s", primary.Type, truncateDetail(primary.Message))
			}
			add(rankJobRun, models.TimelineEvent{
				Timestamp: run.End,
				Label:     "Job Run Failed",
				Severity:  models.SeverityCritical,
				Detail:    detail,
				Impact:    "Processing delay from the failed run",
			})
		}

		if !sla.Completion.IsZero() {
			completion := models.TimelineEvent{
				Timestamp: sla.Completion,
				Label:     "Job Processing Complete",
				Severity:  models.SeveritySuccess,
				Detail:    fmt.Sprintf("Completed %d job runs (%d failed)", len(bundle.Runs), failed),
			}
			if failed > 0 {
				completion.Severity = models.SeverityWarning
			}
			add(rankJobRun, completion)
		}
	}

	for i, cluster := range corr.Clusters {
		rep := cluster.Representative
		severity := rep.Severity
		if corr.Decision.Kind == DecisionNone {
			severity = models.SeverityInfo
		}
		add(domainRank(rep.Domain), models.TimelineEvent{
			Timestamp: rep.Timestamp,
			Label:     fmt.Sprintf("%s Threshold Breach", rep.Domain.Label()),
			Severity:  severity,
			Detail: fmt.Sprintf("%s (%d critical, %d warning samples in cluster)",
				rep.Detail, cluster.CriticalCount, cluster.WarningCount),
			Impact: clusterImpact(corr.Decision, i, rep.Domain),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].event.Timestamp.Equal(events[j].event.Timestamp) {
			return events[i].event.Timestamp.Before(events[j].event.Timestamp)
		}
		return events[i].rank < events[j].rank
	})

	timeline := make([]models.TimelineEvent, len(events))
	for i, e := range events {
		timeline[i] = e.event
	}
	return timeline
}

// clusterImpact names the dependent downstream effect for a breach cluster,
// or the causal link back to the marker delay when that outranks it.
func clusterImpact(decision Decision, index int, domain models.Domain) string {
	switch decision.Kind {
	case DecisionMarkerDelay:
		return "Cascading effect of the delayed marker arrival"
	case DecisionInfrastructure:
		if index == decision.RootIndex {
			return fmt.Sprintf("Root cause: %s", domainImpact(domain))
		}
		return "Cascading effect of the earlier breach cluster"
	case DecisionNone:
		return "Near miss: no SLA impact this run"
	}
	return domainImpact(domain)
}

func domainImpact(domain models.Domain) string {
	switch domain {
	case models.DomainCompute:
		return "slows job execution on the worker pods"
	case models.DomainStorage:
		return "query delays and transaction bottlenecks in job processing"
	default:
		return "messages not processed timely, delaying downstream jobs"
	}
}

func markerName(trigger *models.TriggerEvent) string {
	if trigger.Name != "" {
		return trigger.Name
	}
	return "upstream"
}

func truncateDetail(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func shortRunID(run models.JobRun) string {
	id := run.RunID
	if id == "" {
		id = run.DagID
	}
	if len(id) > 24 {
		return id[:24] + "..."
	}
	return id
}
