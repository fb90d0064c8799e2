package engine

import (
	"math"
	"testing"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

func TestSummarizeMarkerDelaySoleCause(t *testing.T) {
	sla := models.SLAStatus{State: models.SLABreached, ExcessHours: 1.5}
	trigger := &models.TriggerEvent{
		ScheduledTime: ts(t, "2024-03-15T06:00:00Z"),
		ActualArrival: ts(t, "2024-03-15T07:30:00Z"),
	}
	corr := Correlation{Decision: Decision{Kind: DecisionMarkerDelay, RootIndex: -1}}

	causes := Summarize(sla, trigger, corr)
	if len(causes) != 1 {
		t.Fatalf("got %d causes, want 1", len(causes))
	}
	cause := causes[0]
	if cause.Category != models.CategoryMarkerDelay {
		t.Fatalf("category = %q", cause.Category)
	}
	if cause.Contribution != 100 {
		t.Fatalf("sole cause contribution = %f, want 100", cause.Contribution)
	}
	if cause.Cascading {
		t.Fatal("root cause must not be cascading")
	}
}

func TestSummarizeMarkerDelayWithClusters(t *testing.T) {
	sla := models.SLAStatus{State: models.SLABreached, ExcessHours: 2.0}
	trigger := &models.TriggerEvent{
		ScheduledTime: ts(t, "2024-03-15T06:00:00Z"),
		ActualArrival: ts(t, "2024-03-15T07:00:00Z"),
	}
	clusters := []models.Cluster{
		{
			Domains:        []models.Domain{models.DomainStorage},
			Start:          ts(t, "2024-03-15T08:00:00Z"),
			End:            ts(t, "2024-03-15T08:30:00Z"),
			CriticalCount:  3,
			Representative: breachAt(t, "2024-03-15T08:00:00Z", models.DomainStorage, models.SeverityCritical),
		},
	}
	corr := Correlation{Clusters: clusters, Decision: Decision{Kind: DecisionMarkerDelay, RootIndex: -1}}

	causes := Summarize(sla, trigger, corr)
	if len(causes) != 2 {
		t.Fatalf("got %d causes, want 2", len(causes))
	}
	// One hour of delay against two hours of excess: 50%.
	if math.Abs(causes[0].Contribution-50) > 1e-9 {
		t.Fatalf("marker contribution = %f, want 50", causes[0].Contribution)
	}
	if !causes[1].Cascading {
		t.Fatal("infrastructure cluster must cascade from the marker delay")
	}
	if causes[1].Severity != models.SeverityCritical {
		t.Fatalf("cluster severity = %q, want critical", causes[1].Severity)
	}
}

func TestSummarizeMarkerContributionCapped(t *testing.T) {
	sla := models.SLAStatus{State: models.SLABreached, ExcessHours: 0.5}
	trigger := &models.TriggerEvent{
		ScheduledTime: ts(t, "2024-03-15T06:00:00Z"),
		ActualArrival: ts(t, "2024-03-15T08:00:00Z"),
	}
	clusters := []models.Cluster{
		{Representative: breachAt(t, "2024-03-15T09:00:00Z", models.DomainQueue, models.SeverityWarning), WarningCount: 1},
	}
	corr := Correlation{Clusters: clusters, Decision: Decision{Kind: DecisionMarkerDelay, RootIndex: -1}}

	causes := Summarize(sla, trigger, corr)
	if causes[0].Contribution != 100 {
		t.Fatalf("contribution = %f, want capped at 100", causes[0].Contribution)
	}
}

func TestSummarizeInfrastructureShares(t *testing.T) {
	sla := models.SLAStatus{State: models.SLABreached, ExcessHours: 1.0}
	clusters := []models.Cluster{
		{CriticalCount: 3, Representative: breachAt(t, "2024-03-15T08:00:00Z", models.DomainStorage, models.SeverityCritical)},
		{CriticalCount: 1, Representative: breachAt(t, "2024-03-15T09:00:00Z", models.DomainQueue, models.SeverityCritical)},
	}
	corr := Correlation{Clusters: clusters, Decision: Decision{Kind: DecisionInfrastructure, RootIndex: 0}}

	causes := Summarize(sla, nil, corr)
	if len(causes) != 2 {
		t.Fatalf("got %d causes, want 2", len(causes))
	}
	if causes[0].Contribution != 75 || causes[1].Contribution != 25 {
		t.Fatalf("shares = %f/%f, want 75/25", causes[0].Contribution, causes[1].Contribution)
	}
	if causes[0].Cascading {
		t.Fatal("root cluster must not cascade")
	}
	if !causes[1].Cascading {
		t.Fatal("later cluster must cascade")
	}
}

func TestSummarizeWarningFallback(t *testing.T) {
	sla := models.SLAStatus{State: models.SLABreached}
	clusters := []models.Cluster{
		{WarningCount: 2, Representative: breachAt(t, "2024-03-15T08:00:00Z", models.DomainCompute, models.SeverityWarning)},
		{WarningCount: 2, Representative: breachAt(t, "2024-03-15T09:00:00Z", models.DomainQueue, models.SeverityWarning)},
	}
	corr := Correlation{Clusters: clusters, Decision: Decision{Kind: DecisionInfrastructure, RootIndex: 0}}

	causes := Summarize(sla, nil, corr)
	if causes[0].Contribution != 50 || causes[1].Contribution != 50 {
		t.Fatalf("shares = %f/%f, want 50/50 from warning counts", causes[0].Contribution, causes[1].Contribution)
	}
	if causes[0].Severity != models.SeverityWarning {
		t.Fatalf("severity = %q, want warning without criticals", causes[0].Severity)
	}
}

func TestSummarizeUnexplained(t *testing.T) {
	sla := models.SLAStatus{State: models.SLABreached, ExcessHours: 1.58}
	corr := Correlation{Decision: Decision{Kind: DecisionUnexplained, RootIndex: -1}}

	causes := Summarize(sla, nil, corr)
	if len(causes) != 1 {
		t.Fatalf("got %d causes, want 1", len(causes))
	}
	if causes[0].Category != models.CategoryUnexplained || causes[0].Contribution != 100 {
		t.Fatalf("cause = %+v, want unexplained at 100", causes[0])
	}
}

func TestSummarizeNearMiss(t *testing.T) {
	sla := models.SLAStatus{State: models.SLAMet}
	clusters := []models.Cluster{
		{CriticalCount: 1, Representative: breachAt(t, "2024-03-15T08:00:00Z", models.DomainStorage, models.SeverityCritical)},
	}
	corr := Correlation{Clusters: clusters, Decision: Decision{Kind: DecisionNone, RootIndex: -1}}

	causes := Summarize(sla, nil, corr)
	if len(causes) != 1 {
		t.Fatalf("got %d causes, want 1", len(causes))
	}
	if causes[0].Severity != models.SeverityInfo {
		t.Fatalf("near-miss severity = %q, want info", causes[0].Severity)
	}
	if causes[0].Cascading {
		t.Fatal("near-miss findings claim no cause relationship")
	}
	if causes[0].Category == models.CategoryMarkerDelay {
		t.Fatal("marker delay category must not appear when the SLA is met")
	}
}
