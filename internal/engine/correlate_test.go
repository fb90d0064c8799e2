package engine

import (
	"testing"
	"time"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

func TestClusterSameDomainWithinGap(t *testing.T) {
	c := NewCorrelator(15 * time.Minute)
	breaches := []models.Breach{
		breachAt(t, "2024-03-15T08:00:00Z", models.DomainStorage, models.SeverityCritical),
		breachAt(t, "2024-03-15T08:10:00Z", models.DomainStorage, models.SeverityWarning),
		breachAt(t, "2024-03-15T09:30:00Z", models.DomainStorage, models.SeverityCritical),
	}
	clusters := c.cluster(breaches)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
	if len(clusters[0].Breaches) != 2 {
		t.Fatalf("first cluster has %d breaches, want 2", len(clusters[0].Breaches))
	}
	if clusters[0].CriticalCount != 1 || clusters[0].WarningCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", clusters[0].CriticalCount, clusters[0].WarningCount)
	}
}

func TestClusterCrossDomainMerge(t *testing.T) {
	c := NewCorrelator(15 * time.Minute)
	breaches := []models.Breach{
		breachAt(t, "2024-03-15T08:00:00Z", models.DomainStorage, models.SeverityCritical),
		breachAt(t, "2024-03-15T08:12:00Z", models.DomainQueue, models.SeverityWarning),
	}
	clusters := c.cluster(breaches)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 merged cluster", len(clusters))
	}
	if len(clusters[0].Domains) != 2 {
		t.Fatalf("domains = %v, want storage and queue", clusters[0].Domains)
	}
	// Representative is the peak severity breach.
	if clusters[0].Representative.Domain != models.DomainStorage {
		t.Fatalf("representative domain = %q, want storage", clusters[0].Representative.Domain)
	}
}

func TestClusterGapKeepsDistantDomainsApart(t *testing.T) {
	c := NewCorrelator(15 * time.Minute)
	breaches := []models.Breach{
		breachAt(t, "2024-03-15T08:00:00Z", models.DomainStorage, models.SeverityCritical),
		breachAt(t, "2024-03-15T09:00:00Z", models.DomainQueue, models.SeverityCritical),
	}
	clusters := c.cluster(breaches)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
}

func TestClusterTieBreakByDomainRank(t *testing.T) {
	c := NewCorrelator(time.Minute)
	breaches := []models.Breach{
		breachAt(t, "2024-03-15T08:00:00Z", models.DomainQueue, models.SeverityCritical),
		breachAt(t, "2024-03-15T08:00:00Z", models.DomainCompute, models.SeverityCritical),
	}
	clusters := c.cluster(breaches)
	if clusters[0].Breaches[0].Domain != models.DomainCompute {
		t.Fatalf("compute must rank before queue at equal timestamps, got %q", clusters[0].Breaches[0].Domain)
	}
}

func TestDecideRootCauseNotBreached(t *testing.T) {
	sla := models.SLAStatus{State: models.SLAMet}
	decision := DecideRootCause(sla, nil, []models.Cluster{{}})
	if decision.Kind != DecisionNone || decision.RootIndex != -1 {
		t.Fatalf("decision = %+v, want none", decision)
	}
}

func TestDecideRootCauseMarkerDelayWins(t *testing.T) {
	sla := models.SLAStatus{
		State:      models.SLABreached,
		Arrival:    ts(t, "2024-03-15T06:45:00Z"),
		Completion: ts(t, "2024-03-15T11:20:00Z"),
	}
	trigger := &models.TriggerEvent{
		ScheduledTime: ts(t, "2024-03-15T06:00:00Z"),
		ActualArrival: ts(t, "2024-03-15T06:45:00Z"),
	}
	clusters := []models.Cluster{
		{Start: ts(t, "2024-03-15T08:00:00Z"), End: ts(t, "2024-03-15T08:30:00Z")},
	}
	decision := DecideRootCause(sla, trigger, clusters)
	if decision.Kind != DecisionMarkerDelay {
		t.Fatalf("kind = %q, want marker-delay despite infrastructure clusters", decision.Kind)
	}
}

func TestDecideRootCauseInfrastructure(t *testing.T) {
	sla := models.SLAStatus{
		State:      models.SLABreached,
		Arrival:    ts(t, "2024-03-15T06:00:00Z"),
		Completion: ts(t, "2024-03-15T10:30:00Z"),
	}
	trigger := &models.TriggerEvent{
		ScheduledTime: ts(t, "2024-03-15T06:00:00Z"),
		ActualArrival: ts(t, "2024-03-15T06:00:00Z"),
	}
	clusters := []models.Cluster{
		{Start: ts(t, "2024-03-15T08:00:00Z")},
		{Start: ts(t, "2024-03-15T09:00:00Z")},
	}
	decision := DecideRootCause(sla, trigger, clusters)
	if decision.Kind != DecisionInfrastructure || decision.RootIndex != 0 {
		t.Fatalf("decision = %+v, want earliest cluster as root", decision)
	}
}

func TestDecideRootCauseStrictCausality(t *testing.T) {
	sla := models.SLAStatus{
		State:      models.SLABreached,
		Arrival:    ts(t, "2024-03-15T06:00:00Z"),
		Completion: ts(t, "2024-03-15T10:30:00Z"),
	}
	// Cluster starting exactly at arrival does not qualify; the bound is strict.
	clusters := []models.Cluster{
		{Start: ts(t, "2024-03-15T06:00:00Z")},
	}
	decision := DecideRootCause(sla, nil, clusters)
	if decision.Kind != DecisionUnexplained {
		t.Fatalf("kind = %q, want unexplained for non-qualifying cluster", decision.Kind)
	}
}

func TestDecideRootCauseUnexplained(t *testing.T) {
	sla := models.SLAStatus{
		State:      models.SLABreached,
		Arrival:    ts(t, "2024-03-15T06:00:00Z"),
		Completion: ts(t, "2024-03-15T10:30:00Z"),
	}
	decision := DecideRootCause(sla, nil, nil)
	if decision.Kind != DecisionUnexplained {
		t.Fatalf("kind = %q, want unexplained", decision.Kind)
	}
}
