package engine

import (
	"context"
	"testing"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

func TestScanClassifiesInWindowAndBackground(t *testing.T) {
	scanner := NewScanner(defaultTable(t), nil)
	bundle := &models.Bundle{
		Samples: map[models.Domain][]models.Sample{
			models.DomainStorage: {
				{Timestamp: ts(t, "2024-03-15T05:00:00Z"), Domain: models.DomainStorage, Metric: "commit_latency", Value: 60},
				{Timestamp: ts(t, "2024-03-15T07:00:00Z"), Domain: models.DomainStorage, Metric: "commit_latency", Value: 30},
				{Timestamp: ts(t, "2024-03-15T08:00:00Z"), Domain: models.DomainStorage, Metric: "commit_latency", Value: 10},
			},
		},
	}
	window := closedWindow(t, "2024-03-15T06:00:00Z", "2024-03-15T10:00:00Z")

	result, err := scanner.Scan(context.Background(), bundle, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deferred {
		t.Fatal("closed window must not defer")
	}
	if len(result.Breaches) != 1 {
		t.Fatalf("got %d in-window breaches, want 1", len(result.Breaches))
	}
	if result.Breaches[0].Severity != models.SeverityWarning {
		t.Fatalf("severity = %q, want warning", result.Breaches[0].Severity)
	}
	if len(result.Background) != 1 {
		t.Fatalf("got %d background breaches, want 1", len(result.Background))
	}
	if !result.Background[0].Background {
		t.Fatal("background breach must be flagged")
	}
	if result.Background[0].Severity != models.SeverityCritical {
		t.Fatalf("background severity = %q, want critical", result.Background[0].Severity)
	}
}

func TestScanEachCrossingSampleIsABreach(t *testing.T) {
	scanner := NewScanner(defaultTable(t), nil)
	bundle := &models.Bundle{
		Samples: map[models.Domain][]models.Sample{
			models.DomainQueue: {
				{Timestamp: ts(t, "2024-03-15T07:00:00Z"), Domain: models.DomainQueue, Metric: "approximate_age_of_oldest_message", Value: 700},
				{Timestamp: ts(t, "2024-03-15T07:01:00Z"), Domain: models.DomainQueue, Metric: "approximate_age_of_oldest_message", Value: 700},
			},
		},
	}
	window := closedWindow(t, "2024-03-15T06:00:00Z", "2024-03-15T10:00:00Z")
	result, err := scanner.Scan(context.Background(), bundle, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 2 {
		t.Fatalf("consecutive crossings must not collapse: got %d, want 2", len(result.Breaches))
	}
}

func TestScanOpenWindowDefers(t *testing.T) {
	scanner := NewScanner(defaultTable(t), nil)
	bundle := &models.Bundle{
		Samples: map[models.Domain][]models.Sample{
			models.DomainStorage: {
				{Timestamp: ts(t, "2024-03-15T07:00:00Z"), Domain: models.DomainStorage, Metric: "commit_latency", Value: 200},
			},
		},
	}
	result, err := scanner.Scan(context.Background(), bundle, models.Window{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Deferred {
		t.Fatal("open window must defer")
	}
	if len(result.Breaches) != 0 || len(result.Background) != 0 {
		t.Fatal("deferred scan must yield no breaches")
	}
}
