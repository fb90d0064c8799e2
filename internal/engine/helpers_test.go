package engine

import (
	"testing"
	"time"

	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/thresholds"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return parsed.UTC()
}

func defaultTable(t *testing.T) *thresholds.Table {
	t.Helper()
	table, err := thresholds.Load("")
	if err != nil {
		t.Fatalf("load default thresholds: %v", err)
	}
	return table
}

func breachAt(t *testing.T, when string, domain models.Domain, severity models.Severity) models.Breach {
	t.Helper()
	return models.Breach{
		Timestamp: ts(t, when),
		Domain:    domain,
		Metric:    "m",
		Severity:  severity,
	}
}

func closedWindow(t *testing.T, start, end string) models.Window {
	t.Helper()
	return models.Window{Start: ts(t, start), End: ts(t, end), Closed: true}
}
