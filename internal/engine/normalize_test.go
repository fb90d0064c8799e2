package engine

import (
	"testing"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

func TestNormalizeFlatMarker(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindMarkerEvent: []byte(`{
			"product": "derivatives_eod",
			"expected_arrival_time": "2024-03-15T06:00:00",
			"actual_arrival_time": "2024-03-15T06:45:00"
		}`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	if bundle.Trigger == nil {
		t.Fatal("trigger missing")
	}
	if bundle.Trigger.Name != "derivatives_eod" {
		t.Fatalf("name = %q", bundle.Trigger.Name)
	}
	if !bundle.Trigger.Late() {
		t.Fatal("marker should be late")
	}
	if got := bundle.Trigger.Delay().Minutes(); got != 45 {
		t.Fatalf("delay = %f minutes, want 45", got)
	}
}

func TestNormalizeNestedMarkerPrefersDerivatives(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindMarkerEvent: []byte(`{
			"readings": [{
				"metrics": {
					"aa_first": {"expected_arrival_time": "2024-03-15T05:00:00", "actual_arrival_time": "2024-03-15T05:01:00"},
					"derivatives_eod": {"expected_arrival_time": "2024-03-15T06:00:00", "actual_arrival_time": "2024-03-15T06:05:00"}
				}
			}]
		}`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	if bundle.Trigger == nil || bundle.Trigger.Name != "derivatives_eod" {
		t.Fatalf("trigger = %+v, want derivatives marker", bundle.Trigger)
	}
}

func TestNormalizeMarkerWithoutArrivalIsAbsent(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindMarkerEvent: []byte(`{"product": "eod"}`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	if bundle.Trigger != nil {
		t.Fatal("trigger should be nil")
	}
	if bundle.Available(models.KindMarkerEvent) {
		t.Fatal("marker should degrade to absent")
	}
}

func TestNormalizeJobRuns(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindJobRuns: []byte(`{
			"entries": [
				{"dag_id": "b_dag", "run_id": "r2", "start_date": "2024-03-15T07:00:00", "end_date": "2024-03-15T09:00:00", "state": "success"},
				{"dag_id": "a_dag", "run_id": "r1", "start_date": "2024-03-15T06:10:00", "end_date": "2024-03-15T08:30:00", "state": "failed"},
				{"dag_id": "a_dag", "run_id": "r3", "start_date": "garbage", "state": "success"},
				{"dag_id": "c_dag", "run_id": "r4", "start_date": "2024-03-15T06:30:00", "state": "running"}
			]
		}`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	if len(bundle.Runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(bundle.Runs))
	}
	if bundle.SkippedRuns != 1 {
		t.Fatalf("skipped = %d, want 1", bundle.SkippedRuns)
	}
	if bundle.DistinctDAGs != 3 {
		t.Fatalf("distinct dags = %d, want 3", bundle.DistinctDAGs)
	}
	// Sorted by start time.
	if bundle.Runs[0].RunID != "r1" || bundle.Runs[1].RunID != "r4" || bundle.Runs[2].RunID != "r2" {
		t.Fatalf("runs out of order: %+v", bundle.Runs)
	}
	if bundle.Runs[1].Completed() {
		t.Fatal("running job must not be completed")
	}
	if !bundle.Runs[0].Failed() {
		t.Fatal("r1 should be failed")
	}
}

func TestNormalizeSamplesSkipMalformedTimestamp(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindStorageMetrics: []byte(`{
			"database_metrics": [
				{"timestamp": "2024-03-15T08:00:00", "cpu_utilization": 96.0, "commit_latency": 55.0},
				{"timestamp": "broken", "cpu_utilization": 99.0},
				{"timestamp": "2024-03-15T07:00:00", "select_latency": 40.0, "ignored_metric": 7.0}
			]
		}`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	samples := bundle.Samples[models.DomainStorage]
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	if bundle.Skipped[models.DomainStorage] != 1 {
		t.Fatalf("skipped = %d, want 1", bundle.Skipped[models.DomainStorage])
	}
	// Sorted ascending by timestamp.
	if !samples[0].Timestamp.Before(samples[1].Timestamp) {
		t.Fatalf("samples not sorted: %+v", samples)
	}
	for _, s := range samples {
		if s.Metric == "ignored_metric" {
			t.Fatal("unconfigured metric must not produce a sample")
		}
	}
}

func TestNormalizeSamplesSkipMalformedValue(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindStorageMetrics: []byte(`{
			"database_metrics": [
				{"timestamp": "2024-03-15T08:00:00", "cpu_utilization": "ninety-six", "commit_latency": 55.0},
				{"timestamp": "2024-03-15T08:05:00", "select_latency": 40.0}
			]
		}`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	samples := bundle.Samples[models.DomainStorage]
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if bundle.Skipped[models.DomainStorage] != 1 {
		t.Fatalf("skipped = %d, want 1 for the non-numeric value", bundle.Skipped[models.DomainStorage])
	}
	for _, s := range samples {
		if s.Metric == "cpu_utilization" {
			t.Fatalf("non-numeric reading must not produce a sample: %+v", s)
		}
	}
}

func TestNormalizeMissingDocumentsAreAbsent(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	bundle := n.Normalize("2024-03-15", RawDocs{})
	for _, kind := range models.DocKinds {
		if bundle.Available(kind) {
			t.Fatalf("%s should be absent", kind)
		}
	}
	if bundle.Trigger != nil || len(bundle.Runs) != 0 {
		t.Fatal("empty docs must normalize to empty bundle")
	}
}

func TestNormalizeUnparseableDomainDocIsAbsent(t *testing.T) {
	n := NewNormalizer(defaultTable(t), nil)
	docs := RawDocs{
		models.KindQueueMetrics: []byte(`not json`),
	}
	bundle := n.Normalize("2024-03-15", docs)
	if bundle.Available(models.KindQueueMetrics) {
		t.Fatal("unparseable document should degrade to absent")
	}
}
