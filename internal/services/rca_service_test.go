package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pipelinesight/pipeline-rca/internal/engine"
	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/store"
	"github.com/pipelinesight/pipeline-rca/internal/thresholds"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

type fakeSource struct {
	docs  map[models.DocKind]string
	dates []string
}

func (s *fakeSource) Fetch(_ context.Context, date string, kind models.DocKind) ([]byte, error) {
	doc, ok := s.docs[kind]
	if !ok {
		return nil, fmt.Errorf("%s for %s: %w", kind, date, store.ErrDocumentNotFound)
	}
	return []byte(doc), nil
}

func (s *fakeSource) Dates(context.Context) ([]string, error) {
	if s.dates == nil {
		return nil, errors.New("listing broken")
	}
	return s.dates, nil
}

func newService(t *testing.T, source *fakeSource) *RCAService {
	t.Helper()
	table, err := thresholds.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pipeline := engine.NewPipeline(nil, source, table, engine.Options{})
	return NewRCAService(nil, pipeline, source, nil)
}

func TestAnalyzeRejectsBadDate(t *testing.T) {
	svc := newService(t, &fakeSource{docs: map[models.DocKind]string{}})
	_, err := svc.Analyze(context.Background(), "15-03-2024", nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalyzeDegradedDay(t *testing.T) {
	svc := newService(t, &fakeSource{docs: map[models.DocKind]string{}})
	report, err := svc.Analyze(context.Background(), "2024-03-15", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SLA.State != models.SLAUnavailable {
		t.Fatalf("state = %q, want unavailable", report.SLA.State)
	}
}

func TestChatRendersAnswer(t *testing.T) {
	source := &fakeSource{docs: map[models.DocKind]string{
		models.KindMarkerEvent: `{
			"product": "eod",
			"expected_arrival_time": "2024-03-15T06:00:00",
			"actual_arrival_time": "2024-03-15T06:00:00"
		}`,
		models.KindJobRuns: `{
			"entries": [
				{"dag_id": "eod", "run_id": "r1", "start_date": "2024-03-15T06:05:00", "end_date": "2024-03-15T08:00:00", "state": "success"}
			]
		}`,
	}}
	svc := newService(t, source)
	answer, report, err := svc.Chat(context.Background(), "did we make it?", "2024-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a rendered answer")
	}
	if report.SLA.State != models.SLAMet {
		t.Fatalf("state = %q, want met", report.SLA.State)
	}
}

func TestDates(t *testing.T) {
	svc := newService(t, &fakeSource{docs: map[models.DocKind]string{}, dates: []string{"2024-03-15", "2024-03-14"}})
	dates, err := svc.Dates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2024-03-15" {
		t.Fatalf("dates = %v", dates)
	}
}

func TestDatesFailure(t *testing.T) {
	svc := newService(t, &fakeSource{docs: map[models.DocKind]string{}})
	if _, err := svc.Dates(context.Background()); err == nil {
		t.Fatal("expected listing error")
	}
}
