package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/thresholds"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

// RawDocs maps each document kind to its raw bytes; a missing key means the
// document was absent for the date.
type RawDocs map[models.DocKind][]byte

// Normalizer canonicalizes one day's raw documents into an immutable
// Bundle. It is a pure transform: timezone-naive timestamps become UTC,
// unordered samples are re-sorted, malformed records are skipped with a
// recorded count, and absent documents degrade to "absent" fields.
type Normalizer struct {
	table  *thresholds.Table
	logger *slog.Logger
}

// NewNormalizer constructs a Normalizer bound to the threshold table, which
// supplies the configured metric names per domain.
func NewNormalizer(table *thresholds.Table, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{table: table, logger: logger}
}

// Normalize builds the Bundle for one date. It never fails on data-quality
// problems; only a nil threshold table is a programming error.
func (n *Normalizer) Normalize(date string, docs RawDocs) *models.Bundle {
	bundle := &models.Bundle{
		Date:    date,
		Samples: make(map[models.Domain][]models.Sample, len(models.Domains)),
		Absent:  make(map[models.DocKind]bool, len(models.DocKinds)),
		Skipped: make(map[models.Domain]int, len(models.Domains)),
	}

	for _, kind := range models.DocKinds {
		if _, ok := docs[kind]; !ok {
			bundle.Absent[kind] = true
		}
	}

	if data, ok := docs[models.KindMarkerEvent]; ok {
		trigger, err := parseTrigger(data)
		if err != nil {
			n.logger.Warn("marker event unparseable", slog.String("date", date), slog.Any("error", err))
			bundle.Absent[models.KindMarkerEvent] = true
		} else {
			bundle.Trigger = trigger
		}
	}

	if data, ok := docs[models.KindJobRuns]; ok {
		runs, skipped, err := parseJobRuns(data)
		if err != nil {
			n.logger.Warn("job run document unparseable", slog.String("date", date), slog.Any("error", err))
			bundle.Absent[models.KindJobRuns] = true
		} else {
			bundle.Runs = runs
			bundle.SkippedRuns = skipped
			bundle.DistinctDAGs = distinctDAGs(runs)
		}
	}

	if data, ok := docs[models.KindFailureLog]; ok {
		logs, err := parseFailureLog(data)
		if err != nil {
			n.logger.Warn("failure log unreadable", slog.String("date", date), slog.Any("error", err))
		} else {
			bundle.Logs = logs
		}
	}

	for _, domain := range models.Domains {
		kind := models.DomainKind(domain)
		data, ok := docs[kind]
		if !ok {
			continue
		}
		samples, skipped, err := n.parseSamples(domain, data)
		if err != nil {
			n.logger.Warn("telemetry document unparseable",
				slog.String("date", date), slog.String("domain", string(domain)), slog.Any("error", err))
			bundle.Absent[kind] = true
			continue
		}
		bundle.Samples[domain] = samples
		bundle.Skipped[domain] = skipped
	}

	return bundle
}

type markerDoc struct {
	Product             string          `json:"product"`
	Type                string          `json:"type"`
	ExpectedArrivalTime string          `json:"expected_arrival_time"`
	ActualArrivalTime   string          `json:"actual_arrival_time"`
	Readings            []markerReading `json:"readings"`
}

type markerReading struct {
	Metrics map[string]markerEntry `json:"metrics"`
}

type markerEntry struct {
	ExpectedArrivalTime string `json:"expected_arrival_time"`
	ActualArrivalTime   string `json:"actual_arrival_time"`
}

// parseTrigger accepts both the flat marker format and the nested
// readings/metrics map. In the nested form a derivatives marker wins;
// otherwise the lexicographically first key keeps output deterministic.
func parseTrigger(data []byte) (*models.TriggerEvent, error) {
	var doc markerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode marker event: %w", err)
	}

	name := doc.Product
	expected := doc.ExpectedArrivalTime
	actual := doc.ActualArrivalTime

	if actual == "" && len(doc.Readings) > 0 {
		keys := make([]string, 0, len(doc.Readings[0].Metrics))
		for key := range doc.Readings[0].Metrics {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pick := ""
		for _, key := range keys {
			if strings.Contains(strings.ToLower(key), "deriv") {
				pick = key
				break
			}
		}
		if pick == "" && len(keys) > 0 {
			pick = keys[0]
		}
		if pick != "" {
			entry := doc.Readings[0].Metrics[pick]
			name = pick
			expected = entry.ExpectedArrivalTime
			actual = entry.ActualArrivalTime
		}
	}

	if actual == "" {
		return nil, fmt.Errorf("marker event has no arrival time")
	}
	arrival, err := utils.ParseTimestamp(actual)
	if err != nil {
		return nil, fmt.Errorf("marker arrival: %w", err)
	}
	trigger := &models.TriggerEvent{Name: name, ActualArrival: arrival}
	if expected != "" {
		if scheduled, err := utils.ParseTimestamp(expected); err == nil {
			trigger.ScheduledTime = scheduled
		}
	}
	return trigger, nil
}

type jobRunDoc struct {
	Readings []jobRunReading `json:"readings"`
	Entries  []jobRunEntry   `json:"entries"`
}

type jobRunReading struct {
	Entries []jobRunEntry `json:"entries"`
}

type jobRunEntry struct {
	DagID     string `json:"dag_id"`
	RunID     string `json:"run_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	State     string `json:"state"`
}

func parseJobRuns(data []byte) ([]models.JobRun, int, error) {
	var doc jobRunDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode job runs: %w", err)
	}

	entries := doc.Entries
	for _, reading := range doc.Readings {
		entries = append(entries, reading.Entries...)
	}

	runs := make([]models.JobRun, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		start, err := utils.ParseTimestamp(entry.StartDate)
		if err != nil {
			skipped++
			continue
		}
		run := models.JobRun{
			RunID:  entry.RunID,
			DagID:  entry.DagID,
			Start:  start,
			Status: entry.State,
		}
		// A missing end date is legitimate for a still-running job; only a
		// present-but-unparseable one counts as malformed.
		if entry.EndDate != "" {
			end, err := utils.ParseTimestamp(entry.EndDate)
			if err != nil {
				skipped++
				continue
			}
			run.End = end
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Start.Before(runs[j].Start) })
	return runs, skipped, nil
}

// Container and entity keys per infrastructure document format.
var (
	recordContainer = map[models.Domain]string{
		models.DomainCompute: "pods",
		models.DomainStorage: "database_metrics",
		models.DomainQueue:   "queue_metrics",
	}
	entityKey = map[models.Domain]string{
		models.DomainCompute: "pod_name",
		models.DomainQueue:   "queue_name",
	}
)

// parseSamples flattens a domain's records into one Sample per configured
// metric. Duplicates are preserved: repeated readings of the same metric at
// the same instant are all scanned.
func (n *Normalizer) parseSamples(domain models.Domain, data []byte) ([]models.Sample, int, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode %s document: %w", domain, err)
	}
	raw, ok := doc[recordContainer[domain]]
	if !ok {
		return nil, 0, fmt.Errorf("%s document missing %q", domain, recordContainer[domain])
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, 0, fmt.Errorf("decode %s records: %w", domain, err)
	}

	metrics := n.table.Metrics(domain)
	samples := make([]models.Sample, 0, len(records)*len(metrics))
	skipped := 0
	for _, record := range records {
		tsValue, _ := record["timestamp"].(string)
		ts, err := utils.ParseTimestamp(tsValue)
		if err != nil {
			skipped++
			continue
		}
		entity, _ := record[entityKey[domain]].(string)
		for _, metric := range metrics {
			raw, present := record[metric]
			if !present {
				continue
			}
			// Absent keys are legitimate; a present value that is not a
			// number counts as a malformed unit.
			value, ok := raw.(float64)
			if !ok {
				skipped++
				continue
			}
			samples = append(samples, models.Sample{
				Timestamp: ts,
				Domain:    domain,
				Metric:    metric,
				Value:     value,
				Entity:    entity,
			})
		}
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	return samples, skipped, nil
}

func distinctDAGs(runs []models.JobRun) int {
	seen := make(map[string]struct{}, len(runs))
	for _, run := range runs {
		if run.DagID != "" {
			seen[run.DagID] = struct{}{}
		}
	}
	return len(seen)
}
