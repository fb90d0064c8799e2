package models

import "time"

// Domain identifies one of the three infrastructure telemetry domains.
type Domain string

const (
	DomainCompute Domain = "compute-orchestration"
	DomainStorage Domain = "relational-storage"
	DomainQueue   Domain = "queueing"
)

// Domains lists the infrastructure domains in their fixed priority order.
// The order doubles as the tie-break rank used when merging events.
var Domains = []Domain{DomainCompute, DomainStorage, DomainQueue}

// Code returns the short service label used in summaries and file layouts.
func (d Domain) Code() string {
	switch d {
	case DomainCompute:
		return "eks"
	case DomainStorage:
		return "rds"
	case DomainQueue:
		return "sqs"
	}
	return string(d)
}

// Label returns the upper-case service name used in human-facing text.
func (d Domain) Label() string {
	switch d {
	case DomainCompute:
		return "EKS"
	case DomainStorage:
		return "RDS"
	case DomainQueue:
		return "SQS"
	}
	return string(d)
}

// DocKind names one of the per-day documents.
type DocKind string

const (
	KindMarkerEvent    DocKind = "markerEvent"
	KindJobRuns        DocKind = "dagDetails"
	KindComputeMetrics DocKind = "eksMetrics"
	KindStorageMetrics DocKind = "rdsMetrics"
	KindQueueMetrics   DocKind = "sqsMetrics"
	// KindFailureLog is the gzip stderr capture written on failed days. It
	// is optional decoration for the diagnosis, never a required input.
	KindFailureLog DocKind = "failed_dag_log"
)

// DocKinds lists the five metric document kinds. The failure log is not a
// metric document and is fetched separately.
var DocKinds = []DocKind{KindMarkerEvent, KindJobRuns, KindComputeMetrics, KindStorageMetrics, KindQueueMetrics}

// Folder returns the storage directory holding documents of this kind.
func (k DocKind) Folder() string { return string(k) }

// FileSuffix returns the per-date file name suffix for this kind.
func (k DocKind) FileSuffix() string {
	switch k {
	case KindMarkerEvent:
		return "marker_event"
	case KindJobRuns:
		return "dag_metrics"
	case KindComputeMetrics:
		return "eks_metrics"
	case KindStorageMetrics:
		return "rds_metrics"
	case KindQueueMetrics:
		return "sqs_metrics"
	case KindFailureLog:
		return "stderr"
	}
	return string(k)
}

// Filename returns the per-date file name for this kind. Metric documents
// are JSON; the failure log is a gzip capture.
func (k DocKind) Filename(date string) string {
	if k == KindFailureLog {
		return date + "_" + k.FileSuffix() + ".gz"
	}
	return date + "_" + k.FileSuffix() + ".json"
}

// Domain maps the three infrastructure document kinds to their domain.
func (k DocKind) Domain() (Domain, bool) {
	switch k {
	case KindComputeMetrics:
		return DomainCompute, true
	case KindStorageMetrics:
		return DomainStorage, true
	case KindQueueMetrics:
		return DomainQueue, true
	}
	return "", false
}

// DomainKind maps a domain back to its document kind.
func DomainKind(d Domain) DocKind {
	switch d {
	case DomainCompute:
		return KindComputeMetrics
	case DomainStorage:
		return KindStorageMetrics
	case DomainQueue:
		return KindQueueMetrics
	}
	return ""
}

// TriggerEvent is the upstream marker whose arrival starts the SLA clock.
type TriggerEvent struct {
	Name          string    `json:"name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	ActualArrival time.Time `json:"actual_arrival_time"`
}

// Delay returns how late the marker arrived; zero or negative means on time.
func (t TriggerEvent) Delay() time.Duration {
	return t.ActualArrival.Sub(t.ScheduledTime)
}

// Late reports whether the marker arrived after its scheduled time.
func (t TriggerEvent) Late() bool {
	return !t.ScheduledTime.IsZero() && t.ActualArrival.After(t.ScheduledTime)
}

// JobRun is one execution record of the monitored pipeline.
type JobRun struct {
	RunID  string    `json:"run_id"`
	DagID  string    `json:"dag_id"`
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time"`
	Status string    `json:"status"`
}

// Completed reports whether the run has a recorded end time.
func (r JobRun) Completed() bool { return !r.End.IsZero() }

// Failed reports whether the run finished in a failed state.
func (r JobRun) Failed() bool { return r.Status == "failed" }

// Sample is one telemetry reading from an infrastructure domain.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Domain    Domain    `json:"domain"`
	Metric    string    `json:"metric_name"`
	Value     float64   `json:"value"`
	Entity    string    `json:"entity,omitempty"`
}

// Bundle holds one calendar date's normalized metric documents. It is
// immutable once normalization finishes; every later stage reads it as a
// snapshot.
type Bundle struct {
	Date         string
	Trigger      *TriggerEvent
	Runs         []JobRun
	Samples      map[Domain][]Sample
	Absent       map[DocKind]bool
	Skipped      map[Domain]int
	SkippedRuns  int
	DistinctDAGs int
	// Logs is the analyzed stderr capture, nil when no failure log exists.
	Logs *FailureLog
}

// Available reports whether the given document was present for this date.
func (b *Bundle) Available(kind DocKind) bool {
	return b != nil && !b.Absent[kind]
}

// Window bounds the processing span scanned for breaches.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Closed bool      `json:"closed"`
}

// Contains reports whether ts falls inside the window, bounds inclusive.
func (w Window) Contains(ts time.Time) bool {
	if !w.Closed {
		return false
	}
	return !ts.Before(w.Start) && !ts.After(w.End)
}
