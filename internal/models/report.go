package models

import "time"

// Severity captures the impact level of events and breaches.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeveritySuccess  Severity = "success"
)

// Rank orders severities so a peak can be selected deterministically.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuccess:
		return 1
	default:
		return 0
	}
}

// SLAState is the verdict of the SLA evaluator.
type SLAState string

const (
	SLAMet      SLAState = "met"
	SLABreached SLAState = "breached"
	// SLAIncomplete means no completion time exists yet; callers must not
	// read it as "met".
	SLAIncomplete SLAState = "incomplete"
	// SLAUnavailable means the trigger document was absent.
	SLAUnavailable SLAState = "unavailable"
)

// Sentinel strings used in place of null/omitted values.
const (
	ValueUnavailable = "unavailable"
	ValueIncomplete  = "incomplete"
	ValueDeferred    = "evaluation deferred"
)

// SLAStatus is the derived SLA verdict for one analysis.
type SLAStatus struct {
	State          SLAState  `json:"state"`
	ArrivalTime    string    `json:"arrival_time"`
	CompletionTime string    `json:"completion_time"`
	DurationHours  float64   `json:"duration_hours"`
	LimitHours     float64   `json:"sla_limit_hours"`
	ExcessHours    float64   `json:"excess_hours"`
	Arrival        time.Time `json:"-"`
	Completion     time.Time `json:"-"`
}

// Breached reports whether the SLA was exceeded.
func (s SLAStatus) Breached() bool { return s.State == SLABreached }

// Breach is one telemetry sample crossing a configured threshold.
// Breaches are recomputed per invocation and never persisted.
type Breach struct {
	Timestamp  time.Time `json:"timestamp"`
	Domain     Domain    `json:"domain"`
	Metric     string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Severity   Severity  `json:"severity"`
	Entity     string    `json:"entity,omitempty"`
	Detail     string    `json:"detail"`
	Background bool      `json:"background,omitempty"`
}

// Cluster groups temporally correlated breaches. A cluster starts from
// same-domain grouping within the configured gap; clusters of different
// domains whose spans fall within the gap of each other are merged into one
// correlated cluster for attribution.
type Cluster struct {
	Domains        []Domain  `json:"domains"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Breaches       []Breach  `json:"breaches"`
	Representative Breach    `json:"representative"`
	CriticalCount  int       `json:"critical_count"`
	WarningCount   int       `json:"warning_count"`
}

// PrimaryDomain returns the representative's domain.
func (c Cluster) PrimaryDomain() Domain { return c.Representative.Domain }

// Root cause categories.
const (
	CategoryMarkerDelay    = "marker delay"
	CategoryInfrastructure = "infrastructure"
	CategoryUnexplained    = "unexplained"
)

// RootCause is a derived aggregate over one or more correlated breaches, or
// over the marker delay itself.
type RootCause struct {
	Category     string   `json:"category"`
	Severity     Severity `json:"severity"`
	Cause        string   `json:"cause"`
	Evidence     string   `json:"evidence"`
	Contribution float64  `json:"contribution_percentage"`
	Cascading    bool     `json:"cascading,omitempty"`
}

// TimelineEvent is the externally consumed unit of the causal narrative.
type TimelineEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Severity  Severity  `json:"severity"`
	Detail    string    `json:"detail"`
	Impact    string    `json:"impact,omitempty"`
}

// ErrorContext is one ERROR/EXCEPTION hit in the failure log together with
// its surrounding lines.
type ErrorContext struct {
	LineNumber int      `json:"line_number"`
	Type       string   `json:"error_type"`
	Message    string   `json:"error_message"`
	Context    []string `json:"context"`
}

// FailureLog is the analysis of one day's stderr capture. Summary carries
// the "unavailable" sentinel when no capture exists for the date.
type FailureLog struct {
	Available   bool           `json:"available"`
	TotalErrors int            `json:"total_errors"`
	Summary     string         `json:"summary"`
	Contexts    []ErrorContext `json:"error_contexts"`
}

// Summary holds per-document status lines, always populated with sentinel
// strings rather than nulls.
type Summary struct {
	MarkerEvent   string `json:"marker_event"`
	JobProcessing string `json:"job_processing"`
	EKSStatus     string `json:"eks_status"`
	RDSStatus     string `json:"rds_status"`
	SQSStatus     string `json:"sqs_status"`
}

// Report is the complete structured output of one analysis invocation. All
// fields are always present so downstream formatting never needs null checks.
type Report struct {
	Date               string          `json:"date"`
	SLA                SLAStatus       `json:"sla_status"`
	RootCauses         []RootCause     `json:"root_causes"`
	Timeline           []TimelineEvent `json:"timeline"`
	Summary            Summary         `json:"metrics_summary"`
	SkippedSamples     map[Domain]int  `json:"skipped_samples"`
	BackgroundBreaches []Breach        `json:"background_breaches"`
	Recommendations    []string        `json:"recommendations"`
	FailureLog         FailureLog      `json:"failure_log"`
	ScanState          string          `json:"scan_state"`
}
