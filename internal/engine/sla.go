package engine

import (
	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

// DefaultSLALimitHours is the contractual deadline for the pipeline.
const DefaultSLALimitHours = 3.0

// EvaluateSLA derives the processing window and verdict for a normalized
// bundle. Values are exact fractional hours; rounding is a presentation
// concern.
//
// The verdict is one of four states: "unavailable" when the trigger
// document is absent, "incomplete" when no run exists or any run lacks an
// end time (callers must not read incomplete as met), otherwise "met" or
// "breached" by comparing duration against the limit.
func EvaluateSLA(bundle *models.Bundle, limitHours float64) models.SLAStatus {
	if limitHours <= 0 {
		limitHours = DefaultSLALimitHours
	}
	status := models.SLAStatus{
		State:          models.SLAUnavailable,
		ArrivalTime:    models.ValueUnavailable,
		CompletionTime: models.ValueUnavailable,
		LimitHours:     limitHours,
	}

	if bundle == nil || bundle.Trigger == nil {
		return status
	}
	status.Arrival = bundle.Trigger.ActualArrival
	status.ArrivalTime = utils.FormatTimestamp(status.Arrival, models.ValueUnavailable)

	if len(bundle.Runs) == 0 {
		status.State = models.SLAIncomplete
		status.CompletionTime = models.ValueIncomplete
		return status
	}
	completion := bundle.Runs[0].End
	for _, run := range bundle.Runs {
		if !run.Completed() {
			status.State = models.SLAIncomplete
			status.CompletionTime = models.ValueIncomplete
			return status
		}
		if run.End.After(completion) {
			completion = run.End
		}
	}

	status.Completion = completion
	status.CompletionTime = utils.FormatTimestamp(completion, models.ValueUnavailable)
	status.DurationHours = utils.HoursBetween(status.Arrival, completion)
	if status.DurationHours > limitHours {
		status.State = models.SLABreached
		status.ExcessHours = status.DurationHours - limitHours
	} else {
		status.State = models.SLAMet
	}
	return status
}

// ProcessingWindow returns the breach-scanning window for the bundle:
// trigger arrival through final job completion. The window is open
// (Closed=false) whenever the SLA state is incomplete or unavailable;
// scanning an open window would bias attribution toward whichever data
// happens to exist, so the scanner defers instead.
func ProcessingWindow(status models.SLAStatus) models.Window {
	if status.Arrival.IsZero() || status.Completion.IsZero() {
		return models.Window{}
	}
	return models.Window{Start: status.Arrival, End: status.Completion, Closed: true}
}
