package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

// AnalysisService defines the service operations the handlers depend on.
type AnalysisService interface {
	Analyze(ctx context.Context, date string, override *models.Window) (models.Report, error)
	Chat(ctx context.Context, query, date string) (string, models.Report, error)
	Dates(ctx context.Context) ([]string, error)
	LatencyP95() time.Duration
}

// Handlers holds the HTTP handler set for the analysis API.
type Handlers struct {
	logger  *slog.Logger
	service AnalysisService
}

// NewHandlers constructs the handler set.
func NewHandlers(logger *slog.Logger, service AnalysisService) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, service: service}
}

type chatRequest struct {
	Query string `json:"query"`
	Date  string `json:"date"`
}

type chatResponse struct {
	Answer string        `json:"answer"`
	Report models.Report `json:"report"`
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

type healthResponse struct {
	Status     string `json:"status"`
	LatencyP95 string `json:"latency_p95"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness and the rolling p95 analysis latency.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		LatencyP95: h.service.LatencyP95().String(),
	})
}

// Chat answers an operator question about one date's pipeline run.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	answer, report, err := h.service.Chat(r.Context(), req.Query, req.Date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Report: report})
}

// Analysis returns the raw structured report for one date. Optional
// window_start and window_end query parameters override the processing
// window used for breach scanning.
func (h *Handlers) Analysis(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}

	override, err := parseWindowOverride(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.Analyze(r.Context(), date, override)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Dates lists the dates with telemetry available, newest first.
func (h *Handlers) Dates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.service.Dates(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, datesResponse{Dates: dates})
}

func parseWindowOverride(r *http.Request) (*models.Window, error) {
	startRaw := r.URL.Query().Get("window_start")
	endRaw := r.URL.Query().Get("window_end")
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}
	if startRaw == "" || endRaw == "" {
		return nil, utils.NewAppError("api.Analysis", "window_start and window_end must be supplied together", nil)
	}
	start, err := utils.ParseTimestamp(startRaw)
	if err != nil {
		return nil, utils.NewAppError("api.Analysis", "invalid window_start", err)
	}
	end, err := utils.ParseTimestamp(endRaw)
	if err != nil {
		return nil, utils.NewAppError("api.Analysis", "invalid window_end", err)
	}
	if end.Before(start) {
		return nil, utils.NewAppError("api.Analysis", "window_end precedes window_start", nil)
	}
	return &models.Window{Start: start, End: end, Closed: true}, nil
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, utils.ErrInvalidInput) {
		status = http.StatusBadRequest
	}

	msg := "internal error"
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Msg != "" {
		msg = appErr.Msg
		h.logger.Error("request failed", slog.String("op", appErr.Op), slog.Any("error", err))
	} else {
		h.logger.Error("request failed", slog.Any("error", err))
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
