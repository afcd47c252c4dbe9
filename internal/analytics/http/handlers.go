package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/internal/analytics/export"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
)

const requestTimeout = 10 * time.Second

// AnalyticsService defines the report contract used by the handler. The paged
// methods serve JSON; exports read the whole report once so a file never mixes
// two cache versions.
type AnalyticsService interface {
	TimeSeries(ctx context.Context, q analytics.TimeSeriesQuery) (analytics.TimeSeriesReport, error)
	Breakeven(ctx context.Context, q analytics.BreakevenQuery) (analytics.BreakevenReport, error)
	GetTimeSeries(ctx context.Context, q analytics.TimeSeriesQuery) (analytics.TimeSeriesResult, error)
	GetBreakeven(ctx context.Context, q analytics.BreakevenQuery) (analytics.BreakevenResult, error)
	Location() *time.Location
}

// Invalidator accepts change notifications and manual bumps.
type Invalidator interface {
	Handle(ctx context.Context, evt analytics.ChangeEvent) (string, error)
	Bump(ctx context.Context, reason string) (string, error)
}

// Handler serves the analytics JSON and CSV endpoints.
type Handler struct {
	logger      *slog.Logger
	service     AnalyticsService
	invalidator Invalidator
	validator   *validator.Validate
	csvPool     sync.Pool
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, invalidator Invalidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:      logger,
		service:     service,
		invalidator: invalidator,
		validator:   newValidator(),
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

func (h *Handler) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseTimeSeries(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.service.GetTimeSeries(ctx, q)
	if err != nil {
		h.respondServiceError(w, "time series", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTimeSeriesResponse(res))
}

func (h *Handler) handleBreakeven(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseBreakeven(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.service.GetBreakeven(ctx, q)
	if err != nil {
		h.respondServiceError(w, "break even", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBreakevenResponse(res))
}

func (h *Handler) handleTimeSeriesCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseTimeSeries(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.TimeSeries(ctx, q)
	if err != nil {
		h.respondServiceError(w, "time series export", err)
		return
	}

	filename := fmt.Sprintf("time_series_%s_%s_%s.csv", q.Granularity, q.From.Format("20060102"), q.To.Format("20060102"))
	h.streamCSV(w, filename, func(buf *bytes.Buffer) error {
		return export.WriteTimeSeriesCSV(buf, report.Points)
	})
}

func (h *Handler) handleBreakevenCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseBreakeven(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.Breakeven(ctx, q)
	if err != nil {
		h.respondServiceError(w, "break even export", err)
		return
	}
	ordering := q.Ordering
	if ordering == "" {
		ordering = analytics.DefaultOrdering
	}
	rows := analytics.SortTrend(report.Trend, ordering)

	filename := fmt.Sprintf("break_even_%d.csv", q.ProductID)
	h.streamCSV(w, filename, func(buf *bytes.Buffer) error {
		return export.WriteBreakevenCSV(buf, rows)
	})
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, write func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.handleServerError(w, "write csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

type changeRequest struct {
	Entity   string `json:"entity" validate:"required,oneof=sale sale_item product"`
	Action   string `json:"action" validate:"required,oneof=create update delete"`
	RecordID *int64 `json:"record_id"`
}

type bumpResponse struct {
	EventID string `json:"event_id,omitempty"`
	Version string `json:"version"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fieldErrors(err))
		return
	}
	evt := analytics.ChangeEvent{
		ID:       uuid.New(),
		Entity:   analytics.Entity(req.Entity),
		Action:   analytics.Action(req.Action),
		RecordID: req.RecordID,
	}
	version, err := h.invalidator.Handle(r.Context(), evt)
	if err != nil {
		h.handleServerError(w, "handle change event", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, bumpResponse{EventID: evt.ID.String(), Version: version})
}

func (h *Handler) handleBump(w http.ResponseWriter, r *http.Request) {
	version, err := h.invalidator.Bump(r.Context(), "http")
	if err != nil {
		h.handleServerError(w, "bump cache version", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bumpResponse{Version: version})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, analytics.ErrProductNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, analytics.ErrInvalidRange):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, context.DeadlineExceeded):
		h.logError(op, err)
		httpx.Problem(w, http.StatusGatewayTimeout, "Timeout", "")
	default:
		h.handleServerError(w, op, err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, op string, err error) {
	h.logError(op, err)
	httpx.RespondError(w, err)
}

func (h *Handler) logError(op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
}
