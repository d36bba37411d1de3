// Package http exposes the facturation recap over JSON, XLSX and PDF.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chantier-erp/chantier-erp/internal/events"
	"github.com/chantier-erp/chantier-erp/internal/export"
	"github.com/chantier-erp/chantier-erp/internal/facturation"
	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/httpx"
)

// RecapService is the recap contract used by the handler.
type RecapService interface {
	Recap(ctx context.Context, f facturation.RecapFilter) (facturation.Recap, error)
	Totals(ctx context.Context, f facturation.RecapFilter) (ledger.Totals, error)
}

// Publisher announces record changes to the other components.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Handler serves the /api/facturation routes.
type Handler struct {
	logger    *slog.Logger
	service   RecapService
	publisher Publisher
	validate  *validator.Validate
}

// NewHandler constructs the facturation HTTP handler.
func NewHandler(logger *slog.Logger, service RecapService, publisher Publisher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, publisher: publisher, validate: validator.New()}
}

// MountRoutes registers the facturation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/recap", h.handleRecap)
	r.Get("/totals", h.handleTotals)
	r.Get("/export.xlsx", h.handleExportXLSX)
	r.Get("/export.pdf", h.handleExportPDF)
	r.Post("/refresh", h.handleRefresh)
}

type recapQuery struct {
	Year       int    `validate:"omitempty,gte=2000,lte=2100"`
	ChantierID int64  `validate:"gte=0"`
	MonthOnly  bool
	AsOf       string `validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) parseFilter(r *http.Request) (facturation.RecapFilter, error) {
	q := r.URL.Query()
	var query recapQuery
	var err error
	if v := q.Get("year"); v != "" {
		if query.Year, err = strconv.Atoi(v); err != nil {
			return facturation.RecapFilter{}, fmt.Errorf("%w: year must be a number", httpx.ErrValidation)
		}
	}
	if v := q.Get("chantier_id"); v != "" {
		if query.ChantierID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return facturation.RecapFilter{}, fmt.Errorf("%w: chantier_id must be a number", httpx.ErrValidation)
		}
	}
	if v := q.Get("month_only"); v != "" {
		if query.MonthOnly, err = strconv.ParseBool(v); err != nil {
			return facturation.RecapFilter{}, fmt.Errorf("%w: month_only must be a boolean", httpx.ErrValidation)
		}
	}
	query.AsOf = q.Get("as_of")
	if err := h.validate.Struct(query); err != nil {
		return facturation.RecapFilter{}, err
	}

	filter := facturation.RecapFilter{Year: query.Year, ChantierID: query.ChantierID, MonthOnly: query.MonthOnly}
	if query.AsOf != "" {
		filter.AsOf, _ = ledger.ParseDate(query.AsOf)
	}
	return filter, nil
}

func (h *Handler) loadRecap(w http.ResponseWriter, r *http.Request) (facturation.Recap, bool) {
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return facturation.Recap{}, false
	}
	recap, err := h.service.Recap(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "build recap", err)
		return facturation.Recap{}, false
	}
	return recap, true
}

func (h *Handler) handleRecap(w http.ResponseWriter, r *http.Request) {
	recap, ok := h.loadRecap(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, recap)
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	totals, err := h.service.Totals(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "compute totals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	recap, ok := h.loadRecap(w, r)
	if !ok {
		return
	}
	body, err := export.RecapXLSX(recap)
	if err != nil {
		h.fail(w, r, "export xlsx", err)
		return
	}
	httpx.Attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", exportName(recap, "xlsx"), body)
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	recap, ok := h.loadRecap(w, r)
	if !ok {
		return
	}
	body, err := export.RecapPDF(recap)
	if err != nil {
		h.fail(w, r, "export pdf", err)
		return
	}
	httpx.Attachment(w, "application/pdf", exportName(recap, "pdf"), body)
}

type refreshRequest struct {
	ChantierID int64 `json:"chantier_id" validate:"gte=0"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, r, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if h.publisher == nil {
		httpx.RespondError(w, r, fmt.Errorf("facturation: no event bus: %w", httpx.ErrUnavailable))
		return
	}
	ev := events.Event{Topic: events.TopicRecordsChanged, ChantierID: req.ChantierID, Source: "api", At: time.Now().UTC()}
	if err := h.publisher.Publish(r.Context(), ev); err != nil {
		h.fail(w, r, "publish refresh", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "topic": ev.Topic})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrNotFound) {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func exportName(recap facturation.Recap, ext string) string {
	name := "recap-facturation"
	if recap.Filter.Year != 0 {
		name += "-" + strconv.Itoa(recap.Filter.Year)
	}
	if recap.Filter.ChantierID != 0 {
		name += "-chantier-" + strconv.FormatInt(recap.Filter.ChantierID, 10)
	}
	return name + "." + ext
}
