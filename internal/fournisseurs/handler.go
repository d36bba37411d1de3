package fournisseurs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/httpx"
)

// RecapService is the contract used by Handler.
type RecapService interface {
	Recap(ctx context.Context, f Filter) (Recap, error)
}

// Handler serves the /api/fournisseurs routes.
type Handler struct {
	logger   *slog.Logger
	service  RecapService
	validate *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service RecapService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/recap", h.handleRecap)
}

type recapQuery struct {
	Year       int    `validate:"omitempty,gte=2000,lte=2100"`
	SupplierID int64  `validate:"gte=0"`
	AsOf       string `validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleRecap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query recapQuery
	var err error
	if v := q.Get("year"); v != "" {
		if query.Year, err = strconv.Atoi(v); err != nil {
			httpx.RespondError(w, r, fmt.Errorf("%w: year must be a number", httpx.ErrValidation))
			return
		}
	}
	if v := q.Get("supplier_id"); v != "" {
		if query.SupplierID, err = strconv.ParseInt(v, 10, 64); err != nil {
			httpx.RespondError(w, r, fmt.Errorf("%w: supplier_id must be a number", httpx.ErrValidation))
			return
		}
	}
	query.AsOf = q.Get("as_of")
	if err := h.validate.Struct(query); err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	filter := Filter{Year: query.Year, SupplierID: query.SupplierID}
	if query.AsOf != "" {
		filter.AsOf, _ = ledger.ParseDate(query.AsOf)
	}
	recap, err := h.service.Recap(r.Context(), filter)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrValidation) {
			h.logger.Error("supplier recap", slog.Any("error", err))
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recap)
}
