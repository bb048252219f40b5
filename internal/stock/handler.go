package stock

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/httpx"
)

// Handler manages stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/adjustments", h.adjust)
	r.Get("/levels/{variantID}", h.level)
}

type adjustmentRequest struct {
	VariantID int64  `json:"variant_id" validate:"required,gt=0"`
	Delta     int64  `json:"delta" validate:"required"`
	Note      string `json:"note"`
	RefID     string `json:"ref_id"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	level, err := h.service.Adjust(r.Context(), AdjustmentInput{
		VariantID: req.VariantID,
		Delta:     req.Delta,
		Note:      req.Note,
		RefID:     req.RefID,
	})
	if err != nil {
		h.respondError(w, "stock adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"variant_id": level.VariantID,
		"on_hand":    level.OnHand,
	})
}

func (h *Handler) level(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return
	}
	onHand, err := h.service.OnHand(r.Context(), id)
	if err != nil {
		h.respondError(w, "stock level", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"variant_id": id, "on_hand": onHand})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrVariantNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidDelta):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrDuplicateMovement):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
