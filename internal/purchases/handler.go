package purchases

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/httpx"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

// Handler manages purchase endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.postPurchase)
}

type purchaseLineRequest struct {
	VariantID int64  `json:"variant_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	UnitCost  string `json:"unit_cost" validate:"required"`
}

type postPurchaseRequest struct {
	SupplierID int64                 `json:"supplier_id" validate:"required,gt=0"`
	Date       string                `json:"date" validate:"required"`
	Lines      []purchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) postPurchase(w http.ResponseWriter, r *http.Request) {
	var req postPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := PostPurchaseInput{SupplierID: req.SupplierID, Date: req.Date}
	for i, line := range req.Lines {
		cost, err := decimal.NewFromString(line.UnitCost)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
				fmt.Sprintf("lines[%d].unit_cost must be a decimal string", i))
			return
		}
		input.Lines = append(input.Lines, LineInput{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitCost:  cost,
		})
	}

	purchase, err := h.service.PostPurchase(r.Context(), input)
	if err != nil {
		h.respondError(w, "post purchase", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrSupplierNotFound), errors.Is(err, stock.ErrVariantNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrBadDate),
		errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrDuplicateLine):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, stock.ErrDuplicateMovement):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, stock.ErrConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
