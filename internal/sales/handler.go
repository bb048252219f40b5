package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/httpx"
	"github.com/versatilewordsmith/footwear-accounting/internal/pricing"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

// Handler manages sales endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.postInvoice)
	r.Get("/invoices/{id}", h.getInvoice)
}

type invoiceLineRequest struct {
	VariantID        int64  `json:"variant_id" validate:"required,gt=0"`
	Quantity         int64  `json:"quantity" validate:"required,gt=0"`
	DiscountPercent  string `json:"discount_percent"`
	Commission       string `json:"commission"`
	CommissionIsFlat bool   `json:"commission_is_flat"`
}

type postInvoiceRequest struct {
	CustomerID int64                `json:"customer_id" validate:"required,gt=0"`
	Date       string               `json:"date" validate:"required"`
	Schema     string               `json:"schema"`
	Lines      []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func parseOptionalDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be a decimal string", field)
	}
	return v, nil
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	var req postInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := PostInvoiceInput{
		CustomerID: req.CustomerID,
		Date:       req.Date,
		Schema:     pricing.Schema(req.Schema),
	}
	for i, line := range req.Lines {
		discount, err := parseOptionalDecimal(fmt.Sprintf("lines[%d].discount_percent", i), line.DiscountPercent)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		commission, err := parseOptionalDecimal(fmt.Sprintf("lines[%d].commission", i), line.Commission)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		input.Lines = append(input.Lines, LineInput{
			VariantID:        line.VariantID,
			Quantity:         line.Quantity,
			DiscountPercent:  discount,
			Commission:       commission,
			CommissionIsFlat: line.CommissionIsFlat,
		})
	}

	invoice, err := h.service.PostInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, "post invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrInvoiceNotFound),
		errors.Is(err, stock.ErrVariantNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrNoSchema),
		errors.Is(err, ErrBadDate),
		errors.Is(err, ErrDuplicateLine),
		errors.Is(err, pricing.ErrUnknownSchema),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrInvalidListPrice),
		errors.Is(err, pricing.ErrInvalidDiscount),
		errors.Is(err, pricing.ErrInvalidCommission),
		errors.Is(err, pricing.ErrAdjustmentNotAllowed),
		errors.Is(err, pricing.ErrNegativeNet):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, stock.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, stock.ErrDuplicateMovement):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, stock.ErrConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
