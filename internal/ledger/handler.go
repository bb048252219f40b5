package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/httpx"
	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
)

// Handler manages ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.recordTransaction)
	r.Get("/partners/{id}/statement", h.partnerStatement)
	r.Get("/cash-position", h.cashPosition)
}

type recordTransactionRequest struct {
	PartnerID int64  `json:"partner_id" validate:"required,gt=0"`
	Kind      string `json:"kind" validate:"required"`
	Mode      string `json:"mode" validate:"required"`
	Reference string `json:"reference_no"`
	Date      string `json:"date" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
}

type transactionResponse struct {
	ID        int64           `json:"id"`
	PartnerID int64           `json:"partner_id"`
	Kind      TransactionKind `json:"kind"`
	Mode      PaymentMode     `json:"mode"`
	Reference string          `json:"reference_no,omitempty"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	if _, err := time.Parse(eventDateLayout, req.Date); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be formatted YYYY-MM-DD")
		return
	}

	txn, err := h.service.RecordTransaction(r.Context(), TransactionInput{
		PartnerID:      req.PartnerID,
		Kind:           TransactionKind(req.Kind),
		Mode:           PaymentMode(req.Mode),
		Reference:      req.Reference,
		EventDate:      req.Date,
		Amount:         amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, r, "record transaction", err)
		return
	}

	httpx.JSON(w, http.StatusCreated, transactionResponse{
		ID:        txn.ID,
		PartnerID: txn.PartnerID,
		Kind:      txn.Kind,
		Mode:      txn.Mode,
		Reference: txn.Reference,
		Date:      txn.EventDate,
		Amount:    txn.Amount,
	})
}

func (h *Handler) partnerStatement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid partner id")
		return
	}

	stmt, err := h.service.BuildStatement(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "build statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) cashPosition(w http.ResponseWriter, r *http.Request) {
	position, err := h.service.CashPosition(r.Context())
	if err != nil {
		h.respondError(w, r, "cash position", err)
		return
	}
	httpx.JSON(w, http.StatusOK, position)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrPartnerNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrUnknownKind),
		errors.Is(err, ErrUnknownMode),
		errors.Is(err, ErrInvalidAmount):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrBadEventDate):
		// A stored row with a bad date is a data fault, not caller input.
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Ledger Data Error", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
