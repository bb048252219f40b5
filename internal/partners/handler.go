package partners

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
)

// Handler manages partner endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers partner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type createPartnerRequest struct {
	Type           string `json:"type" validate:"required,oneof=Customer Supplier"`
	Name           string `json:"name" validate:"required"`
	City           string `json:"city"`
	Phone          string `json:"phone"`
	OpeningBalance string `json:"opening_balance"`
	CreditLimit    string `json:"credit_limit"`
	CreditDays     int    `json:"credit_days" validate:"gte=0"`
	DefaultSchema  string `json:"default_schema"`
}

type updatePartnerRequest struct {
	Name          string `json:"name" validate:"required"`
	City          string `json:"city"`
	Phone         string `json:"phone"`
	CreditLimit   string `json:"credit_limit"`
	CreditDays    int    `json:"credit_days" validate:"gte=0"`
	DefaultSchema string `json:"default_schema"`
}

func parseMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be a decimal string", field)
	}
	return v, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPartnerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	opening, err := parseMoney("opening_balance", req.OpeningBalance)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	limit, err := parseMoney("credit_limit", req.CreditLimit)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Create(r.Context(), CreateInput{
		Type:           PartnerType(req.Type),
		Name:           req.Name,
		City:           req.City,
		Phone:          req.Phone,
		OpeningBalance: opening,
		CreditLimit:    limit,
		CreditDays:     req.CreditDays,
		DefaultSchema:  pricing.Schema(req.DefaultSchema),
	})
	if err != nil {
		h.respondError(w, "create partner", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid partner id")
		return
	}
	var req updatePartnerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	limit, err := parseMoney("credit_limit", req.CreditLimit)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Update(r.Context(), UpdateInput{
		ID:            id,
		Name:          req.Name,
		City:          req.City,
		Phone:         req.Phone,
		CreditLimit:   limit,
		CreditDays:    req.CreditDays,
		DefaultSchema: pricing.Schema(req.DefaultSchema),
	})
	if err != nil {
		h.respondError(w, "update partner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid partner id")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get partner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.service.List(r.Context(), ListFilter{
		Type:  PartnerType(r.URL.Query().Get("type")),
		Query: r.URL.Query().Get("q"),
		Limit: limit,
	})
	if err != nil {
		h.respondError(w, "list partners", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"partners": out})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateName):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrSchemaNotAllowed),
		errors.Is(err, ErrNegativeCredit),
		errors.Is(err, pricing.ErrUnknownSchema):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
