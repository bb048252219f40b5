package catalog

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
)

// Handler manages catalog endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/articles", h.register)
	r.Get("/articles/{id}", h.get)
	r.Get("/stock", h.stock)
}

type variantRequest struct {
	SizeRange string `json:"size_range" validate:"required"`
	ListPrice string `json:"list_price" validate:"required"`
	OnHand    int64  `json:"on_hand" validate:"gte=0"`
}

type registerArticleRequest struct {
	SupplierID  int64            `json:"supplier_id" validate:"required,gt=0"`
	BrandName   string           `json:"brand_name" validate:"required"`
	ArticleCode string           `json:"article_code" validate:"required"`
	Category    string           `json:"category"`
	Gender      string           `json:"gender"`
	Variants    []variantRequest `json:"variants" validate:"required,min=1,dive"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerArticleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := RegisterInput{
		SupplierID:  req.SupplierID,
		BrandName:   req.BrandName,
		ArticleCode: req.ArticleCode,
		Category:    req.Category,
		Gender:      req.Gender,
	}
	for _, v := range req.Variants {
		price, err := decimal.NewFromString(v.ListPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
				fmt.Sprintf("variant %q: list_price must be a decimal string", v.SizeRange))
			return
		}
		input.Variants = append(input.Variants, VariantInput{
			SizeRange: v.SizeRange,
			ListPrice: price,
			OnHand:    v.OnHand,
		})
	}

	article, err := h.service.Register(r.Context(), input)
	if err != nil {
		h.respondError(w, "register article", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, article)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid article id")
		return
	}
	article, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get article", err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Stock(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, "stock overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": rows})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSupplierNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateCode):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrNoVariants), errors.Is(err, ErrInvalidVariant):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
