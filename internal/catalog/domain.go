package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Article is one supplier's shoe model. Sizes and prices live on variants.
type Article struct {
	ID          int64     `json:"id"`
	SupplierID  int64     `json:"supplier_id"`
	BrandName   string    `json:"brand_name"`
	ArticleCode string    `json:"article_code"`
	Category    string    `json:"category,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant is one sellable size range of an article with its list price and
// on-hand count. OnHand is never written by this package; stock movements own
// that column.
type Variant struct {
	ID        int64           `json:"id"`
	ArticleID int64           `json:"article_id"`
	SizeRange string          `json:"size_range"`
	ListPrice decimal.Decimal `json:"list_price"`
	OnHand    int64           `json:"on_hand"`
}

// VariantInput describes one variant of a new article.
type VariantInput struct {
	SizeRange string
	ListPrice decimal.Decimal
	OnHand    int64
}

// RegisterInput describes an article to register along with its variants.
type RegisterInput struct {
	SupplierID  int64
	BrandName   string
	ArticleCode string
	Category    string
	Gender      string
	Variants    []VariantInput
	ActorID     int64
}

// StockRow is one line of the stock overview.
type StockRow struct {
	VariantID   int64           `json:"variant_id"`
	ArticleID   int64           `json:"article_id"`
	BrandName   string          `json:"brand_name"`
	ArticleCode string          `json:"article_code"`
	SizeRange   string          `json:"size_range"`
	ListPrice   decimal.Decimal `json:"list_price"`
	OnHand      int64           `json:"on_hand"`
	Status      string          `json:"status"`
}

// Stock overview statuses.
const (
	StatusInStock    = "In Stock"
	StatusLowStock   = "Low Stock"
	StatusOutOfStock = "Out of Stock"
)

// lowStockThreshold is the on-hand count at or below which a variant is
// flagged for reorder.
const lowStockThreshold int64 = 5

// StatusFor classifies an on-hand count for the stock overview.
func StatusFor(onHand int64) string {
	switch {
	case onHand <= 0:
		return StatusOutOfStock
	case onHand <= lowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

var (
	// ErrNotFound indicates an unknown article or variant.
	ErrNotFound = errors.New("catalog: not found")
	// ErrSupplierNotFound indicates an unknown supplier reference.
	ErrSupplierNotFound = errors.New("catalog: supplier not found")
	// ErrDuplicateCode indicates the supplier already has this article code.
	ErrDuplicateCode = errors.New("catalog: article code already registered")
	// ErrNoVariants indicates an article registered without variants.
	ErrNoVariants = errors.New("catalog: at least one variant is required")
	// ErrInvalidVariant indicates a variant with a blank size range, a
	// negative list price, or a negative opening count.
	ErrInvalidVariant = errors.New("catalog: invalid variant")
)
