package purchases

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a posted supplier invoice. Total is the exact sum of
// quantity times unit cost over all lines.
type Purchase struct {
	ID        int64           `json:"id"`
	Number    string          `json:"invoice_number"`
	PartnerID int64           `json:"partner_id"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Lines     []Line          `json:"lines,omitempty"`
}

// Line is one received purchase line.
type Line struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	VariantID  int64           `json:"variant_id"`
	Quantity   int64           `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Amount     decimal.Decimal `json:"amount"`
}

// LineInput is one requested purchase line.
type LineInput struct {
	VariantID int64
	Quantity  int64
	UnitCost  decimal.Decimal
}

// PostPurchaseInput describes a purchase to post.
type PostPurchaseInput struct {
	SupplierID int64
	Date       string
	Lines      []LineInput
	ActorID    int64
}

// Supplier is the slice of a partner the posting transaction needs.
type Supplier struct {
	ID   int64
	Name string
}

var (
	// ErrSupplierNotFound indicates the partner is missing or not a supplier.
	ErrSupplierNotFound = errors.New("purchases: supplier not found")
	// ErrNoLines indicates a purchase with no lines.
	ErrNoLines = errors.New("purchases: at least one line is required")
	// ErrBadDate indicates an unparseable purchase date.
	ErrBadDate = errors.New("purchases: date must be formatted YYYY-MM-DD")
	// ErrInvalidLine indicates a non-positive quantity or negative unit cost.
	ErrInvalidLine = errors.New("purchases: invalid line")
	// ErrDuplicateLine indicates the same variant appears twice.
	ErrDuplicateLine = errors.New("purchases: variant repeated across lines")
)

const purchaseDateLayout = "2006-01-02"
