package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/pricing"
)

// Invoice is a posted customer invoice. Total is the exact sum of the item
// net amounts, never a recomputation from rounded parts.
type Invoice struct {
	ID        int64           `json:"id"`
	Number    string          `json:"invoice_number"`
	PartnerID int64           `json:"partner_id"`
	Schema    pricing.Schema  `json:"schema"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []Item          `json:"items,omitempty"`
}

// Item is one priced invoice line.
type Item struct {
	ID               int64           `json:"id"`
	InvoiceID        int64           `json:"invoice_id"`
	VariantID        int64           `json:"variant_id"`
	Quantity         int64           `json:"quantity"`
	ListPrice        decimal.Decimal `json:"list_price"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	Commission       decimal.Decimal `json:"commission"`
	CommissionIsFlat bool            `json:"commission_is_flat"`
	NetAmount        decimal.Decimal `json:"net_amount"`
}

// LineInput is one requested invoice line. The list price is read from the
// variant inside the posting transaction, not taken from the caller.
type LineInput struct {
	VariantID        int64
	Quantity         int64
	DiscountPercent  decimal.Decimal
	Commission       decimal.Decimal
	CommissionIsFlat bool
}

// PostInvoiceInput describes an invoice to post. Schema overrides the
// customer's default when set.
type PostInvoiceInput struct {
	CustomerID int64
	Date       string
	Schema     pricing.Schema
	Lines      []LineInput
	ActorID    int64
}

// Customer is the slice of a partner the posting transaction needs.
type Customer struct {
	ID            int64
	Name          string
	DefaultSchema pricing.Schema
}

var (
	// ErrCustomerNotFound indicates the partner is missing or not a customer.
	ErrCustomerNotFound = errors.New("sales: customer not found")
	// ErrInvoiceNotFound indicates the id is unknown or names a purchase row.
	ErrInvoiceNotFound = errors.New("sales: invoice not found")
	// ErrNoLines indicates an invoice with no lines.
	ErrNoLines = errors.New("sales: at least one line is required")
	// ErrNoSchema indicates neither the request nor the customer carries a
	// pricing schema.
	ErrNoSchema = errors.New("sales: no pricing schema for customer")
	// ErrBadDate indicates an unparseable invoice date.
	ErrBadDate = errors.New("sales: date must be formatted YYYY-MM-DD")
	// ErrDuplicateLine indicates the same variant appears twice.
	ErrDuplicateLine = errors.New("sales: variant repeated across lines")
)

const invoiceDateLayout = "2006-01-02"
