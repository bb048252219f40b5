package partners

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/pricing"
)

// PartnerType splits the partner book into customers and suppliers.
type PartnerType string

const (
	TypeCustomer PartnerType = "Customer"
	TypeSupplier PartnerType = "Supplier"
)

// ValidType reports whether t is a supported partner type.
func ValidType(t PartnerType) bool {
	return t == TypeCustomer || t == TypeSupplier
}

// Partner is a customer or supplier account. Type is fixed at creation:
// flipping it would silently change how the partner's ledger reads.
type Partner struct {
	ID             int64           `json:"id"`
	Type           PartnerType     `json:"type"`
	Name           string          `json:"name"`
	City           string          `json:"city,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CreditDays     int             `json:"credit_days"`
	// DefaultSchema is the commercial schema applied to the customer's
	// invoices. Empty for suppliers.
	DefaultSchema pricing.Schema `json:"default_schema,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateInput describes a partner to create.
type CreateInput struct {
	Type           PartnerType
	Name           string
	City           string
	Phone          string
	OpeningBalance decimal.Decimal
	CreditLimit    decimal.Decimal
	CreditDays     int
	DefaultSchema  pricing.Schema
	ActorID        int64
}

// UpdateInput describes mutable partner fields. Type and opening balance are
// not here: both anchor the ledger and stay as created.
type UpdateInput struct {
	ID            int64
	Name          string
	City          string
	Phone         string
	CreditLimit   decimal.Decimal
	CreditDays    int
	DefaultSchema pricing.Schema
	ActorID       int64
}

// ListFilter narrows partner listings.
type ListFilter struct {
	Type  PartnerType
	Query string
	Limit int
}

var (
	// ErrNotFound indicates an unknown partner.
	ErrNotFound = errors.New("partners: partner not found")
	// ErrInvalidType indicates a type outside Customer/Supplier.
	ErrInvalidType = errors.New("partners: invalid partner type")
	// ErrInvalidName indicates a blank name.
	ErrInvalidName = errors.New("partners: name is required")
	// ErrDuplicateName indicates a partner with the same name and type exists.
	ErrDuplicateName = errors.New("partners: partner already exists")
	// ErrSchemaNotAllowed indicates a pricing schema on a supplier.
	ErrSchemaNotAllowed = errors.New("partners: pricing schema applies to customers only")
	// ErrNegativeCredit indicates a negative credit limit or credit days.
	ErrNegativeCredit = errors.New("partners: credit limit and credit days must not be negative")
)
