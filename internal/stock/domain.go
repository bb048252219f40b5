package stock

import "errors"

// RefKind names the financial document a movement originates from.
type RefKind string

const (
	// RefKindSale marks an issue backed by a sales invoice line.
	RefKindSale RefKind = "SALE"
	// RefKindPurchase marks a receipt backed by a purchase line.
	RefKindPurchase RefKind = "PURCHASE"
	// RefKindAdjustment marks a manual count correction.
	RefKindAdjustment RefKind = "ADJUST"
)

// Movement is one signed quantity change against one variant. The
// (RefKind, RefID, VariantID) triple is unique: applying the same document
// line twice is rejected, not re-applied.
type Movement struct {
	RefKind   RefKind
	RefID     string
	VariantID int64
	Delta     int64
	Note      string
}

// Level reports a variant's on-hand count after a movement.
type Level struct {
	VariantID int64
	OnHand    int64
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	VariantID int64
	Delta     int64
	Note      string
	ActorID   int64
	RefID     string
}

var (
	// ErrInvalidDelta indicates a zero delta.
	ErrInvalidDelta = errors.New("stock: delta must be non-zero")
	// ErrVariantNotFound indicates an unknown variant reference.
	ErrVariantNotFound = errors.New("stock: variant not found")
	// ErrInsufficientStock indicates an issue that would drive on-hand below zero.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrConflict indicates a concurrent-update race that survived all retries.
	ErrConflict = errors.New("stock: concurrent update conflict")
	// ErrDuplicateMovement indicates the movement key was already applied.
	ErrDuplicateMovement = errors.New("stock: movement already applied")
)
