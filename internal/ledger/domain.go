package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind enumerates the cash/bank event kinds a partner ledger knows.
type TransactionKind string

const (
	KindRecoveryFromCustomer TransactionKind = "Recovery_From_Customer"
	KindPaymentToSupplier    TransactionKind = "Payment_To_Supplier"
	KindPurchasePayment      TransactionKind = "Purchase_Payment"
)

// PaymentMode enumerates how money changed hands.
type PaymentMode string

const (
	ModeCash         PaymentMode = "Cash"
	ModeCheque       PaymentMode = "Cheque"
	ModeBankTransfer PaymentMode = "Bank Transfer"
)

type balanceColumn int

const (
	columnDebit balanceColumn = iota
	columnCredit
)

// kindColumns is the total mapping from transaction kind to statement column.
// Every supported kind appears here; a kind missing from this table is a data
// error surfaced by the builder, never a silent default column.
var kindColumns = map[TransactionKind]balanceColumn{
	KindRecoveryFromCustomer: columnCredit,
	KindPaymentToSupplier:    columnCredit,
	KindPurchasePayment:      columnCredit,
}

// ValidKind reports whether kind is part of the supported set.
func ValidKind(kind TransactionKind) bool {
	_, ok := kindColumns[kind]
	return ok
}

// ValidMode reports whether mode is a supported payment mode.
func ValidMode(mode PaymentMode) bool {
	switch mode {
	case ModeCash, ModeCheque, ModeBankTransfer:
		return true
	}
	return false
}

// InvoiceEvent is an invoice as seen by the statement builder. EventDate is
// the stored calendar-date string; parsing happens while building so a
// malformed date surfaces instead of sorting arbitrarily.
type InvoiceEvent struct {
	ID        int64
	Number    string
	EventDate string
	Total     decimal.Decimal
	CreatedAt time.Time
}

// TransactionEvent is a cash/bank transaction as seen by the builder.
type TransactionEvent struct {
	ID        int64
	Kind      TransactionKind
	Mode      PaymentMode
	Reference string
	EventDate string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Transaction models a stored cash/bank transaction row.
type Transaction struct {
	ID        int64
	PartnerID int64
	Kind      TransactionKind
	Mode      PaymentMode
	Reference string
	EventDate string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// TransactionInput describes a transaction to record. IdempotencyKey is the
// caller-supplied replay guard; empty skips the check.
type TransactionInput struct {
	PartnerID      int64
	Kind           TransactionKind
	Mode           PaymentMode
	Reference      string
	EventDate      string
	Amount         decimal.Decimal
	ActorID        int64
	IdempotencyKey string
}

// StatementRow is one line of a partner statement with the running balance
// after the event.
type StatementRow struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Statement is a partner's full dated statement.
type Statement struct {
	PartnerID      int64           `json:"partner_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Rows           []StatementRow  `json:"rows"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// CashPosition summarises cash in hand: recoveries collected minus payments
// made, over all partners.
type CashPosition struct {
	Collected decimal.Decimal `json:"collected"`
	PaidOut   decimal.Decimal `json:"paid_out"`
	Balance   decimal.Decimal `json:"balance"`
}

var (
	// ErrPartnerNotFound indicates an unknown partner reference.
	ErrPartnerNotFound = errors.New("ledger: partner not found")
	// ErrUnknownKind indicates a transaction kind outside the supported table.
	ErrUnknownKind = errors.New("ledger: unknown transaction kind")
	// ErrUnknownMode indicates an unsupported payment mode.
	ErrUnknownMode = errors.New("ledger: unknown payment mode")
	// ErrInvalidAmount indicates a non-positive transaction amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrBadEventDate indicates an event whose stored date cannot be parsed.
	// Such an event cannot be placed in the statement; dropping or guessing
	// its position would corrupt every balance after it.
	ErrBadEventDate = errors.New("ledger: unparseable event date")
)

// eventDateLayout is the stored calendar-date format.
const eventDateLayout = "2006-01-02"
