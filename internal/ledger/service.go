package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards replayed transaction submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service builds partner statements and records cash/bank transactions.
type Service struct {
	repo  RepositoryPort
	cache CachePort
	audit AuditPort
	idem  IdempotencyPort
	group singleflight.Group
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, cache CachePort, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// WithIdempotency enables replay protection for transaction recording.
func (s *Service) WithIdempotency(store IdempotencyPort) *Service {
	s.idem = store
	return s
}

// statementEvent is the builder's normalized view of one ledger event before
// folding. Ordering is by calendar date, then creation time, then invoices
// before transactions on the same instant, then row id.
type statementEvent struct {
	date        time.Time
	createdAt   time.Time
	source      int // 0 invoice, 1 transaction
	id          int64
	description string
	debit       decimal.Decimal
	credit      decimal.Decimal
}

// BuildStatement folds the partner's invoices and transactions into a dated
// statement with running balances, starting from the opening balance. The
// result is deterministic for a given ledger state; identical calls hit the
// cache and concurrent cold calls share one build.
func (s *Service) BuildStatement(ctx context.Context, partnerID int64) (*Statement, error) {
	// The versioned key is captured before any event is read. A transaction
	// posted mid-build bumps the version, so the overtaken build stores its
	// stale fold under a key no reader resolves to.
	var cacheKey string
	if s.cache != nil {
		stmt, key, ok := s.cache.GetStatement(ctx, partnerID)
		if ok {
			return stmt, nil
		}
		cacheKey = key
	}

	v, err, _ := s.group.Do(strconv.FormatInt(partnerID, 10), func() (any, error) {
		stmt, err := s.buildStatement(ctx, partnerID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.SetStatement(ctx, cacheKey, stmt)
		}
		return stmt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Statement), nil
}

func (s *Service) buildStatement(ctx context.Context, partnerID int64) (*Statement, error) {
	opening, err := s.repo.GetPartnerOpening(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListInvoiceEvents(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.ListTransactionEvents(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	events := make([]statementEvent, 0, len(invoices)+len(transactions))
	for _, inv := range invoices {
		date, err := time.Parse(eventDateLayout, inv.EventDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invoice %s has date %q", ErrBadEventDate, inv.Number, inv.EventDate)
		}
		events = append(events, statementEvent{
			date:        date,
			createdAt:   inv.CreatedAt,
			source:      0,
			id:          inv.ID,
			description: "Invoice " + inv.Number,
			debit:       inv.Total,
		})
	}
	for _, txn := range transactions {
		column, ok := kindColumns[txn.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: transaction %d has kind %q", ErrUnknownKind, txn.ID, txn.Kind)
		}
		date, err := time.Parse(eventDateLayout, txn.EventDate)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d has date %q", ErrBadEventDate, txn.ID, txn.EventDate)
		}
		ev := statementEvent{
			date:        date,
			createdAt:   txn.CreatedAt,
			source:      1,
			id:          txn.ID,
			description: describeTransaction(txn),
		}
		switch column {
		case columnDebit:
			ev.debit = txn.Amount
		case columnCredit:
			ev.credit = txn.Amount
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.id < b.id
	})

	stmt := &Statement{
		PartnerID:      partnerID,
		OpeningBalance: opening,
		Rows:           make([]StatementRow, 0, len(events)),
	}
	balance := opening
	for _, ev := range events {
		balance = balance.Add(ev.debit).Sub(ev.credit)
		stmt.Rows = append(stmt.Rows, StatementRow{
			Date:        ev.date,
			Description: ev.description,
			Debit:       ev.debit,
			Credit:      ev.credit,
			Balance:     balance,
		})
	}
	stmt.ClosingBalance = balance
	return stmt, nil
}

func describeTransaction(txn TransactionEvent) string {
	desc := string(txn.Kind) + " (" + string(txn.Mode) + ")"
	if txn.Reference != "" {
		desc += " ref " + txn.Reference
	}
	return desc
}

// RecordTransaction validates and stores one cash/bank transaction, then
// invalidates the partner's cached statement.
func (s *Service) RecordTransaction(ctx context.Context, input TransactionInput) (*Transaction, error) {
	if !ValidKind(input.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, input.Kind)
	}
	if !ValidMode(input.Mode) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, input.Mode)
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := time.Parse(eventDateLayout, input.EventDate); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadEventDate, input.EventDate)
	}
	if _, err := s.repo.GetPartnerOpening(ctx, input.PartnerID); err != nil {
		return nil, err
	}
	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "ledger"); err != nil {
			return nil, err
		}
	}

	txn, err := s.repo.InsertTransaction(ctx, input)
	if err != nil {
		// Release the key so the caller may retry the failed submission.
		if s.idem != nil && input.IdempotencyKey != "" {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, input.PartnerID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "ledger:record_transaction",
			Entity:   "transaction",
			EntityID: strconv.FormatInt(txn.ID, 10),
			Meta: map[string]any{
				"partner_id": input.PartnerID,
				"kind":       input.Kind,
				"amount":     input.Amount.String(),
			},
			At: time.Now().UTC(),
		})
	}
	return txn, nil
}

// InvalidateStatement drops the partner's cached statement. Sales and
// purchase postings call this after committing new invoices.
func (s *Service) InvalidateStatement(ctx context.Context, partnerID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, partnerID)
	}
}

// CashPosition reports recoveries collected against payments made.
func (s *Service) CashPosition(ctx context.Context) (*CashPosition, error) {
	sums, err := s.repo.SumTransactions(ctx)
	if err != nil {
		return nil, err
	}
	for kind := range sums {
		if !ValidKind(kind) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
	}
	collected := sums[KindRecoveryFromCustomer]
	paidOut := sums[KindPaymentToSupplier].Add(sums[KindPurchasePayment])
	return &CashPosition{
		Collected: collected,
		PaidOut:   paidOut,
		Balance:   collected.Sub(paidOut),
	}, nil
}
