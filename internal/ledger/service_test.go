package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
)

type memoryRepo struct {
	mu           sync.Mutex
	openings     map[int64]decimal.Decimal
	invoices     map[int64][]InvoiceEvent
	transactions map[int64][]TransactionEvent
	nextTxnID    int64
	listCalls    int

	// afterListTransactions runs once the listing snapshot is taken, outside
	// the lock. Tests use it to interleave a write with a running build.
	afterListTransactions func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		openings:     make(map[int64]decimal.Decimal),
		invoices:     make(map[int64][]InvoiceEvent),
		transactions: make(map[int64][]TransactionEvent),
		nextTxnID:    1,
	}
}

func (r *memoryRepo) GetPartnerOpening(ctx context.Context, partnerID int64) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	opening, ok := r.openings[partnerID]
	if !ok {
		return decimal.Decimal{}, ErrPartnerNotFound
	}
	return opening, nil
}

func (r *memoryRepo) ListInvoiceEvents(ctx context.Context, partnerID int64) ([]InvoiceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	return append([]InvoiceEvent(nil), r.invoices[partnerID]...), nil
}

func (r *memoryRepo) ListTransactionEvents(ctx context.Context, partnerID int64) ([]TransactionEvent, error) {
	r.mu.Lock()
	events := append([]TransactionEvent(nil), r.transactions[partnerID]...)
	r.mu.Unlock()
	if r.afterListTransactions != nil {
		r.afterListTransactions()
	}
	return events, nil
}

func (r *memoryRepo) InsertTransaction(ctx context.Context, input TransactionInput) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn := Transaction{
		ID:        r.nextTxnID,
		PartnerID: input.PartnerID,
		Kind:      input.Kind,
		Mode:      input.Mode,
		Reference: input.Reference,
		EventDate: input.EventDate,
		Amount:    input.Amount,
		CreatedAt: time.Now(),
	}
	r.nextTxnID++
	r.transactions[input.PartnerID] = append(r.transactions[input.PartnerID], TransactionEvent{
		ID:        txn.ID,
		Kind:      txn.Kind,
		Mode:      txn.Mode,
		Reference: txn.Reference,
		EventDate: txn.EventDate,
		Amount:    txn.Amount,
		CreatedAt: txn.CreatedAt,
	})
	return &txn, nil
}

func (r *memoryRepo) SumTransactions(ctx context.Context) (map[TransactionKind]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sums := make(map[TransactionKind]decimal.Decimal)
	for _, events := range r.transactions {
		for _, ev := range events {
			sums[ev.Kind] = sums[ev.Kind].Add(ev.Amount)
		}
	}
	return sums, nil
}

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func at(day int, seq int) time.Time {
	return time.Date(2026, 3, day, 10, 0, seq, 0, time.UTC)
}

func TestBuildStatementFoldsRunningBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	repo.invoices[1] = []InvoiceEvent{
		{ID: 1, Number: "INV-001", EventDate: "2026-03-01", Total: d(t, "5000"), CreatedAt: at(1, 0)},
	}
	repo.transactions[1] = []TransactionEvent{
		{ID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash, EventDate: "2026-03-03", Amount: d(t, "2000"), CreatedAt: at(3, 0)},
	}

	svc := NewService(repo, nil, nil)
	stmt, err := svc.BuildStatement(context.Background(), 1)
	require.NoError(t, err)

	require.True(t, stmt.OpeningBalance.IsZero())
	require.Len(t, stmt.Rows, 2)
	require.Equal(t, "Invoice INV-001", stmt.Rows[0].Description)
	require.True(t, stmt.Rows[0].Balance.Equal(d(t, "5000")))
	require.True(t, stmt.Rows[1].Credit.Equal(d(t, "2000")))
	require.True(t, stmt.Rows[1].Balance.Equal(d(t, "3000")))
	require.True(t, stmt.ClosingBalance.Equal(d(t, "3000")))
}

func TestBuildStatementStartsFromOpeningBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[7] = d(t, "1200.50")
	repo.invoices[7] = []InvoiceEvent{
		{ID: 1, Number: "INV-009", EventDate: "2026-03-05", Total: d(t, "99.50"), CreatedAt: at(5, 0)},
	}

	svc := NewService(repo, nil, nil)
	stmt, err := svc.BuildStatement(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, stmt.ClosingBalance.Equal(d(t, "1300")))
}

func TestBuildStatementOrdersByDateThenCreation(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	// Same calendar date; creation order decides.
	repo.invoices[1] = []InvoiceEvent{
		{ID: 2, Number: "INV-002", EventDate: "2026-03-10", Total: d(t, "300"), CreatedAt: at(10, 2)},
		{ID: 1, Number: "INV-001", EventDate: "2026-03-10", Total: d(t, "100"), CreatedAt: at(10, 0)},
	}
	repo.transactions[1] = []TransactionEvent{
		{ID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCheque, Reference: "CHQ-5", EventDate: "2026-03-10", Amount: d(t, "50"), CreatedAt: at(10, 1)},
	}

	svc := NewService(repo, nil, nil)
	stmt, err := svc.BuildStatement(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, stmt.Rows, 3)
	require.Equal(t, "Invoice INV-001", stmt.Rows[0].Description)
	require.Contains(t, stmt.Rows[1].Description, "Recovery_From_Customer")
	require.Equal(t, "Invoice INV-002", stmt.Rows[2].Description)
	require.True(t, stmt.ClosingBalance.Equal(d(t, "350")))
}

func TestBuildStatementDeterministic(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = d(t, "10")
	repo.invoices[1] = []InvoiceEvent{
		{ID: 1, Number: "A", EventDate: "2026-01-02", Total: d(t, "10.10"), CreatedAt: at(2, 0)},
		{ID: 2, Number: "B", EventDate: "2026-01-01", Total: d(t, "20.20"), CreatedAt: at(1, 0)},
	}
	repo.transactions[1] = []TransactionEvent{
		{ID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash, EventDate: "2026-01-03", Amount: d(t, "0.30"), CreatedAt: at(3, 0)},
	}

	svc := NewService(repo, nil, nil)
	first, err := svc.BuildStatement(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.BuildStatement(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.True(t, first.ClosingBalance.Equal(d(t, "40")))
}

func TestBuildStatementUnknownPartner(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.BuildStatement(context.Background(), 404)
	require.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestBuildStatementEmptyLedger(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[3] = d(t, "-75.25")

	svc := NewService(repo, nil, nil)
	stmt, err := svc.BuildStatement(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, stmt.Rows)
	require.True(t, stmt.ClosingBalance.Equal(d(t, "-75.25")))
}

func TestBuildStatementSurfacesBadDate(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	repo.invoices[1] = []InvoiceEvent{
		{ID: 1, Number: "INV-BAD", EventDate: "03/15/2026", Total: d(t, "10"), CreatedAt: at(15, 0)},
	}

	svc := NewService(repo, nil, nil)
	_, err := svc.BuildStatement(context.Background(), 1)
	require.ErrorIs(t, err, ErrBadEventDate)
	require.Contains(t, err.Error(), "INV-BAD")
}

func TestBuildStatementSurfacesUnknownKind(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	repo.transactions[1] = []TransactionEvent{
		{ID: 9, Kind: "Gift_Voucher", Mode: ModeCash, EventDate: "2026-03-01", Amount: d(t, "10"), CreatedAt: at(1, 0)},
	}

	svc := NewService(repo, nil, nil)
	_, err := svc.BuildStatement(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRecordTransactionValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, TransactionInput{PartnerID: 1, Kind: "Bribe", Mode: ModeCash, EventDate: "2026-03-01", Amount: d(t, "10")})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = svc.RecordTransaction(ctx, TransactionInput{PartnerID: 1, Kind: KindRecoveryFromCustomer, Mode: "Barter", EventDate: "2026-03-01", Amount: d(t, "10")})
	require.ErrorIs(t, err, ErrUnknownMode)

	_, err = svc.RecordTransaction(ctx, TransactionInput{PartnerID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash, EventDate: "2026-03-01", Amount: d(t, "0")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordTransaction(ctx, TransactionInput{PartnerID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash, EventDate: "yesterday", Amount: d(t, "10")})
	require.ErrorIs(t, err, ErrBadEventDate)

	_, err = svc.RecordTransaction(ctx, TransactionInput{PartnerID: 404, Kind: KindRecoveryFromCustomer, Mode: ModeCash, EventDate: "2026-03-01", Amount: d(t, "10")})
	require.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestRecordTransactionAppearsInStatement(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = d(t, "500")
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	txn, err := svc.RecordTransaction(ctx, TransactionInput{
		PartnerID: 1,
		Kind:      KindRecoveryFromCustomer,
		Mode:      ModeBankTransfer,
		Reference: "TRF-88",
		EventDate: "2026-03-04",
		Amount:    d(t, "120.75"),
	})
	require.NoError(t, err)
	require.NotZero(t, txn.ID)

	stmt, err := svc.BuildStatement(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 1)
	require.Contains(t, stmt.Rows[0].Description, "TRF-88")
	require.True(t, stmt.ClosingBalance.Equal(d(t, "379.25")))
}

type fakeIdem struct {
	keys map[string]bool
}

func (f *fakeIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	full := module + ":" + key
	if f.keys[full] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[full] = true
	return nil
}

func (f *fakeIdem) Delete(ctx context.Context, key string) error {
	for full := range f.keys {
		if strings.HasSuffix(full, ":"+key) {
			delete(f.keys, full)
		}
	}
	return nil
}

func TestRecordTransactionReplayRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	svc := NewService(repo, nil, nil).WithIdempotency(&fakeIdem{})
	ctx := context.Background()

	input := TransactionInput{
		PartnerID:      1,
		Kind:           KindRecoveryFromCustomer,
		Mode:           ModeCash,
		EventDate:      "2026-03-01",
		Amount:         d(t, "100"),
		IdempotencyKey: "req-42",
	}
	_, err := svc.RecordTransaction(ctx, input)
	require.NoError(t, err)

	_, err = svc.RecordTransaction(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.transactions[1], 1)
}

func TestCashPosition(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	repo.openings[2] = decimal.Zero
	repo.transactions[1] = []TransactionEvent{
		{ID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash, EventDate: "2026-03-01", Amount: d(t, "900"), CreatedAt: at(1, 0)},
	}
	repo.transactions[2] = []TransactionEvent{
		{ID: 2, Kind: KindPaymentToSupplier, Mode: ModeCheque, EventDate: "2026-03-02", Amount: d(t, "250"), CreatedAt: at(2, 0)},
		{ID: 3, Kind: KindPurchasePayment, Mode: ModeCash, EventDate: "2026-03-03", Amount: d(t, "100"), CreatedAt: at(3, 0)},
	}

	svc := NewService(repo, nil, nil)
	position, err := svc.CashPosition(context.Background())
	require.NoError(t, err)
	require.True(t, position.Collected.Equal(d(t, "900")))
	require.True(t, position.PaidOut.Equal(d(t, "350")))
	require.True(t, position.Balance.Equal(d(t, "550")))
}
