package purchases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

type memoryState struct {
	suppliers map[int64]Supplier
	onHand    map[int64]int64
	purchases []Purchase
	lines     []Line
	movements map[string]bool
	nextID    int64
}

func (s *memoryState) clone() *memoryState {
	next := &memoryState{
		suppliers: s.suppliers,
		onHand:    make(map[int64]int64, len(s.onHand)),
		purchases: append([]Purchase(nil), s.purchases...),
		lines:     append([]Line(nil), s.lines...),
		movements: make(map[string]bool, len(s.movements)),
		nextID:    s.nextID,
	}
	for k, v := range s.onHand {
		next.onHand[k] = v
	}
	for k, v := range s.movements {
		next.movements[k] = v
	}
	return next
}

type memoryRepo struct {
	mu       sync.Mutex
	state    *memoryState
	failures int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		suppliers: make(map[int64]Supplier),
		onHand:    make(map[int64]int64),
		movements: make(map[string]bool),
		nextID:    1,
	}}
}

var errSimulatedRace = errors.New("simulated serialization failure")

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errSimulatedRace
	}
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{state: r.state}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) RetryableError(err error) bool {
	return errors.Is(err, errSimulatedRace)
}

type memoryTx struct {
	state *memoryState
}

func (tx *memoryTx) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	s, ok := tx.state.suppliers[id]
	if !ok {
		return nil, ErrSupplierNotFound
	}
	return &s, nil
}

func (tx *memoryTx) InsertPurchase(ctx context.Context, p *Purchase) error {
	p.ID = tx.state.nextID
	tx.state.nextID++
	tx.state.purchases = append(tx.state.purchases, *p)
	return nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line *Line) error {
	line.ID = tx.state.nextID
	tx.state.nextID++
	tx.state.lines = append(tx.state.lines, *line)
	return nil
}

func (tx *memoryTx) ApplyStockDelta(ctx context.Context, variantID, delta int64) (int64, error) {
	onHand, ok := tx.state.onHand[variantID]
	if !ok {
		return 0, stock.ErrVariantNotFound
	}
	next := onHand + delta
	if next < 0 {
		return 0, stock.ErrInsufficientStock
	}
	tx.state.onHand[variantID] = next
	return next, nil
}

func (tx *memoryTx) InsertStockMovement(ctx context.Context, m stock.Movement) error {
	key := fmt.Sprintf("%s:%s:%d", m.RefKind, m.RefID, m.VariantID)
	if tx.state.movements[key] {
		return stock.ErrDuplicateMovement
	}
	tx.state.movements[key] = true
	return nil
}

type fakeInvalidator struct {
	partners []int64
}

func (f *fakeInvalidator) InvalidateStatement(ctx context.Context, partnerID int64) {
	f.partners = append(f.partners, partnerID)
}

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func seededRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.state.suppliers[5] = Supplier{ID: 5, Name: "Sole Traders Ltd"}
	repo.state.onHand[10] = 2
	repo.state.onHand[11] = 0
	return repo
}

func TestPostPurchaseReceivesStock(t *testing.T) {
	repo := seededRepo()
	inval := &fakeInvalidator{}
	svc := NewService(repo, inval, nil, ServiceConfig{})

	purchase, err := svc.PostPurchase(context.Background(), PostPurchaseInput{
		SupplierID: 5,
		Date:       "2026-03-01",
		Lines: []LineInput{
			{VariantID: 10, Quantity: 12, UnitCost: d(t, "850.50")},
			{VariantID: 11, Quantity: 6, UnitCost: d(t, "1200")},
		},
	})
	require.NoError(t, err)
	require.Contains(t, purchase.Number, "PUR-")
	require.True(t, purchase.Total.Equal(d(t, "17406"))) // 12*850.50 + 6*1200
	require.Len(t, purchase.Lines, 2)

	require.Equal(t, int64(14), repo.state.onHand[10])
	require.Equal(t, int64(6), repo.state.onHand[11])
	require.Equal(t, []int64{5}, inval.partners)
}

func TestPostPurchaseUnknownVariantRollsBack(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.PostPurchase(context.Background(), PostPurchaseInput{
		SupplierID: 5,
		Date:       "2026-03-01",
		Lines: []LineInput{
			{VariantID: 10, Quantity: 3, UnitCost: d(t, "100")},
			{VariantID: 99, Quantity: 1, UnitCost: d(t, "100")},
		},
	})
	require.ErrorIs(t, err, stock.ErrVariantNotFound)
	require.Equal(t, int64(2), repo.state.onHand[10])
	require.Empty(t, repo.state.purchases)
}

func TestPostPurchaseValidation(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.PostPurchase(ctx, PostPurchaseInput{SupplierID: 5, Date: "2026-03-01"})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = svc.PostPurchase(ctx, PostPurchaseInput{
		SupplierID: 5, Date: "01-03-2026",
		Lines: []LineInput{{VariantID: 10, Quantity: 1, UnitCost: d(t, "1")}},
	})
	require.ErrorIs(t, err, ErrBadDate)

	_, err = svc.PostPurchase(ctx, PostPurchaseInput{
		SupplierID: 5, Date: "2026-03-01",
		Lines: []LineInput{{VariantID: 10, Quantity: 0, UnitCost: d(t, "1")}},
	})
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = svc.PostPurchase(ctx, PostPurchaseInput{
		SupplierID: 5, Date: "2026-03-01",
		Lines: []LineInput{{VariantID: 10, Quantity: 1, UnitCost: d(t, "-1")}},
	})
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = svc.PostPurchase(ctx, PostPurchaseInput{
		SupplierID: 5, Date: "2026-03-01",
		Lines: []LineInput{
			{VariantID: 10, Quantity: 1, UnitCost: d(t, "1")},
			{VariantID: 10, Quantity: 2, UnitCost: d(t, "1")},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateLine)

	_, err = svc.PostPurchase(ctx, PostPurchaseInput{
		SupplierID: 404, Date: "2026-03-01",
		Lines: []LineInput{{VariantID: 10, Quantity: 1, UnitCost: d(t, "1")}},
	})
	require.ErrorIs(t, err, ErrSupplierNotFound)
}

func TestPostPurchaseRetriesTransientRace(t *testing.T) {
	repo := seededRepo()
	repo.failures = 2
	svc := NewService(repo, nil, nil, ServiceConfig{MaxAttempts: 3})

	purchase, err := svc.PostPurchase(context.Background(), PostPurchaseInput{
		SupplierID: 5,
		Date:       "2026-03-01",
		Lines:      []LineInput{{VariantID: 10, Quantity: 4, UnitCost: d(t, "25")}},
	})
	require.NoError(t, err)
	require.True(t, purchase.Total.Equal(d(t, "100")))
	require.Equal(t, int64(6), repo.state.onHand[10])
}

func TestPostPurchaseSurfacesConflictAfterRetries(t *testing.T) {
	repo := seededRepo()
	repo.failures = 10
	svc := NewService(repo, nil, nil, ServiceConfig{MaxAttempts: 3})

	_, err := svc.PostPurchase(context.Background(), PostPurchaseInput{
		SupplierID: 5,
		Date:       "2026-03-01",
		Lines:      []LineInput{{VariantID: 10, Quantity: 4, UnitCost: d(t, "25")}},
	})
	require.ErrorIs(t, err, stock.ErrConflict)
	require.Equal(t, int64(2), repo.state.onHand[10])
}
