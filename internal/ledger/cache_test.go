package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, key, ok := cache.GetStatement(ctx, 1)
	require.False(t, ok)
	require.NotEmpty(t, key)

	stmt := &Statement{
		PartnerID:      1,
		OpeningBalance: decimal.NewFromInt(100),
		Rows: []StatementRow{
			{
				Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Description: "Invoice INV-001",
				Debit:       decimal.NewFromInt(50),
				Balance:     decimal.NewFromInt(150),
			},
		},
		ClosingBalance: decimal.NewFromInt(150),
	}
	cache.SetStatement(ctx, key, stmt)

	got, _, ok := cache.GetStatement(ctx, 1)
	require.True(t, ok)
	require.Equal(t, stmt.PartnerID, got.PartnerID)
	require.True(t, got.ClosingBalance.Equal(stmt.ClosingBalance))
	require.Len(t, got.Rows, 1)
	require.Equal(t, "Invoice INV-001", got.Rows[0].Description)
}

func TestCacheInvalidateMakesStaleStatementUnreachable(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, key, _ := cache.GetStatement(ctx, 1)
	cache.SetStatement(ctx, key, &Statement{PartnerID: 1, ClosingBalance: decimal.NewFromInt(10)})

	cache.Invalidate(ctx, 1)
	_, key, ok := cache.GetStatement(ctx, 1)
	require.False(t, ok)

	// A fresh build under the new version is cached again.
	cache.SetStatement(ctx, key, &Statement{PartnerID: 1, ClosingBalance: decimal.NewFromInt(20)})
	got, _, ok := cache.GetStatement(ctx, 1)
	require.True(t, ok)
	require.True(t, got.ClosingBalance.Equal(decimal.NewFromInt(20)))
}

func TestCacheInvalidateStrandsKeyCapturedBeforeIt(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	// A build captures its key, then a new event bumps the version before the
	// build stores its result. The store lands under the retired key and no
	// reader sees it.
	_, key, _ := cache.GetStatement(ctx, 1)
	cache.Invalidate(ctx, 1)
	cache.SetStatement(ctx, key, &Statement{PartnerID: 1, ClosingBalance: decimal.NewFromInt(500)})

	_, _, ok := cache.GetStatement(ctx, 1)
	require.False(t, ok)
}

func TestCacheInvalidateIsPerPartner(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, key1, _ := cache.GetStatement(ctx, 1)
	_, key2, _ := cache.GetStatement(ctx, 2)
	cache.SetStatement(ctx, key1, &Statement{PartnerID: 1, ClosingBalance: decimal.NewFromInt(1)})
	cache.SetStatement(ctx, key2, &Statement{PartnerID: 2, ClosingBalance: decimal.NewFromInt(2)})

	cache.Invalidate(ctx, 1)

	_, _, ok := cache.GetStatement(ctx, 1)
	require.False(t, ok)
	got, _, ok := cache.GetStatement(ctx, 2)
	require.True(t, ok)
	require.True(t, got.ClosingBalance.Equal(decimal.NewFromInt(2)))
}

func TestServiceUsesCache(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	repo.invoices[1] = []InvoiceEvent{
		{ID: 1, Number: "INV-001", EventDate: "2026-03-01", Total: decimal.NewFromInt(500), CreatedAt: at(1, 0)},
	}

	svc := NewService(repo, newTestCache(t), nil)
	ctx := context.Background()

	first, err := svc.BuildStatement(ctx, 1)
	require.NoError(t, err)
	callsAfterFirst := repo.listCalls

	second, err := svc.BuildStatement(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, callsAfterFirst, repo.listCalls)
	require.True(t, second.ClosingBalance.Equal(first.ClosingBalance))

	// Recording a transaction invalidates and the next build sees it.
	_, err = svc.RecordTransaction(ctx, TransactionInput{
		PartnerID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash,
		EventDate: "2026-03-02", Amount: decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	third, err := svc.BuildStatement(ctx, 1)
	require.NoError(t, err)
	require.True(t, third.ClosingBalance.Equal(decimal.NewFromInt(300)))
}

func TestStatementOvertakenByNewEventIsNotServedStale(t *testing.T) {
	repo := newMemoryRepo()
	repo.openings[1] = decimal.Zero
	repo.invoices[1] = []InvoiceEvent{
		{ID: 1, Number: "INV-001", EventDate: "2026-03-01", Total: decimal.NewFromInt(500), CreatedAt: at(1, 0)},
	}

	svc := NewService(repo, newTestCache(t), nil)
	ctx := context.Background()

	// A recovery lands between the cold build's event reads and its store.
	recorded := false
	repo.afterListTransactions = func() {
		if recorded {
			return
		}
		recorded = true
		_, err := svc.RecordTransaction(ctx, TransactionInput{
			PartnerID: 1, Kind: KindRecoveryFromCustomer, Mode: ModeCash,
			EventDate: "2026-03-02", Amount: decimal.NewFromInt(200),
		})
		require.NoError(t, err)
	}

	overtaken, err := svc.BuildStatement(ctx, 1)
	require.NoError(t, err)
	require.True(t, overtaken.ClosingBalance.Equal(decimal.NewFromInt(500)))

	// The overtaken build must not shadow the recovery: the next build misses
	// the cache and folds the new transaction in.
	fresh, err := svc.BuildStatement(ctx, 1)
	require.NoError(t, err)
	require.True(t, fresh.ClosingBalance.Equal(decimal.NewFromInt(300)))
}
