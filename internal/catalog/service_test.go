package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

type memoryRepo struct {
	nextArticleID int64
	nextVariantID int64
	suppliers     map[int64]bool
	articles      map[int64]Article
	codes         map[string]bool
	movements     []stock.Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextArticleID: 1,
		nextVariantID: 1,
		suppliers:     make(map[int64]bool),
		articles:      make(map[int64]Article),
		codes:         make(map[string]bool),
	}
}

func (r *memoryRepo) InsertArticle(ctx context.Context, input RegisterInput) (*Article, error) {
	codeKey := input.ArticleCode
	if r.codes[codeKey] {
		return nil, ErrDuplicateCode
	}
	a := Article{
		ID:          r.nextArticleID,
		SupplierID:  input.SupplierID,
		BrandName:   input.BrandName,
		ArticleCode: input.ArticleCode,
		Category:    input.Category,
		Gender:      input.Gender,
	}
	r.nextArticleID++
	for _, v := range input.Variants {
		variant := Variant{
			ID:        r.nextVariantID,
			ArticleID: a.ID,
			SizeRange: v.SizeRange,
			ListPrice: v.ListPrice,
			OnHand:    v.OnHand,
		}
		r.nextVariantID++
		// Mirrors the pgx repository: opening counts arrive as adjustment
		// movements through the stock ledger, not as direct column writes.
		if v.OnHand > 0 {
			r.movements = append(r.movements, stock.Movement{
				RefKind:   stock.RefKindAdjustment,
				RefID:     "OPEN-" + input.ArticleCode,
				VariantID: variant.ID,
				Delta:     v.OnHand,
				Note:      "opening stock",
			})
		}
		a.Variants = append(a.Variants, variant)
	}
	r.codes[codeKey] = true
	r.articles[a.ID] = a
	return &a, nil
}

func (r *memoryRepo) GetArticle(ctx context.Context, id int64) (*Article, error) {
	a, ok := r.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *memoryRepo) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	for _, a := range r.articles {
		for _, v := range a.Variants {
			if v.ID == id {
				return &v, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) ListStock(ctx context.Context, query string) ([]StockRow, error) {
	var out []StockRow
	for _, a := range r.articles {
		for _, v := range a.Variants {
			out = append(out, StockRow{
				VariantID:   v.ID,
				ArticleID:   a.ID,
				BrandName:   a.BrandName,
				ArticleCode: a.ArticleCode,
				SizeRange:   v.SizeRange,
				ListPrice:   v.ListPrice,
				OnHand:      v.OnHand,
				Status:      StatusFor(v.OnHand),
			})
		}
	}
	return out, nil
}

func (r *memoryRepo) SupplierExists(ctx context.Context, supplierID int64) (bool, error) {
	return r.suppliers[supplierID], nil
}

func validInput() RegisterInput {
	return RegisterInput{
		SupplierID:  1,
		BrandName:   "Stride",
		ArticleCode: "ST-204",
		Category:    "Sneaker",
		Gender:      "Men",
		Variants: []VariantInput{
			{SizeRange: "6-10", ListPrice: decimal.NewFromInt(2400), OnHand: 12},
			{SizeRange: "11-13", ListPrice: decimal.NewFromInt(2600), OnHand: 4},
		},
	}
}

func TestRegisterArticleWithVariants(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = true
	svc := NewService(repo, nil)

	article, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, article.Variants, 2)
	require.Equal(t, article.ID, article.Variants[0].ArticleID)
}

func TestRegisterRecordsOpeningStockMovements(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = true
	svc := NewService(repo, nil)

	input := validInput()
	input.Variants = append(input.Variants,
		VariantInput{SizeRange: "1-5", ListPrice: decimal.NewFromInt(2000), OnHand: 0})
	article, err := svc.Register(context.Background(), input)
	require.NoError(t, err)

	// One opening adjustment per stocked variant; a zero count needs none.
	require.Len(t, repo.movements, 2)
	deltas := make(map[int64]int64, 2)
	for _, m := range repo.movements {
		require.Equal(t, stock.RefKindAdjustment, m.RefKind)
		require.Equal(t, "OPEN-ST-204", m.RefID)
		deltas[m.VariantID] = m.Delta
	}
	require.Equal(t, int64(12), deltas[article.Variants[0].ID])
	require.Equal(t, int64(4), deltas[article.Variants[1].ID])
}

func TestRegisterRequiresVariants(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = true
	svc := NewService(repo, nil)

	input := validInput()
	input.Variants = nil
	_, err := svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrNoVariants)
}

func TestRegisterRejectsBadVariants(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = true
	svc := NewService(repo, nil)
	ctx := context.Background()

	input := validInput()
	input.Variants[0].SizeRange = " "
	_, err := svc.Register(ctx, input)
	require.ErrorIs(t, err, ErrInvalidVariant)

	input = validInput()
	input.Variants[1].ListPrice = decimal.NewFromInt(-10)
	_, err = svc.Register(ctx, input)
	require.ErrorIs(t, err, ErrInvalidVariant)

	input = validInput()
	input.Variants[1].OnHand = -1
	_, err = svc.Register(ctx, input)
	require.ErrorIs(t, err, ErrInvalidVariant)

	input = validInput()
	input.Variants[1].SizeRange = input.Variants[0].SizeRange
	_, err = svc.Register(ctx, input)
	require.ErrorIs(t, err, ErrInvalidVariant)
}

func TestRegisterUnknownSupplier(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrSupplierNotFound)
}

func TestRegisterDuplicateCode(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = true
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Register(ctx, validInput())
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestStockOverviewStatuses(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = true
	svc := NewService(repo, nil)
	ctx := context.Background()

	input := validInput()
	input.Variants = []VariantInput{
		{SizeRange: "6-10", ListPrice: decimal.NewFromInt(2400), OnHand: 12},
		{SizeRange: "11-13", ListPrice: decimal.NewFromInt(2600), OnHand: 3},
		{SizeRange: "1-5", ListPrice: decimal.NewFromInt(2000), OnHand: 0},
	}
	_, err := svc.Register(ctx, input)
	require.NoError(t, err)

	rows, err := svc.Stock(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	statuses := make(map[string]string, 3)
	for _, row := range rows {
		statuses[row.SizeRange] = row.Status
	}
	require.Equal(t, StatusInStock, statuses["6-10"])
	require.Equal(t, StatusLowStock, statuses["11-13"])
	require.Equal(t, StatusOutOfStock, statuses["1-5"])
}
