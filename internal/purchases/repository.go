package purchases

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/db"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

// TxRepository exposes the operations available inside a posting transaction.
type TxRepository interface {
	GetSupplier(ctx context.Context, id int64) (*Supplier, error)
	InsertPurchase(ctx context.Context, p *Purchase) error
	InsertLine(ctx context.Context, line *Line) error
	ApplyStockDelta(ctx context.Context, variantID, delta int64) (int64, error)
	InsertStockMovement(ctx context.Context, m stock.Movement) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	RetryableError(err error) bool
}

// Repository persists purchases in PostgreSQL. Purchases land in the same
// invoices table as sales so the statement builder sees both sides of the
// book through one query.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// RetryableError reports whether err came from a lost serialization race.
func (r *Repository) RetryableError(err error) bool {
	return db.IsSerializationFailure(err)
}

func (r *txRepository) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	var s Supplier
	err := r.tx.QueryRow(ctx, `SELECT id, name FROM partners WHERE id=$1 AND type='Supplier'`, id).
		Scan(&s.ID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSupplierNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *txRepository) InsertPurchase(ctx context.Context, p *Purchase) error {
	return r.tx.QueryRow(ctx, `INSERT INTO invoices
(invoice_number, partner_id, invoice_date, total, created_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id, created_at`,
		p.Number, p.PartnerID, p.Date, p.Total,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *txRepository) InsertLine(ctx context.Context, line *Line) error {
	return r.tx.QueryRow(ctx, `INSERT INTO purchase_lines
(purchase_id, variant_id, quantity, unit_cost, amount)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`,
		line.PurchaseID, line.VariantID, line.Quantity, line.UnitCost, line.Amount,
	).Scan(&line.ID)
}

func (r *txRepository) ApplyStockDelta(ctx context.Context, variantID, delta int64) (int64, error) {
	return stock.ApplyDeltaTx(ctx, r.tx, variantID, delta)
}

func (r *txRepository) InsertStockMovement(ctx context.Context, m stock.Movement) error {
	return stock.InsertMovementKeyTx(ctx, r.tx, m)
}
