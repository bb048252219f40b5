package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/db"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

// TxRepository exposes the operations available inside a posting transaction.
// Stock mutations go through the stock package helpers so the guarded
// on-hand update has a single owner.
type TxRepository interface {
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetVariantListPrice(ctx context.Context, variantID int64) (decimal.Decimal, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertItem(ctx context.Context, item *Item) error
	ApplyStockDelta(ctx context.Context, variantID, delta int64) (int64, error)
	InsertStockMovement(ctx context.Context, m stock.Movement) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	RetryableError(err error) bool
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
}

// Repository persists sales invoices in PostgreSQL.
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

// GetInvoice fetches one sales invoice with its items. Purchase rows share
// the invoices table with a NULL schema and are not visible here.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT id, invoice_number, partner_id, schema, invoice_date, total, created_at
FROM invoices WHERE id=$1 AND schema IS NOT NULL`, id).Scan(
		&inv.ID, &inv.Number, &inv.PartnerID, &inv.Schema, &inv.Date, &inv.Total, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, variant_id, quantity, list_price,
discount_percent, commission, commission_is_flat, net_amount
FROM invoice_items WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.VariantID, &item.Quantity, &item.ListPrice,
			&item.DiscountPercent, &item.Commission, &item.CommissionIsFlat, &item.NetAmount); err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	return &inv, rows.Err()
}

func (r *txRepository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.tx.QueryRow(ctx, `SELECT id, name, COALESCE(default_schema,'')
FROM partners WHERE id=$1 AND type='Customer'`, id).Scan(&c.ID, &c.Name, &c.DefaultSchema)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *txRepository) GetVariantListPrice(ctx context.Context, variantID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT list_price FROM article_variants WHERE id=$1`, variantID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, stock.ErrVariantNotFound
		}
		return decimal.Decimal{}, err
	}
	return price, nil
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	return r.tx.QueryRow(ctx, `INSERT INTO invoices
(invoice_number, partner_id, schema, invoice_date, total, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id, created_at`,
		inv.Number, inv.PartnerID, string(inv.Schema), inv.Date, inv.Total,
	).Scan(&inv.ID, &inv.CreatedAt)
}

func (r *txRepository) InsertItem(ctx context.Context, item *Item) error {
	return r.tx.QueryRow(ctx, `INSERT INTO invoice_items
(invoice_id, variant_id, quantity, list_price, discount_percent, commission, commission_is_flat, net_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		item.InvoiceID, item.VariantID, item.Quantity, item.ListPrice,
		item.DiscountPercent, item.Commission, item.CommissionIsFlat, item.NetAmount,
	).Scan(&item.ID)
}

func (r *txRepository) ApplyStockDelta(ctx context.Context, variantID, delta int64) (int64, error) {
	return stock.ApplyDeltaTx(ctx, r.tx, variantID, delta)
}

func (r *txRepository) InsertStockMovement(ctx context.Context, m stock.Movement) error {
	return stock.InsertMovementKeyTx(ctx, r.tx, m)
}
