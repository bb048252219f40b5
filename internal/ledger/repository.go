package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetPartnerOpening(ctx context.Context, partnerID int64) (decimal.Decimal, error)
	ListInvoiceEvents(ctx context.Context, partnerID int64) ([]InvoiceEvent, error)
	ListTransactionEvents(ctx context.Context, partnerID int64) ([]TransactionEvent, error)
	InsertTransaction(ctx context.Context, input TransactionInput) (*Transaction, error)
	SumTransactions(ctx context.Context) (map[TransactionKind]decimal.Decimal, error)
}

// Repository reads and writes ledger rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPartnerOpening returns the partner's opening balance, or
// ErrPartnerNotFound when the partner does not exist.
func (r *Repository) GetPartnerOpening(ctx context.Context, partnerID int64) (decimal.Decimal, error) {
	var opening decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT opening_balance FROM partners WHERE id=$1`, partnerID).Scan(&opening)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, ErrPartnerNotFound
		}
		return decimal.Decimal{}, err
	}
	return opening, nil
}

// ListInvoiceEvents returns all of the partner's invoices. Event dates come
// back as raw strings; the builder parses them so a malformed row is reported
// rather than silently mis-sorted.
func (r *Repository) ListInvoiceEvents(ctx context.Context, partnerID int64) ([]InvoiceEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_number, invoice_date, total, created_at
FROM invoices WHERE partner_id=$1 ORDER BY id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []InvoiceEvent
	for rows.Next() {
		var ev InvoiceEvent
		if err := rows.Scan(&ev.ID, &ev.Number, &ev.EventDate, &ev.Total, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListTransactionEvents returns all of the partner's cash/bank transactions.
func (r *Repository) ListTransactionEvents(ctx context.Context, partnerID int64) ([]TransactionEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, kind, mode, COALESCE(reference_no,''), txn_date, amount, created_at
FROM transactions WHERE partner_id=$1 ORDER BY id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TransactionEvent
	for rows.Next() {
		var ev TransactionEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Mode, &ev.Reference, &ev.EventDate, &ev.Amount, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// InsertTransaction stores one transaction and returns the stored row.
func (r *Repository) InsertTransaction(ctx context.Context, input TransactionInput) (*Transaction, error) {
	txn := Transaction{
		PartnerID: input.PartnerID,
		Kind:      input.Kind,
		Mode:      input.Mode,
		Reference: input.Reference,
		EventDate: input.EventDate,
		Amount:    input.Amount,
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO transactions (partner_id, kind, mode, reference_no, txn_date, amount, created_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,NOW())
RETURNING id, created_at`,
		input.PartnerID, string(input.Kind), string(input.Mode), input.Reference, input.EventDate, input.Amount,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// SumTransactions totals stored transactions per kind across all partners.
func (r *Repository) SumTransactions(ctx context.Context) (map[TransactionKind]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT kind, COALESCE(SUM(amount),0) FROM transactions GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[TransactionKind]decimal.Decimal)
	for rows.Next() {
		var kind TransactionKind
		var total decimal.Decimal
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, err
		}
		sums[kind] = total
	}
	return sums, rows.Err()
}
