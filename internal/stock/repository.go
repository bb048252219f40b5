package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/db"
)

// TxRepository exposes the transactional stock operations used by the service.
type TxRepository interface {
	ApplyDelta(ctx context.Context, variantID, delta int64) (int64, error)
	InsertMovementKey(ctx context.Context, m Movement) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	RetryableError(err error) bool
	GetOnHand(ctx context.Context, variantID int64) (int64, error)
}

// Repository persists stock levels in PostgreSQL. All SQL that mutates a
// variant's on_hand count lives in this package; other modules reach it
// through ApplyDeltaTx/InsertMovementKeyTx inside their own transactions.
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
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// RetryableError reports whether err came from a lost serialization race.
func (r *Repository) RetryableError(err error) bool {
	return db.IsSerializationFailure(err)
}

// GetOnHand reads a variant's current on-hand count outside any movement.
func (r *Repository) GetOnHand(ctx context.Context, variantID int64) (int64, error) {
	var onHand int64
	err := r.pool.QueryRow(ctx, `SELECT on_hand FROM article_variants WHERE id=$1`, variantID).Scan(&onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVariantNotFound
		}
		return 0, err
	}
	return onHand, nil
}

func (r *txRepository) ApplyDelta(ctx context.Context, variantID, delta int64) (int64, error) {
	return ApplyDeltaTx(ctx, r.tx, variantID, delta)
}

func (r *txRepository) InsertMovementKey(ctx context.Context, m Movement) error {
	return InsertMovementKeyTx(ctx, r.tx, m)
}

// ApplyDeltaTx applies a signed delta to one variant's on-hand count as a
// single guarded atomic update. The on_hand + delta >= 0 predicate makes the
// read-modify-write one statement, so two concurrent issues can never both
// observe the same pre-update count.
func ApplyDeltaTx(ctx context.Context, tx pgx.Tx, variantID, delta int64) (int64, error) {
	var onHand int64
	err := tx.QueryRow(ctx, `UPDATE article_variants
SET on_hand = on_hand + $2
WHERE id = $1 AND on_hand + $2 >= 0
RETURNING on_hand`, variantID, delta).Scan(&onHand)
	if err == nil {
		return onHand, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// No row updated: either the variant does not exist or the guard failed.
	var exists bool
	if probeErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM article_variants WHERE id=$1)`, variantID).Scan(&exists); probeErr != nil {
		return 0, probeErr
	}
	if !exists {
		return 0, ErrVariantNotFound
	}
	return 0, ErrInsufficientStock
}

// InsertMovementKeyTx records the movement's idempotency key in the same
// transaction as the on-hand change, so a replayed document line fails before
// touching stock again.
func InsertMovementKeyTx(ctx context.Context, tx pgx.Tx, m Movement) error {
	_, err := tx.Exec(ctx, `INSERT INTO stock_movements (ref_kind, ref_id, variant_id, delta, note, applied_at)
VALUES ($1,$2,$3,$4,$5,NOW())`, string(m.RefKind), m.RefID, m.VariantID, m.Delta, m.Note)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateMovement
		}
		return err
	}
	return nil
}
