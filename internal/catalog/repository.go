package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/db"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	InsertArticle(ctx context.Context, input RegisterInput) (*Article, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	GetVariant(ctx context.Context, id int64) (*Variant, error)
	ListStock(ctx context.Context, query string) ([]StockRow, error)
	SupplierExists(ctx context.Context, supplierID int64) (bool, error)
}

// Repository persists the article catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertArticle stores the article and all its variants in one transaction,
// so a half-registered article is never visible.
func (r *Repository) InsertArticle(ctx context.Context, input RegisterInput) (*Article, error) {
	var article Article
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO articles
(supplier_id, brand_name, article_code, category, gender, created_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NOW())
RETURNING id, created_at`,
			input.SupplierID, input.BrandName, input.ArticleCode, input.Category, input.Gender,
		).Scan(&article.ID, &article.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateCode
			}
			return err
		}
		article.SupplierID = input.SupplierID
		article.BrandName = input.BrandName
		article.ArticleCode = input.ArticleCode
		article.Category = input.Category
		article.Gender = input.Gender

		for _, v := range input.Variants {
			variant := Variant{
				ArticleID: article.ID,
				SizeRange: v.SizeRange,
				ListPrice: v.ListPrice,
				OnHand:    v.OnHand,
			}
			err := tx.QueryRow(ctx, `INSERT INTO article_variants
(article_id, size_range, list_price, on_hand)
VALUES ($1,$2,$3,0)
RETURNING id`, article.ID, v.SizeRange, v.ListPrice).Scan(&variant.ID)
			if err != nil {
				if db.IsUniqueViolation(err) {
					return ErrInvalidVariant
				}
				return err
			}
			// Opening stock enters through the stock ledger like any other
			// receipt, so the movement log reconstructs the count from zero.
			if v.OnHand > 0 {
				movement := stock.Movement{
					RefKind:   stock.RefKindAdjustment,
					RefID:     "OPEN-" + input.ArticleCode,
					VariantID: variant.ID,
					Delta:     v.OnHand,
					Note:      "opening stock",
				}
				if err := stock.InsertMovementKeyTx(ctx, tx, movement); err != nil {
					return err
				}
				if _, err := stock.ApplyDeltaTx(ctx, tx, variant.ID, v.OnHand); err != nil {
					return err
				}
			}
			article.Variants = append(article.Variants, variant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// GetArticle fetches one article with its variants.
func (r *Repository) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	err := r.pool.QueryRow(ctx, `SELECT id, supplier_id, brand_name, article_code,
COALESCE(category,''), COALESCE(gender,''), created_at
FROM articles WHERE id=$1`, id).Scan(
		&a.ID, &a.SupplierID, &a.BrandName, &a.ArticleCode, &a.Category, &a.Gender, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, article_id, size_range, list_price, on_hand
FROM article_variants WHERE article_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ArticleID, &v.SizeRange, &v.ListPrice, &v.OnHand); err != nil {
			return nil, err
		}
		a.Variants = append(a.Variants, v)
	}
	return &a, rows.Err()
}

// GetVariant fetches one variant.
func (r *Repository) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT id, article_id, size_range, list_price, on_hand
FROM article_variants WHERE id=$1`, id).Scan(&v.ID, &v.ArticleID, &v.SizeRange, &v.ListPrice, &v.OnHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListStock returns the joined stock overview, optionally filtered by brand
// or article code.
func (r *Repository) ListStock(ctx context.Context, query string) ([]StockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT v.id, a.id, a.brand_name, a.article_code,
v.size_range, v.list_price, v.on_hand
FROM article_variants v
JOIN articles a ON a.id = v.article_id
WHERE $1 = '' OR a.brand_name ILIKE '%' || $1 || '%' OR a.article_code ILIKE '%' || $1 || '%'
ORDER BY a.brand_name, a.article_code, v.id`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockRow
	for rows.Next() {
		var row StockRow
		if err := rows.Scan(&row.VariantID, &row.ArticleID, &row.BrandName, &row.ArticleCode,
			&row.SizeRange, &row.ListPrice, &row.OnHand); err != nil {
			return nil, err
		}
		row.Status = StatusFor(row.OnHand)
		out = append(out, row)
	}
	return out, rows.Err()
}

// SupplierExists reports whether the supplier id refers to a supplier partner.
func (r *Repository) SupplierExists(ctx context.Context, supplierID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM partners WHERE id=$1 AND type='Supplier')`, supplierID).Scan(&exists)
	return exists, err
}
