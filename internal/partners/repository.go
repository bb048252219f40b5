package partners

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versatilewordsmith/footwear-accounting/internal/platform/db"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, input CreateInput) (*Partner, error)
	Update(ctx context.Context, input UpdateInput) (*Partner, error)
	GetByID(ctx context.Context, id int64) (*Partner, error)
	List(ctx context.Context, filter ListFilter) ([]Partner, error)
}

// Repository persists partners in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partnerColumns = `id, type, name, COALESCE(city,''), COALESCE(phone,''),
opening_balance, credit_limit, credit_days, COALESCE(default_schema,''), created_at, updated_at`

func scanPartner(row pgx.Row) (*Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.Type, &p.Name, &p.City, &p.Phone,
		&p.OpeningBalance, &p.CreditLimit, &p.CreditDays, &p.DefaultSchema, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Insert stores a new partner. The (type, name) pair is unique.
func (r *Repository) Insert(ctx context.Context, input CreateInput) (*Partner, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO partners
(type, name, city, phone, opening_balance, credit_limit, credit_days, default_schema, created_at, updated_at)
VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7,NULLIF($8,''),NOW(),NOW())
RETURNING `+partnerColumns,
		string(input.Type), input.Name, input.City, input.Phone,
		input.OpeningBalance, input.CreditLimit, input.CreditDays, string(input.DefaultSchema))
	p, err := scanPartner(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return p, nil
}

// Update rewrites the partner's mutable fields.
func (r *Repository) Update(ctx context.Context, input UpdateInput) (*Partner, error) {
	row := r.pool.QueryRow(ctx, `UPDATE partners SET
name=$2, city=NULLIF($3,''), phone=NULLIF($4,''),
credit_limit=$5, credit_days=$6, default_schema=NULLIF($7,''), updated_at=NOW()
WHERE id=$1
RETURNING `+partnerColumns,
		input.ID, input.Name, input.City, input.Phone,
		input.CreditLimit, input.CreditDays, string(input.DefaultSchema))
	p, err := scanPartner(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return p, nil
}

// GetByID fetches one partner.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Partner, error) {
	return scanPartner(r.pool.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id=$1`, id))
}

// List returns partners matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Partner, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+partnerColumns+` FROM partners
WHERE ($1 = '' OR type = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
ORDER BY id DESC
LIMIT $3`, string(filter.Type), filter.Query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
