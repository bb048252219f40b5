package purchases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatementInvalidator drops a partner's cached statement after posting.
type StatementInvalidator interface {
	InvalidateStatement(ctx context.Context, partnerID int64)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxAttempts bounds the retry loop for serialization conflicts.
	MaxAttempts int
}

// Service posts supplier purchases. Purchase rows and stock receipts commit
// in one transaction.
type Service struct {
	repo        RepositoryPort
	statements  StatementInvalidator
	audit       AuditPort
	maxAttempts int
	now         func() time.Time
}

// NewService builds Service. statements and audit may be nil.
func NewService(repo RepositoryPort, statements StatementInvalidator, audit AuditPort, cfg ServiceConfig) *Service {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	return &Service{
		repo:        repo,
		statements:  statements,
		audit:       audit,
		maxAttempts: attempts,
		now:         time.Now,
	}
}

// PostPurchase stores the supplier invoice and receives stock, all in one
// transaction with bounded retry on serialization races.
func (s *Service) PostPurchase(ctx context.Context, input PostPurchaseInput) (*Purchase, error) {
	if len(input.Lines) == 0 {
		return nil, ErrNoLines
	}
	if _, err := time.Parse(purchaseDateLayout, input.Date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadDate, input.Date)
	}
	seen := make(map[int64]bool, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: variant %d has quantity %d", ErrInvalidLine, line.VariantID, line.Quantity)
		}
		if line.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: variant %d has a negative unit cost", ErrInvalidLine, line.VariantID)
		}
		if seen[line.VariantID] {
			return nil, fmt.Errorf("%w: variant %d", ErrDuplicateLine, line.VariantID)
		}
		seen[line.VariantID] = true
	}

	number := fmt.Sprintf("PUR-%d", s.now().UnixMilli())
	var purchase *Purchase
	err := s.retry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			supplier, err := tx.GetSupplier(ctx, input.SupplierID)
			if err != nil {
				return err
			}

			p := &Purchase{
				Number:    number,
				PartnerID: supplier.ID,
				Date:      input.Date,
				Total:     decimal.Zero,
			}
			lines := make([]Line, 0, len(input.Lines))
			for _, in := range input.Lines {
				amount := in.UnitCost.Mul(decimal.NewFromInt(in.Quantity))
				p.Total = p.Total.Add(amount)
				lines = append(lines, Line{
					VariantID: in.VariantID,
					Quantity:  in.Quantity,
					UnitCost:  in.UnitCost,
					Amount:    amount,
				})
			}

			if err := tx.InsertPurchase(ctx, p); err != nil {
				return err
			}
			for i := range lines {
				lines[i].PurchaseID = p.ID
				if err := tx.InsertLine(ctx, &lines[i]); err != nil {
					return err
				}
				movement := stock.Movement{
					RefKind:   stock.RefKindPurchase,
					RefID:     p.Number,
					VariantID: lines[i].VariantID,
					Delta:     lines[i].Quantity,
				}
				if err := tx.InsertStockMovement(ctx, movement); err != nil {
					return err
				}
				if _, err := tx.ApplyStockDelta(ctx, lines[i].VariantID, lines[i].Quantity); err != nil {
					return fmt.Errorf("variant %d: %w", lines[i].VariantID, err)
				}
			}
			p.Lines = lines
			purchase = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.statements != nil {
		s.statements.InvalidateStatement(ctx, purchase.PartnerID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "purchases:post",
			Entity:   "purchase",
			EntityID: strconv.FormatInt(purchase.ID, 10),
			Meta: map[string]any{
				"number":     purchase.Number,
				"partner_id": purchase.PartnerID,
				"total":      purchase.Total.String(),
			},
			At: time.Now().UTC(),
		})
	}
	return purchase, nil
}

func (s *Service) retry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !s.repo.RetryableError(lastErr) {
			return lastErr
		}
	}
	return errors.Join(stock.ErrConflict, lastErr)
}
