package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/pricing"
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

// Service posts customer invoices. Pricing, invoice rows, and stock issues
// commit in one transaction; a failure on any line leaves nothing behind.
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

// PostInvoice prices every line under the resolved schema, stores the
// invoice, and issues stock, all in one transaction with bounded retry on
// serialization races.
func (s *Service) PostInvoice(ctx context.Context, input PostInvoiceInput) (*Invoice, error) {
	if len(input.Lines) == 0 {
		return nil, ErrNoLines
	}
	if _, err := time.Parse(invoiceDateLayout, input.Date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadDate, input.Date)
	}
	seen := make(map[int64]bool, len(input.Lines))
	for _, line := range input.Lines {
		if seen[line.VariantID] {
			return nil, fmt.Errorf("%w: variant %d", ErrDuplicateLine, line.VariantID)
		}
		seen[line.VariantID] = true
	}
	if input.Schema != "" {
		if _, err := pricing.ParseSchema(string(input.Schema)); err != nil {
			return nil, err
		}
	}

	number := fmt.Sprintf("INV-%d", s.now().UnixMilli())
	var invoice *Invoice
	err := s.retry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			customer, err := tx.GetCustomer(ctx, input.CustomerID)
			if err != nil {
				return err
			}
			schema := input.Schema
			if schema == "" {
				schema = customer.DefaultSchema
			}
			if schema == "" {
				return fmt.Errorf("%w: %s", ErrNoSchema, customer.Name)
			}

			inv := &Invoice{
				Number:    number,
				PartnerID: customer.ID,
				Schema:    schema,
				Date:      input.Date,
				Total:     decimal.Zero,
			}
			items := make([]Item, 0, len(input.Lines))
			for _, line := range input.Lines {
				listPrice, err := tx.GetVariantListPrice(ctx, line.VariantID)
				if err != nil {
					return err
				}
				net, err := pricing.ComputeLineNet(schema, pricing.Line{
					ListPrice:        listPrice,
					Quantity:         line.Quantity,
					DiscountPercent:  line.DiscountPercent,
					Commission:       line.Commission,
					CommissionIsFlat: line.CommissionIsFlat,
				})
				if err != nil {
					return fmt.Errorf("variant %d: %w", line.VariantID, err)
				}
				inv.Total = inv.Total.Add(net)
				items = append(items, Item{
					VariantID:        line.VariantID,
					Quantity:         line.Quantity,
					ListPrice:        listPrice,
					DiscountPercent:  line.DiscountPercent,
					Commission:       line.Commission,
					CommissionIsFlat: line.CommissionIsFlat,
					NetAmount:        net,
				})
			}

			if err := tx.InsertInvoice(ctx, inv); err != nil {
				return err
			}
			for i := range items {
				items[i].InvoiceID = inv.ID
				if err := tx.InsertItem(ctx, &items[i]); err != nil {
					return err
				}
				movement := stock.Movement{
					RefKind:   stock.RefKindSale,
					RefID:     inv.Number,
					VariantID: items[i].VariantID,
					Delta:     -items[i].Quantity,
				}
				if err := tx.InsertStockMovement(ctx, movement); err != nil {
					return err
				}
				if _, err := tx.ApplyStockDelta(ctx, items[i].VariantID, -items[i].Quantity); err != nil {
					return fmt.Errorf("variant %d: %w", items[i].VariantID, err)
				}
			}
			inv.Items = items
			invoice = inv
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.statements != nil {
		s.statements.InvalidateStatement(ctx, invoice.PartnerID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "sales:post_invoice",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(invoice.ID, 10),
			Meta: map[string]any{
				"number":     invoice.Number,
				"partner_id": invoice.PartnerID,
				"total":      invoice.Total.String(),
			},
			At: time.Now().UTC(),
		})
	}
	return invoice, nil
}

// Get fetches one invoice with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
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
