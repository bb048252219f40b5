package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxAttempts bounds the retry loop for serialization conflicts.
	MaxAttempts int
}

// Service applies stock movements with per-variant serialization. Each
// movement plus the caller's document rows commit as one transaction or not
// at all.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	maxAttempts int
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	return &Service{repo: repo, audit: audit, maxAttempts: attempts}
}

// Adjust posts a manual count correction for one variant.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Level, error) {
	if input.VariantID == 0 {
		return Level{}, ErrVariantNotFound
	}
	if input.Delta == 0 {
		return Level{}, ErrInvalidDelta
	}
	refID := input.RefID
	if refID == "" {
		refID = uuid.NewString()
	}
	movement := Movement{
		RefKind:   RefKindAdjustment,
		RefID:     refID,
		VariantID: input.VariantID,
		Delta:     input.Delta,
		Note:      input.Note,
	}

	var level Level
	err := s.Retry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.InsertMovementKey(ctx, movement); err != nil {
				return err
			}
			onHand, err := tx.ApplyDelta(ctx, movement.VariantID, movement.Delta)
			if err != nil {
				return err
			}
			level = Level{VariantID: movement.VariantID, OnHand: onHand}
			return nil
		})
	})
	if err != nil {
		return Level{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "stock:adjust",
			Entity:   "article_variant",
			EntityID: fmt.Sprintf("%d", input.VariantID),
			Meta: map[string]any{
				"delta":   input.Delta,
				"on_hand": level.OnHand,
				"note":    input.Note,
			},
			At: time.Now().UTC(),
		})
	}
	return level, nil
}

// OnHand reads the current count for one variant.
func (s *Service) OnHand(ctx context.Context, variantID int64) (int64, error) {
	if variantID == 0 {
		return 0, ErrVariantNotFound
	}
	return s.repo.GetOnHand(ctx, variantID)
}

// Retry runs fn, retrying up to the configured number of attempts when the
// repository reports a lost serialization race. Domain failures such as
// insufficient stock are never retried. After the last attempt the caller
// sees ErrConflict.
func (s *Service) Retry(ctx context.Context, fn func(context.Context) error) error {
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
	return errors.Join(ErrConflict, lastErr)
}
