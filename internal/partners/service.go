package partners

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/versatilewordsmith/footwear-accounting/internal/pricing"
	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the partner book.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func validateCommercial(partnerType PartnerType, name string, creditLimit decimal.Decimal, creditDays int, schema pricing.Schema) error {
	if !ValidType(partnerType) {
		return fmt.Errorf("%w: %q", ErrInvalidType, partnerType)
	}
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if creditLimit.IsNegative() || creditDays < 0 {
		return ErrNegativeCredit
	}
	if schema != "" {
		if partnerType != TypeCustomer {
			return ErrSchemaNotAllowed
		}
		if _, err := pricing.ParseSchema(string(schema)); err != nil {
			return err
		}
	}
	return nil
}

// Create registers a new partner. Customers may carry a default pricing
// schema; suppliers never do.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Partner, error) {
	if err := validateCommercial(input.Type, input.Name, input.CreditLimit, input.CreditDays, input.DefaultSchema); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)

	p, err := s.repo.Insert(ctx, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.ActorID, "partners:create", p)
	return p, nil
}

// Update rewrites a partner's mutable fields. The partner's type stays as
// created; the schema rule is enforced against that stored type.
func (s *Service) Update(ctx context.Context, input UpdateInput) (*Partner, error) {
	existing, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := validateCommercial(existing.Type, input.Name, input.CreditLimit, input.CreditDays, input.DefaultSchema); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)

	p, err := s.repo.Update(ctx, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.ActorID, "partners:update", p)
	return p, nil
}

// Get fetches one partner.
func (s *Service) Get(ctx context.Context, id int64) (*Partner, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns partners matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Partner, error) {
	if filter.Type != "" && !ValidType(filter.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, filter.Type)
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, p *Partner) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "partner",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta: map[string]any{
			"name": p.Name,
			"type": p.Type,
		},
		At: time.Now().UTC(),
	})
}
