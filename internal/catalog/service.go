package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the article catalog.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Register stores a new article with its variants. The article and every
// variant land in one transaction.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Article, error) {
	input.BrandName = strings.TrimSpace(input.BrandName)
	input.ArticleCode = strings.TrimSpace(input.ArticleCode)
	if input.BrandName == "" || input.ArticleCode == "" {
		return nil, fmt.Errorf("%w: brand name and article code are required", ErrInvalidVariant)
	}
	if len(input.Variants) == 0 {
		return nil, ErrNoVariants
	}
	seen := make(map[string]bool, len(input.Variants))
	for i, v := range input.Variants {
		size := strings.TrimSpace(v.SizeRange)
		if size == "" {
			return nil, fmt.Errorf("%w: variant %d has no size range", ErrInvalidVariant, i+1)
		}
		if v.ListPrice.IsNegative() {
			return nil, fmt.Errorf("%w: variant %q has a negative list price", ErrInvalidVariant, size)
		}
		if v.OnHand < 0 {
			return nil, fmt.Errorf("%w: variant %q has a negative opening count", ErrInvalidVariant, size)
		}
		if seen[size] {
			return nil, fmt.Errorf("%w: size range %q repeated", ErrInvalidVariant, size)
		}
		seen[size] = true
		input.Variants[i].SizeRange = size
	}

	ok, err := s.repo.SupplierExists(ctx, input.SupplierID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSupplierNotFound
	}

	article, err := s.repo.InsertArticle(ctx, input)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "catalog:register_article",
			Entity:   "article",
			EntityID: strconv.FormatInt(article.ID, 10),
			Meta: map[string]any{
				"brand":    article.BrandName,
				"code":     article.ArticleCode,
				"variants": len(article.Variants),
			},
			At: time.Now().UTC(),
		})
	}
	return article, nil
}

// Get fetches one article with its variants.
func (s *Service) Get(ctx context.Context, id int64) (*Article, error) {
	return s.repo.GetArticle(ctx, id)
}

// GetVariant fetches one variant.
func (s *Service) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	return s.repo.GetVariant(ctx, id)
}

// Stock returns the joined stock overview.
func (s *Service) Stock(ctx context.Context, query string) ([]StockRow, error) {
	return s.repo.ListStock(ctx, strings.TrimSpace(query))
}
