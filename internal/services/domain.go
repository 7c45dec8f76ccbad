package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"catdomains/internal/allowlist"
	"catdomains/internal/apperrors"
	"catdomains/internal/models"
	"catdomains/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// DomainService manages the domains owned by a category.
type DomainService struct {
	domains    *repository.DomainRepository
	categories *repository.CategoryRepository
	allow      allowlist.Source
	now        func() time.Time
}

func NewDomainService(db *gorm.DB, allow allowlist.Source) *DomainService {
	return &DomainService{
		domains:    repository.NewDomainRepository(db),
		categories: repository.NewCategoryRepository(db),
		allow:      allow,
		now:        time.Now,
	}
}

// List returns the active domains of a category.
func (s *DomainService) List(ctx context.Context, categoryID uint, opts repository.ListOptions) ([]models.DomainAssociation, error) {
	ok, err := s.categories.Exists(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperrors.NotFoundError{Kind: "category", Key: strconv.FormatUint(uint64(categoryID), 10)}
	}
	return s.domains.ActiveByCategory(ctx, categoryID, opts)
}

// Add associates domain with a main entity. A previously disabled
// association is reactivated rather than duplicated.
func (s *DomainService) Add(ctx context.Context, categoryID uint, domain string) (*models.DomainAssociation, error) {
	domain = models.NormalizeDomain(domain)
	if domain == "" {
		return nil, &apperrors.ValidationError{Field: "domain_name", Reason: "is required"}
	}
	if !s.allow().IsWhitelisted(domain) {
		return nil, &apperrors.ValidationError{Field: "domain_name", Reason: fmt.Sprintf("%q is not an allowed email domain", domain)}
	}

	cat, err := s.categories.ByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !cat.MainEntity {
		return nil, &apperrors.NotFoundError{Kind: "main entity", Key: cat.IDNumber}
	}

	exists, err := s.domains.Exists(ctx, categoryID, domain)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &apperrors.ConflictError{Domain: domain, CategoryID: categoryID}
	}

	disabled, err := s.domains.IsDisabled(ctx, categoryID, domain)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if disabled {
		d, err := s.domains.Reactivate(ctx, categoryID, domain, now)
		if err != nil {
			return nil, err
		}
		log.Info().Str("domain", domain).Uint("category", categoryID).Msg("domain reactivated")
		return d, nil
	}

	created := models.NewDomainAssociation(domain, categoryID, now)
	if err := s.domains.Add(ctx, &created); err != nil {
		return nil, err
	}
	log.Info().Str("domain", domain).Uint("category", categoryID).Msg("domain added")
	return &created, nil
}

// Disable soft deletes the association between domain and the category.
func (s *DomainService) Disable(ctx context.Context, categoryID uint, domain string) error {
	domain = models.NormalizeDomain(domain)
	if err := s.domains.Disable(ctx, categoryID, domain, s.now()); err != nil {
		return err
	}
	log.Info().Str("domain", domain).Uint("category", categoryID).Msg("domain disabled")
	return nil
}

// EntitiesByEmail lists the names of the categories an email address can be
// linked to, sorted ignoring case and accents.
func (s *DomainService) EntitiesByEmail(ctx context.Context, email string) ([]string, error) {
	def, err := s.categories.Default(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	cats, err := s.domains.CategoriesByDomain(ctx, s.allow().Match(email), def)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	collate.New(language.French, collate.IgnoreCase, collate.IgnoreDiacritics).SortStrings(names)
	return names, nil
}

// Category loads a category by id.
func (s *DomainService) Category(ctx context.Context, id uint) (*models.Category, error) {
	return s.categories.ByID(ctx, id)
}
