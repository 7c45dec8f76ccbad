package services

import (
	"context"
	"strings"

	"catdomains/internal/allowlist"
	"catdomains/internal/apperrors"
	"catdomains/internal/models"
	"catdomains/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// LinkService links users to the entity their email domain belongs to and
// maintains their external flag.
type LinkService struct {
	db         *gorm.DB
	domains    *repository.DomainRepository
	categories *repository.CategoryRepository
	users      *repository.UserRepository
	allow      allowlist.Source
}

func NewLinkService(db *gorm.DB, allow allowlist.Source) *LinkService {
	return &LinkService{
		db:         db,
		domains:    repository.NewDomainRepository(db),
		categories: repository.NewCategoryRepository(db),
		users:      repository.NewUserRepository(db),
		allow:      allow,
	}
}

type domainGroup struct {
	domain      string
	whitelisted bool
	userIDs     []uint
}

// LinkCategoriesToUsers links each user according to the domain of their
// email:
//   - a domain outside the allowlist links to category when it is a main
//     entity, to the default entity otherwise, and marks the user external;
//   - a domain owned by several entities leaves users already linked to one
//     of them alone and resets the others to no entity;
//   - otherwise the user is linked to the single owner, or to the default
//     entity when nobody owns the domain.
func (s *LinkService) LinkCategoriesToUsers(ctx context.Context, users []models.User, category *models.Category) error {
	if len(users) == 0 {
		return nil
	}

	groups := s.groupByDomain(users)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		domains := s.domains.WithTx(tx)
		userRepo := s.users.WithTx(tx)

		def, err := s.categories.WithTx(tx).Default(ctx)
		if err != nil {
			return err
		}

		for _, g := range groups {
			if !g.whitelisted {
				target := def
				if category != nil && category.MainEntity {
					target = category
				}
				if err := s.assign(ctx, userRepo, target.Name, g.userIDs, true); err != nil {
					return err
				}
				continue
			}

			cats, err := domains.CategoriesByDomain(ctx, g.domain, def)
			if err != nil {
				return err
			}

			if len(cats) > 1 {
				names := make([]string, 0, len(cats))
				for _, c := range cats {
					names = append(names, c.Name)
				}
				mismatched, err := userRepo.MismatchCategories(ctx, g.userIDs, names)
				if err != nil {
					return err
				}
				if len(mismatched) > 0 {
					ids := make([]uint, 0, len(mismatched))
					for _, u := range mismatched {
						ids = append(ids, u.ID)
					}
					if err := s.assign(ctx, userRepo, "", ids, true); err != nil {
						return err
					}
				}
				continue
			}

			if err := s.assign(ctx, userRepo, cats[0].Name, g.userIDs, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// Register creates a user and links it as a freshly registered account.
func (s *LinkService) Register(ctx context.Context, email string, categoryID *uint) (*models.User, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || allowlist.DomainOf(email) == "" {
		return nil, &apperrors.ValidationError{Field: "email", Reason: "is not a valid email address"}
	}

	var category *models.Category
	if categoryID != nil {
		c, err := s.categories.ByID(ctx, *categoryID)
		if err != nil {
			return nil, err
		}
		category = c
	}

	u := &models.User{Email: email}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if err := s.LinkCategoriesToUsers(ctx, []models.User{*u}, category); err != nil {
		return nil, err
	}
	return s.users.ByID(ctx, u.ID)
}

// LinkUsers loads users by id and links them.
func (s *LinkService) LinkUsers(ctx context.Context, userIDs []uint, categoryID *uint) ([]models.User, error) {
	users, err := s.users.ByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	var category *models.Category
	if categoryID != nil {
		if category, err = s.categories.ByID(ctx, *categoryID); err != nil {
			return nil, err
		}
	}

	if err := s.LinkCategoriesToUsers(ctx, users, category); err != nil {
		return nil, err
	}
	return s.users.ByIDs(ctx, userIDs)
}

func (s *LinkService) groupByDomain(users []models.User) []*domainGroup {
	allow := s.allow()
	index := make(map[string]*domainGroup)
	var groups []*domainGroup

	for _, u := range users {
		domain, listed := allow.Lookup(u.Email)
		g, ok := index[domain]
		if !ok {
			g = &domainGroup{domain: domain, whitelisted: listed}
			index[domain] = g
			groups = append(groups, g)
		}
		g.userIDs = append(g.userIDs, u.ID)
	}
	return groups
}

func (s *LinkService) assign(ctx context.Context, users *repository.UserRepository, categoryName string, ids []uint, external bool) error {
	if err := users.UpdateCategory(ctx, categoryName, ids); err != nil {
		return err
	}
	if err := users.SetExternal(ctx, ids, external); err != nil {
		return err
	}
	log.Debug().Str("category", categoryName).Bool("external", external).Int("users", len(ids)).Msg("users linked")
	return nil
}
