// Package repository holds the gorm backed stores for categories, domain
// associations and users.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catdomains/internal/apperrors"
	"catdomains/internal/models"

	"gorm.io/gorm"
)

const (
	SortCreatedAt  = "created_at"
	SortDomainName = "domain_name"
)

// ListOptions controls ActiveByCategory. The zero value lists newest first.
type ListOptions struct {
	Order  string // "asc" or "desc"
	SortBy string // SortCreatedAt or SortDomainName
	Search string // case-insensitive substring of the domain name
}

func (o ListOptions) orderClause() string {
	column := SortCreatedAt
	if o.SortBy == SortDomainName {
		column = SortDomainName
	}
	dir := "DESC"
	if strings.EqualFold(o.Order, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, id %s", column, dir, dir)
}

type DomainRepository struct {
	db *gorm.DB
}

func NewDomainRepository(db *gorm.DB) *DomainRepository {
	return &DomainRepository{db: db}
}

// WithTx returns a repository whose queries run inside tx.
func (r *DomainRepository) WithTx(tx *gorm.DB) *DomainRepository {
	return &DomainRepository{db: tx}
}

func (r *DomainRepository) ActiveByCategory(ctx context.Context, categoryID uint, opts ListOptions) ([]models.DomainAssociation, error) {
	q := r.db.WithContext(ctx).
		Where("course_categories_id = ? AND disabled_at IS NULL", categoryID)

	if s := strings.TrimSpace(opts.Search); s != "" {
		q = q.Where("LOWER(domain_name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(s))+"%")
	}

	var out []models.DomainAssociation
	if err := q.Order(opts.orderClause()).Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("list domains", err)
	}
	return out, nil
}

// All returns every association, active or not, oldest first.
func (r *DomainRepository) All(ctx context.Context) ([]models.DomainAssociation, error) {
	var out []models.DomainAssociation
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("list all domains", err)
	}
	return out, nil
}

func (r *DomainRepository) AllActive(ctx context.Context) ([]models.DomainAssociation, error) {
	var out []models.DomainAssociation
	err := r.db.WithContext(ctx).Where("disabled_at IS NULL").Order("id ASC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list active domains", err)
	}
	return out, nil
}

// Find returns the most recent row for the pair, whatever its state.
func (r *DomainRepository) Find(ctx context.Context, categoryID uint, domain string) (*models.DomainAssociation, error) {
	var d models.DomainAssociation
	err := r.pair(ctx, categoryID, domain).Order("id DESC").First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Kind: "domain", Key: pairKey(categoryID, domain)}
	}
	if err != nil {
		return nil, apperrors.Persistence("find domain", err)
	}
	return &d, nil
}

// Exists reports whether the pair has an active row.
func (r *DomainRepository) Exists(ctx context.Context, categoryID uint, domain string) (bool, error) {
	var n int64
	err := r.pair(ctx, categoryID, domain).Where("disabled_at IS NULL").Count(&n).Error
	if err != nil {
		return false, apperrors.Persistence("check domain", err)
	}
	return n > 0, nil
}

// IsDisabled reports whether the pair has rows but none of them is active.
func (r *DomainRepository) IsDisabled(ctx context.Context, categoryID uint, domain string) (bool, error) {
	d, err := r.Find(ctx, categoryID, domain)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if d.Active() {
		return false, nil
	}
	active, err := r.Exists(ctx, categoryID, domain)
	return !active, err
}

func (r *DomainRepository) Add(ctx context.Context, d *models.DomainAssociation) error {
	d.DomainName = models.NormalizeDomain(d.DomainName)
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperrors.Persistence("insert domain", err)
	}
	return nil
}

// Disable soft deletes every active row of the pair.
func (r *DomainRepository) Disable(ctx context.Context, categoryID uint, domain string, now time.Time) error {
	var rows []models.DomainAssociation
	err := r.pair(ctx, categoryID, domain).Where("disabled_at IS NULL").Find(&rows).Error
	if err != nil {
		return apperrors.Persistence("disable domain", err)
	}
	if len(rows) == 0 {
		return &apperrors.NotFoundError{Kind: "domain", Key: pairKey(categoryID, domain)}
	}
	for i := range rows {
		rows[i].Disable(now)
		if err := r.SaveLifecycle(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Reactivate brings back the latest row of a disabled pair.
func (r *DomainRepository) Reactivate(ctx context.Context, categoryID uint, domain string, now time.Time) (*models.DomainAssociation, error) {
	d, err := r.Find(ctx, categoryID, domain)
	if err != nil {
		return nil, err
	}
	if d.Active() {
		return d, nil
	}
	d.Reactivate(now)
	if err := r.SaveLifecycle(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SaveLifecycle persists the CreatedAt and DisabledAt fields of d.
func (r *DomainRepository) SaveLifecycle(ctx context.Context, d *models.DomainAssociation) error {
	err := r.db.WithContext(ctx).
		Model(&models.DomainAssociation{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"created_at":  d.CreatedAt,
			"disabled_at": d.DisabledAt,
		}).Error
	if err != nil {
		op := "reactivate domain"
		if !d.Active() {
			op = "disable domain"
		}
		return apperrors.Persistence(op, err)
	}
	return nil
}

// CategoriesByDomain returns the categories owning an active association for
// domain, ordered by name. When there is none, the default category (if
// any) is returned alone.
func (r *DomainRepository) CategoriesByDomain(ctx context.Context, domain string, defaultCategory *models.Category) ([]models.Category, error) {
	var out []models.Category
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Select("DISTINCT course_categories.*").
		Joins("JOIN course_categories_domains d ON d.course_categories_id = course_categories.id").
		Where("LOWER(d.domain_name) = ? AND d.disabled_at IS NULL", models.NormalizeDomain(domain)).
		Order("course_categories.name ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("categories by domain", err)
	}
	if len(out) == 0 && defaultCategory != nil {
		out = append(out, *defaultCategory)
	}
	return out, nil
}

func (r *DomainRepository) pair(ctx context.Context, categoryID uint, domain string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.DomainAssociation{}).
		Where("course_categories_id = ? AND domain_name = ?", categoryID, models.NormalizeDomain(domain))
}

func pairKey(categoryID uint, domain string) string {
	return fmt.Sprintf("%d/%s", categoryID, models.NormalizeDomain(domain))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
