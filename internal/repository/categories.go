package repository

import (
	"context"
	"errors"
	"strconv"

	"catdomains/internal/apperrors"
	"catdomains/internal/models"

	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

func (r *CategoryRepository) ByID(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Kind: "category", Key: strconv.FormatUint(uint64(id), 10)}
	}
	if err != nil {
		return nil, apperrors.Persistence("load category", err)
	}
	return &c, nil
}

// ByIDNumber resolves the external short name of a category.
func (r *CategoryRepository) ByIDNumber(ctx context.Context, idnumber string) (*models.Category, error) {
	var c models.Category
	err := r.db.WithContext(ctx).Where("idnumber = ?", idnumber).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Kind: "category", Key: idnumber}
	}
	if err != nil {
		return nil, apperrors.Persistence("load category", err)
	}
	return &c, nil
}

func (r *CategoryRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apperrors.Persistence("check category", err)
	}
	return n > 0, nil
}

// Default returns the entity that receives users no domain claims.
func (r *CategoryRepository) Default(ctx context.Context) (*models.Category, error) {
	var c models.Category
	err := r.db.WithContext(ctx).Where("default_entity = ?", true).Order("id ASC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Kind: "category", Key: "default"}
	}
	if err != nil {
		return nil, apperrors.Persistence("load default category", err)
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return apperrors.Persistence("insert category", err)
	}
	return nil
}
