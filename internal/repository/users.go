package repository

import (
	"context"
	"errors"
	"strconv"

	"catdomains/internal/apperrors"
	"catdomains/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return apperrors.Persistence("insert user", err)
	}
	return nil
}

func (r *UserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Kind: "user", Key: strconv.FormatUint(uint64(id), 10)}
	}
	if err != nil {
		return nil, apperrors.Persistence("load user", err)
	}
	return &u, nil
}

// ByIDs loads users in id order; unknown ids are reported as not found.
func (r *UserRepository) ByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var out []models.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("load users", err)
	}
	if len(out) != len(dedupe(ids)) {
		found := make(map[uint]bool, len(out))
		for _, u := range out {
			found[u.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, &apperrors.NotFoundError{Kind: "user", Key: strconv.FormatUint(uint64(id), 10)}
			}
		}
	}
	return out, nil
}

func (r *UserRepository) UpdateCategory(ctx context.Context, categoryName string, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ?", userIDs).
		Update("category_name", categoryName).Error
	if err != nil {
		return apperrors.Persistence("update users category", err)
	}
	return nil
}

func (r *UserRepository) SetExternal(ctx context.Context, userIDs []uint, external bool) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ?", userIDs).
		Update("external", external).Error
	if err != nil {
		return apperrors.Persistence("update users role", err)
	}
	return nil
}

// MismatchCategories returns the users among userIDs whose linked category
// is not one of names.
func (r *UserRepository) MismatchCategories(ctx context.Context, userIDs []uint, names []string) ([]models.User, error) {
	var out []models.User
	if len(userIDs) == 0 {
		return out, nil
	}
	q := r.db.WithContext(ctx).Where("id IN ?", userIDs)
	if len(names) > 0 {
		q = q.Where("category_name NOT IN ?", names)
	}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("load users", err)
	}
	return out, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
