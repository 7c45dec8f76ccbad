package services

import (
	"context"
	"errors"

	"catdomains/internal/apperrors"
	"catdomains/internal/models"
	"catdomains/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// EnsureDefaultEntity makes sure a default entity exists, creating it with
// idnumber when the store has none. An existing category with that idnumber
// is promoted.
func EnsureDefaultEntity(ctx context.Context, db *gorm.DB, idnumber string) (*models.Category, error) {
	cats := repository.NewCategoryRepository(db)

	def, err := cats.Default(ctx)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	existing, err := cats.ByIDNumber(ctx, idnumber)
	switch {
	case err == nil:
		existing.DefaultEntity = true
		existing.MainEntity = true
		if err := db.WithContext(ctx).Save(existing).Error; err != nil {
			return nil, apperrors.Persistence("promote default category", err)
		}
		log.Info().Str("idnumber", idnumber).Msg("category promoted to default entity")
		return existing, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	def = &models.Category{Name: idnumber, IDNumber: idnumber, MainEntity: true, DefaultEntity: true}
	if err := cats.Create(ctx, def); err != nil {
		return nil, err
	}
	log.Info().Str("idnumber", idnumber).Msg("default entity created")
	return def, nil
}
