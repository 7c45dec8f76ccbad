package services

import (
	"context"
	"testing"
	"time"

	"catdomains/internal/database"
	"catdomains/internal/models"
	"catdomains/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createCategory(t *testing.T, db *gorm.DB, idnumber string, main bool) *models.Category {
	t.Helper()
	c := &models.Category{Name: "Entity " + idnumber, IDNumber: idnumber, MainEntity: main}
	require.NoError(t, repository.NewCategoryRepository(db).Create(context.Background(), c))
	return c
}

func createDefaultCategory(t *testing.T, db *gorm.DB) *models.Category {
	t.Helper()
	c := &models.Category{Name: "Default entity", IDNumber: "default", MainEntity: true, DefaultEntity: true}
	require.NoError(t, repository.NewCategoryRepository(db).Create(context.Background(), c))
	return c
}

func insertDomain(t *testing.T, db *gorm.DB, categoryID uint, domain string, disabled bool) *models.DomainAssociation {
	t.Helper()
	d := &models.DomainAssociation{DomainName: domain, CategoryID: categoryID, CreatedAt: base}
	if disabled {
		at := base
		d.DisabledAt = &at
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

type pairState struct {
	Domain     string
	CategoryID uint
}

func activePairs(t *testing.T, db *gorm.DB) []pairState {
	t.Helper()
	rows, err := repository.NewDomainRepository(db).AllActive(context.Background())
	require.NoError(t, err)
	out := make([]pairState, 0, len(rows))
	for _, r := range rows {
		out = append(out, pairState{r.DomainName, r.CategoryID})
	}
	return out
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.DomainAssociation{}).Count(&n).Error)
	return n
}

func fixedClock(ts *time.Time) func() time.Time {
	return func() time.Time { return *ts }
}
