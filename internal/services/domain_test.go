package services

import (
	"context"
	"testing"
	"time"

	"catdomains/internal/allowlist"
	"catdomains/internal/apperrors"
	"catdomains/internal/models"
	"catdomains/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainService_Add(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat := createCategory(t, db, "entity1", true)
	plain := createCategory(t, db, "plain", false)
	svc := NewDomainService(db, allowlist.Static(allowlist.Parse("test.com .gouv.fr")))
	now := base
	svc.now = fixedClock(&now)

	d, err := svc.Add(ctx, cat.ID, " TEST.com ")
	require.NoError(t, err)
	assert.Equal(t, "test.com", d.DomainName)
	assert.True(t, d.Active())

	_, err = svc.Add(ctx, cat.ID, "test.com")
	var ce *apperrors.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "test.com", ce.Domain)

	_, err = svc.Add(ctx, cat.ID, "other.org")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Add(ctx, cat.ID, "  ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Add(ctx, 4242, "test.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Add(ctx, plain.ID, "test.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Add(ctx, cat.ID, "interieur.gouv.fr")
	assert.NoError(t, err)
}

func TestDomainService_AddReactivatesDisabled(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat := createCategory(t, db, "entity1", true)
	old := insertDomain(t, db, cat.ID, "test.com", true)
	svc := NewDomainService(db, allowlist.Static(allowlist.Parse("test.com")))
	now := base.Add(time.Hour)
	svc.now = fixedClock(&now)

	d, err := svc.Add(ctx, cat.ID, "test.com")
	require.NoError(t, err)
	assert.Equal(t, old.ID, d.ID)
	assert.Equal(t, int64(1), countRows(t, db))

	stored, err := repository.NewDomainRepository(db).Find(ctx, cat.ID, "test.com")
	require.NoError(t, err)
	assert.Nil(t, stored.DisabledAt)
	assert.WithinDuration(t, now, stored.CreatedAt, time.Second)
}

func TestDomainService_ListAndDisable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat := createCategory(t, db, "entity1", true)
	insertDomain(t, db, cat.ID, "domain.com", false)
	insertDomain(t, db, cat.ID, "other.com", false)
	svc := NewDomainService(db, allowlist.Static(nil))
	now := base.Add(time.Hour)
	svc.now = fixedClock(&now)

	_, err := svc.List(ctx, 4242, repository.ListOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.Disable(ctx, cat.ID, "Domain.com"))

	list, err := svc.List(ctx, cat.ID, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "other.com", list[0].DomainName)

	stored, err := repository.NewDomainRepository(db).Find(ctx, cat.ID, "domain.com")
	require.NoError(t, err)
	require.NotNil(t, stored.DisabledAt)
	assert.WithinDuration(t, now, *stored.DisabledAt, time.Second)

	err = svc.Disable(ctx, cat.ID, "domain.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDomainService_EntitiesByEmail(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewDomainService(db, allowlist.Static(allowlist.Parse(".archi.fr ira-nantes.fr")))

	names, err := svc.EntitiesByEmail(ctx, "user@ira-nantes.fr")
	require.NoError(t, err)
	assert.Empty(t, names, "no default entity configured")

	def := createDefaultCategory(t, db)
	zed := &models.Category{Name: "Zèbre", IDNumber: "zebre", MainEntity: true}
	ecole := &models.Category{Name: "École", IDNumber: "ecole", MainEntity: true}
	alpha := &models.Category{Name: "alpha", IDNumber: "alpha", MainEntity: true}
	cats := repository.NewCategoryRepository(db)
	for _, c := range []*models.Category{zed, ecole, alpha} {
		require.NoError(t, cats.Create(ctx, c))
		insertDomain(t, db, c.ID, ".archi.fr", false)
	}

	names, err = svc.EntitiesByEmail(ctx, "someone@lyon.archi.fr")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "École", "Zèbre"}, names)

	names, err = svc.EntitiesByEmail(ctx, "user@ira-nantes.fr")
	require.NoError(t, err)
	assert.Equal(t, []string{def.Name}, names)
}
