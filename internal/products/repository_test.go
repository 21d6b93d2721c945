package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

func TestRepositoryFindByIDAndName(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	created, err := repo.Create(ctx, &models.Product{
		Name:           "Heirloom Tomatoes",
		InventoryCount: 12,
		Metadata:       datatypes.JSON(`{"inventory":12,"farm":"north"}`),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, byID.InventoryCount)
	assert.JSONEq(t, `{"inventory":12,"farm":"north"}`, string(byID.Metadata))

	byName, err := repo.FindByName(ctx, "Heirloom Tomatoes")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = repo.FindByName(ctx, "heirloom tomatoes")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryCompareAndSetInventory(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	p, err := repo.Create(ctx, &models.Product{Name: "Basil", InventoryCount: 5})
	require.NoError(t, err)

	ok, err := repo.CompareAndSetInventory(ctx, p.ID, 4, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected count must not write")

	ok, err = repo.CompareAndSetInventory(ctx, p.ID, 5, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.InventoryCount)

	_, err = repo.CompareAndSetInventory(ctx, p.ID, 3, -1)
	require.Error(t, err, "check constraint keeps inventory non-negative")
}
