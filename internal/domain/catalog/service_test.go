package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"github.com/your-org/storefront/internal/pkg/testutil"
	"gorm.io/gorm"
)

func seedCatalog(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewDB(t, &Category{}, &Product{})

	games := Category{Name: "Games"}
	books := Category{Name: "Books"}
	empty := Category{Name: "Posters"}
	require.NoError(t, db.Create(&games).Error)
	require.NoError(t, db.Create(&books).Error)
	require.NoError(t, db.Create(&empty).Error)

	products := []Product{
		{Name: "Zelda", Price: decimal.RequireFromString("59.99"), CategoryID: games.ID},
		{Name: "Asteroids", Price: decimal.RequireFromString("9.50"), CategoryID: games.ID},
		{Name: "Dune", Price: decimal.RequireFromString("12.00"), CategoryID: books.ID},
	}
	require.NoError(t, db.Create(&products).Error)
	return db
}

func TestGetCategoriesSorted(t *testing.T) {
	svc := NewService(seedCatalog(t))

	categories, err := svc.GetCategoriesSorted(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Books", "Games", "Posters"}, names)
}

func TestGetProductsByCategory(t *testing.T) {
	svc := NewService(seedCatalog(t))
	ctx := context.Background()

	products, err := svc.GetProductsByCategory(ctx, "Games")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Asteroids", products[0].Name)
	assert.Equal(t, "Zelda", products[1].Name)

	products, err = svc.GetProductsByCategory(ctx, "Posters")
	require.NoError(t, err)
	assert.Empty(t, products)

	_, err = svc.GetProductsByCategory(ctx, "Music")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestGetProductByNameAndID(t *testing.T) {
	svc := NewService(seedCatalog(t))
	ctx := context.Background()

	dune, err := svc.GetProductByName(ctx, "Dune")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12").Equal(dune.Price))
	require.NotNil(t, dune.Category)
	assert.Equal(t, "Books", dune.Category.Name)

	byID, err := svc.GetProductByID(ctx, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", byID.Name)

	_, err = svc.GetProductByName(ctx, "Missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.GetProductByID(ctx, 9999)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
