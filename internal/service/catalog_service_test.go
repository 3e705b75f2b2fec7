package service

import (
	"context"
	"testing"

	"pdv-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogProductLifecycle(t *testing.T) {
	env := newTestEnv(t, strictConfig())
	catalog := NewCatalogService(env.store)
	ctx := context.Background()

	p, err := catalog.CreateProduct(ctx, &ProductRequest{
		Name:       "  Espresso ",
		Price:      decimal.RequireFromString("6.5"),
		CategoryID: env.category.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Espresso", p.Name)
	assert.True(t, p.Available)
	assert.Equal(t, "6.50", p.Price.StringFixed(2))

	unavailable := false
	updated, err := catalog.UpdateProduct(ctx, p.ID, &ProductRequest{
		Name: "Espresso", Price: decimal.RequireFromString("7.00"),
		CategoryID: env.category.ID, Available: &unavailable,
	})
	require.NoError(t, err)
	assert.False(t, updated.Available)

	list, err := catalog.ListProducts(ctx, models.ProductFilter{CategoryID: env.category.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, catalog.DeleteProduct(ctx, p.ID))
	_, err = catalog.GetProduct(ctx, p.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestCatalogProductValidation(t *testing.T) {
	env := newTestEnv(t, strictConfig())
	catalog := NewCatalogService(env.store)
	ctx := context.Background()

	_, err := catalog.CreateProduct(ctx, &ProductRequest{Name: "Bad", Price: decimal.RequireFromString("-1")})
	assert.True(t, models.IsValidation(err))

	_, err = catalog.CreateProduct(ctx, &ProductRequest{Name: "Bad", Price: decimal.RequireFromString("1.999")})
	assert.True(t, models.IsValidation(err))

	_, err = catalog.CreateProduct(ctx, &ProductRequest{Name: "Bad", Price: decimal.RequireFromString("1"), TrackStock: true})
	assert.True(t, models.IsValidation(err))

	_, err = catalog.CreateProduct(ctx, &ProductRequest{Name: "Bad", Price: decimal.RequireFromString("1"), CategoryID: "ghost"})
	assert.True(t, models.IsNotFound(err))
}

func TestCatalogProductWithoutCategoryUsesDefault(t *testing.T) {
	env := newTestEnv(t, strictConfig())
	catalog := NewCatalogService(env.store)
	ctx := context.Background()

	p, err := catalog.CreateProduct(ctx, &ProductRequest{Name: "Mystery", Price: decimal.RequireFromString("1.00")})
	require.NoError(t, err)

	c, err := catalog.GetCategory(ctx, p.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCategoryName, c.Name)

	_, err = catalog.UpdateCategory(ctx, c.ID, &CategoryRequest{Name: "Renamed"})
	assert.True(t, models.IsValidation(err))
}

func TestCatalogDeleteCategoryStrategies(t *testing.T) {
	env := newTestEnv(t, strictConfig())
	catalog := NewCatalogService(env.store)
	ctx := context.Background()

	drinks, err := catalog.CreateCategory(ctx, &CategoryRequest{Name: "Drinks", Color: "#00F"})
	require.NoError(t, err)
	_, err = catalog.CreateProduct(ctx, &ProductRequest{Name: "Cola", Price: decimal.RequireFromString("4"), CategoryID: drinks.ID})
	require.NoError(t, err)

	err = catalog.DeleteCategory(ctx, drinks.ID, "")
	assert.True(t, models.IsValidation(err), "products require an explicit strategy")

	err = catalog.DeleteCategory(ctx, drinks.ID, "merge")
	assert.True(t, models.IsValidation(err))

	require.NoError(t, catalog.DeleteCategory(ctx, drinks.ID, "reassign"))
	_, err = catalog.GetCategory(ctx, drinks.ID)
	assert.True(t, models.IsNotFound(err))

	empty, err := catalog.CreateCategory(ctx, &CategoryRequest{Name: "Empty"})
	require.NoError(t, err)
	assert.NoError(t, catalog.DeleteCategory(ctx, empty.ID, ""))

	_, err = catalog.CreateCategory(ctx, &CategoryRequest{Name: "Menu"})
	assert.True(t, models.IsConflict(err))
}

func TestCatalogDeleteSoldProductConflicts(t *testing.T) {
	env := newTestEnv(t, strictConfig())
	catalog := NewCatalogService(env.store)
	p := env.product(t, "Burger", "12.99", nil)
	env.order(t, models.PaymentCash, OrderItemRequest{ProductID: p.ID, Quantity: 1})

	err := catalog.DeleteProduct(context.Background(), p.ID)
	assert.True(t, models.IsConflict(err))
}
