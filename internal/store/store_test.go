package store

import (
	"context"
	"testing"
	"time"

	"pdv-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreSuite struct {
	suite.Suite
	store    *Store
	ctx      context.Context
	user     *models.User
	category *models.Category
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	st, err := NewStore(DriverSQLite, ":memory:")
	s.Require().NoError(err)
	s.store = st
	s.ctx = context.Background()

	s.user = &models.User{Name: "Ana", Email: "ana@pdv.local", PasswordHash: "x", Role: models.RoleCashier}
	s.Require().NoError(s.store.CreateUser(s.ctx, s.user))

	s.category = &models.Category{Name: "Drinks", Active: true}
	s.Require().NoError(s.store.CreateCategory(s.ctx, s.category))
}

func (s *StoreSuite) TearDownTest() {
	s.store.Close()
}

func (s *StoreSuite) newProduct(name, price string, stock *int) *models.Product {
	p := &models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		CategoryID:    s.category.ID,
		Available:     true,
		StockQuantity: stock,
		TrackStock:    stock != nil,
	}
	s.Require().NoError(s.store.CreateProduct(s.ctx, p))
	return p
}

func (s *StoreSuite) insertOrder(number int64, status models.OrderStatus, createdAt time.Time, p *models.Product, qty int) *models.Order {
	subtotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
	o := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   number,
		Status:        status,
		Total:         subtotal,
		PaymentMethod: models.PaymentCash,
		UserID:        s.user.ID,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     createdAt.UTC(),
		Items: []models.OrderItem{
			{ProductID: p.ID, Quantity: qty, UnitPrice: p.Price, Subtotal: subtotal},
		},
	}
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		return tx.InsertOrder(s.ctx, o)
	}))
	return o
}

func (s *StoreSuite) TestMigrationsRecordLatestVersion() {
	v, err := s.store.SchemaVersion(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(v)
	s.Equal("1.2.0", v.String())

	s.NoError(s.store.Migrate(s.ctx))
}

func (s *StoreSuite) TestProductPriceRoundTrip() {
	p := s.newProduct("Coffee", "12.99", nil)

	got, err := s.store.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("12.99").Equal(got.Price))
	s.Equal("Coffee", got.Name)
	s.Nil(got.StockQuantity)
	s.False(got.TrackStock)
}

func (s *StoreSuite) TestGetProductNotFound() {
	_, err := s.store.GetProduct(s.ctx, "missing")
	s.True(models.IsNotFound(err))
}

func (s *StoreSuite) TestUpdateProduct() {
	p := s.newProduct("Tea", "3.50", nil)
	p.Price = decimal.RequireFromString("4.00")
	p.Available = false
	s.Require().NoError(s.store.UpdateProduct(s.ctx, p))

	got, err := s.store.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("4").Equal(got.Price))
	s.False(got.Available)

	available, err := s.store.ListProducts(s.ctx, models.ProductFilter{AvailableOnly: true})
	s.Require().NoError(err)
	s.Empty(available)
}

func (s *StoreSuite) TestDeleteSoldProductConflicts() {
	p := s.newProduct("Juice", "5.99", nil)
	s.insertOrder(1, models.OrderStatusPending, time.Now(), p, 1)

	err := s.store.DeleteProduct(s.ctx, p.ID)
	s.True(models.IsConflict(err))

	unsold := s.newProduct("Water", "2.00", nil)
	s.NoError(s.store.DeleteProduct(s.ctx, unsold.ID))
	_, err = s.store.GetProduct(s.ctx, unsold.ID)
	s.True(models.IsNotFound(err))
}

func (s *StoreSuite) TestDuplicateCategoryNameConflicts() {
	err := s.store.CreateCategory(s.ctx, &models.Category{Name: "Drinks"})
	s.True(models.IsConflict(err))
}

func (s *StoreSuite) TestDeleteCategoryRequiresStrategy() {
	s.newProduct("Soda", "6.00", nil)

	err := s.store.DeleteCategory(s.ctx, s.category.ID, "")
	s.True(models.IsValidation(err))
}

func (s *StoreSuite) TestDeleteCategoryReassign() {
	p := s.newProduct("Soda", "6.00", nil)

	s.Require().NoError(s.store.DeleteCategory(s.ctx, s.category.ID, models.CategoryDeleteReassign))

	got, err := s.store.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	fallback, err := s.store.EnsureDefaultCategory(s.ctx)
	s.Require().NoError(err)
	s.Equal(fallback.ID, got.CategoryID)

	err = s.store.DeleteCategory(s.ctx, fallback.ID, models.CategoryDeleteCascade)
	s.True(models.IsValidation(err))
}

func (s *StoreSuite) TestDeleteCategoryCascade() {
	p := s.newProduct("Soda", "6.00", nil)
	s.Require().NoError(s.store.DeleteCategory(s.ctx, s.category.ID, models.CategoryDeleteCascade))

	_, err := s.store.GetProduct(s.ctx, p.ID)
	s.True(models.IsNotFound(err))
}

func (s *StoreSuite) TestDeleteCategoryCascadeBlockedBySales() {
	p := s.newProduct("Soda", "6.00", nil)
	s.insertOrder(1, models.OrderStatusDelivered, time.Now(), p, 2)

	err := s.store.DeleteCategory(s.ctx, s.category.ID, models.CategoryDeleteCascade)
	s.True(models.IsConflict(err))

	_, err = s.store.GetCategory(s.ctx, s.category.ID)
	s.NoError(err)
}

func (s *StoreSuite) TestInsertAndGetOrder() {
	coffee := s.newProduct("Coffee", "12.99", nil)
	cake := s.newProduct("Cake", "5.99", nil)

	o := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   7,
		Status:        models.OrderStatusPending,
		Total:         decimal.RequireFromString("31.97"),
		PaymentMethod: models.PaymentPix,
		UserID:        s.user.ID,
		CreatedAt:     now(),
		UpdatedAt:     now(),
		Items: []models.OrderItem{
			{ProductID: coffee.ID, Quantity: 2, UnitPrice: coffee.Price, Subtotal: decimal.RequireFromString("25.98"), StockReserved: true},
			{ProductID: cake.ID, Quantity: 1, UnitPrice: cake.Price, Subtotal: cake.Price},
		},
	}
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error { return tx.InsertOrder(s.ctx, o) }))

	got, err := s.store.GetOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(int64(7), got.OrderNumber)
	s.Equal("Ana", got.UserName)
	s.True(decimal.RequireFromString("31.97").Equal(got.Total))
	s.Require().Len(got.Items, 2)
	s.Equal("Coffee", got.Items[0].ProductName)
	s.Equal("Cake", got.Items[1].ProductName)
	s.True(decimal.RequireFromString("25.98").Equal(got.Items[0].Subtotal))
	s.True(got.Items[0].StockReserved)
	s.False(got.Items[1].StockReserved)

	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		return tx.SetStockReserved(s.ctx, got.Items[0].ID, false)
	}))
	got, err = s.store.GetOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.False(got.Items[0].StockReserved)

	err = s.store.InTx(s.ctx, func(tx *Tx) error {
		return tx.SetStockReserved(s.ctx, "missing", true)
	})
	s.True(models.IsNotFound(err))
}

func (s *StoreSuite) TestDuplicateOrderNumberConflicts() {
	p := s.newProduct("Coffee", "1.00", nil)
	s.insertOrder(1, models.OrderStatusPending, time.Now(), p, 1)

	dup := &models.Order{
		ID: uuid.New().String(), OrderNumber: 1, Status: models.OrderStatusPending,
		Total: p.Price, PaymentMethod: models.PaymentCash, UserID: s.user.ID,
		CreatedAt: now(), UpdatedAt: now(),
	}
	err := s.store.InTx(s.ctx, func(tx *Tx) error { return tx.InsertOrder(s.ctx, dup) })
	s.True(models.IsConflict(err))
}

func (s *StoreSuite) TestSequenceNumbersIncrement() {
	var first, second int64
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		var err error
		first, err = tx.NextSequenceNumber(s.ctx)
		if err != nil {
			return err
		}
		second, err = tx.NextSequenceNumber(s.ctx)
		return err
	}))
	s.Equal(int64(1), first)
	s.Equal(int64(2), second)
}

func (s *StoreSuite) TestSequenceSkipsExistingNumbers() {
	p := s.newProduct("Coffee", "1.00", nil)
	s.insertOrder(41, models.OrderStatusPending, time.Now(), p, 1)

	var n int64
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		var err error
		n, err = tx.NextSequenceNumber(s.ctx)
		return err
	}))
	s.Equal(int64(42), n)

	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		var err error
		n, err = tx.NextMaxNumber(s.ctx)
		return err
	}))
	s.Equal(int64(42), n)
}

func (s *StoreSuite) TestStockDecrementAndRestore() {
	stock := 3
	p := s.newProduct("Sandwich", "9.90", &stock)

	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		ok, err := tx.DecrementStock(s.ctx, p.ID, 2)
		s.True(ok)
		return err
	}))

	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		ok, err := tx.DecrementStock(s.ctx, p.ID, 2)
		s.False(ok)
		return err
	}))

	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		ok, err := tx.RestoreStock(s.ctx, p.ID, 2)
		s.True(ok)
		return err
	}))

	got, err := s.store.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.StockQuantity)
	s.Equal(3, *got.StockQuantity)

	untracked := s.newProduct("Water", "2.00", nil)
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		ok, err := tx.RestoreStock(s.ctx, untracked.ID, 2)
		s.False(ok)
		return err
	}))
}

func (s *StoreSuite) TestRollbackDiscardsWrites() {
	stock := 5
	p := s.newProduct("Sandwich", "9.90", &stock)

	err := s.store.InTx(s.ctx, func(tx *Tx) error {
		if _, err := tx.DecrementStock(s.ctx, p.ID, 5); err != nil {
			return err
		}
		return models.NewValidationError("items", "boom")
	})
	s.True(models.IsValidation(err))

	got, err := s.store.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(5, *got.StockQuantity)
}

func (s *StoreSuite) TestUpdateOrderStatusOnlyTouchesStatus() {
	p := s.newProduct("Coffee", "2.50", nil)
	created := time.Now().Add(-time.Hour)
	o := s.insertOrder(1, models.OrderStatusPending, created, p, 2)

	later := now()
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error {
		return tx.UpdateOrderStatus(s.ctx, o.ID, models.OrderStatusPreparing, later)
	}))

	got, err := s.store.GetOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPreparing, got.Status)
	s.True(o.Total.Equal(got.Total))
	s.Equal(o.OrderNumber, got.OrderNumber)
	s.WithinDuration(created, got.CreatedAt, time.Second)
	s.WithinDuration(later, got.UpdatedAt, time.Second)

	err = s.store.InTx(s.ctx, func(tx *Tx) error {
		return tx.UpdateOrderStatus(s.ctx, "missing", models.OrderStatusReady, later)
	})
	s.True(models.IsNotFound(err))
}

func (s *StoreSuite) TestListOrdersFilterAndPaging() {
	p := s.newProduct("Coffee", "2.50", nil)
	base := time.Now().Add(-time.Hour)
	s.insertOrder(1, models.OrderStatusPending, base, p, 1)
	s.insertOrder(2, models.OrderStatusReady, base.Add(time.Minute), p, 1)
	s.insertOrder(3, models.OrderStatusPending, base.Add(2*time.Minute), p, 1)

	all, err := s.store.ListOrders(s.ctx, models.OrderFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(int64(3), all[0].OrderNumber)
	s.Len(all[0].Items, 1)

	pending := models.OrderStatusPending
	filtered, err := s.store.ListOrders(s.ctx, models.OrderFilter{Status: &pending, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal(int64(3), filtered[0].OrderNumber)

	count, err := s.store.CountOrders(s.ctx, models.OrderFilter{Status: &pending})
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *StoreSuite) TestSalesBetweenExcludesCancelledAndBounds() {
	p := s.newProduct("Coffee", "10.00", nil)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.insertOrder(1, models.OrderStatusDelivered, day.Add(9*time.Hour), p, 1)
	s.insertOrder(2, models.OrderStatusCancelled, day.Add(10*time.Hour), p, 1)
	s.insertOrder(3, models.OrderStatusPending, day.Add(24*time.Hour), p, 1)

	sales, err := s.store.SalesBetween(s.ctx, day, day.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(sales, 1)
	s.Equal(int64(1), sales[0].OrderNumber)

	items, err := s.store.SoldItemsBetween(s.ctx, day, day.Add(48*time.Hour))
	s.Require().NoError(err)
	s.Len(items, 2)
}

func (s *StoreSuite) TestIdempotencyKeyLookup() {
	p := s.newProduct("Coffee", "1.00", nil)
	key := "checkout-123"
	o := &models.Order{
		ID: uuid.New().String(), OrderNumber: 1, Status: models.OrderStatusPending,
		Total: p.Price, PaymentMethod: models.PaymentCash, UserID: s.user.ID,
		IdempotencyKey: &key, CreatedAt: now(), UpdatedAt: now(),
	}
	s.Require().NoError(s.store.InTx(s.ctx, func(tx *Tx) error { return tx.InsertOrder(s.ctx, o) }))

	got, err := s.store.GetOrderByIdempotencyKey(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(o.ID, got.ID)

	none, err := s.store.GetOrderByIdempotencyKey(s.ctx, "other")
	s.NoError(err)
	s.Nil(none)
}

func (s *StoreSuite) TestComments() {
	p := s.newProduct("Coffee", "1.00", nil)
	o := s.insertOrder(1, models.OrderStatusPending, time.Now(), p, 1)

	s.Require().NoError(s.store.CreateComment(s.ctx, &models.Comment{OrderID: o.ID, Content: "no sugar", AuthorName: "Ana"}))
	comments, err := s.store.ListComments(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Len(comments, 1)
	s.Equal("no sugar", comments[0].Content)

	err = s.store.CreateComment(s.ctx, &models.Comment{OrderID: "missing", Content: "x", AuthorName: "Ana"})
	s.True(models.IsNotFound(err))
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore("mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestUsersByEmail(t *testing.T) {
	st, err := NewStore(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	u := &models.User{Name: "Admin", Email: "admin@pdv.local", PasswordHash: "hash", Role: models.RoleAdmin}
	require.NoError(t, st.CreateUser(ctx, u))

	got, err := st.GetUserByEmail(ctx, "admin@pdv.local")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = st.CreateUser(ctx, &models.User{Name: "Other", Email: "admin@pdv.local", PasswordHash: "h", Role: models.RoleCashier})
	assert.True(t, models.IsConflict(err))
}
