package service

import (
	"context"
	"errors"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_decorator"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func (suite *CommerceTestSuite) requireTotals(cart *model.Cart, items int, amount string) {
	suite.T().Helper()
	require.Equal(suite.T(), items, cart.TotalItems())
	require.True(suite.T(), cart.TotalAmount().Equal(decimal.RequireFromString(amount)),
		"expected %s, got %s", amount, cart.TotalAmount())

	stored, err := suite.cart.Get(context.Background(), cart.UserID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), items, stored.TotalItems())
	require.True(suite.T(), stored.TotalAmount().Equal(cart.TotalAmount()))
}

// Scenario A
func (suite *CommerceTestSuite) TestCart_AddTwoUnits() {
	p := suite.seedProduct("100", 10)

	cart, err := suite.cart.Add(context.Background(), customer.UserID, p.ProductID, 2)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), cart.Items, 1)
	suite.requireTotals(cart, 2, "200")
}

func (suite *CommerceTestSuite) TestCart_TotalsFollowEveryMutation() {
	ctx := context.Background()
	mug := suite.seedProduct("100", 10)
	pen := suite.seedProduct("25.50", 10)

	cart, err := suite.cart.Add(ctx, customer.UserID, mug.ProductID, 1)
	require.NoError(suite.T(), err)
	suite.requireTotals(cart, 1, "100")

	cart, err = suite.cart.Add(ctx, customer.UserID, pen.ProductID, 2)
	require.NoError(suite.T(), err)
	suite.requireTotals(cart, 3, "151")

	cart, err = suite.cart.Add(ctx, customer.UserID, mug.ProductID, 2)
	require.NoError(suite.T(), err)
	suite.requireTotals(cart, 5, "351")

	cart, err = suite.cart.SetQuantity(ctx, customer.UserID, pen.ProductID, 1)
	require.NoError(suite.T(), err)
	suite.requireTotals(cart, 4, "325.5")

	cart, err = suite.cart.Remove(ctx, customer.UserID, mug.ProductID)
	require.NoError(suite.T(), err)
	suite.requireTotals(cart, 1, "25.5")

	require.NoError(suite.T(), suite.cart.Clear(ctx, customer.UserID))
	cart, err = suite.cart.Get(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	suite.requireTotals(cart, 0, "0")
}

func (suite *CommerceTestSuite) TestCart_AddChecksCumulativeQuantity() {
	ctx := context.Background()
	p := suite.seedProduct("100", 5)

	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 3)
	require.NoError(suite.T(), err)

	_, err = suite.cart.Add(ctx, customer.UserID, p.ProductID, 3)
	var stockErr *errs.InsufficientStockError
	require.True(suite.T(), errors.As(err, &stockErr))
	require.Equal(suite.T(), 6, stockErr.Requested)
	require.Equal(suite.T(), 5, stockErr.Available)

	cart, err := suite.cart.Get(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 3, cart.TotalItems())
}

func (suite *CommerceTestSuite) TestCart_PriceResnapshotOnMutation() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)

	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)

	repriced := suite.product(p.ProductID)
	repriced.Price = decimal.NewFromInt(80)
	suite.store.UpdateProduct(repriced)

	cart, err := suite.cart.Get(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), cart.Items[0].Price.Equal(decimal.NewFromInt(100)), "get keeps the snapshot")

	cart, err = suite.cart.SetQuantity(ctx, customer.UserID, p.ProductID, 2)
	require.NoError(suite.T(), err)
	require.True(suite.T(), cart.Items[0].Price.Equal(decimal.NewFromInt(80)))
	require.True(suite.T(), cart.TotalAmount().Equal(decimal.NewFromInt(160)))
}

func (suite *CommerceTestSuite) TestCart_RejectsInvalidQuantity() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)

	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 0)
	require.ErrorIs(suite.T(), err, errs.ErrInvalidArgument)

	_, err = suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)

	_, err = suite.cart.SetQuantity(ctx, customer.UserID, p.ProductID, 0)
	require.ErrorIs(suite.T(), err, errs.ErrInvalidArgument)

	_, err = suite.cart.SetQuantity(ctx, customer.UserID, p.ProductID, -2)
	require.ErrorIs(suite.T(), err, errs.ErrInvalidArgument)

	_, err = suite.cart.SetQuantity(ctx, customer.UserID, p.ProductID, 11)
	require.ErrorIs(suite.T(), err, errs.ErrInsufficientStock)
}

func (suite *CommerceTestSuite) TestCart_UnavailableProducts() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	inactive := suite.product(p.ProductID)
	inactive.IsActive = false
	suite.store.UpdateProduct(inactive)

	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.ErrorIs(suite.T(), err, errs.ErrProductUnavailable)

	_, err = suite.cart.Add(ctx, customer.UserID, 4040, 1)
	require.ErrorIs(suite.T(), err, errs.ErrNotFound)
}

func (suite *CommerceTestSuite) TestCart_RemoveAbsentItem() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)

	_, err := suite.cart.Remove(ctx, customer.UserID, p.ProductID)
	require.ErrorIs(suite.T(), err, errs.ErrNotFound)

	_, err = suite.cart.SetQuantity(ctx, customer.UserID, p.ProductID, 1)
	require.ErrorIs(suite.T(), err, errs.ErrNotFound)
}

func (suite *CommerceTestSuite) TestCart_ClearIsIdempotent() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.cart.Clear(ctx, customer.UserID))
	require.NoError(suite.T(), suite.cart.Clear(ctx, customer.UserID))
}

func (suite *CommerceTestSuite) TestCart_GetPrunesInactiveAndMissing() {
	ctx := context.Background()
	keep := suite.seedProduct("100", 10)
	deactivated := suite.seedProduct("50", 10)
	deleted := suite.seedProduct("20", 10)

	for _, p := range []*model.Product{keep, deactivated, deleted} {
		_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
		require.NoError(suite.T(), err)
	}

	d := suite.product(deactivated.ProductID)
	d.IsActive = false
	suite.store.UpdateProduct(d)

	gone := suite.product(deleted.ProductID)
	gone.DeletedAt.Valid = true
	suite.store.UpdateProduct(gone)

	cart, err := suite.cart.Get(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), cart.Items, 1)
	require.Equal(suite.T(), keep.ProductID, cart.Items[0].ProductID)

	// 已寫回
	stored, err := suite.store.GetCartByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stored.Items, 1)
}

// frozenProductCache 第一次寫入後就不再更新, 也不理會 evict
type frozenProductCache struct {
	mu       sync.Mutex
	products map[uint]model.Product
}

func (f *frozenProductCache) GetProduct(ctx context.Context, productID uint) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, redis_repo.ErrCacheMiss
	}
	return &p, nil
}

func (f *frozenProductCache) SetProduct(ctx context.Context, product *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[product.ProductID]; !ok {
		f.products[product.ProductID] = *product
	}
	return nil
}

func (f *frozenProductCache) EvictProducts(ctx context.Context, productIDs ...uint) error {
	return nil
}

func (suite *CommerceTestSuite) TestCart_MutationsReadProductsFromDB() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)

	cache := &frozenProductCache{products: map[uint]model.Product{}}
	store := redis_decorator.NewCacheAsideStore(suite.store, cache)
	cart := NewCartService(store, zerolog.Nop())

	// 預先讓 cache 存到 active / stock 10 的版本
	_, err := store.GetProductByID(ctx, p.ProductID)
	require.NoError(suite.T(), err)
	_, err = cart.Add(ctx, customer.UserID, p.ProductID, 2)
	require.NoError(suite.T(), err)

	low := suite.product(p.ProductID)
	low.Stock = 3
	suite.store.UpdateProduct(low)

	_, err = cart.SetQuantity(ctx, customer.UserID, p.ProductID, 5)
	var stockErr *errs.InsufficientStockError
	require.True(suite.T(), errors.As(err, &stockErr))
	require.Equal(suite.T(), 3, stockErr.Available)

	_, err = cart.Add(ctx, customer.UserID, p.ProductID, 2)
	require.ErrorIs(suite.T(), err, errs.ErrInsufficientStock)

	retired := suite.product(p.ProductID)
	retired.IsActive = false
	suite.store.UpdateProduct(retired)

	_, err = cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.ErrorIs(suite.T(), err, errs.ErrProductUnavailable)
	_, err = cart.SetQuantity(ctx, customer.UserID, p.ProductID, 1)
	require.ErrorIs(suite.T(), err, errs.ErrProductUnavailable)

	stored, err := suite.store.GetCartByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stored.Items, 1)
	require.Equal(suite.T(), 2, stored.Items[0].Quantity)

	cached, err := cache.GetProduct(ctx, p.ProductID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), cached.IsActive, "cache still holds the stale copy")
}
