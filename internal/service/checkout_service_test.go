package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/pkg/util"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func requireDecimal(t require.TestingT, expected string, actual decimal.Decimal) {
	require.True(t, actual.Equal(decimal.RequireFromString(expected)), "expected %s, got %s", expected, actual)
}

func (suite *CommerceTestSuite) requireOrderTotalsConsistent(order *model.Order) {
	require.True(suite.T(), order.Subtotal.Add(order.ShippingCost).Equal(order.TotalAmount))
	require.True(suite.T(), util.CalculateOrderSubtotal(order.Items).Equal(order.Subtotal))
}

// Scenario B
func (suite *CommerceTestSuite) TestCheckout_SubtotalBelowThreshold() {
	ctx := context.Background()
	p := suite.seedProduct("2000", 10)

	order := suite.placeOrder(customer, map[*model.Product]int{p: 2})
	requireDecimal(suite.T(), "4000", order.Subtotal)
	requireDecimal(suite.T(), "250", order.ShippingCost)
	requireDecimal(suite.T(), "4250", order.TotalAmount)
	suite.requireOrderTotalsConsistent(order)

	require.Equal(suite.T(), model.OrderStatusPending, order.Status)
	require.Equal(suite.T(), model.PaymentStatusPending, order.PaymentStatus)
	require.Regexp(suite.T(), `^ORD2506\d{4}$`, order.OrderNumber)
	require.Len(suite.T(), order.StatusHistory, 1)
	require.Equal(suite.T(), model.OrderStatusPending, order.StatusHistory[0].Status)
	require.Equal(suite.T(), customer.Actor(), order.StatusHistory[0].Actor)

	after := suite.product(p.ProductID)
	require.Equal(suite.T(), 8, after.Stock)
	require.Equal(suite.T(), 2, after.SoldCount)

	cart, err := suite.cart.Get(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), cart.Items)

	stored, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), order.OrderNumber, stored.OrderNumber)
	require.Len(suite.T(), stored.Items, 1)
	require.Equal(suite.T(), p.Name, stored.Items[0].Name)
	require.Equal(suite.T(), p.ImageURL, stored.Items[0].Image)

	events := suite.publishedEvents()
	require.Len(suite.T(), events, 1)
	require.Equal(suite.T(), producer.OrderCreated, events[0].EventType)
	require.Equal(suite.T(), order.OrderID, events[0].OrderID)
}

// Scenario C
func (suite *CommerceTestSuite) TestCheckout_SubtotalAboveThreshold() {
	p := suite.seedProduct("3000", 10)

	order := suite.placeOrder(customer, map[*model.Product]int{p: 2})
	requireDecimal(suite.T(), "6000", order.Subtotal)
	requireDecimal(suite.T(), "0", order.ShippingCost)
	requireDecimal(suite.T(), "6000", order.TotalAmount)
	suite.requireOrderTotalsConsistent(order)
}

func (suite *CommerceTestSuite) TestCheckout_ShippingBoundary() {
	atThreshold := suite.seedProduct("5000", 1)
	order := suite.placeOrder(customer, map[*model.Product]int{atThreshold: 1})
	requireDecimal(suite.T(), "250", order.ShippingCost)
	requireDecimal(suite.T(), "5250", order.TotalAmount)

	aboveThreshold := suite.seedProduct("5001", 1)
	order = suite.placeOrder(customer, map[*model.Product]int{aboveThreshold: 1})
	requireDecimal(suite.T(), "0", order.ShippingCost)
	requireDecimal(suite.T(), "5001", order.TotalAmount)
}

func (suite *CommerceTestSuite) TestShippingPolicy_Cost() {
	policy := DefaultShippingPolicy()
	cases := map[string]string{
		"0":       "250",
		"4999.99": "250",
		"5000":    "250",
		"5000.01": "0",
		"12000":   "0",
	}
	for subtotal, fee := range cases {
		requireDecimal(suite.T(), fee, policy.Cost(decimal.RequireFromString(subtotal)))
	}
}

func (suite *CommerceTestSuite) TestCheckout_EmptyCart() {
	ctx := context.Background()

	_, err := suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.ErrorIs(suite.T(), err, errs.ErrEmptyCart)

	p := suite.seedProduct("100", 1)
	_, err = suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.cart.Clear(ctx, customer.UserID))

	_, err = suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.ErrorIs(suite.T(), err, errs.ErrEmptyCart)
	require.Empty(suite.T(), suite.publishedEvents())
}

func (suite *CommerceTestSuite) TestCheckout_ValidatesRequest() {
	ctx := context.Background()
	req := suite.checkoutRequest()
	req.ShippingAddress.City = " "
	_, err := suite.checkout.Checkout(ctx, customer, req)
	require.ErrorIs(suite.T(), err, errs.ErrInvalidArgument)
	require.Contains(suite.T(), err.Error(), "city")

	req = suite.checkoutRequest()
	req.PaymentMethod = "bitcoin"
	_, err = suite.checkout.Checkout(ctx, customer, req)
	require.ErrorIs(suite.T(), err, errs.ErrInvalidArgument)
}

func (suite *CommerceTestSuite) TestCheckout_UsesCurrentPrice() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 2)
	require.NoError(suite.T(), err)

	repriced := suite.product(p.ProductID)
	repriced.Price = decimal.NewFromInt(120)
	suite.store.UpdateProduct(repriced)

	order, err := suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.NoError(suite.T(), err)
	requireDecimal(suite.T(), "120", order.Items[0].Price)
	requireDecimal(suite.T(), "240", order.Subtotal)
	requireDecimal(suite.T(), "490", order.TotalAmount)
}

func (suite *CommerceTestSuite) TestCheckout_InactiveProductAbortsWithoutStockChange() {
	ctx := context.Background()
	ok := suite.seedProduct("100", 10)
	retired := suite.seedProduct("100", 10)
	for _, p := range []*model.Product{ok, retired} {
		_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
		require.NoError(suite.T(), err)
	}

	r := suite.product(retired.ProductID)
	r.IsActive = false
	suite.store.UpdateProduct(r)

	_, err := suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
	var unavailable *errs.ProductUnavailableError
	require.True(suite.T(), errors.As(err, &unavailable))
	require.Equal(suite.T(), retired.ProductID, unavailable.ProductID)

	require.Equal(suite.T(), 10, suite.product(ok.ProductID).Stock)
	stored, err := suite.store.GetCartByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stored.Items, 2, "cart is untouched on failure")
}

func (suite *CommerceTestSuite) TestCheckout_InsufficientStockIsAtomic() {
	ctx := context.Background()
	first := suite.seedProduct("100", 10)
	second := suite.seedProduct("100", 5)
	_, err := suite.cart.Add(ctx, customer.UserID, first.ProductID, 3)
	require.NoError(suite.T(), err)
	_, err = suite.cart.Add(ctx, customer.UserID, second.ProductID, 4)
	require.NoError(suite.T(), err)

	// 其他人先買走
	_, err = suite.ledger.ReserveAndCommit(ctx, second.ProductID, 3)
	require.NoError(suite.T(), err)

	_, err = suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
	var stockErr *errs.InsufficientStockError
	require.True(suite.T(), errors.As(err, &stockErr))
	require.Equal(suite.T(), second.ProductID, stockErr.ProductID)
	require.Equal(suite.T(), 2, stockErr.Available)

	require.Equal(suite.T(), 10, suite.product(first.ProductID).Stock)
	require.Equal(suite.T(), 0, suite.product(first.ProductID).SoldCount)
	require.Equal(suite.T(), 2, suite.product(second.ProductID).Stock)

	orders, err := suite.store.GetOrdersByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), orders)
}

// failingLedger 第 failOn 次 ReserveAndCommit 回傳錯誤, 之前的扣庫存已經寫入交易
type failingLedger struct {
	IInventoryLedger
	failOn int
	calls  *int
}

func (f failingLedger) WithTx(repo db.IProductRepository) IInventoryLedger {
	return failingLedger{IInventoryLedger: f.IInventoryLedger.WithTx(repo), failOn: f.failOn, calls: f.calls}
}

func (f failingLedger) ReserveAndCommit(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	*f.calls++
	if *f.calls == f.failOn {
		return nil, errors.New("ledger unavailable")
	}
	return f.IInventoryLedger.ReserveAndCommit(ctx, productID, quantity)
}

func (suite *CommerceTestSuite) TestCheckout_LedgerFailureAfterFirstCommitRollsBack() {
	ctx := context.Background()
	first := suite.seedProduct("100", 10)
	second := suite.seedProduct("200", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, first.ProductID, 3)
	require.NoError(suite.T(), err)
	_, err = suite.cart.Add(ctx, customer.UserID, second.ProductID, 3)
	require.NoError(suite.T(), err)

	calls := 0
	ledger := failingLedger{IInventoryLedger: suite.ledger, failOn: 2, calls: &calls}
	checkout := NewCheckoutService(suite.store, ledger, suite.publisher, suite.numbers, DefaultShippingPolicy(), zerolog.Nop())

	_, err = checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.Error(suite.T(), err)
	require.Equal(suite.T(), 2, calls)

	for _, p := range []*model.Product{first, second} {
		stored := suite.product(p.ProductID)
		require.Equal(suite.T(), 10, stored.Stock)
		require.Equal(suite.T(), 0, stored.SoldCount)
	}

	orders, err := suite.store.GetOrdersByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), orders)
	require.Empty(suite.T(), suite.publishedEvents())

	cart, err := suite.store.GetCartByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), cart.Items, 2)
	for _, item := range cart.Items {
		require.Equal(suite.T(), 3, item.Quantity)
	}
}

func (suite *CommerceTestSuite) TestCheckout_ReadsCartForUpdate() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)

	store := newRecordingStore(suite.store)
	checkout := NewCheckoutService(store, suite.ledger, suite.publisher, suite.numbers, DefaultShippingPolicy(), zerolog.Nop())
	_, err = checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.NoError(suite.T(), err)

	calls := store.Calls()
	require.Contains(suite.T(), calls, "GetCartByUserIDForUpdate")
	require.NotContains(suite.T(), calls, "GetCartByUserID")
}

func (suite *CommerceTestSuite) TestCheckout_ConcurrentSameCartPlacesOneOrder() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 2)
	require.NoError(suite.T(), err)

	const attempts = 4
	var wg sync.WaitGroup
	errCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	placed := 0
	for err := range errCh {
		if err == nil {
			placed++
			continue
		}
		require.ErrorIs(suite.T(), err, errs.ErrEmptyCart)
	}
	require.Equal(suite.T(), 1, placed)
	require.Equal(suite.T(), 8, suite.product(p.ProductID).Stock)

	orders, err := suite.store.GetOrdersByUserID(ctx, customer.UserID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders, 1)
}

func (suite *CommerceTestSuite) TestCheckout_IdempotencyKeyReplays() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 2)
	require.NoError(suite.T(), err)

	req := suite.checkoutRequest()
	req.IdempotencyKey = "k-1"
	first, err := suite.checkout.Checkout(ctx, customer, req)
	require.NoError(suite.T(), err)

	second, err := suite.checkout.Checkout(ctx, customer, req)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), first.OrderID, second.OrderID)
	require.Equal(suite.T(), 8, suite.product(p.ProductID).Stock)
	require.Len(suite.T(), suite.publishedEvents(), 1)

	// 其他 user 用同一個 key 不受影響
	_, err = suite.cart.Add(ctx, stranger.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)
	other, err := suite.checkout.Checkout(ctx, stranger, req)
	require.NoError(suite.T(), err)
	require.NotEqual(suite.T(), first.OrderID, other.OrderID)
}

func (suite *CommerceTestSuite) TestCheckout_OrderNumberCollisionRetries() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.CreateOrder(ctx, &model.Order{OrderID: "taken", OrderNumber: "ORD25060001", UserID: 50}))

	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})
	require.Equal(suite.T(), "ORD25060002", order.OrderNumber)
}

func (suite *CommerceTestSuite) TestCheckout_OrderNumberExhausted() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.CreateOrder(ctx, &model.Order{OrderID: "taken", OrderNumber: "ORD25060007", UserID: 50}))
	suite.numbers.Rand = func(int) int { return 7 }

	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)

	_, err = suite.checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.ErrorIs(suite.T(), err, ErrOrderNumberExhausted)
	require.Equal(suite.T(), 10, suite.product(p.ProductID).Stock)
}

// blindNumberStore 讓撞號只會在 insert 時被發現
type blindNumberStore struct {
	db.UnifiedDB
}

func (b blindNumberStore) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	return false, nil
}

func (b blindNumberStore) ExecTx(ctx context.Context, fn func(tx db.UnifiedDB) error) error {
	return b.UnifiedDB.ExecTx(ctx, func(tx db.UnifiedDB) error {
		return fn(blindNumberStore{UnifiedDB: tx})
	})
}

func (suite *CommerceTestSuite) TestCheckout_RetriesOnInsertConflict() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.CreateOrder(ctx, &model.Order{OrderID: "taken", OrderNumber: "ORD25060001", UserID: 50}))

	checkout := NewCheckoutService(blindNumberStore{UnifiedDB: suite.store}, suite.ledger, nil, suite.numbers, DefaultShippingPolicy(), zerolog.Nop())
	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)

	order, err := checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "ORD25060002", order.OrderNumber)
	require.Equal(suite.T(), 9, suite.product(p.ProductID).Stock)
}

func (suite *CommerceTestSuite) TestCheckout_PublishFailureDoesNotFailOrder() {
	suite.publishErr = errors.New("broker down")
	p := suite.seedProduct("100", 10)

	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})
	require.NotEmpty(suite.T(), order.OrderID)
	require.Equal(suite.T(), 9, suite.product(p.ProductID).Stock)
}

func (suite *CommerceTestSuite) TestCheckout_ConfigurablePolicy() {
	ctx := context.Background()
	policy := ShippingPolicy{FreeThreshold: decimal.NewFromInt(100), FlatFee: decimal.NewFromInt(60)}
	numbers := &util.OrderNumberGenerator{Prefix: "SF", Now: time.Now, Rand: func(int) int { return 42 }}
	checkout := NewCheckoutService(suite.store, suite.ledger, suite.publisher, numbers, policy, zerolog.Nop())

	p := suite.seedProduct("100", 10)
	_, err := suite.cart.Add(ctx, customer.UserID, p.ProductID, 1)
	require.NoError(suite.T(), err)

	order, err := checkout.Checkout(ctx, customer, suite.checkoutRequest())
	require.NoError(suite.T(), err)
	requireDecimal(suite.T(), "60", order.ShippingCost)
	require.Regexp(suite.T(), `^SF\d{4}0042$`, order.OrderNumber)
}
