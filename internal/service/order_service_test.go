package service

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func (suite *CommerceTestSuite) advance(orderID string, statuses ...model.OrderStatus) {
	for _, status := range statuses {
		_, err := suite.orders.UpdateStatus(context.Background(), admin, orderID, UpdateStatusRequest{Status: status})
		require.NoError(suite.T(), err)
	}
}

// Scenario D
func (suite *CommerceTestSuite) TestCancel_PendingRestoresStock() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 3})
	require.Equal(suite.T(), 7, suite.product(p.ProductID).Stock)

	cancelled, err := suite.orders.Cancel(ctx, customer, order.OrderID, "changed my mind")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusCancelled, cancelled.Status)
	require.NotNil(suite.T(), cancelled.CancelledAt)

	after := suite.product(p.ProductID)
	require.Equal(suite.T(), 10, after.Stock)
	require.Equal(suite.T(), 0, after.SoldCount)

	stored, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusCancelled, stored.Status)
	require.NotNil(suite.T(), stored.CancelledAt)
	require.Len(suite.T(), stored.StatusHistory, 2)
	require.Equal(suite.T(), model.OrderStatusPending, stored.StatusHistory[0].Status)
	require.Equal(suite.T(), model.OrderStatusCancelled, stored.StatusHistory[1].Status)
	require.Contains(suite.T(), stored.StatusHistory[1].Note, "changed my mind")

	events := suite.publishedEvents()
	require.Len(suite.T(), events, 2)
	require.Equal(suite.T(), producer.OrderStatusChanged, events[1].EventType)
	require.Equal(suite.T(), model.OrderStatusPending, events[1].PreviousStatus)
}

func (suite *CommerceTestSuite) TestCancel_Confirmed() {
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})
	suite.advance(order.OrderID, model.OrderStatusConfirmed)

	cancelled, err := suite.orders.Cancel(context.Background(), customer, order.OrderID, "")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusCancelled, cancelled.Status)
	require.Equal(suite.T(), 10, suite.product(p.ProductID).Stock)
}

// Scenario E
func (suite *CommerceTestSuite) TestCancel_ShippedIsRejected() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 2})
	suite.advance(order.OrderID, model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped)

	before, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)

	_, err = suite.orders.Cancel(ctx, customer, order.OrderID, "")
	require.ErrorIs(suite.T(), err, errs.ErrInvalidTransition)
	var transitionErr *errs.InvalidTransitionError
	require.True(suite.T(), errors.As(err, &transitionErr))
	require.Equal(suite.T(), string(model.OrderStatusShipped), transitionErr.From)
	require.Contains(suite.T(), err.Error(), "shipped")

	after, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusShipped, after.Status)
	require.Nil(suite.T(), after.CancelledAt)
	require.Len(suite.T(), after.StatusHistory, len(before.StatusHistory))
	require.Equal(suite.T(), 8, suite.product(p.ProductID).Stock)
	require.Equal(suite.T(), 2, suite.product(p.ProductID).SoldCount)
}

func (suite *CommerceTestSuite) TestCancel_FromEveryOtherStateIsRejected() {
	ctx := context.Background()
	for _, path := range [][]model.OrderStatus{
		{model.OrderStatusConfirmed, model.OrderStatusProcessing},
		{model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered},
		{model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusReturned},
		{model.OrderStatusCancelled},
	} {
		p := suite.seedProduct("100", 10)
		order := suite.placeOrder(customer, map[*model.Product]int{p: 1})
		suite.advance(order.OrderID, path...)
		stock := suite.product(p.ProductID).Stock

		_, err := suite.orders.Cancel(ctx, customer, order.OrderID, "")
		require.ErrorIs(suite.T(), err, errs.ErrInvalidTransition, "from %s", path[len(path)-1])
		require.Equal(suite.T(), stock, suite.product(p.ProductID).Stock)
	}
}

func (suite *CommerceTestSuite) TestCancel_Authorization() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})

	_, err := suite.orders.Cancel(ctx, stranger, order.OrderID, "")
	require.ErrorIs(suite.T(), err, errs.ErrUnauthorized)
	require.Equal(suite.T(), 9, suite.product(p.ProductID).Stock)

	_, err = suite.orders.Cancel(ctx, admin, order.OrderID, "fraud")
	require.NoError(suite.T(), err)

	_, err = suite.orders.Cancel(ctx, customer, "missing", "")
	require.ErrorIs(suite.T(), err, errs.ErrNotFound)
}

func (suite *CommerceTestSuite) TestCancel_PaidOrderIsRefunded() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})

	paid, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	paid.PaymentStatus = model.PaymentStatusPaid
	require.NoError(suite.T(), suite.store.UpdateOrderStatus(ctx, paid))

	cancelled, err := suite.orders.Cancel(ctx, customer, order.OrderID, "")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.PaymentStatusRefunded, cancelled.PaymentStatus)
}

func (suite *CommerceTestSuite) TestUpdateStatus_HappyPath() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})

	suite.advance(order.OrderID, model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped)
	delivered, err := suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusDelivered, Note: "signed"})
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), delivered.DeliveredAt)

	stored, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stored.StatusHistory, 5)
	for i, status := range []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusProcessing,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
	} {
		require.Equal(suite.T(), status, stored.StatusHistory[i].Status)
		require.False(suite.T(), stored.StatusHistory[i].Override)
	}
	require.Equal(suite.T(), admin.Actor(), stored.StatusHistory[4].Actor)
	require.Equal(suite.T(), 9, suite.product(p.ProductID).Stock, "only cancellation touches stock")
}

func (suite *CommerceTestSuite) TestUpdateStatus_Rejections() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})

	_, err := suite.orders.UpdateStatus(ctx, customer, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusConfirmed})
	require.ErrorIs(suite.T(), err, errs.ErrUnauthorized)

	_, err = suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: "lost"})
	require.ErrorIs(suite.T(), err, errs.ErrInvalidArgument)

	_, err = suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusPending})
	require.ErrorIs(suite.T(), err, errs.ErrInvalidTransition)

	_, err = suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusShipped})
	require.ErrorIs(suite.T(), err, errs.ErrInvalidTransition)

	_, err = suite.orders.UpdateStatus(ctx, admin, "missing", UpdateStatusRequest{Status: model.OrderStatusConfirmed})
	require.ErrorIs(suite.T(), err, errs.ErrNotFound)

	stored, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusPending, stored.Status)
	require.Len(suite.T(), stored.StatusHistory, 1)
}

func (suite *CommerceTestSuite) TestUpdateStatus_OverrideIsRecorded() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 1})

	shipped, err := suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{
		Status:   model.OrderStatusShipped,
		Note:     "shipped from warehouse B",
		Override: true,
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusShipped, shipped.Status)

	stored, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	last := stored.StatusHistory[len(stored.StatusHistory)-1]
	require.True(suite.T(), last.Override)
	require.Equal(suite.T(), "shipped from warehouse B", last.Note)

	events := suite.publishedEvents()
	require.True(suite.T(), events[len(events)-1].Override)

	// 合法的轉換帶 override 不算 override
	delivered, err := suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusDelivered, Override: true})
	require.NoError(suite.T(), err)
	require.False(suite.T(), delivered.StatusHistory[len(delivered.StatusHistory)-1].Override)
}

func (suite *CommerceTestSuite) TestUpdateStatus_AdminCancelReleasesStock() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 4})
	suite.advance(order.OrderID, model.OrderStatusConfirmed, model.OrderStatusProcessing)

	cancelled, err := suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusCancelled})
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cancelled.CancelledAt)
	require.Equal(suite.T(), 10, suite.product(p.ProductID).Stock)

	// 已取消不可再取消, 庫存不會重複歸還
	_, err = suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusCancelled, Override: true})
	require.ErrorIs(suite.T(), err, errs.ErrInvalidTransition)
	require.Equal(suite.T(), 10, suite.product(p.ProductID).Stock)
}

func (suite *CommerceTestSuite) TestUpdateStatus_OverrideOutOfCancelledReservesAgain() {
	ctx := context.Background()
	p := suite.seedProduct("100", 5)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 2})
	_, err := suite.orders.Cancel(ctx, customer, order.OrderID, "")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 5, suite.product(p.ProductID).Stock)

	_, err = suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusConfirmed})
	require.ErrorIs(suite.T(), err, errs.ErrInvalidTransition)

	reopened, err := suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusConfirmed, Override: true})
	require.NoError(suite.T(), err)
	require.Nil(suite.T(), reopened.CancelledAt)
	require.Equal(suite.T(), 3, suite.product(p.ProductID).Stock)
}

func (suite *CommerceTestSuite) TestUpdateStatus_OverrideOutOfCancelledNeedsStock() {
	ctx := context.Background()
	p := suite.seedProduct("100", 2)
	order := suite.placeOrder(customer, map[*model.Product]int{p: 2})
	_, err := suite.orders.Cancel(ctx, customer, order.OrderID, "")
	require.NoError(suite.T(), err)
	_, err = suite.ledger.ReserveAndCommit(ctx, p.ProductID, 1)
	require.NoError(suite.T(), err)

	_, err = suite.orders.UpdateStatus(ctx, admin, order.OrderID, UpdateStatusRequest{Status: model.OrderStatusPending, Override: true})
	require.ErrorIs(suite.T(), err, errs.ErrInsufficientStock)

	stored, err := suite.store.GetOrderByID(ctx, order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusCancelled, stored.Status)
	require.Len(suite.T(), stored.StatusHistory, 2)
}

func (suite *CommerceTestSuite) TestOrderReads() {
	ctx := context.Background()
	p := suite.seedProduct("100", 10)
	first := suite.placeOrder(customer, map[*model.Product]int{p: 1})
	second := suite.placeOrder(customer, map[*model.Product]int{p: 1})
	suite.placeOrder(stranger, map[*model.Product]int{p: 1})

	got, err := suite.orders.Get(ctx, customer, first.OrderID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), got.TotalAmount.Equal(decimal.NewFromInt(350)))

	_, err = suite.orders.Get(ctx, stranger, first.OrderID)
	require.ErrorIs(suite.T(), err, errs.ErrUnauthorized)

	_, err = suite.orders.Get(ctx, admin, first.OrderID)
	require.NoError(suite.T(), err)

	_, err = suite.orders.Get(ctx, customer, "missing")
	require.ErrorIs(suite.T(), err, errs.ErrNotFound)

	mine, err := suite.orders.ListByUser(ctx, customer)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), mine, 2)
	ids := []string{mine[0].OrderID, mine[1].OrderID}
	require.ElementsMatch(suite.T(), []string{first.OrderID, second.OrderID}, ids)

	_, err = suite.orders.ListAll(ctx, customer)
	require.ErrorIs(suite.T(), err, errs.ErrUnauthorized)

	all, err := suite.orders.ListAll(ctx, admin)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), all, 3)
}
