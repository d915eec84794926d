package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/pkg/util"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxOrderNumberAttempts = 5

var ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")

type CheckoutRequest struct {
	ShippingAddress model.ShippingAddress
	PaymentMethod   model.PaymentMethod
	Notes           string
	IdempotencyKey  string
}

func (r *CheckoutRequest) Validate() error {
	addr := r.ShippingAddress
	var missing []string
	if strings.TrimSpace(addr.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(addr.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(addr.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return errs.InvalidArgumentf("shipping address missing %s", strings.Join(missing, ", "))
	}
	if !r.PaymentMethod.Valid() {
		return errs.InvalidArgumentf("unknown payment method %q", r.PaymentMethod)
	}
	if len(r.IdempotencyKey) > 100 {
		return errs.InvalidArgumentf("idempotency key too long")
	}
	return nil
}

// ShippingPolicy 小計超過門檻免運, 剛好等於門檻仍收運費
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{
		FreeThreshold: decimal.NewFromInt(5000),
		FlatFee:       decimal.NewFromInt(250),
	}
}

func (p ShippingPolicy) Cost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

type ICheckoutService interface {
	Checkout(ctx context.Context, principal Principal, req CheckoutRequest) (*model.Order, error)
}

type CheckoutService struct {
	store     db.UnifiedDB
	ledger    IInventoryLedger
	publisher producer.IOrderEventPublisher
	numbers   *util.OrderNumberGenerator
	shipping  ShippingPolicy
	logger    zerolog.Logger
}

func NewCheckoutService(
	store db.UnifiedDB,
	ledger IInventoryLedger,
	publisher producer.IOrderEventPublisher,
	numbers *util.OrderNumberGenerator,
	shipping ShippingPolicy,
	logger zerolog.Logger,
) *CheckoutService {
	if store == nil {
		panic("store cannot be nil")
	}
	if ledger == nil {
		panic("ledger cannot be nil")
	}
	if publisher == nil {
		publisher = producer.NoopPublisher{}
	}
	if numbers == nil {
		numbers = util.NewOrderNumberGenerator("ORD")
	}
	return &CheckoutService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		numbers:   numbers,
		shipping:  shipping,
		logger:    logger,
	}
}

/*
Checkout 購物車轉訂單
驗證商品 => 計算金額 => 扣庫存 => 建立訂單 => 清空購物車
全部在同一個 transaction, 任何一步失敗都不會留下部分扣除的庫存
*/
func (c *CheckoutService) Checkout(ctx context.Context, principal Principal, req CheckoutRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		order    *model.Order
		replayed bool
	)
	err := c.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.GetOrderByIdempotencyKey(ctx, principal.UserID, req.IdempotencyKey)
			if err == nil {
				order, replayed = existing, true
				return nil
			}
			if !errors.Is(err, errs.ErrNotFound) {
				return err
			}
		}

		cart, err := tx.GetCartByUserIDForUpdate(ctx, principal.UserID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrEmptyCart
			}
			return err
		}
		if len(cart.Items) == 0 {
			return errs.ErrEmptyCart
		}

		items, err := c.verifyItems(ctx, tx, cart)
		if err != nil {
			return err
		}

		subtotal := util.CalculateOrderSubtotal(items)
		shippingCost := c.shipping.Cost(subtotal)
		order = &model.Order{
			OrderID:         util.GenerateOrderID(),
			UserID:          principal.UserID,
			Items:           items,
			Subtotal:        subtotal,
			ShippingCost:    shippingCost,
			TotalAmount:     subtotal.Add(shippingCost),
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			PaymentStatus:   model.PaymentStatusPending,
			Status:          model.OrderStatusPending,
			Notes:           req.Notes,
			IdempotencyKey:  req.IdempotencyKey,
			StatusHistory: []model.OrderStatusHistory{{
				Status: model.OrderStatusPending,
				Note:   "order placed",
				Actor:  principal.Actor(),
			}},
		}

		ledger := c.ledger.WithTx(tx)
		for _, item := range items {
			if _, err := ledger.ReserveAndCommit(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := c.createWithUniqueNumber(ctx, tx, order); err != nil {
			return err
		}

		return tx.ClearCart(ctx, principal.UserID)
	})
	if err != nil {
		// 同一個 key 的請求同時進來, 輸的那一方回傳已建立的訂單
		if errors.Is(err, db.ErrDuplicateIdempotencyKey) {
			return c.store.GetOrderByIdempotencyKey(ctx, principal.UserID, req.IdempotencyKey)
		}
		return nil, err
	}

	if replayed {
		c.logger.Info().
			Str("order_id", order.OrderID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("checkout replayed")
		return order, nil
	}

	c.logger.Info().
		Str("order_id", order.OrderID).
		Str("order_number", order.OrderNumber).
		Int("user_id", order.UserID).
		Str("total_amount", order.TotalAmount.StringFixed(2)).
		Msg("order placed")
	c.publish(ctx, producer.NewOrderEvent(producer.OrderCreated, order, "", principal.Actor(), false))
	return order, nil
}

// verifyItems 以 transaction 內讀到的最新商品資料為準, 購物車的價格只是參考
func (c *CheckoutService) verifyItems(ctx context.Context, tx db.UnifiedDB, cart *model.Cart) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(cart.Items))
	for _, cartItem := range cart.Items {
		product, err := tx.GetProductByID(ctx, cartItem.ProductID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil, errs.NewProductUnavailable(cartItem.ProductID, "")
			}
			return nil, err
		}
		if !product.Purchasable(cartItem.Quantity) {
			if !product.IsActive {
				return nil, errs.NewProductUnavailable(product.ProductID, product.Name)
			}
			return nil, errs.NewInsufficientStock(product.ProductID, product.Name, cartItem.Quantity, product.Stock)
		}
		items = append(items, model.OrderItem{
			ProductID: product.ProductID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  cartItem.Quantity,
			Image:     product.ImageURL,
		})
	}
	return items, nil
}

// createWithUniqueNumber 先查是否撞號, insert 仍撞號時在 savepoint 內重試
func (c *CheckoutService) createWithUniqueNumber(ctx context.Context, tx db.UnifiedDB, order *model.Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number := c.numbers.Next()
		exists, err := tx.OrderNumberExists(ctx, number)
		if err != nil {
			return err
		}
		if exists {
			c.logger.Warn().Str("order_number", number).Int("attempt", attempt).Msg("order number collision")
			continue
		}

		order.OrderNumber = number
		err = tx.ExecTx(ctx, func(sp db.UnifiedDB) error {
			return sp.CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, db.ErrDuplicateOrderNumber) {
			return err
		}
		c.logger.Warn().Str("order_number", number).Int("attempt", attempt).Msg("order number conflict on insert")
	}
	return fmt.Errorf("%w after %d attempts", ErrOrderNumberExhausted, maxOrderNumberAttempts)
}

// publish 事件發送失敗不影響已 commit 的訂單
func (c *CheckoutService) publish(ctx context.Context, event producer.OrderEvent) {
	if err := c.publisher.PublishOrderEvent(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Error().Err(err).
			Str("order_id", event.OrderID).
			Str("event_type", string(event.EventType)).
			Msg("publish order event failed")
	}
}
