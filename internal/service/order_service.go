package service

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/rs/zerolog"
)

type UpdateStatusRequest struct {
	Status   model.OrderStatus
	Note     string
	Override bool
}

type IOrderService interface {
	Get(ctx context.Context, principal Principal, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, principal Principal) ([]model.Order, error)
	ListAll(ctx context.Context, principal Principal) ([]model.Order, error)
	Cancel(ctx context.Context, principal Principal, orderID string, reason string) (*model.Order, error)
	UpdateStatus(ctx context.Context, principal Principal, orderID string, req UpdateStatusRequest) (*model.Order, error)
}

// OrderService 訂單狀態機, 只有取消 (與離開取消狀態) 會動到庫存
type OrderService struct {
	store     db.UnifiedDB
	ledger    IInventoryLedger
	publisher producer.IOrderEventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewOrderService(store db.UnifiedDB, ledger IInventoryLedger, publisher producer.IOrderEventPublisher, logger zerolog.Logger) *OrderService {
	if store == nil {
		panic("store cannot be nil")
	}
	if ledger == nil {
		panic("ledger cannot be nil")
	}
	if publisher == nil {
		publisher = producer.NoopPublisher{}
	}
	return &OrderService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (o *OrderService) Get(ctx context.Context, principal Principal, orderID string) (*model.Order, error) {
	order, err := o.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !principal.canAccess(order.UserID) {
		return nil, errs.Unauthorizedf("order %s belongs to another user", orderID)
	}
	return order, nil
}

// ListByUser 新的在前
func (o *OrderService) ListByUser(ctx context.Context, principal Principal) ([]model.Order, error) {
	return o.store.GetOrdersByUserID(ctx, principal.UserID)
}

func (o *OrderService) ListAll(ctx context.Context, principal Principal) ([]model.Order, error) {
	if err := requireAdmin(principal, "list all orders"); err != nil {
		return nil, err
	}
	return o.store.GetAllOrders(ctx)
}

// Cancel 客戶取消, 只允許 pending / confirmed, 並歸還庫存
func (o *OrderService) Cancel(ctx context.Context, principal Principal, orderID string, reason string) (*model.Order, error) {
	var (
		order    *model.Order
		previous model.OrderStatus
	)
	err := o.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		var err error
		order, err = tx.GetOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !principal.canAccess(order.UserID) {
			return errs.Unauthorizedf("order %s belongs to another user", orderID)
		}
		if !order.Status.CustomerCancellable() {
			return errs.NewInvalidTransition(orderID, string(order.Status), string(model.OrderStatusCancelled))
		}

		previous = order.Status
		note := "cancelled by customer"
		if reason != "" {
			note = note + ": " + reason
		}
		return o.applyTransition(ctx, tx, order, model.OrderStatusCancelled, note, principal.Actor(), false)
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("order_id", order.OrderID).
		Str("from", string(previous)).
		Str("actor", principal.Actor()).
		Msg("order cancelled")
	o.publish(ctx, producer.NewOrderEvent(producer.OrderStatusChanged, order, previous, principal.Actor(), false))
	return order, nil
}

/*
UpdateStatus 管理員修改狀態
不在轉換表內的修改需要 override, override 會記錄在歷程並以 WARN 輸出
*/
func (o *OrderService) UpdateStatus(ctx context.Context, principal Principal, orderID string, req UpdateStatusRequest) (*model.Order, error) {
	if err := requireAdmin(principal, "update order status"); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, errs.InvalidArgumentf("unknown order status %q", req.Status)
	}

	var (
		order      *model.Order
		previous   model.OrderStatus
		overridden bool
	)
	err := o.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		var err error
		order, err = tx.GetOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		if previous == req.Status {
			return errs.NewInvalidTransition(orderID, string(previous), string(req.Status))
		}
		if !previous.CanTransitionTo(req.Status) {
			if !req.Override {
				return errs.NewInvalidTransition(orderID, string(previous), string(req.Status))
			}
			overridden = true
		}
		return o.applyTransition(ctx, tx, order, req.Status, req.Note, principal.Actor(), overridden)
	})
	if err != nil {
		return nil, err
	}

	if overridden {
		o.logger.Warn().
			Bool("override", true).
			Str("order_id", order.OrderID).
			Str("from", string(previous)).
			Str("to", string(req.Status)).
			Str("actor", principal.Actor()).
			Str("note", req.Note).
			Msg("order status overridden outside transition table")
	} else {
		o.logger.Info().
			Str("order_id", order.OrderID).
			Str("from", string(previous)).
			Str("to", string(req.Status)).
			Str("actor", principal.Actor()).
			Msg("order status updated")
	}
	o.publish(ctx, producer.NewOrderEvent(producer.OrderStatusChanged, order, previous, principal.Actor(), overridden))
	return order, nil
}

// applyTransition 在 transaction 內修改狀態, 處理庫存與時間欄位, 並追加歷程
func (o *OrderService) applyTransition(ctx context.Context, tx db.UnifiedDB, order *model.Order, to model.OrderStatus, note, actor string, override bool) error {
	from := order.Status
	now := o.now()
	ledger := o.ledger.WithTx(tx)

	switch {
	case to == model.OrderStatusCancelled:
		for _, item := range order.Items {
			if _, err := ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		order.CancelledAt = &now
		if order.PaymentStatus == model.PaymentStatusPaid {
			order.PaymentStatus = model.PaymentStatusRefunded
		}
	case from == model.OrderStatusCancelled:
		// 只有 override 能離開 cancelled, 取消時歸還的庫存要重新扣回
		for _, item := range order.Items {
			if _, err := ledger.ReserveAndCommit(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		order.CancelledAt = nil
	}
	if to == model.OrderStatusDelivered {
		order.DeliveredAt = &now
	}

	order.Status = to
	if err := tx.UpdateOrderStatus(ctx, order); err != nil {
		return err
	}

	history := model.OrderStatusHistory{
		OrderID:   order.OrderID,
		Status:    to,
		Note:      note,
		Actor:     actor,
		Override:  override,
		CreatedAt: now,
	}
	if err := tx.AppendStatusHistory(ctx, &history); err != nil {
		return err
	}
	order.StatusHistory = append(order.StatusHistory, history)
	return nil
}

func (o *OrderService) publish(ctx context.Context, event producer.OrderEvent) {
	if err := o.publisher.PublishOrderEvent(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Error().Err(err).
			Str("order_id", event.OrderID).
			Str("event_type", string(event.EventType)).
			Msg("publish order event failed")
	}
}
