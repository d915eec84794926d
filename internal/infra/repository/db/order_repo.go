package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepo struct {
	db *DbDao
}

func NewOrderRepo(db *DbDao) *OrderRepo {
	return &OrderRepo{db: db}
}

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// CreateOrder 連同 items 與第一筆狀態歷程一起寫入
func (s *OrderRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return orderCreateError(err)
	}
	return nil
}

func (s *OrderRepo) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().Model(&model.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	return count > 0, err
}

func (s *OrderRepo) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := preloadOrder(s.db.WithContext(ctx)).First(&order, "order_id = ?", orderID).Error
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return &order, nil
}

// GetOrderByIDForUpdate 先以 FOR UPDATE 鎖住訂單列, 再讀完整資料
func (s *OrderRepo) GetOrderByIDForUpdate(ctx context.Context, orderID string) (*model.Order, error) {
	var locked model.Order
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("order_id").
		First(&locked, "order_id = ?", orderID).Error
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return s.GetOrderByID(ctx, orderID)
}

func (s *OrderRepo) GetOrderByIdempotencyKey(ctx context.Context, userID int, key string) (*model.Order, error) {
	var order model.Order
	err := preloadOrder(s.db.WithContext(ctx)).
		First(&order, "user_id = ? AND idempotency_key = ?", userID, key).Error
	if err != nil {
		return nil, notFound(err, "order", key)
	}
	return &order, nil
}

func (s *OrderRepo) GetOrdersByUserID(ctx context.Context, userID int) ([]model.Order, error) {
	var orders []model.Order
	err := preloadOrder(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (s *OrderRepo) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := preloadOrder(s.db.WithContext(ctx)).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// UpdateOrderStatus 只更新生命週期欄位, items 與金額不會被寫回
func (s *OrderRepo) UpdateOrderStatus(ctx context.Context, order *model.Order) error {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", order.OrderID).
		Updates(map[string]any{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"cancelled_at":   order.CancelledAt,
			"delivered_at":   order.DeliveredAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("order", order.OrderID)
	}
	return nil
}

func (s *OrderRepo) AppendStatusHistory(ctx context.Context, history *model.OrderStatusHistory) error {
	history.ID = 0
	return s.db.WithContext(ctx).Create(history).Error
}
