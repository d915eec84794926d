package db

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepo struct {
	db *DbDao
}

func NewCartRepo(db *DbDao) *CartRepo {
	return &CartRepo{db: db}
}

func (s *CartRepo) GetCartByUserID(ctx context.Context, userID int) (*model.Cart, error) {
	var cart model.Cart
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id") }).
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, notFound(err, "cart", userID)
	}
	return &cart, nil
}

// GetCartByUserIDForUpdate 先鎖 carts 列再讀 items, 後到的交易會看到前一筆 commit 後的內容
func (s *CartRepo) GetCartByUserIDForUpdate(ctx context.Context, userID int) (*model.Cart, error) {
	var locked model.Cart
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("cart_id").
		First(&locked, "user_id = ?", userID).Error
	if err != nil {
		return nil, notFound(err, "cart", userID)
	}
	return s.GetCartByUserID(ctx, userID)
}

// GetOrCreateCart 兩個請求同時建立時, 後到的會撞 unique, 改為重新查詢
func (s *CartRepo) GetOrCreateCart(ctx context.Context, userID int) (*model.Cart, error) {
	cart, err := s.GetCartByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	// 交易中以 savepoint 包住, 撞 unique 後還能繼續查詢
	cart = &model.Cart{UserID: userID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(cart).Error
	})
	if err == nil {
		return cart, nil
	}
	if _, dup := uniqueViolation(err); dup {
		return s.GetCartByUserID(ctx, userID)
	}
	return nil, err
}

func (s *CartRepo) SaveCartItems(ctx context.Context, cart *model.Cart) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cart.CartID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if len(cart.Items) > 0 {
			items := make([]model.CartItem, len(cart.Items))
			for i, item := range cart.Items {
				item.CartID = cart.CartID
				items[i] = item
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Cart{}).Where("cart_id = ?", cart.CartID).Update("updated_at", gorm.Expr("now()")).Error
	})
}

func (s *CartRepo) ClearCart(ctx context.Context, userID int) error {
	return s.db.WithContext(ctx).
		Where("cart_id IN (?)", s.db.Model(&model.Cart{}).Select("cart_id").Where("user_id = ?", userID)).
		Delete(&model.CartItem{}).Error
}
