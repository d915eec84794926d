package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepo struct {
	db *DbDao
}

func NewProductRepo(db *DbDao) *ProductRepo {
	return &ProductRepo{db: db}
}

func (s *ProductRepo) CreateProduct(ctx context.Context, product *model.Product) error {
	err := s.db.WithContext(ctx).Create(product).Error
	if _, dup := uniqueViolation(err); dup {
		return ErrDuplicateProductCode
	}
	return err
}

func (s *ProductRepo) GetProductByID(ctx context.Context, productID uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).First(&product, "product_id = ?", productID).Error
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	return &product, nil
}

// ReserveStock 單一條件式 UPDATE, 由資料庫保證同一商品併發扣庫存不會 lost update
func (s *ProductRepo) ReserveStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	res := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ? AND is_active = ? AND stock >= ?", productID, true, quantity).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"sold_count": gorm.Expr("sold_count + ?", quantity),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	// 沒有更新到任何資料時再查一次, 區分不存在/下架/庫存不足
	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if !product.IsActive {
			return nil, errs.NewProductUnavailable(productID, product.Name)
		}
		return nil, errs.NewInsufficientStock(productID, product.Name, quantity, product.Stock)
	}
	return product, nil
}

// ReleaseStock 取消訂單時歸還庫存, 已被目錄軟刪除的商品一樣要歸還
func (s *ProductRepo) ReleaseStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	res := s.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", quantity),
			"sold_count": gorm.Expr("GREATEST(sold_count - ?, 0)", quantity),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errs.NewNotFound("product", productID)
	}

	var product model.Product
	if err := s.db.WithContext(ctx).Unscoped().First(&product, "product_id = ?", productID).Error; err != nil {
		return nil, notFound(err, "product", productID)
	}
	return &product, nil
}

func (s *ProductRepo) LockProductForUpdate(ctx context.Context, productID uint) error {
	var locked model.Product
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("product_id").
		First(&locked, "product_id = ?", productID).Error
	if err != nil {
		return notFound(err, "product", productID)
	}
	return nil
}

func (s *ProductRepo) UpdateRatingSummary(ctx context.Context, productID uint, average decimal.Decimal, count int) error {
	res := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"rating_average": average,
			"rating_count":   count,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("product", productID)
	}
	return nil
}
