package service

import (
	"context"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/rs/zerolog"
)

// IInventoryLedger 庫存與銷量的唯一寫入入口
type IInventoryLedger interface {
	// ReserveAndCommit 原子性扣庫存並增加銷量
	// 錯誤:
	//   - errs.ErrNotFound: 商品不存在
	//   - errs.ErrProductUnavailable: 商品已下架
	//   - errs.ErrInsufficientStock: 庫存不足, 可用 errors.As 取得 Available
	ReserveAndCommit(ctx context.Context, productID uint, quantity int) (*model.Product, error)
	// Release ReserveAndCommit 的補償, 銷量最低為 0
	Release(ctx context.Context, productID uint, quantity int) (*model.Product, error)
	// WithTx 綁定呼叫端的 transaction
	WithTx(repo db.IProductRepository) IInventoryLedger
}

type InventoryLedger struct {
	repo   db.IProductRepository
	logger zerolog.Logger
}

func NewInventoryLedger(repo db.IProductRepository, logger zerolog.Logger) *InventoryLedger {
	if repo == nil {
		panic("product repository cannot be nil")
	}
	return &InventoryLedger{repo: repo, logger: logger}
}

func (l *InventoryLedger) WithTx(repo db.IProductRepository) IInventoryLedger {
	return &InventoryLedger{repo: repo, logger: l.logger}
}

func (l *InventoryLedger) ReserveAndCommit(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	if quantity < 1 {
		return nil, errs.InvalidArgumentf("reserve quantity must be >= 1, got %d", quantity)
	}
	product, err := l.repo.ReserveStock(ctx, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("reserve product %d: %w", productID, err)
	}
	l.logger.Debug().
		Uint("product_id", productID).
		Int("quantity", quantity).
		Int("stock", product.Stock).
		Msg("stock reserved")
	return product, nil
}

func (l *InventoryLedger) Release(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	if quantity < 1 {
		return nil, errs.InvalidArgumentf("release quantity must be >= 1, got %d", quantity)
	}
	product, err := l.repo.ReleaseStock(ctx, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("release product %d: %w", productID, err)
	}
	l.logger.Debug().
		Uint("product_id", productID).
		Int("quantity", quantity).
		Int("stock", product.Stock).
		Msg("stock released")
	return product, nil
}
