package redis_decorator

import (
	"context"
	"errors"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

/*
redis 只快取商品詳細資料
讀: transaction 外的 GetProductByID 先查 cache, miss 再查 db 並回填
寫: 會改動商品的操作在 commit 之後清除 cache
transaction 內一律直接讀 db, checkout 需要最新的價格與庫存
*/
type CacheAsideStore struct {
	db.UnifiedDB
	cache redis_repo.IProductCache
}

func NewCacheAsideStore(store db.UnifiedDB, cache redis_repo.IProductCache) *CacheAsideStore {
	if store == nil {
		panic("NewCacheAsideStore: store cannot be nil")
	}
	if cache == nil {
		panic("NewCacheAsideStore: cache cannot be nil")
	}
	return &CacheAsideStore{UnifiedDB: store, cache: cache}
}

func (c *CacheAsideStore) GetProductByID(ctx context.Context, productID uint) (*model.Product, error) {
	product, err := c.cache.GetProduct(ctx, productID)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, redis_repo.ErrCacheMiss) {
		log.Warn().Err(err).Uint("product_id", productID).Msg("product cache read failed")
	}

	product, err = c.UnifiedDB.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetProduct(ctx, product); err != nil {
		log.Warn().Err(err).Uint("product_id", productID).Msg("product cache fill failed")
	}
	return product, nil
}

func (c *CacheAsideStore) ExecTx(ctx context.Context, fn func(tx db.UnifiedDB) error) error {
	tracker := &touchedProducts{}
	err := c.UnifiedDB.ExecTx(ctx, func(tx db.UnifiedDB) error {
		return fn(&trackingTx{UnifiedDB: tx, touched: tracker})
	})
	if err != nil {
		return err
	}
	c.evict(ctx, tracker.list()...)
	return nil
}

func (c *CacheAsideStore) ReserveStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	product, err := c.UnifiedDB.ReserveStock(ctx, productID, quantity)
	if err == nil {
		c.evict(ctx, productID)
	}
	return product, err
}

func (c *CacheAsideStore) ReleaseStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	product, err := c.UnifiedDB.ReleaseStock(ctx, productID, quantity)
	if err == nil {
		c.evict(ctx, productID)
	}
	return product, err
}

func (c *CacheAsideStore) UpdateRatingSummary(ctx context.Context, productID uint, average decimal.Decimal, count int) error {
	err := c.UnifiedDB.UpdateRatingSummary(ctx, productID, average, count)
	if err == nil {
		c.evict(ctx, productID)
	}
	return err
}

// evict 失敗只記錄, 資料最晚在 ttl 後過期
func (c *CacheAsideStore) evict(ctx context.Context, productIDs ...uint) {
	if len(productIDs) == 0 {
		return
	}
	if err := c.cache.EvictProducts(context.WithoutCancel(ctx), productIDs...); err != nil {
		log.Warn().Err(err).Interface("product_ids", productIDs).Msg("product cache evict failed")
	}
}

type touchedProducts struct {
	mu  sync.Mutex
	ids []uint
}

func (t *touchedProducts) add(id uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.ids {
		if existing == id {
			return
		}
	}
	t.ids = append(t.ids, id)
}

func (t *touchedProducts) list() []uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint(nil), t.ids...)
}

// trackingTx transaction 內記錄被改動的商品
type trackingTx struct {
	db.UnifiedDB
	touched *touchedProducts
}

func (t *trackingTx) ExecTx(ctx context.Context, fn func(tx db.UnifiedDB) error) error {
	return t.UnifiedDB.ExecTx(ctx, func(tx db.UnifiedDB) error {
		return fn(&trackingTx{UnifiedDB: tx, touched: t.touched})
	})
}

func (t *trackingTx) ReserveStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	product, err := t.UnifiedDB.ReserveStock(ctx, productID, quantity)
	if err == nil {
		t.touched.add(productID)
	}
	return product, err
}

func (t *trackingTx) ReleaseStock(ctx context.Context, productID uint, quantity int) (*model.Product, error) {
	product, err := t.UnifiedDB.ReleaseStock(ctx, productID, quantity)
	if err == nil {
		t.touched.add(productID)
	}
	return product, err
}

func (t *trackingTx) UpdateRatingSummary(ctx context.Context, productID uint, average decimal.Decimal, count int) error {
	err := t.UnifiedDB.UpdateRatingSummary(ctx, productID, average, count)
	if err == nil {
		t.touched.add(productID)
	}
	return err
}
