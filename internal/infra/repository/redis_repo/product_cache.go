package redis_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("product cache miss")
)

type IProductCache interface {
	GetProduct(ctx context.Context, productID uint) (*model.Product, error)
	SetProduct(ctx context.Context, product *model.Product) error
	EvictProducts(ctx context.Context, productIDs ...uint) error
}

// ProductCache 商品詳細資料快取, 只做讀取加速
// 真相來源一律是 db, 寫入路徑只負責清除
//
//	product:{id}:detail -> json
type ProductCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProductCache(client redis.Cmdable, ttl time.Duration) *ProductCache {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &ProductCache{client: client, ttl: ttl}
}

func generateProductDetailKey(productID uint) string {
	return fmt.Sprintf("product:%d:detail", productID)
}

// GetProduct
// 錯誤:
//   - ErrCacheMiss: 快取不存在
//   - err: 其他錯誤
func (c *ProductCache) GetProduct(ctx context.Context, productID uint) (*model.Product, error) {
	raw, err := c.client.Get(ctx, generateProductDetailKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var product model.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, fmt.Errorf("decode cached product %d: %w", productID, err)
	}
	return &product, nil
}

func (c *ProductCache) SetProduct(ctx context.Context, product *model.Product) error {
	raw, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, generateProductDetailKey(product.ProductID), raw, c.ttl).Err()
}

func (c *ProductCache) EvictProducts(ctx context.Context, productIDs ...uint) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, generateProductDetailKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
