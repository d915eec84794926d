package service

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const cartLookupConcurrency = 8

type ICartService interface {
	Get(ctx context.Context, userID int) (*model.Cart, error)
	Add(ctx context.Context, userID int, productID uint, quantity int) (*model.Cart, error)
	SetQuantity(ctx context.Context, userID int, productID uint, quantity int) (*model.Cart, error)
	Remove(ctx context.Context, userID int, productID uint) (*model.Cart, error)
	Clear(ctx context.Context, userID int) error
}

// CartService 購物車只讀取商品資料, 不會動到庫存
// 同一個 user 同時修改時以最後寫入為準
type CartService struct {
	store  db.UnifiedDB
	logger zerolog.Logger
}

func NewCartService(store db.UnifiedDB, logger zerolog.Logger) *CartService {
	if store == nil {
		panic("store cannot be nil")
	}
	return &CartService{store: store, logger: logger}
}

// Get 移除已下架或不存在的商品, 有變動才寫回
func (c *CartService) Get(ctx context.Context, userID int) (*model.Cart, error) {
	cart, err := c.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}

	keep := make([]bool, len(cart.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cartLookupConcurrency)
	for i, item := range cart.Items {
		g.Go(func() error {
			product, err := c.store.GetProductByID(gctx, item.ProductID)
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					return nil
				}
				return err
			}
			keep[i] = product.IsActive
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]model.CartItem, 0, len(cart.Items))
	for i, item := range cart.Items {
		if keep[i] {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(cart.Items) {
		return cart, nil
	}

	c.logger.Info().
		Int("user_id", userID).
		Int("pruned", len(cart.Items)-len(kept)).
		Msg("pruned unavailable products from cart")
	cart.Items = kept
	if err := c.store.SaveCartItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Add 累加數量, 以累加後的數量檢查庫存, 價格改用目前售價
// 商品在交易內讀取, 不經過商品 cache
func (c *CartService) Add(ctx context.Context, userID int, productID uint, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, errs.InvalidArgumentf("quantity must be >= 1, got %d", quantity)
	}

	var cart *model.Cart
	err := c.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		product, err := purchasableProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		cart, err = tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		idx, ok := cart.FindItem(productID)
		total := quantity
		if ok {
			total += cart.Items[idx].Quantity
		}
		if total > product.Stock {
			return errs.NewInsufficientStock(productID, product.Name, total, product.Stock)
		}

		if ok {
			cart.Items[idx].Quantity = total
			cart.Items[idx].Price = product.Price
		} else {
			cart.Items = append(cart.Items, model.CartItem{
				CartID:    cart.CartID,
				ProductID: productID,
				Quantity:  total,
				Price:     product.Price,
			})
		}
		return tx.SaveCartItems(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// SetQuantity 直接設定數量, 0 請使用 Remove
func (c *CartService) SetQuantity(ctx context.Context, userID int, productID uint, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, errs.InvalidArgumentf("quantity must be >= 1, got %d", quantity)
	}

	var cart *model.Cart
	err := c.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		product, err := purchasableProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return errs.NewInsufficientStock(productID, product.Name, quantity, product.Stock)
		}

		cart, err = tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		idx, ok := cart.FindItem(productID)
		if !ok {
			return errs.NewNotFound("cart item", productID)
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].Price = product.Price
		return tx.SaveCartItems(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (c *CartService) Remove(ctx context.Context, userID int, productID uint) (*model.Cart, error) {
	cart, err := c.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, ok := cart.FindItem(productID)
	if !ok {
		return nil, errs.NewNotFound("cart item", productID)
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	if err := c.store.SaveCartItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear 購物車不存在也視為成功
func (c *CartService) Clear(ctx context.Context, userID int) error {
	return c.store.ClearCart(ctx, userID)
}

func purchasableProduct(ctx context.Context, repo db.IProductRepository, productID uint) (*model.Product, error) {
	product, err := repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, errs.NewProductUnavailable(productID, product.Name)
	}
	return product, nil
}
