package service

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/shopspring/decimal"
)

type RatingSummary struct {
	Average decimal.Decimal
	Count   int
}

// ComputeRatingSummary 平均值四捨五入到小數一位, 沒有評論時為 0 / 0
func ComputeRatingSummary(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{Average: decimal.Zero, Count: 0}
	}
	sum := int64(0)
	for _, r := range ratings {
		sum += int64(r)
	}
	mean := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(ratings))), 8)
	return RatingSummary{
		Average: mean.Round(1),
		Count:   len(ratings),
	}
}

type IRatingAggregator interface {
	// Recompute 以目前所有評論全量重算, 重複呼叫結果相同
	Recompute(ctx context.Context, productID uint) (RatingSummary, error)
	WithTx(tx db.UnifiedDB) IRatingAggregator
}

// RatingAggregator 只會寫商品的評分欄位
type RatingAggregator struct {
	store db.UnifiedDB
}

func NewRatingAggregator(store db.UnifiedDB) *RatingAggregator {
	if store == nil {
		panic("store cannot be nil")
	}
	return &RatingAggregator{store: store}
}

func (r *RatingAggregator) WithTx(tx db.UnifiedDB) IRatingAggregator {
	return &RatingAggregator{store: tx}
}

// Recompute 先鎖商品列, 同一商品的重算依序執行, 不會互相覆蓋
func (r *RatingAggregator) Recompute(ctx context.Context, productID uint) (RatingSummary, error) {
	if err := r.store.LockProductForUpdate(ctx, productID); err != nil {
		return RatingSummary{}, err
	}
	ratings, err := r.store.ListRatingsByProduct(ctx, productID)
	if err != nil {
		return RatingSummary{}, err
	}
	summary := ComputeRatingSummary(ratings)
	if err := r.store.UpdateRatingSummary(ctx, productID, summary.Average, summary.Count); err != nil {
		return RatingSummary{}, err
	}
	return summary, nil
}
