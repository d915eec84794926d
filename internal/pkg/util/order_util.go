package util

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func GenerateOrderID() string {
	return uuid.New().String()
}

// OrderNumberGenerator 產生 prefix + YYMM + 4 位亂數, 例如 ORD25010427
// 撞號由呼叫端檢查後重產
type OrderNumberGenerator struct {
	Prefix string
	Now    func() time.Time
	Rand   func(n int) int
}

func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	return &OrderNumberGenerator{
		Prefix: prefix,
		Now:    time.Now,
		Rand:   rand.IntN,
	}
}

func (g *OrderNumberGenerator) Next() string {
	now := g.Now().UTC()
	return fmt.Sprintf("%s%02d%02d%04d", g.Prefix, now.Year()%100, int(now.Month()), g.Rand(10000))
}

func CalculateOrderSubtotal(items []model.OrderItem) decimal.Decimal {
	amount := decimal.Zero
	for _, item := range items {
		amount = amount.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return amount
}
