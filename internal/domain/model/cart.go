package model

import (
	"github.com/shopspring/decimal"
)

// Cart 每個 user 一台, 第一次存取時建立
type Cart struct {
	CartID uint       `gorm:"primaryKey" json:"cart_id"`
	UserID int        `gorm:"not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	BaseModel
}

// CartItem.Price 是加入或修改數量當下的價格快照, 不會跟著商品變動
type CartItem struct {
	CartID    uint            `gorm:"primaryKey" json:"-"`
	ProductID uint            `gorm:"primaryKey" json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity >= 1" json:"quantity"`
	Price     decimal.Decimal `gorm:"not null;type:decimal(12,2)" json:"price"`
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) FindItem(productID uint) (int, bool) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// Clone 深拷貝, 避免呼叫端改到 repository 內的資料
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = append([]CartItem(nil), c.Items...)
	return &cp
}
