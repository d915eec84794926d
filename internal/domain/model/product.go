package model

import (
	"github.com/shopspring/decimal"
)

// Product 由商品目錄維護, 這裡只會異動 stock/sold_count 與評分欄位
type Product struct {
	ProductID     uint            `gorm:"primaryKey" json:"product_id"`
	Code          string          `gorm:"not null;type:varchar(100);unique" json:"code"`
	Name          string          `gorm:"not null;type:varchar(200)" json:"name"`
	Price         decimal.Decimal `gorm:"not null;type:decimal(12,2)" json:"price"`
	Stock         int             `gorm:"not null;type:int;default:0;check:stock >= 0" json:"stock"`
	SoldCount     int             `gorm:"not null;type:int;default:0;check:sold_count >= 0" json:"sold_count"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	ImageURL      string          `gorm:"type:varchar(500)" json:"image_url"`
	RatingAverage decimal.Decimal `gorm:"not null;type:decimal(2,1);default:0" json:"rating_average"`
	RatingCount   int             `gorm:"not null;type:int;default:0" json:"rating_count"`
	BaseModel
}

// Purchasable 商品上架且有足夠庫存
func (p *Product) Purchasable(quantity int) bool {
	return p.IsActive && p.Stock >= quantity
}
