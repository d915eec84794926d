package model

import "time"

// 同一 user 對同一商品只能有一筆評論
type Review struct {
	ReviewID  uint       `gorm:"primaryKey" json:"review_id"`
	UserID    int        `gorm:"not null;uniqueIndex:idx_review_user_product" json:"user_id"`
	ProductID uint       `gorm:"not null;uniqueIndex:idx_review_user_product;index" json:"product_id"`
	Rating    int        `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"rating"`
	Comment   string     `gorm:"type:text" json:"comment"`
	Reply     string     `gorm:"type:text" json:"reply,omitempty"`
	RepliedBy *int       `json:"replied_by,omitempty"`
	RepliedAt *time.Time `json:"replied_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
