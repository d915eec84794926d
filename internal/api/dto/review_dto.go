package dto

import (
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/shopspring/decimal"
)

type ReviewDTO struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (d ReviewDTO) ToServiceRequest() service.ReviewRequest {
	return service.ReviewRequest{Rating: d.Rating, Comment: d.Comment}
}

type ReplyReviewDTO struct {
	Reply string `json:"reply"`
}

// ProductSummaryDTO 商品頁需要的庫存與評分摘要
type ProductSummaryDTO struct {
	ProductID     uint            `json:"product_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	SoldCount     int             `json:"sold_count"`
	IsActive      bool            `json:"is_active"`
	ImageURL      string          `json:"image_url,omitempty"`
	RatingAverage decimal.Decimal `json:"rating_average"`
	RatingCount   int             `json:"rating_count"`
}

func ConvertProductToDTO(p *model.Product) ProductSummaryDTO {
	return ProductSummaryDTO{
		ProductID:     p.ProductID,
		Code:          p.Code,
		Name:          p.Name,
		Price:         p.Price,
		Stock:         p.Stock,
		SoldCount:     p.SoldCount,
		IsActive:      p.IsActive,
		ImageURL:      p.ImageURL,
		RatingAverage: p.RatingAverage,
		RatingCount:   p.RatingCount,
	}
}
