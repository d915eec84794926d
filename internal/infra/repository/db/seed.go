package db

import (
	"context"
	"fmt"
	"os"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/clause"
)

// CatalogSeed 開發環境用的商品種子資料
type CatalogSeed struct {
	Products []ProductSeed `yaml:"products"`
}

type ProductSeed struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Stock    int    `yaml:"stock"`
	ImageURL string `yaml:"image_url"`
	Inactive bool   `yaml:"inactive"`
}

func LoadCatalogSeed(path string) (*CatalogSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalogSeed(data)
}

func ParseCatalogSeed(data []byte) (*CatalogSeed, error) {
	var seed CatalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	for _, p := range seed.Products {
		if p.Code == "" {
			return nil, fmt.Errorf("seed product %q has no code", p.Name)
		}
		if _, err := decimal.NewFromString(p.Price); err != nil {
			return nil, fmt.Errorf("seed product %s has invalid price %q: %w", p.Code, p.Price, err)
		}
		if p.Stock < 0 {
			return nil, fmt.Errorf("seed product %s has negative stock", p.Code)
		}
	}
	return &seed, nil
}

// ToModels 轉成 model, 呼叫前已經驗證過價格
func (c *CatalogSeed) ToModels() []model.Product {
	products := make([]model.Product, 0, len(c.Products))
	for _, p := range c.Products {
		products = append(products, model.Product{
			Code:          p.Code,
			Name:          p.Name,
			Price:         decimal.RequireFromString(p.Price),
			Stock:         p.Stock,
			IsActive:      !p.Inactive,
			ImageURL:      p.ImageURL,
			RatingAverage: decimal.Zero,
		})
	}
	return products
}

// SeedCatalog 以 code 判斷是否存在, 已存在的商品不覆蓋
func (d *DbDao) SeedCatalog(ctx context.Context, seed *CatalogSeed) error {
	products := seed.ToModels()
	if len(products) == 0 {
		return nil
	}
	return d.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&products).Error
}
