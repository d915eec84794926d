package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

// ProductHandler 商品只讀, 正式環境傳入的是有 redis cache 的 store
type ProductHandler struct {
	products db.IProductRepository
}

func NewProductHandler(products db.IProductRepository) *ProductHandler {
	if products == nil {
		panic("products cannot be nil")
	}
	return &ProductHandler{products: products}
}

// GetProduct GET /products/{productID}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	product, err := h.products.GetProductByID(r.Context(), productID)
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, dto.ConvertProductToDTO(product))
}
