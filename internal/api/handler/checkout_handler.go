package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type CheckoutHandler struct {
	checkoutService service.ICheckoutService
}

func NewCheckoutHandler(checkoutService service.ICheckoutService) *CheckoutHandler {
	if checkoutService == nil {
		panic("checkoutService cannot be nil")
	}
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Checkout POST /checkout
// 帶相同 Idempotency-Key 重送會拿到同一筆訂單
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req dto.CheckoutDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}

	order, err := h.checkoutService.Checkout(r.Context(), principal, req.ToServiceRequest(r.Header.Get(constants.IdempotencyKeyHeader)))
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusCreated, order)
}
