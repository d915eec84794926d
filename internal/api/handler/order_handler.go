package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	orderService service.IOrderService
}

func NewOrderHandler(orderService service.IOrderService) *OrderHandler {
	if orderService == nil {
		panic("orderService cannot be nil")
	}
	return &OrderHandler{orderService: orderService}
}

// ListMyOrders GET /orders
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	orders, err := h.orderService.ListByUser(r.Context(), principal)
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, orders)
}

// GetOrder GET /orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Get(r.Context(), principal, chi.URLParam(r, "orderID"))
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, order)
}

// CancelOrder POST /orders/{orderID}/cancel, body 可省略
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req dto.CancelOrderDTO
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	order, err := h.orderService.Cancel(r.Context(), principal, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, order)
}

// ListAllOrders GET /admin/orders
func (h *OrderHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	orders, err := h.orderService.ListAll(r.Context(), principal)
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus PATCH /admin/orders/{orderID}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req dto.UpdateOrderStatusDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	order, err := h.orderService.UpdateStatus(r.Context(), principal, chi.URLParam(r, "orderID"), req.ToServiceRequest())
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, order)
}
