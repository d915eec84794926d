package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type CartHandler struct {
	cartService service.ICartService
}

func NewCartHandler(cartService service.ICartService) *CartHandler {
	if cartService == nil {
		panic("cartService cannot be nil")
	}
	return &CartHandler{cartService: cartService}
}

// GetCart GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	cart, err := h.cartService.Get(r.Context(), principal.UserID)
	h.writeCart(w, r, cart, err)
}

// AddItem POST /cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req dto.AddCartItemDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	cart, err := h.cartService.Add(r.Context(), principal.UserID, req.ProductID, req.Quantity)
	h.writeCart(w, r, cart, err)
}

// SetQuantity PUT /cart/items/{productID}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	productID, err := uintParam(r, "productID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	var req dto.SetCartItemQuantityDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	cart, err := h.cartService.SetQuantity(r.Context(), principal.UserID, productID, req.Quantity)
	h.writeCart(w, r, cart, err)
}

// RemoveItem DELETE /cart/items/{productID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	productID, err := uintParam(r, "productID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	cart, err := h.cartService.Remove(r.Context(), principal.UserID, productID)
	h.writeCart(w, r, cart, err)
}

// ClearCart DELETE /cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := h.cartService.Clear(r.Context(), principal.UserID); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request, cart *model.Cart, err error) {
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, dto.ConvertCartToDTO(cart))
}
