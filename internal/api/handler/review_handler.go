package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type ReviewHandler struct {
	reviewService service.IReviewService
}

func NewReviewHandler(reviewService service.IReviewService) *ReviewHandler {
	if reviewService == nil {
		panic("reviewService cannot be nil")
	}
	return &ReviewHandler{reviewService: reviewService}
}

// ListProductReviews GET /products/{productID}/reviews, 不需登入
func (h *ReviewHandler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	reviews, err := h.reviewService.ListByProduct(r.Context(), productID)
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, reviews)
}

// CreateReview POST /products/{productID}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	productID, err := uintParam(r, "productID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	var req dto.ReviewDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	review, err := h.reviewService.Create(r.Context(), principal, productID, req.ToServiceRequest())
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusCreated, review)
}

// UpdateReview PUT /reviews/{reviewID}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reviewID, err := uintParam(r, "reviewID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	var req dto.ReviewDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	review, err := h.reviewService.Update(r.Context(), principal, reviewID, req.ToServiceRequest())
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, review)
}

// DeleteReview DELETE /reviews/{reviewID}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reviewID, err := uintParam(r, "reviewID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	if err := h.reviewService.Delete(r.Context(), principal, reviewID); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplyReview POST /admin/reviews/{reviewID}/reply
func (h *ReviewHandler) ReplyReview(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reviewID, err := uintParam(r, "reviewID")
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	var req dto.ReplyReviewDTO
	if err := decodeJSON(w, r, &req); err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	review, err := h.reviewService.Reply(r.Context(), principal, reviewID, req.Reply)
	if err != nil {
		response.ErrorJSON(w, r, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, review)
}
