package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/rs/zerolog"
)

type Response struct {
	Data any `json:"data,omitempty"`
}

type ResponseError struct {
	Code    errs.Kind      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func SuccessJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// StatusOf 錯誤分類對應 http status
func StatusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindInsufficientStock, errs.KindProductUnavailable, errs.KindDuplicateReview, errs.KindInvalidTransition:
		return http.StatusConflict
	case errs.KindEmptyCart:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorJSON 500 只回傳固定訊息, 細節寫 log
func ErrorJSON(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := StatusOf(kind)
	body := ResponseError{
		Code:    kind,
		Message: err.Error(),
		Details: detailsOf(err),
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Msg("request failed")
		body.Message = "internal server error"
		body.Details = nil
	}
	writeJSON(w, status, body)
}

func UnauthenticatedJSON(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, ResponseError{
		Code:    errs.KindUnauthorized,
		Message: message,
	})
}

func detailsOf(err error) map[string]any {
	var (
		stockErr      *errs.InsufficientStockError
		unavailable   *errs.ProductUnavailableError
		transitionErr *errs.InvalidTransitionError
		notFound      *errs.NotFoundError
	)
	switch {
	case errors.As(err, &stockErr):
		return map[string]any{
			"product_id": stockErr.ProductID,
			"name":       stockErr.Name,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		}
	case errors.As(err, &unavailable):
		return map[string]any{
			"product_id": unavailable.ProductID,
			"name":       unavailable.Name,
		}
	case errors.As(err, &transitionErr):
		return map[string]any{
			"order_id": transitionErr.OrderID,
			"from":     transitionErr.From,
			"to":       transitionErr.To,
		}
	case errors.As(err, &notFound):
		return map[string]any{
			"resource": notFound.Resource,
			"id":       notFound.ID,
		}
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
