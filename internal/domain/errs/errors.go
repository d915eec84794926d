package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock 庫存不足
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductUnavailable 商品已下架或不存在
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrEmptyCart 購物車為空
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDuplicateReview 同一用戶對同一商品只能有一則評論
	ErrDuplicateReview = errors.New("review already exists for this product")
	// ErrInvalidTransition 訂單狀態轉換不合法
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidArgument   = errors.New("invalid argument")
)

type InsufficientStockError struct {
	ProductID uint
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

func NewInsufficientStock(productID uint, name string, requested, available int) error {
	return &InsufficientStockError{
		ProductID: productID,
		Name:      name,
		Requested: requested,
		Available: available,
	}
}

type ProductUnavailableError struct {
	ProductID uint
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("product %d is unavailable", e.ProductID)
	}
	return fmt.Sprintf("product %d (%s) is unavailable", e.ProductID, e.Name)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrProductUnavailable }

func NewProductUnavailable(productID uint, name string) error {
	return &ProductUnavailableError{ProductID: productID, Name: name}
}

type InvalidTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("order %s cannot be changed in status %q", e.OrderID, e.From)
	}
	return fmt.Sprintf("order %s cannot move from status %q to %q", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

func NewInvalidTransition(orderID, from, to string) error {
	return &InvalidTransitionError{OrderID: orderID, From: from, To: to}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// Unauthorizedf 與 InvalidArgumentf 只需要訊息，不需要額外欄位
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Kind 錯誤分類, 給 api 層做 status code 對應
type Kind string

const (
	KindInsufficientStock  Kind = "insufficient_stock"
	KindProductUnavailable Kind = "product_unavailable"
	KindEmptyCart          Kind = "empty_cart"
	KindDuplicateReview    Kind = "duplicate_review"
	KindInvalidTransition  Kind = "invalid_transition"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidArgument    Kind = "invalid_argument"
	KindInternal           Kind = "internal"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrProductUnavailable):
		return KindProductUnavailable
	case errors.Is(err, ErrEmptyCart):
		return KindEmptyCart
	case errors.Is(err, ErrDuplicateReview):
		return KindDuplicateReview
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}
