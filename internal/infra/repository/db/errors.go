package db

import (
	"errors"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateOrderNumber 訂單編號撞號, 由呼叫端重新產生
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	// ErrDuplicateIdempotencyKey 同一 user 重複送出同一個 idempotency key
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrDuplicateProductCode    = errors.New("product code already exists")
)

const pgUniqueViolation = "23505"

// uniqueViolation 回傳是否為 unique 衝突以及衝突的 constraint 名稱
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}

func notFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NewNotFound(resource, id)
	}
	return err
}

func orderCreateError(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(constraint, "idem"):
		return ErrDuplicateIdempotencyKey
	default:
		return ErrDuplicateOrderNumber
	}
}
