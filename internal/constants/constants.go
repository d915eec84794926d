package constants

const (
	//分頁
	DefaultPagingSize int = 20
	DefaultPaging     int = 1
	MaxPagingSize     int = 100
)

type ENV string

const (
	Debug ENV = "debug"
	Dev   ENV = "development"
	Stag  ENV = "staging"
	Prod  ENV = "production"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	PrincipalKey ContextKey = "principal"
)

// header
const (
	AuthorizationHeader   = "Authorization"
	AuthorizationBearer   = "bearer"
	RequestIDHeader       = "X-Request-ID"
	IdempotencyKeyHeader  = "Idempotency-Key"
	TrustedUserIDHeader   = "X-User-ID"
	TrustedUserRoleHeader = "X-User-Role"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func IsValidRole(role string) bool {
	switch Role(role) {
	case RoleCustomer, RoleAdmin:
		return true
	default:
		return false
	}
}
