package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/golang-jwt/jwt/v5"
)

// Claims 認證中心簽發的 access token, sub 為 user id
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret       []byte
	trustHeaders bool
}

func NewAuthenticator(secret string, trustHeaders bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), trustHeaders: trustHeaders}
}

/*
從 Authorization header 取得 token => 檢查 Bearer => 驗證簽章與期限 => 轉成 Principal
AUTH_TRUST_HEADERS 開啟時 (僅限開發) 改讀 X-User-ID / X-User-Role
*/
func (a *Authenticator) Authenticate(r *http.Request) (*service.Principal, error) {
	if a.trustHeaders && r.Header.Get(constants.TrustedUserIDHeader) != "" {
		return principalFromHeaders(r)
	}

	authHeader := strings.Fields(r.Header.Get(constants.AuthorizationHeader))
	if len(authHeader) == 0 {
		return nil, errors.New("missing authorization header")
	}
	if len(authHeader) != 2 {
		return nil, errors.New("invalid auth format")
	}
	if strings.ToLower(authHeader[0]) != constants.AuthorizationBearer {
		return nil, fmt.Errorf("unsupported authorization type: %s", authHeader[0])
	}
	if len(a.secret) == 0 {
		return nil, errors.New("token verification is not configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(authHeader[1], claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	role := constants.RoleCustomer
	if claims.Role != "" {
		if !constants.IsValidRole(claims.Role) {
			return nil, fmt.Errorf("invalid role %q", claims.Role)
		}
		role = constants.Role(claims.Role)
	}
	return &service.Principal{UserID: userID, Role: role}, nil
}

func principalFromHeaders(r *http.Request) (*service.Principal, error) {
	userID, err := strconv.Atoi(r.Header.Get(constants.TrustedUserIDHeader))
	if err != nil || userID <= 0 {
		return nil, errors.New("invalid user id header")
	}
	role := constants.RoleCustomer
	if h := r.Header.Get(constants.TrustedUserRoleHeader); h != "" {
		if !constants.IsValidRole(h) {
			return nil, fmt.Errorf("invalid role header %q", h)
		}
		role = constants.Role(h)
	}
	return &service.Principal{UserID: userID, Role: role}, nil
}

// AuthPayloadMiddleware 有帶 token 就解析放進 ctx, 不檢查是否必須
func AuthPayloadMiddleware(auth *Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.Authenticate(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), constants.PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthMiddleware 驗證 ctx 是否有 principal
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipal(r.Context()); !ok {
			response.UnauthenticatedJSON(w, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetPrincipal(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(constants.PrincipalKey).(*service.Principal)
	if !ok || p == nil {
		return service.Principal{}, false
	}
	return *p, true
}

func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, constants.PrincipalKey, &p)
}
