package middleware

import (
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
)

// PrincipalOrIPKey 已登入以 user 計算, 否則以來源 ip
func PrincipalOrIPKey(r *http.Request) string {
	if p, ok := GetPrincipal(r.Context()); ok {
		return "user:" + strconv.Itoa(p.UserID)
	}
	return "ip:" + r.RemoteAddr
}

func RateLimitMiddleware(limiter ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return ratelimit.NewRateLimitMiddleware(limiter, scope, PrincipalOrIPKey)
}
