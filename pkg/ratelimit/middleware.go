package ratelimit

import (
	"encoding/json"
	"net/http"
)

// KeyFunc 決定請求歸屬哪個 bucket
type KeyFunc func(r *http.Request) string

func RemoteAddrKey(r *http.Request) string {
	return r.RemoteAddr
}

// NewRateLimitMiddleware 超過限制回 429
func NewRateLimitMiddleware(limiter Limiter, scope string, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = RemoteAddrKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), scope+":"+keyFunc(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"code":    "rate_limited",
					"message": "Too Many Requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
