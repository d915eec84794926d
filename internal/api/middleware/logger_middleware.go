package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type StatusRecoder struct {
	http.ResponseWriter
	status int
}

func (w *StatusRecoder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecoder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *StatusRecoder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// LoggerMiddleware 記錄 request, 並把帶 request_id 的 logger 放進 ctx 給後續使用
// 需要放在 RequestIdMiddleware 與 AuthPayloadMiddleware 之後
func LoggerMiddleware(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := GetRequestID(r.Context())
			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx := reqLogger.WithContext(r.Context())

			recoder := &StatusRecoder{ResponseWriter: w}
			next.ServeHTTP(recoder, r.WithContext(ctx))

			event := reqLogger.Info()
			if recoder.Status() >= http.StatusInternalServerError {
				event = reqLogger.Error()
			} else if recoder.Status() >= http.StatusBadRequest {
				event = reqLogger.Warn()
			}
			if principal, ok := GetPrincipal(r.Context()); ok {
				event = event.Int("user_id", principal.UserID).Str("role", string(principal.Role))
			}
			event.
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Str("remote_addr", r.RemoteAddr).
				Int("status", recoder.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
