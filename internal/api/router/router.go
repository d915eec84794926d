package router

import (
	"net/http"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	m "github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const requestTimeout = 15 * time.Second

// SetupRouter checkoutLimiter 為 nil 時結帳不限流
func SetupRouter(server *api.Server, auth *m.Authenticator, checkoutLimiter ratelimit.Limiter, logger *zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// 全局中間件, AuthPayload 要在 Logger 之前才記得到 user
	r.Use(m.RequestIdMiddleware)
	r.Use(middleware.RealIP)
	r.Use(m.AuthPayloadMiddleware(auth))
	r.Use(m.LoggerMiddleware(logger))
	r.Use(m.RecoverMiddleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", server.HealthHandler.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		// 公開路由
		r.Get("/products/{productID}", server.ProductHandler.GetProduct)
		r.Get("/products/{productID}/reviews", server.ReviewHandler.ListProductReviews)

		r.Group(func(r chi.Router) {
			r.Use(m.AuthMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", server.CartHandler.GetCart)
				r.Delete("/", server.CartHandler.ClearCart)
				r.Post("/items", server.CartHandler.AddItem)
				r.Put("/items/{productID}", server.CartHandler.SetQuantity)
				r.Delete("/items/{productID}", server.CartHandler.RemoveItem)
			})

			checkout := r.With()
			if checkoutLimiter != nil {
				checkout = r.With(m.RateLimitMiddleware(checkoutLimiter, "checkout"))
			}
			checkout.Post("/checkout", server.CheckoutHandler.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", server.OrderHandler.ListMyOrders)
				r.Get("/{orderID}", server.OrderHandler.GetOrder)
				r.Post("/{orderID}/cancel", server.OrderHandler.CancelOrder)
			})

			r.Post("/products/{productID}/reviews", server.ReviewHandler.CreateReview)
			r.Put("/reviews/{reviewID}", server.ReviewHandler.UpdateReview)
			r.Delete("/reviews/{reviewID}", server.ReviewHandler.DeleteReview)

			// admin 權限由 service 判斷
			r.Route("/admin", func(r chi.Router) {
				r.Get("/orders", server.OrderHandler.ListAllOrders)
				r.Patch("/orders/{orderID}/status", server.OrderHandler.UpdateOrderStatus)
				r.Post("/reviews/{reviewID}/reply", server.ReviewHandler.ReplyReview)
			})
		})
	})

	if logger != nil {
		chi.Walk(r, func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			logger.Debug().Str("method", method).Str("route", route).Msg("route registered")
			return nil
		})
	}
	return r
}
