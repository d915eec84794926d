package api

import "github.com/RoyceAzure/lab/storefront/internal/api/handler"

type Server struct {
	CartHandler     *handler.CartHandler
	CheckoutHandler *handler.CheckoutHandler
	OrderHandler    *handler.OrderHandler
	ReviewHandler   *handler.ReviewHandler
	ProductHandler  *handler.ProductHandler
	HealthHandler   *handler.HealthHandler
}

func NewServer(
	cartHandler *handler.CartHandler,
	checkoutHandler *handler.CheckoutHandler,
	orderHandler *handler.OrderHandler,
	reviewHandler *handler.ReviewHandler,
	productHandler *handler.ProductHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	return &Server{
		CartHandler:     cartHandler,
		CheckoutHandler: checkoutHandler,
		OrderHandler:    orderHandler,
		ReviewHandler:   reviewHandler,
		ProductHandler:  productHandler,
		HealthHandler:   healthHandler,
	}
}
