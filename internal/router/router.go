package router // wires HTTP routes to their handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/coldscholor/shared-room/internal/config"
	"github.com/coldscholor/shared-room/internal/handler"
	"github.com/coldscholor/shared-room/internal/middleware"
)

// Handlers bundles everything the router needs to register the API.
type Handlers struct {
	Auth    *handler.AuthHandler
	Booking *handler.BookingHandler
	Payment *handler.PaymentHandler
	Seat    *handler.SeatHandler
}

// Register mounts the full API on the provided Echo instance.
//
// Unauthenticated: the health check, auth endpoints, seat browsing and
// the payment provider callback.  Everything else lives under the JWT
// middleware; the booking routes additionally sit behind the redis
// rate limiter so one client cannot hammer a contended seat.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client, rl config.RateLimitConfig) {
	e.GET("/healthz", handler.Health)

	auth := e.Group("/api/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	// Guests may browse seats before signing up.
	e.GET("/api/v1/rooms/:room_id/seats/available", h.Seat.ListAvailable)
	e.GET("/api/v1/seats/:id", h.Seat.Get)

	// The provider callback authenticates by transaction id, not JWT.
	e.POST("/api/v1/payments/notify", h.Payment.Notify)

	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	api.Use(middleware.RateLimit(rdb, rl))

	api.POST("/orders", h.Booking.Create)
	api.GET("/orders", h.Booking.List)
	api.GET("/orders/:id", h.Booking.Get)
	api.GET("/orders/no/:order_no", h.Booking.GetByNo)
	api.POST("/orders/:id/cancel", h.Booking.Cancel)
	api.POST("/orders/:id/checkin", h.Booking.CheckIn)
	api.POST("/orders/:id/complete", h.Booking.Complete)

	api.POST("/payments", h.Payment.Create)
	api.GET("/payments/:transaction_id", h.Payment.Query)
	api.POST("/payments/:transaction_id/refund", h.Payment.Refund)
}
