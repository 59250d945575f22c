package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/restaurant-reservation/internal/handler"    // import the handlers that implement business logic
    "github.com/iliyamo/restaurant-reservation/internal/middleware" // import middleware for session validation and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Map the GET request at path "/healthz" to the Health handler.  This
    // endpoint can be used by load balancers or monitoring systems to verify
    // that the service is up and running.
    e.GET("/healthz", handler.Health)
}

// RegisterPayments registers the reservation–payment endpoints.  Everything
// lives under /v1.  Only the refund-side routes are wrapped in SessionAuth:
// a refund moves money back and therefore requires a verified caller
// identity from the identity collaborator, while order creation and capture
// are driven by the guest checkout flow.  All payment routes share the
// Redis rate limiter; rdb may be nil, in which case limiting is disabled.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler, jwtSecret string, rdb *redis.Client) {
    limited := e.Group("/v1", middleware.RateLimit(rdb))

    // Guest checkout: open an order, then settle it after external approval.
    limited.POST("/payments/orders", h.CreateOrder)
    limited.POST("/payments/orders/:id/capture", h.CaptureOrder)

    // Reservation lifecycle around the payment.
    limited.POST("/reservations", h.CreateReservation)
    limited.GET("/reservations/:id", h.GetReservation)
    limited.POST("/reservations/:id/payment", h.AttachPayment)
    limited.POST("/reservations/:id/cancel", h.CancelReservation)

    // Refund-side routes require a valid session.
    authed := limited.Group("", middleware.SessionAuth(jwtSecret))
    authed.POST("/payments/refunds", h.Refund)
    authed.GET("/payments/reconciliation", h.ListReconciliation)
}
