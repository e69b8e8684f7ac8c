package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/tickettheatre/core-service/internal/handler"
    "github.com/tickettheatre/core-service/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check, the public availability endpoint and the payment
// webhook.  The webhook carries no user credential; it is called by
// the payment-service, and the deployment restricts who can reach it.
func RegisterRoutes(e *echo.Echo, rh *handler.ReservationHandler, wh *handler.WebhookHandler) {
    e.GET("/healthz", handler.Health)
    // Guests check remaining seats while browsing the programme.
    e.GET("/v1/seances/:id/availability", rh.Availability)
    e.POST("/v1/webhooks/payment", wh.HandlePaymentWebhook)
}

// RegisterReservations registers the authenticated reservation
// endpoints under /v1.  Every route requires a valid access token
// from the auth-service; the user id comes from the token, never
// from the request body.
func RegisterReservations(e *echo.Echo, rh *handler.ReservationHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
    mw := append([]echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}, extra...)
    g := e.Group("/v1", mw...)

    g.POST("/seances/:id/reservations", rh.CreateHold)
    g.GET("/my-reservations", rh.ListMine)
    g.GET("/reservations/:id", rh.Get)
    g.DELETE("/reservations/:id", rh.Cancel)
    g.POST("/reservations/:id/payment", rh.InitiatePayment)
    g.POST("/reservations/:id/confirm", rh.ConfirmPayment)
    // Box-office lookup by the human-presentable booking reference.
    g.GET("/bookings/:reference", rh.GetByReference)
}
