package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/tickettheatre/core-service/internal/model"
    "github.com/tickettheatre/core-service/internal/service"
)

// WebhookHandler receives payment outcome notifications from the
// payment-service.  The route is unauthenticated from the user's
// perspective; the deployment restricts it to the gateway network.
type WebhookHandler struct {
    Reconciler *service.Reconciler
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(rec *service.Reconciler) *WebhookHandler {
    if rec == nil {
        panic("nil reconciler passed to NewWebhookHandler")
    }
    return &WebhookHandler{Reconciler: rec}
}

// paymentWebhookBody mirrors the payment-service notification shape.
type paymentWebhookBody struct {
    Event   string `json:"event"`
    EventID string `json:"event_id"`
    Payment struct {
        ID     string `json:"id"`
        Amount uint32 `json:"amount"`
    } `json:"payment"`
}

// HandlePaymentWebhook handles POST /v1/webhooks/payment.  Duplicate
// and stale deliveries are acknowledged so the gateway stops
// retrying; only an unmatched payment reference answers 404, leaving
// the retry decision to the gateway.
func (h *WebhookHandler) HandlePaymentWebhook(c echo.Context) error {
    var body paymentWebhookBody
    if err := c.Bind(&body); err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, "invalid webhook payload", nil)
    }
    if body.Event == "" || body.Payment.ID == "" {
        return respondKind(c, http.StatusBadRequest, KindValidation, "event and payment.id are required", nil)
    }

    outcome, err := h.Reconciler.Process(c.Request().Context(), model.PaymentEvent{
        EventID:     body.EventID,
        Kind:        body.Event,
        PaymentRef:  body.Payment.ID,
        AmountCents: body.Payment.Amount,
    })
    if err != nil {
        return respondError(c, err)
    }
    if outcome == service.OutcomeUnmatched {
        return respondKind(c, http.StatusNotFound, KindNotFound, "no reservation for payment reference", nil)
    }
    return respondOK(c, http.StatusOK, echo.Map{"outcome": outcome})
}
