package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/tickettheatre/core-service/internal/service"
)

// ReservationHandler exposes the reservation ledger over HTTP.  All
// methods assume JWT authentication has already run; the user id is
// taken from the request context, never from the body.
type ReservationHandler struct {
    Svc *service.ReservationService
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
    if svc == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Svc: svc}
}

// CreateHold handles POST /v1/seances/:id/reservations.  It places a
// time-boxed hold on quantity seats.  The response carries the full
// reservation including its booking reference and expiry.
func (h *ReservationHandler) CreateHold(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return respondKind(c, http.StatusUnauthorized, KindValidation, "unauthorized", nil)
    }
    seanceID, err := pathID(c, "id")
    if err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    }
    var body struct {
        Quantity uint32   `json:"quantity"`
        Seats    []string `json:"seats"`
    }
    if err := c.Bind(&body); err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, "invalid request body", nil)
    }

    res, err := h.Svc.CreateHold(c.Request().Context(), seanceID, userID, body.Quantity, body.Seats)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusCreated, toReservationJSON(res))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return respondKind(c, http.StatusUnauthorized, KindValidation, "unauthorized", nil)
    }
    id, err := pathID(c, "id")
    if err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    }
    res, err := h.Svc.Get(c.Request().Context(), id, userID)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusOK, toReservationJSON(res))
}

// GetByReference handles GET /v1/bookings/:reference, the box-office
// lookup by the human-presentable code.
func (h *ReservationHandler) GetByReference(c echo.Context) error {
    ref := c.Param("reference")
    if ref == "" {
        return respondKind(c, http.StatusBadRequest, KindValidation, "reference is required", nil)
    }
    res, err := h.Svc.GetByReference(c.Request().Context(), ref)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusOK, toReservationJSON(res))
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return respondKind(c, http.StatusUnauthorized, KindValidation, "unauthorized", nil)
    }
    list, err := h.Svc.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]reservationJSON, 0, len(list))
    for i := range list {
        out = append(out, toReservationJSON(&list[i]))
    }
    return respondOK(c, http.StatusOK, out)
}

// Cancel handles DELETE /v1/reservations/:id.  Paid reservations are
// refunded through the gateway before the cancellation lands.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return respondKind(c, http.StatusUnauthorized, KindValidation, "unauthorized", nil)
    }
    id, err := pathID(c, "id")
    if err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    }
    var body struct {
        Reason string `json:"cancellation_reason"`
    }
    // The body is optional for cancellation.
    _ = c.Bind(&body)

    res, err := h.Svc.Cancel(c.Request().Context(), id, userID, body.Reason)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusOK, toReservationJSON(res))
}

// InitiatePayment handles POST /v1/reservations/:id/payment.  It
// creates a payment intent at the gateway and stores the payment
// reference so the webhook can be matched later.  The client secret
// is returned to the browser to finish the payment.
func (h *ReservationHandler) InitiatePayment(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return respondKind(c, http.StatusUnauthorized, KindValidation, "unauthorized", nil)
    }
    id, err := pathID(c, "id")
    if err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    }
    var body struct {
        CustomerEmail string `json:"customer_email"`
    }
    if err := c.Bind(&body); err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, "invalid request body", nil)
    }

    res, intent, err := h.Svc.InitiatePayment(c.Request().Context(), id, userID, body.CustomerEmail)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusOK, echo.Map{
        "reservation":   toReservationJSON(res),
        "payment_ref":   intent.PaymentRef,
        "client_secret": intent.ClientSecret,
    })
}

// ConfirmPayment handles POST /v1/reservations/:id/confirm, the
// synchronous confirmation path used when the client already knows
// the payment outcome.  The webhook remains authoritative; both paths
// go through the same guards.
func (h *ReservationHandler) ConfirmPayment(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return respondKind(c, http.StatusUnauthorized, KindValidation, "unauthorized", nil)
    }
    id, err := pathID(c, "id")
    if err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    }
    var body struct {
        PaymentRef string `json:"payment_ref"`
    }
    if err := c.Bind(&body); err != nil || body.PaymentRef == "" {
        return respondKind(c, http.StatusBadRequest, KindValidation, "payment_ref is required", nil)
    }

    res, err := h.Svc.Confirm(c.Request().Context(), id, userID, body.PaymentRef)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusOK, toReservationJSON(res))
}

// Availability handles GET /v1/seances/:id/availability.  It is
// public: guests check remaining seats before signing in.
func (h *ReservationHandler) Availability(c echo.Context) error {
    seanceID, err := pathID(c, "id")
    if err != nil {
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    }
    av, err := h.Svc.Availability(c.Request().Context(), seanceID)
    if err != nil {
        return respondError(c, err)
    }
    return respondOK(c, http.StatusOK, av)
}
