package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/tickettheatre/core-service/internal/model"
)

// Stable machine-readable error kinds.  Clients branch on these, not
// on HTTP status codes: DEPENDENCY_UNAVAILABLE and CONFLICT are
// retryable, the rest are terminal for the request that produced
// them.
const (
    KindValidation             = "VALIDATION_ERROR"
    KindNotFound               = "NOT_FOUND"
    KindPerformanceNotBookable = "PERFORMANCE_NOT_BOOKABLE"
    KindInsufficientCapacity   = "INSUFFICIENT_CAPACITY"
    KindAlreadyFinal           = "ALREADY_FINAL"
    KindAlreadyExpired         = "ALREADY_EXPIRED"
    KindConflict               = "CONFLICT"
    KindDependencyUnavailable  = "DEPENDENCY_UNAVAILABLE"
    KindInternal               = "INTERNAL"
)

// respondOK writes the success envelope.
func respondOK(c echo.Context, status int, data interface{}) error {
    return c.JSON(status, echo.Map{"success": true, "data": data})
}

// respondKind writes a failure envelope with an explicit kind.
func respondKind(c echo.Context, status int, kind, message string, extra echo.Map) error {
    errBody := echo.Map{"kind": kind, "message": message}
    for k, v := range extra {
        errBody[k] = v
    }
    return c.JSON(status, echo.Map{"success": false, "error": errBody})
}

// respondError maps a domain error onto status code and error kind.
func respondError(c echo.Context, err error) error {
    var capErr *model.InsufficientCapacityError
    switch {
    case errors.Is(err, model.ErrInvalidQuantity), errors.Is(err, model.ErrSeatLabelMismatch):
        return respondKind(c, http.StatusBadRequest, KindValidation, err.Error(), nil)
    case errors.Is(err, model.ErrSeanceNotFound), errors.Is(err, model.ErrReservationNotFound):
        return respondKind(c, http.StatusNotFound, KindNotFound, err.Error(), nil)
    case errors.Is(err, model.ErrSeanceNotBookable):
        return respondKind(c, http.StatusUnprocessableEntity, KindPerformanceNotBookable, err.Error(), nil)
    case errors.As(err, &capErr):
        return respondKind(c, http.StatusUnprocessableEntity, KindInsufficientCapacity, capErr.Error(),
            echo.Map{"remaining": capErr.Remaining})
    case errors.Is(err, model.ErrAlreadyFinal):
        return respondKind(c, http.StatusConflict, KindAlreadyFinal, err.Error(), nil)
    case errors.Is(err, model.ErrAlreadyExpired):
        return respondKind(c, http.StatusConflict, KindAlreadyExpired, err.Error(), nil)
    case errors.Is(err, model.ErrConcurrentUpdate):
        return respondKind(c, http.StatusConflict, KindConflict, err.Error(),
            echo.Map{"retryable": true})
    case errors.Is(err, model.ErrDependencyUnavailable):
        return respondKind(c, http.StatusServiceUnavailable, KindDependencyUnavailable, err.Error(),
            echo.Map{"retryable": true})
    default:
        c.Logger().Errorf("internal error: %v", err)
        return respondKind(c, http.StatusInternalServerError, KindInternal, "internal error", nil)
    }
}

// reservationJSON is the wire shape of a reservation.  Timestamps are
// RFC3339 in UTC.
type reservationJSON struct {
    ID                 uint64   `json:"id"`
    SeanceID           uint64   `json:"seance_id"`
    UserID             uint64   `json:"user_id"`
    BookingReference   string   `json:"booking_reference"`
    Quantity           uint32   `json:"quantity"`
    Seats              []string `json:"seats,omitempty"`
    TotalPriceCents    uint32   `json:"total_price_cents"`
    Status             string   `json:"status"`
    PaymentStatus      string   `json:"payment_status"`
    PaymentRef         *string  `json:"payment_ref,omitempty"`
    ExpiresAt          *string  `json:"expires_at,omitempty"`
    ConfirmedAt        *string  `json:"confirmed_at,omitempty"`
    CancelledAt        *string  `json:"cancelled_at,omitempty"`
    CancellationReason *string  `json:"cancellation_reason,omitempty"`
    CreatedAt          string   `json:"created_at"`
}

func toReservationJSON(r *model.Reservation) reservationJSON {
    out := reservationJSON{
        ID:                 r.ID,
        SeanceID:           r.SeanceID,
        UserID:             r.UserID,
        BookingReference:   r.BookingReference,
        Quantity:           r.Quantity,
        Seats:              r.Seats,
        TotalPriceCents:    r.TotalPriceCents,
        Status:             r.Status,
        PaymentStatus:      r.PaymentStatus,
        PaymentRef:         r.PaymentRef,
        CancellationReason: r.CancellationReason,
        CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
    }
    out.ExpiresAt = fmtTime(r.ExpiresAt)
    out.ConfirmedAt = fmtTime(r.ConfirmedAt)
    out.CancelledAt = fmtTime(r.CancelledAt)
    return out
}

func fmtTime(t *time.Time) *string {
    if t == nil {
        return nil
    }
    s := t.UTC().Format(time.RFC3339)
    return &s
}
