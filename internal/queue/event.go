// Package queue defines message payloads exchanged over the message broker.
package queue

// Reservation event types published on the reservation.events queue.
const (
    EventReservationConfirmed = "reservation.confirmed"
    EventReservationCancelled = "reservation.cancelled"
    EventReservationExpired   = "reservation.expired"
)

// ReservationEvent is published whenever a reservation reaches
// confirmed, cancelled or expired.  It carries enough information for
// downstream consumers to log, notify or feed analytics without
// querying the primary database.
type ReservationEvent struct {
    Type             string `json:"type"`
    ReservationID    uint64 `json:"reservation_id"`
    SeanceID         uint64 `json:"seance_id"`
    UserID           uint64 `json:"user_id"`
    BookingReference string `json:"booking_reference"`
    Quantity         uint32 `json:"quantity"`
    TotalPriceCents  uint32 `json:"total_price_cents"`
    PaymentStatus    string `json:"payment_status"`
    OccurredAt       string `json:"occurred_at"`
}
