package model

import "time"

// Reservation statuses.  pending moves to confirmed, cancelled or
// expired; confirmed may still be cancelled (after a refund); the
// other two are terminal.  No transition re-enters pending.
const (
    StatusPending   = "pending"
    StatusConfirmed = "confirmed"
    StatusCancelled = "cancelled"
    StatusExpired   = "expired"
)

// Payment statuses tracked alongside the reservation status.  A
// confirmed reservation always has payment status paid.
const (
    PaymentPending  = "pending"
    PaymentPaid     = "paid"
    PaymentRefunded = "refunded"
    PaymentFailed   = "failed"
)

// Reservation is a user's time-boxed claim on seats for a seance.  A
// freshly created reservation is a hold: it stays pending with an
// expiry timestamp until payment confirms it, the user cancels it or
// the sweeper expires it.  Rows are never deleted; terminal states
// are persisted for audit and idempotent webhook replay.
//
// Fields:
//  ID                 – primary key identifier.
//  SeanceID           – seance being reserved.
//  UserID             – user who placed the hold (owned by auth-service).
//  BookingReference   – immutable, globally unique human-presentable code.
//  Quantity           – number of seats (1..10).
//  Seats              – assigned seat labels; nil means free placement.
//  TotalPriceCents    – quantity * seance price at hold time, in cents.
//  Status             – pending, confirmed, cancelled or expired.
//  PaymentStatus      – pending, paid, refunded or failed.
//  PaymentRef         – external payment reference, once payment is initiated.
//  ExpiresAt          – hold deadline; enforced only while pending.
//  ConfirmedAt        – set when the reservation is confirmed.
//  CancelledAt        – set when the reservation is cancelled.
//  CancellationReason – human-readable reason, distinct per trigger.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Reservation struct {
    ID                 uint64     // reservations.id
    SeanceID           uint64     // reservations.seance_id
    UserID             uint64     // reservations.user_id
    BookingReference   string     // reservations.booking_reference
    Quantity           uint32     // reservations.quantity
    Seats              []string   // reservations.seats (nullable JSON)
    TotalPriceCents    uint32     // reservations.total_price_cents
    Status             string     // reservations.status
    PaymentStatus      string     // reservations.payment_status
    PaymentRef         *string    // reservations.payment_ref (nullable)
    ExpiresAt          *time.Time // reservations.expires_at (nullable)
    ConfirmedAt        *time.Time // reservations.confirmed_at (nullable)
    CancelledAt        *time.Time // reservations.cancelled_at (nullable)
    CancellationReason *string    // reservations.cancellation_reason (nullable)
    CreatedAt          time.Time  // reservations.created_at
    UpdatedAt          time.Time  // reservations.updated_at
}

// Terminal reports whether the reservation reached a state that
// admits no further transitions.
func (r *Reservation) Terminal() bool {
    return r.Status == StatusCancelled || r.Status == StatusExpired
}

// ExpiredAt reports whether a pending hold has logically expired at
// the given instant, regardless of whether the sweeper has flipped
// its status yet.  Availability sums must use this, not the stored
// status, so a lagging sweeper never makes capacity look exhausted.
func (r *Reservation) ExpiredAt(at time.Time) bool {
    return r.Status == StatusPending && r.ExpiresAt != nil && !r.ExpiresAt.After(at)
}

// CountsAgainstCapacity reports whether the reservation occupies
// seats at the given instant: confirmed always does, pending only
// while its hold has not expired.
func (r *Reservation) CountsAgainstCapacity(at time.Time) bool {
    switch r.Status {
    case StatusConfirmed:
        return true
    case StatusPending:
        return !r.ExpiredAt(at)
    }
    return false
}

// Confirm transitions a pending reservation to confirmed and marks it
// paid.  The payment reference is recorded when not already set.  A
// confirmation past the hold deadline flips the reservation to
// expired as a side effect and returns ErrAlreadyExpired; callers
// must persist the mutation in that case too.
func (r *Reservation) Confirm(now time.Time, paymentRef string) error {
    if r.Terminal() {
        return ErrAlreadyFinal
    }
    if r.Status == StatusConfirmed || r.PaymentStatus != PaymentPending {
        return ErrAlreadyFinal
    }
    if r.ExpiredAt(now) {
        r.Status = StatusExpired
        return ErrAlreadyExpired
    }
    r.Status = StatusConfirmed
    r.PaymentStatus = PaymentPaid
    t := now
    r.ConfirmedAt = &t
    if paymentRef != "" {
        ref := paymentRef
        r.PaymentRef = &ref
    }
    return nil
}

// Cancel transitions a pending or confirmed reservation to cancelled,
// recording when and why.  paymentStatus states what the payment
// became under this trigger: PaymentFailed for failed or canceled
// payments, PaymentRefunded after a refund, or empty to leave the
// current payment status untouched (plain cancellation before any
// payment).
func (r *Reservation) Cancel(now time.Time, reason, paymentStatus string) error {
    if r.Terminal() {
        return ErrAlreadyFinal
    }
    r.Status = StatusCancelled
    t := now
    r.CancelledAt = &t
    if reason != "" {
        rs := reason
        r.CancellationReason = &rs
    }
    if paymentStatus != "" {
        r.PaymentStatus = paymentStatus
    }
    return nil
}

// Expire flips a pending hold past its deadline to expired.  It
// returns true when the reservation was mutated; confirmed, cancelled
// and already-expired reservations are left untouched so the sweeper
// can safely race with confirmation.
func (r *Reservation) Expire(now time.Time) bool {
    if !r.ExpiredAt(now) {
        return false
    }
    r.Status = StatusExpired
    return true
}
