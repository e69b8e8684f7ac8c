// Package service implements the reservation ledger: hold creation,
// availability, the confirm/cancel/expire state machine, the expiry
// sweeper and the payment-event reconciler.  Handlers stay thin; all
// invariants live here and in the storage layer.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/tickettheatre/core-service/internal/model"
    "github.com/tickettheatre/core-service/internal/payment"
    "github.com/tickettheatre/core-service/internal/queue"
    "github.com/tickettheatre/core-service/internal/storage"
)

// Quantity bounds for a single hold.
const (
    minQuantity = 1
    maxQuantity = 10
)

// referenceAttempts bounds booking reference regeneration on
// collision before giving up.
const referenceAttempts = 5

// Default cancellation reasons, one per trigger, so an auditor can
// tell from the row alone why a reservation died.
const (
    reasonUserCancelled   = "cancelled by user"
    reasonPaymentFailed   = "payment failed"
    reasonPaymentCanceled = "payment canceled"
    reasonRefunded        = "payment refunded"
)

// PaymentGateway is the slice of the payment client the ledger needs.
type PaymentGateway interface {
    CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
    Refund(ctx context.Context, paymentRef string, amountCents uint32) error
}

// EventPublisher delivers reservation lifecycle events to the broker.
// Publishing is best-effort: failures are logged, never surfaced to
// the user request.
type EventPublisher interface {
    PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}

// Availability is the remaining-capacity view for one seance.
type Availability struct {
    SeanceID  uint64 `json:"seance_id"`
    Capacity  uint32 `json:"capacity"`
    Booked    uint32 `json:"booked"`
    Remaining uint32 `json:"remaining"`
}

// ReservationService owns the reservation lifecycle.  The clock is a
// field so expiry behavior is testable.
type ReservationService struct {
    store    storage.Store
    payments PaymentGateway
    events   EventPublisher
    holdTTL  time.Duration
    now      func() time.Time
}

// NewReservationService constructs the ledger.  The store must be
// non-nil; payments and events may be nil in partial deployments
// (payment initiation and refunds then report the gateway as
// unavailable, events are skipped).
func NewReservationService(store storage.Store, payments PaymentGateway, events EventPublisher, holdTTL time.Duration) *ReservationService {
    if store == nil {
        panic("nil store passed to NewReservationService")
    }
    if holdTTL <= 0 {
        holdTTL = 15 * time.Minute
    }
    return &ReservationService{
        store:    store,
        payments: payments,
        events:   events,
        holdTTL:  holdTTL,
        now:      func() time.Time { return time.Now().UTC() },
    }
}

// CreateHold places a pending reservation for quantity seats on a
// seance.  The remaining-capacity check and the insert run as one
// atomic unit inside the store, so concurrent holds for the same
// seance cannot oversell.  The hold expires holdTTL after creation.
func (s *ReservationService) CreateHold(ctx context.Context, seanceID, userID uint64, quantity uint32, seats []string) (*model.Reservation, error) {
    if quantity < minQuantity || quantity > maxQuantity {
        return nil, model.ErrInvalidQuantity
    }
    if len(seats) > 0 && uint32(len(seats)) != quantity {
        return nil, model.ErrSeatLabelMismatch
    }
    now := s.now()

    se, err := s.store.GetSeance(ctx, seanceID)
    if err != nil {
        return nil, err
    }
    if !se.Bookable(now) {
        return nil, model.ErrSeanceNotBookable
    }

    expires := now.Add(s.holdTTL)
    res := &model.Reservation{
        SeanceID:        seanceID,
        UserID:          userID,
        Quantity:        quantity,
        Seats:           seats,
        TotalPriceCents: se.PriceCents * quantity,
        Status:          model.StatusPending,
        PaymentStatus:   model.PaymentPending,
        ExpiresAt:       &expires,
    }

    // A reference collision regenerates and retries rather than
    // failing the hold.
    for attempt := 0; attempt < referenceAttempts; attempt++ {
        ref, err := NewBookingReference(now)
        if err != nil {
            return nil, err
        }
        res.BookingReference = ref
        err = s.store.CreateHold(ctx, res, now)
        if errors.Is(err, storage.ErrReferenceTaken) {
            continue
        }
        if err != nil {
            return nil, err
        }
        return res, nil
    }
    return nil, fmt.Errorf("could not generate a unique booking reference after %d attempts", referenceAttempts)
}

// Availability computes the remaining bookable capacity for a seance
// right now.  Pending holds past their deadline are excluded even if
// the sweeper has not caught up.
func (s *ReservationService) Availability(ctx context.Context, seanceID uint64) (*Availability, error) {
    se, err := s.store.GetSeance(ctx, seanceID)
    if err != nil {
        return nil, err
    }
    booked, err := s.store.ActiveQuantity(ctx, seanceID, s.now())
    if err != nil {
        return nil, err
    }
    remaining := uint32(0)
    if se.Capacity > booked {
        remaining = se.Capacity - booked
    }
    return &Availability{SeanceID: se.ID, Capacity: se.Capacity, Booked: booked, Remaining: remaining}, nil
}

// Get returns the user's reservation.  Reservations belonging to
// other users read as not found rather than leaking their existence.
func (s *ReservationService) Get(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
    r, err := s.store.GetReservation(ctx, id)
    if err != nil {
        return nil, err
    }
    if r.UserID != userID {
        return nil, model.ErrReservationNotFound
    }
    return r, nil
}

// GetByReference returns a reservation by its booking reference.
func (s *ReservationService) GetByReference(ctx context.Context, ref string) (*model.Reservation, error) {
    return s.store.GetReservationByReference(ctx, ref)
}

// ListByUser returns the user's reservations, newest first.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
    return s.store.ListReservationsByUser(ctx, userID)
}

// InitiatePayment creates a payment intent at the gateway for a
// pending, unexpired hold and records the returned payment reference
// on the reservation.  The reference must be persisted before the
// gateway's webhook can possibly arrive.
func (s *ReservationService) InitiatePayment(ctx context.Context, id, userID uint64, customerEmail string) (*model.Reservation, *payment.Intent, error) {
    r, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, nil, err
    }
    now := s.now()
    if r.Terminal() {
        return nil, nil, model.ErrAlreadyFinal
    }
    if r.ExpiredAt(now) {
        // Persist the lazily detected expiry before rejecting.
        _, _ = s.store.UpdateReservation(ctx, id, now, func(res *model.Reservation) error {
            res.Expire(now)
            return nil
        })
        return nil, nil, model.ErrAlreadyExpired
    }
    if s.payments == nil {
        return nil, nil, model.ErrDependencyUnavailable
    }

    intent, err := s.payments.CreateIntent(ctx, payment.IntentRequest{
        AmountCents:   r.TotalPriceCents,
        UserID:        userID,
        CustomerEmail: customerEmail,
        ReservationID: r.ID,
        Metadata:      map[string]string{"booking_reference": r.BookingReference},
    })
    if err != nil {
        log.Printf("ledger: create payment intent for reservation %d failed: %v", id, err)
        return nil, nil, model.ErrDependencyUnavailable
    }

    updated, err := s.store.UpdateReservation(ctx, id, s.now(), func(res *model.Reservation) error {
        if res.Terminal() {
            return model.ErrAlreadyFinal
        }
        ref := intent.PaymentRef
        res.PaymentRef = &ref
        return nil
    })
    if err != nil {
        return nil, nil, err
    }
    return updated, intent, nil
}

// Confirm transitions a pending reservation to confirmed after
// payment.  Confirmation past the hold deadline persists the expired
// status and returns ErrAlreadyExpired; a second confirmation returns
// ErrAlreadyFinal without mutating anything.
func (s *ReservationService) Confirm(ctx context.Context, id, userID uint64, paymentRef string) (*model.Reservation, error) {
    if _, err := s.Get(ctx, id, userID); err != nil {
        return nil, err
    }
    return s.confirmByID(ctx, id, paymentRef)
}

func (s *ReservationService) confirmByID(ctx context.Context, id uint64, paymentRef string) (*model.Reservation, error) {
    now := s.now()
    updated, err := s.store.UpdateReservation(ctx, id, now, func(res *model.Reservation) error {
        return res.Confirm(now, paymentRef)
    })
    if err != nil {
        return updated, err
    }
    s.publish(ctx, queue.EventReservationConfirmed, updated)
    return updated, nil
}

// Cancel cancels a pending or confirmed reservation on behalf of the
// user.  A paid reservation is refunded through the gateway first;
// only a refund ack moves it to cancelled with payment status
// refunded, so the ledger never records a cancellation it cannot
// account for.  Gateway failure leaves the reservation untouched and
// reports a retryable error.
func (s *ReservationService) Cancel(ctx context.Context, id, userID uint64, reason string) (*model.Reservation, error) {
    r, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if r.Terminal() {
        return nil, model.ErrAlreadyFinal
    }
    if reason == "" {
        reason = reasonUserCancelled
    }

    paymentStatus := ""
    if r.PaymentStatus == model.PaymentPaid {
        if s.payments == nil {
            return nil, model.ErrDependencyUnavailable
        }
        ref := ""
        if r.PaymentRef != nil {
            ref = *r.PaymentRef
        }
        if err := s.payments.Refund(ctx, ref, r.TotalPriceCents); err != nil {
            log.Printf("ledger: refund for reservation %d failed: %v", id, err)
            return nil, model.ErrDependencyUnavailable
        }
        paymentStatus = model.PaymentRefunded
    }

    now := s.now()
    updated, err := s.store.UpdateReservation(ctx, id, now, func(res *model.Reservation) error {
        // The refund decision above ran outside the row lock.  If a
        // payment landed in between, cancelling here would strand a
        // paid reservation without a refund; abort and let the caller
        // retry against the paid state.
        if paymentStatus == "" && res.PaymentStatus == model.PaymentPaid {
            return model.ErrConcurrentUpdate
        }
        return res.Cancel(now, reason, paymentStatus)
    })
    if err != nil {
        return updated, err
    }
    s.publish(ctx, queue.EventReservationCancelled, updated)
    return updated, nil
}

// cancelByID applies a payment-triggered cancellation without an
// ownership check; the reconciler already matched the reservation by
// payment reference.
func (s *ReservationService) cancelByID(ctx context.Context, id uint64, reason, paymentStatus string) (*model.Reservation, error) {
    now := s.now()
    updated, err := s.store.UpdateReservation(ctx, id, now, func(res *model.Reservation) error {
        return res.Cancel(now, reason, paymentStatus)
    })
    if err != nil {
        return updated, err
    }
    s.publish(ctx, queue.EventReservationCancelled, updated)
    return updated, nil
}

// publish sends a lifecycle event to the broker, logging failures
// instead of propagating them.
func (s *ReservationService) publish(ctx context.Context, eventType string, r *model.Reservation) {
    if s.events == nil || r == nil {
        return
    }
    ev := queue.ReservationEvent{
        Type:             eventType,
        ReservationID:    r.ID,
        SeanceID:         r.SeanceID,
        UserID:           r.UserID,
        BookingReference: r.BookingReference,
        Quantity:         r.Quantity,
        TotalPriceCents:  r.TotalPriceCents,
        PaymentStatus:    r.PaymentStatus,
        OccurredAt:       s.now().Format(time.RFC3339),
    }
    if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
        log.Printf("ledger: publish %s for reservation %d failed: %v", eventType, r.ID, err)
    }
}
