// Package model defines the domain entities of the reservation ledger
// together with the sentinel errors shared across the storage, service
// and handler layers.  Handlers translate these values into stable
// machine-readable error kinds; see internal/handler.
package model

import (
    "errors"
    "fmt"
)

// ErrSeanceNotFound is returned when the requested seance does not
// exist in the catalog.
var ErrSeanceNotFound = errors.New("seance not found")

// ErrReservationNotFound is returned when a reservation cannot be
// located by id, booking reference or payment reference, or when it
// belongs to a different user.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrSeanceNotBookable is returned when a hold is attempted on a
// seance that is cancelled, completed or has already started.
var ErrSeanceNotBookable = errors.New("seance is not open for booking")

// ErrInvalidQuantity is returned when the requested quantity falls
// outside the allowed 1..10 range.
var ErrInvalidQuantity = errors.New("quantity must be between 1 and 10")

// ErrSeatLabelMismatch is returned when assigned seat labels are
// supplied but their count does not match the requested quantity.
var ErrSeatLabelMismatch = errors.New("seat labels must match quantity")

// ErrAlreadyFinal is returned when a transition is attempted on a
// reservation that already reached a terminal state (cancelled or
// expired).  Webhooks may legitimately arrive late or twice, so
// callers log and acknowledge this rather than treating it as fatal.
var ErrAlreadyFinal = errors.New("reservation is already in a terminal state")

// ErrAlreadyExpired is returned when a confirmation arrives after the
// hold's expiry.  Detecting it forces the reservation into the
// expired state as a side effect before the error is returned.
var ErrAlreadyExpired = errors.New("reservation hold has expired")

// ErrConcurrentUpdate is returned when a reservation changed under a
// request in a way that invalidates its decision, such as a payment
// landing between the refund check and the cancellation write.  The
// operation is retryable; no local state has been changed.
var ErrConcurrentUpdate = errors.New("reservation changed concurrently, retry")

// ErrDependencyUnavailable is returned when the payment gateway or
// another upstream collaborator times out or errors.  The operation
// is retryable and no local state has been changed.
var ErrDependencyUnavailable = errors.New("upstream dependency unavailable")

// InsufficientCapacityError is returned when a hold requests more
// seats than remain for the seance.  Remaining carries the number of
// seats still available so callers can offer a reduced quantity.
type InsufficientCapacityError struct {
    Remaining uint32
}

func (e *InsufficientCapacityError) Error() string {
    return fmt.Sprintf("not enough seats available: %d remaining", e.Remaining)
}
