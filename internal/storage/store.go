// Package storage defines persistence for the reservation ledger.  A
// single Store interface is implemented twice: mysql.go holds the
// production implementation over database/sql and memory.go a
// mutex-guarded in-memory one used by tests and local development.
// Both enforce the same semantics, in particular the atomic
// check-then-insert for holds and the lazy expiry predicate in every
// capacity sum.
package storage

import (
    "context"
    "errors"
    "time"

    "github.com/tickettheatre/core-service/internal/model"
)

// ErrReferenceTaken is returned by CreateHold when the generated
// booking reference collides with an existing one.  Callers respond
// by regenerating the reference and retrying, never by failing the
// hold.
var ErrReferenceTaken = errors.New("booking reference already exists")

// Store is the persistence boundary of the reservation ledger.
//
// CreateHold must perform the capacity re-check and the insert as one
// atomic unit serialised against concurrent holds for the same
// seance: the MySQL implementation locks the seance row, the memory
// implementation holds its mutex.  UpdateReservation must give the
// apply callback exclusive access to the row and persist its
// mutations even when the callback returns an error, so that lazily
// detected expiry sticks.
type Store interface {
    // GetSeance returns the seance or model.ErrSeanceNotFound.
    GetSeance(ctx context.Context, id uint64) (*model.Seance, error)

    // CreateHold atomically re-validates remaining capacity at the
    // given instant and inserts the pending reservation, populating
    // its ID and timestamps.  It returns
    // *model.InsufficientCapacityError when fewer than
    // res.Quantity seats remain and ErrReferenceTaken on a booking
    // reference collision.
    CreateHold(ctx context.Context, res *model.Reservation, now time.Time) error

    // GetReservation returns the reservation or model.ErrReservationNotFound.
    GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)

    // GetReservationByReference looks a reservation up by its booking
    // reference.
    GetReservationByReference(ctx context.Context, ref string) (*model.Reservation, error)

    // GetReservationByPaymentRef looks a reservation up by the
    // external payment reference recorded at payment initiation.
    GetReservationByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error)

    // ListReservationsByUser returns the user's reservations, newest
    // first.
    ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)

    // UpdateReservation loads the reservation with exclusive access,
    // invokes apply on it and persists the result, stamping the
    // update time with now.  The mutated row is written back even
    // when apply returns an error; that error is returned to the
    // caller.
    UpdateReservation(ctx context.Context, id uint64, now time.Time, apply func(*model.Reservation) error) (*model.Reservation, error)

    // ExpireDue flips every pending reservation whose hold deadline
    // has passed to expired and returns the affected rows.  Rows that
    // were confirmed or cancelled in the meantime are untouched.
    ExpireDue(ctx context.Context, now time.Time) ([]model.Reservation, error)

    // ActiveQuantity sums the quantities occupying seats for the
    // seance at the given instant: confirmed reservations plus
    // pending holds whose expiry is still in the future.
    ActiveQuantity(ctx context.Context, seanceID uint64, now time.Time) (uint32, error)
}
