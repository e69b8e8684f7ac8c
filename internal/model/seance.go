package model

import "time"

// Seance statuses as stored in the seances.status column.  Only a
// scheduled seance accepts new reservations.
const (
    SeanceScheduled = "scheduled"
    SeanceCancelled = "cancelled"
    SeanceCompleted = "completed"
)

// Seance represents one scheduled performance of a spectacle in a
// particular hall.  The catalog service owns these rows; the
// reservation ledger only reads them.  Capacity is fixed at creation
// time against the hall's capacity ceiling and the sum of active
// reservation quantities must never exceed it.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall where the performance takes place.
//  Capacity   – number of bookable seats for this seance.
//  PriceCents – ticket price in cents for this seance.
//  StartsAt   – when the performance begins (UTC).
//  Status     – current state (scheduled, cancelled, completed).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Seance struct {
    ID         uint64    // seances.id
    HallID     uint64    // seances.hall_id
    Capacity   uint32    // seances.capacity
    PriceCents uint32    // seances.price_cents
    StartsAt   time.Time // seances.starts_at
    Status     string    // seances.status
    CreatedAt  time.Time // seances.created_at
    UpdatedAt  time.Time // seances.updated_at
}

// Bookable reports whether new holds may be created for the seance at
// the given instant.  A seance is bookable while it is scheduled and
// has not yet started.
func (s *Seance) Bookable(at time.Time) bool {
    return s.Status == SeanceScheduled && s.StartsAt.After(at)
}
