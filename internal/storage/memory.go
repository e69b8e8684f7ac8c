package storage

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/tickettheatre/core-service/internal/model"
)

// MemoryStore is an in-memory Store used by tests and local runs
// without MySQL.  A single mutex guards all state, which trivially
// gives CreateHold the same serialisation guarantee the MySQL
// implementation gets from its seance row lock.
type MemoryStore struct {
    mu           sync.Mutex
    seances      map[uint64]model.Seance
    reservations map[uint64]model.Reservation
    byReference  map[string]uint64
    nextID       uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        seances:      make(map[uint64]model.Seance),
        reservations: make(map[uint64]model.Reservation),
        byReference:  make(map[string]uint64),
        nextID:       1,
    }
}

// PutSeance inserts or replaces a seance.  Used for seeding.
func (s *MemoryStore) PutSeance(se model.Seance) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.seances[se.ID] = se
}

// GetSeance implements Store.
func (s *MemoryStore) GetSeance(_ context.Context, id uint64) (*model.Seance, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    se, ok := s.seances[id]
    if !ok {
        return nil, model.ErrSeanceNotFound
    }
    return &se, nil
}

func (s *MemoryStore) activeQuantityLocked(seanceID uint64, now time.Time) uint32 {
    var booked uint32
    for _, r := range s.reservations {
        if r.SeanceID == seanceID && r.CountsAgainstCapacity(now) {
            booked += r.Quantity
        }
    }
    return booked
}

// ActiveQuantity implements Store.
func (s *MemoryStore) ActiveQuantity(_ context.Context, seanceID uint64, now time.Time) (uint32, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.activeQuantityLocked(seanceID, now), nil
}

// CreateHold implements Store.  Capacity check and insert run under
// the store mutex so concurrent holds cannot oversell.
func (s *MemoryStore) CreateHold(_ context.Context, res *model.Reservation, now time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    se, ok := s.seances[res.SeanceID]
    if !ok {
        return model.ErrSeanceNotFound
    }
    booked := s.activeQuantityLocked(res.SeanceID, now)
    remaining := uint32(0)
    if se.Capacity > booked {
        remaining = se.Capacity - booked
    }
    if res.Quantity > remaining {
        return &model.InsufficientCapacityError{Remaining: remaining}
    }
    if _, taken := s.byReference[res.BookingReference]; taken {
        return ErrReferenceTaken
    }

    res.ID = s.nextID
    s.nextID++
    res.CreatedAt = now.UTC()
    res.UpdatedAt = res.CreatedAt
    s.reservations[res.ID] = cloneReservation(*res)
    s.byReference[res.BookingReference] = res.ID
    return nil
}

// GetReservation implements Store.
func (s *MemoryStore) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return nil, model.ErrReservationNotFound
    }
    c := cloneReservation(r)
    return &c, nil
}

// GetReservationByReference implements Store.
func (s *MemoryStore) GetReservationByReference(_ context.Context, ref string) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    id, ok := s.byReference[ref]
    if !ok {
        return nil, model.ErrReservationNotFound
    }
    c := cloneReservation(s.reservations[id])
    return &c, nil
}

// GetReservationByPaymentRef implements Store.
func (s *MemoryStore) GetReservationByPaymentRef(_ context.Context, ref string) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, r := range s.reservations {
        if r.PaymentRef != nil && *r.PaymentRef == ref {
            c := cloneReservation(r)
            return &c, nil
        }
    }
    return nil, model.ErrReservationNotFound
}

// ListReservationsByUser implements Store.
func (s *MemoryStore) ListReservationsByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Reservation, 0)
    for _, r := range s.reservations {
        if r.UserID == userID {
            out = append(out, cloneReservation(r))
        }
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].CreatedAt.Equal(out[j].CreatedAt) {
            return out[i].ID > out[j].ID
        }
        return out[i].CreatedAt.After(out[j].CreatedAt)
    })
    return out, nil
}

// UpdateReservation implements Store.  Mutations made by apply are
// kept even when apply returns an error, matching the MySQL
// implementation.
func (s *MemoryStore) UpdateReservation(_ context.Context, id uint64, now time.Time, apply func(*model.Reservation) error) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return nil, model.ErrReservationNotFound
    }
    work := cloneReservation(r)
    applyErr := apply(&work)
    work.UpdatedAt = now.UTC()
    s.reservations[id] = cloneReservation(work)
    return &work, applyErr
}

// ExpireDue implements Store.
func (s *MemoryStore) ExpireDue(_ context.Context, now time.Time) ([]model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    expired := make([]model.Reservation, 0)
    for id, r := range s.reservations {
        if r.Expire(now) {
            s.reservations[id] = r
            expired = append(expired, cloneReservation(r))
        }
    }
    sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
    return expired, nil
}

// cloneReservation copies a reservation including its pointer fields
// so callers never share memory with the store.
func cloneReservation(r model.Reservation) model.Reservation {
    c := r
    if r.Seats != nil {
        c.Seats = append([]string(nil), r.Seats...)
    }
    if r.PaymentRef != nil {
        v := *r.PaymentRef
        c.PaymentRef = &v
    }
    if r.CancellationReason != nil {
        v := *r.CancellationReason
        c.CancellationReason = &v
    }
    if r.ExpiresAt != nil {
        t := *r.ExpiresAt
        c.ExpiresAt = &t
    }
    if r.ConfirmedAt != nil {
        t := *r.ConfirmedAt
        c.ConfirmedAt = &t
    }
    if r.CancelledAt != nil {
        t := *r.CancelledAt
        c.CancelledAt = &t
    }
    return c
}
