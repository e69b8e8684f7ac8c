package storage

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/tickettheatre/core-service/internal/model"
)

func seededStore() (*MemoryStore, time.Time) {
    base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    s := NewMemoryStore()
    s.PutSeance(model.Seance{
        ID: 1, HallID: 1, Capacity: 4, PriceCents: 2000,
        StartsAt: base.Add(6 * time.Hour), Status: model.SeanceScheduled,
    })
    return s, base
}

func hold(seanceID, userID uint64, qty uint32, ref string, expires time.Time) *model.Reservation {
    return &model.Reservation{
        SeanceID:         seanceID,
        UserID:           userID,
        BookingReference: ref,
        Quantity:         qty,
        TotalPriceCents:  qty * 2000,
        Status:           model.StatusPending,
        PaymentStatus:    model.PaymentPending,
        ExpiresAt:        &expires,
    }
}

func TestCreateHoldEnforcesCapacity(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()
    exp := base.Add(15 * time.Minute)

    require.NoError(t, s.CreateHold(ctx, hold(1, 7, 3, "TH-2026-AAAAAA", exp), base))

    err := s.CreateHold(ctx, hold(1, 8, 2, "TH-2026-BBBBBB", exp), base)
    var ice *model.InsufficientCapacityError
    require.ErrorAs(t, err, &ice)
    assert.Equal(t, uint32(1), ice.Remaining)

    require.NoError(t, s.CreateHold(ctx, hold(1, 8, 1, "TH-2026-BBBBBB", exp), base))
}

func TestCreateHoldRejectsTakenReference(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()
    exp := base.Add(15 * time.Minute)

    require.NoError(t, s.CreateHold(ctx, hold(1, 7, 1, "TH-2026-AAAAAA", exp), base))
    err := s.CreateHold(ctx, hold(1, 8, 1, "TH-2026-AAAAAA", exp), base)
    assert.ErrorIs(t, err, ErrReferenceTaken)
}

func TestActiveQuantityExcludesDeadRows(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()

    live := base.Add(15 * time.Minute)
    require.NoError(t, s.CreateHold(ctx, hold(1, 7, 2, "TH-2026-AAAAAA", live), base))
    short := base.Add(time.Minute)
    dead := hold(1, 8, 1, "TH-2026-BBBBBB", short)
    require.NoError(t, s.CreateHold(ctx, dead, base))

    booked, err := s.ActiveQuantity(ctx, 1, base)
    require.NoError(t, err)
    assert.Equal(t, uint32(3), booked)

    // Past the short hold's deadline its quantity drops out even
    // though the row is still stored as pending.
    booked, err = s.ActiveQuantity(ctx, 1, base.Add(2*time.Minute))
    require.NoError(t, err)
    assert.Equal(t, uint32(2), booked)

    // A cancelled row never counts.
    _, err = s.UpdateReservation(ctx, 1, base, func(r *model.Reservation) error {
        return r.Cancel(base, "cancelled by user", "")
    })
    require.NoError(t, err)
    booked, err = s.ActiveQuantity(ctx, 1, base)
    require.NoError(t, err)
    assert.Equal(t, uint32(1), booked)
}

// UpdateReservation must persist mutations made by apply even when
// apply returns an error; lazily detected expiry depends on it.
func TestUpdateReservationPersistsOnApplyError(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()

    r := hold(1, 7, 1, "TH-2026-AAAAAA", base.Add(15*time.Minute))
    require.NoError(t, s.CreateHold(ctx, r, base))

    late := base.Add(20 * time.Minute)
    _, err := s.UpdateReservation(ctx, r.ID, late, func(res *model.Reservation) error {
        return res.Confirm(late, "pi_1")
    })
    require.ErrorIs(t, err, model.ErrAlreadyExpired)

    row, err := s.GetReservation(ctx, r.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, row.Status)
    assert.Equal(t, late, row.UpdatedAt, "update time comes from the caller's clock")
}

func TestUpdateReservationUnknownID(t *testing.T) {
    s, base := seededStore()
    _, err := s.UpdateReservation(context.Background(), 42, base, func(*model.Reservation) error { return nil })
    assert.ErrorIs(t, err, model.ErrReservationNotFound)
}

func TestExpireDueOnlyTouchesDuePendingRows(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()

    stale := hold(1, 7, 1, "TH-2026-AAAAAA", base.Add(time.Minute))
    require.NoError(t, s.CreateHold(ctx, stale, base))
    fresh := hold(1, 8, 1, "TH-2026-BBBBBB", base.Add(15*time.Minute))
    require.NoError(t, s.CreateHold(ctx, fresh, base))
    confirmed := hold(1, 9, 1, "TH-2026-CCCCCC", base.Add(time.Minute))
    require.NoError(t, s.CreateHold(ctx, confirmed, base))
    _, err := s.UpdateReservation(ctx, confirmed.ID, base, func(r *model.Reservation) error {
        return r.Confirm(base, "pi_1")
    })
    require.NoError(t, err)

    expired, err := s.ExpireDue(ctx, base.Add(5*time.Minute))
    require.NoError(t, err)
    require.Len(t, expired, 1)
    assert.Equal(t, stale.ID, expired[0].ID)
    assert.Equal(t, model.StatusExpired, expired[0].Status)

    row, err := s.GetReservation(ctx, confirmed.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, row.Status)

    again, err := s.ExpireDue(ctx, base.Add(6*time.Minute))
    require.NoError(t, err)
    assert.Empty(t, again)
}

func TestGetReservationByPaymentRef(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()

    r := hold(1, 7, 1, "TH-2026-AAAAAA", base.Add(15*time.Minute))
    require.NoError(t, s.CreateHold(ctx, r, base))
    _, err := s.UpdateReservation(ctx, r.ID, base, func(res *model.Reservation) error {
        ref := "pi_abc"
        res.PaymentRef = &ref
        return nil
    })
    require.NoError(t, err)

    got, err := s.GetReservationByPaymentRef(ctx, "pi_abc")
    require.NoError(t, err)
    assert.Equal(t, r.ID, got.ID)

    _, err = s.GetReservationByPaymentRef(ctx, "pi_missing")
    assert.ErrorIs(t, err, model.ErrReservationNotFound)
}

func TestStoreCopiesAreIsolated(t *testing.T) {
    s, base := seededStore()
    ctx := context.Background()

    r := hold(1, 7, 2, "TH-2026-AAAAAA", base.Add(15*time.Minute))
    require.NoError(t, s.CreateHold(ctx, r, base))

    got, err := s.GetReservation(ctx, r.ID)
    require.NoError(t, err)
    got.Status = model.StatusCancelled
    *got.ExpiresAt = base

    row, err := s.GetReservation(ctx, r.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusPending, row.Status)
    assert.Equal(t, base.Add(15*time.Minute), *row.ExpiresAt)
}
