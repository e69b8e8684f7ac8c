package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func pendingReservation(expiresIn time.Duration, base time.Time) *Reservation {
    exp := base.Add(expiresIn)
    return &Reservation{
        ID:            1,
        SeanceID:      1,
        UserID:        7,
        Quantity:      2,
        Status:        StatusPending,
        PaymentStatus: PaymentPending,
        ExpiresAt:     &exp,
    }
}

func TestConfirmPendingBeforeExpiry(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)

    require.NoError(t, r.Confirm(base.Add(5*time.Minute), "pi_123"))
    assert.Equal(t, StatusConfirmed, r.Status)
    assert.Equal(t, PaymentPaid, r.PaymentStatus)
    require.NotNil(t, r.ConfirmedAt)
    require.NotNil(t, r.PaymentRef)
    assert.Equal(t, "pi_123", *r.PaymentRef)
    // The deadline is kept for audit.
    assert.NotNil(t, r.ExpiresAt)
}

func TestConfirmPastExpiryFlipsToExpired(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)

    err := r.Confirm(base.Add(16*time.Minute), "pi_123")
    assert.ErrorIs(t, err, ErrAlreadyExpired)
    assert.Equal(t, StatusExpired, r.Status)
    assert.Equal(t, PaymentPending, r.PaymentStatus)
    assert.Nil(t, r.ConfirmedAt)
}

func TestConfirmTwiceIsAlreadyFinal(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)
    require.NoError(t, r.Confirm(base, "pi_123"))

    err := r.Confirm(base.Add(time.Minute), "pi_123")
    assert.ErrorIs(t, err, ErrAlreadyFinal)
    assert.Equal(t, StatusConfirmed, r.Status)
}

func TestConfirmTerminalStates(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    for _, status := range []string{StatusCancelled, StatusExpired} {
        r := pendingReservation(15*time.Minute, base)
        r.Status = status
        assert.ErrorIs(t, r.Confirm(base, "pi_123"), ErrAlreadyFinal, status)
        assert.Equal(t, status, r.Status, "terminal state must not change")
    }
}

func TestCancelPendingKeepsPaymentStatus(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)

    require.NoError(t, r.Cancel(base, "cancelled by user", ""))
    assert.Equal(t, StatusCancelled, r.Status)
    assert.Equal(t, PaymentPending, r.PaymentStatus)
    require.NotNil(t, r.CancelledAt)
    require.NotNil(t, r.CancellationReason)
    assert.Equal(t, "cancelled by user", *r.CancellationReason)
}

func TestCancelConfirmedWithRefund(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)
    require.NoError(t, r.Confirm(base, "pi_123"))

    require.NoError(t, r.Cancel(base.Add(time.Hour), "payment refunded", PaymentRefunded))
    assert.Equal(t, StatusCancelled, r.Status)
    assert.Equal(t, PaymentRefunded, r.PaymentStatus)
}

func TestCancelTwiceIsAlreadyFinal(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)
    require.NoError(t, r.Cancel(base, "cancelled by user", ""))

    assert.ErrorIs(t, r.Cancel(base, "payment failed", PaymentFailed), ErrAlreadyFinal)
    assert.Equal(t, PaymentPending, r.PaymentStatus, "second cancel must not mutate")
}

func TestExpireIsIdempotentAndOnlyTouchesDueHolds(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

    r := pendingReservation(15*time.Minute, base)
    assert.False(t, r.Expire(base.Add(10*time.Minute)), "live hold must survive")
    assert.Equal(t, StatusPending, r.Status)

    assert.True(t, r.Expire(base.Add(16*time.Minute)))
    assert.Equal(t, StatusExpired, r.Status)
    assert.False(t, r.Expire(base.Add(17*time.Minute)), "re-sweep is a no-op")

    confirmed := pendingReservation(15*time.Minute, base)
    require.NoError(t, confirmed.Confirm(base, "pi_123"))
    assert.False(t, confirmed.Expire(base.Add(time.Hour)), "confirmed reservations never expire")
}

func TestCountsAgainstCapacity(t *testing.T) {
    base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
    r := pendingReservation(15*time.Minute, base)

    assert.True(t, r.CountsAgainstCapacity(base.Add(14*time.Minute)))
    // The instant the deadline passes the hold stops counting, even
    // though its stored status is still pending.
    assert.False(t, r.CountsAgainstCapacity(base.Add(15*time.Minute)))
    assert.Equal(t, StatusPending, r.Status)

    require.NoError(t, r.Confirm(base, "pi_123"))
    assert.True(t, r.CountsAgainstCapacity(base.Add(24*time.Hour)))
}
