package service

import (
    "context"
    "log"
    "time"

    "github.com/tickettheatre/core-service/internal/queue"
)

// SweepExpired flips every pending reservation past its hold deadline
// to expired and publishes an event per reclaimed hold.  It is
// idempotent and safe to run concurrently with confirmations: the
// store only touches rows that are still pending, and a confirmation
// racing past the deadline self-resolves to AlreadyExpired.
func (s *ReservationService) SweepExpired(ctx context.Context) (int, error) {
    expired, err := s.store.ExpireDue(ctx, s.now())
    if err != nil {
        return 0, err
    }
    for i := range expired {
        s.publish(ctx, queue.EventReservationExpired, &expired[i])
    }
    return len(expired), nil
}

// StartSweeper runs SweepExpired on the given interval until the
// context is cancelled.  Capacity accounting does not depend on the
// sweeper being on time (reads exclude dead holds lazily); the sweep
// only brings row state in line eventually.
func (s *ReservationService) StartSweeper(ctx context.Context, interval time.Duration) {
    if interval <= 0 {
        interval = time.Minute
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            n, err := s.SweepExpired(ctx)
            if err != nil {
                log.Printf("sweeper: sweep failed: %v", err)
                continue
            }
            if n > 0 {
                log.Printf("sweeper: expired %d reservation(s)", n)
            }
        }
    }
}
