package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/tickettheatre/core-service/internal/model"
)

// Outcome classifies what the reconciler did with an inbound payment
// event.  Every outcome except Unmatched is acknowledged to the
// gateway so it stops redelivering.
type Outcome string

const (
    // OutcomeApplied means the matching state transition was performed.
    OutcomeApplied Outcome = "applied"
    // OutcomeDuplicate means the event id was already processed.
    OutcomeDuplicate Outcome = "duplicate"
    // OutcomeStale means the reservation had already reached a state
    // that rejects this transition (redelivery or out-of-order event).
    OutcomeStale Outcome = "stale"
    // OutcomeUnmatched means no reservation carries the payment
    // reference; the event may be unrelated or early.
    OutcomeUnmatched Outcome = "unmatched"
    // OutcomeIgnored means the event kind is unknown and was skipped.
    OutcomeIgnored Outcome = "ignored"
)

// seenKeyTTL bounds how long processed event ids are remembered.
// Gateways stop redelivering long before a day.
const seenKeyTTL = 24 * time.Hour

// EventLog remembers which payment event ids have been processed.
// Seen must have no side effect: an event id is only Recorded once
// its transition landed, so an early delivery that was answered
// unmatched can still succeed when the gateway retries it.
type EventLog interface {
    Seen(ctx context.Context, eventID string) (bool, error)
    Record(ctx context.Context, eventID string) error
}

// redisEventLog keeps processed event ids in Redis with a TTL.
type redisEventLog struct {
    rdb *redis.Client
}

func (l *redisEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
    n, err := l.rdb.Exists(ctx, "payment-event:"+eventID).Result()
    return n > 0, err
}

func (l *redisEventLog) Record(ctx context.Context, eventID string) error {
    return l.rdb.Set(ctx, "payment-event:"+eventID, 1, seenKeyTTL).Err()
}

// Reconciler maps payment-service webhook events onto reservation
// state transitions, exactly once.  Processed event ids are recorded
// in the event log; when the log is unavailable the terminal-state
// guard in the state machine still makes reprocessing harmless, so
// the reconciler degrades rather than refusing events.
type Reconciler struct {
    svc  *ReservationService
    seen EventLog
}

// NewReconciler builds a Reconciler.  rdb may be nil; event-id
// deduplication is then left to the state-machine guards.
func NewReconciler(svc *ReservationService, rdb *redis.Client) *Reconciler {
    if svc == nil {
        panic("nil service passed to NewReconciler")
    }
    r := &Reconciler{svc: svc}
    if rdb != nil {
        r.seen = &redisEventLog{rdb: rdb}
    }
    return r
}

// Process applies one inbound payment event.  Unknown kinds are
// ignored, unmatched payment references are reported without raising
// a system error, and replays (by event id or by state) are
// acknowledged idempotently.  The event id is recorded only after the
// transition was applied or provably rejected as stale; unmatched and
// errored deliveries stay unrecorded so the gateway's retry gets a
// fresh attempt once the payment reference is on file.  The error
// return is reserved for storage failures.
func (r *Reconciler) Process(ctx context.Context, ev model.PaymentEvent) (Outcome, error) {
    if !ev.KnownKind() {
        log.Printf("reconciler: ignoring unknown payment event kind %q (event_id=%s)", ev.Kind, ev.EventID)
        return OutcomeIgnored, nil
    }
    if ev.PaymentRef == "" {
        return OutcomeUnmatched, nil
    }

    if r.seenBefore(ctx, ev.EventID) {
        log.Printf("reconciler: duplicate payment event %s", ev.EventID)
        return OutcomeDuplicate, nil
    }

    res, err := r.svc.store.GetReservationByPaymentRef(ctx, ev.PaymentRef)
    if errors.Is(err, model.ErrReservationNotFound) {
        return OutcomeUnmatched, nil
    }
    if err != nil {
        return "", err
    }

    switch ev.Kind {
    case model.PaymentEventSucceeded:
        _, err = r.svc.confirmByID(ctx, res.ID, ev.PaymentRef)
    case model.PaymentEventFailed:
        _, err = r.svc.cancelByID(ctx, res.ID, reasonPaymentFailed, model.PaymentFailed)
    case model.PaymentEventCanceled:
        _, err = r.svc.cancelByID(ctx, res.ID, reasonPaymentCanceled, model.PaymentFailed)
    case model.PaymentEventRefunded:
        _, err = r.svc.cancelByID(ctx, res.ID, reasonRefunded, model.PaymentRefunded)
    }

    if errors.Is(err, model.ErrAlreadyFinal) || errors.Is(err, model.ErrAlreadyExpired) {
        // Redelivered or out of order; the guard kept state intact.
        log.Printf("reconciler: event %s (%s) rejected by state machine for reservation %d: %v",
            ev.EventID, ev.Kind, res.ID, err)
        r.record(ctx, ev.EventID)
        return OutcomeStale, nil
    }
    if err != nil {
        return "", err
    }
    r.record(ctx, ev.EventID)
    return OutcomeApplied, nil
}

// seenBefore reports whether the event id was already recorded.  A
// missing or failing event log reports false.
func (r *Reconciler) seenBefore(ctx context.Context, eventID string) bool {
    if r.seen == nil || eventID == "" {
        return false
    }
    seen, err := r.seen.Seen(ctx, eventID)
    if err != nil {
        log.Printf("reconciler: event log unavailable: %v", err)
        return false
    }
    return seen
}

// record marks the event id processed, best effort.
func (r *Reconciler) record(ctx context.Context, eventID string) {
    if r.seen == nil || eventID == "" {
        return
    }
    if err := r.seen.Record(ctx, eventID); err != nil {
        log.Printf("reconciler: recording event %s failed: %v", eventID, err)
    }
}
