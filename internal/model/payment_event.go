package model

// Payment event kinds delivered by the payment-service webhook.  The
// set is open: unknown kinds must parse and be ignored, never
// rejected, so the gateway can add kinds without breaking us.
const (
    PaymentEventSucceeded = "payment.succeeded"
    PaymentEventFailed    = "payment.failed"
    PaymentEventRefunded  = "payment.refunded"
    PaymentEventCanceled  = "payment.canceled"
)

// PaymentEvent is an inbound payment-service notification reduced to
// the fields the reconciler acts on.  EventID is the gateway's own
// unique id for the delivery and keys idempotent processing;
// PaymentRef matches reservations.payment_ref.
type PaymentEvent struct {
    EventID     string // unique id assigned by the gateway
    Kind        string // one of the PaymentEvent* constants, or unknown
    PaymentRef  string // external payment reference
    AmountCents uint32 // amount reported by the gateway, in cents
}

// KnownKind reports whether the event kind is one the reconciler
// handles.
func (e PaymentEvent) KnownKind() bool {
    switch e.Kind {
    case PaymentEventSucceeded, PaymentEventFailed, PaymentEventRefunded, PaymentEventCanceled:
        return true
    }
    return false
}
