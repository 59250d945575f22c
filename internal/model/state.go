package model

// state.go implements the reservation state machine as pure functions over
// (status, payment_status) pairs.  The guards are deliberately free of any
// HTTP, database or gateway imports so they can be unit tested without
// mocks.  Every coordinator that mutates a reservation must pass through
// Apply before writing.

import (
    "errors"
    "fmt"
)

// Event names a state-changing occurrence driven by one of the payment
// coordinators or by an external trigger.
type Event string

const (
    // EventPaymentCaptured fires when a gateway capture settles against a
    // reservation (lazy insert or two-phase promote).
    EventPaymentCaptured Event = "payment_captured"
    // EventPaymentAttached fires when payment metadata is attached to a
    // draft reservation created before the payment step.
    EventPaymentAttached Event = "payment_attached"
    // EventRefunded fires after a successful gateway refund.
    EventRefunded Event = "refunded"
    // EventCancelledUnpaid fires on pre-payment cancellation; it is a pure
    // local transition and never touches the gateway.
    EventCancelledUnpaid Event = "cancelled_unpaid"
    // EventCompleted fires when the visit happens; the trigger is external
    // to this subsystem.
    EventCompleted Event = "completed"
)

// ErrInvalidTransition is returned by Apply when the event is not legal in
// the current state.  Callers should translate it into a conflict response
// rather than a generic failure.
var ErrInvalidTransition = errors.New("invalid reservation transition")

// Apply returns the state that follows event ev from (status, payStatus).
// It rejects anything outside the transition table:
//
//	pending/unpaid   -> confirmed/paid   (payment captured or attached)
//	pending/unpaid   -> cancelled/unpaid (local cancel before payment)
//	pending/paid     -> cancelled/refunded
//	confirmed/paid   -> cancelled/refunded
//	confirmed/paid   -> completed/paid
//
// The pending/paid source covers rows created lazily at capture time that
// were never confirmed by staff.  payment_status never moves backward from
// paid or refunded, and no edge re-enters pending or leaves
// cancelled/completed.
func Apply(status, payStatus string, ev Event) (string, string, error) {
    switch ev {
    case EventPaymentCaptured, EventPaymentAttached:
        if status == StatusPending && payStatus == PayUnpaid {
            return StatusConfirmed, PayPaid, nil
        }
    case EventCancelledUnpaid:
        if status == StatusPending && payStatus == PayUnpaid {
            return StatusCancelled, PayUnpaid, nil
        }
    case EventRefunded:
        if (status == StatusConfirmed || status == StatusPending) && payStatus == PayPaid {
            return StatusCancelled, PayRefunded, nil
        }
    case EventCompleted:
        if status == StatusConfirmed && payStatus == PayPaid {
            return StatusCompleted, PayPaid, nil
        }
    default:
        return "", "", fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
    }
    return "", "", fmt.Errorf("%w: %s/%s cannot accept %s", ErrInvalidTransition, status, payStatus, ev)
}

// Refundable reports whether a reservation in the given state may enter the
// refund path at all.  The refund coordinator uses it as its precondition
// check; anything not paid has nothing to refund.
func Refundable(payStatus string) bool {
    return payStatus == PayPaid
}
