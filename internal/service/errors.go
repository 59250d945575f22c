package service

import "fmt"

// Kind tags every failure the payment coordinators can produce.  All four
// exposed operations share this single tagged variant instead of
// per-endpoint error shapes.
type Kind string

const (
    // KindValidation marks a missing or malformed required field.
    KindValidation Kind = "validation"
    // KindAuth marks a missing or invalid session on the refund path.
    KindAuth Kind = "auth"
    // KindNotFound marks a keyed read that matched no reservation.
    KindNotFound Kind = "not_found"
    // KindConflict marks an operation that is illegal in the current state:
    // a rejected transition, a duplicate capture insert, a refund already in
    // flight, or an order the gateway reports as not completed.
    KindConflict Kind = "conflict"
    // KindGateway marks a non-success response from the token, order,
    // capture or refund call.  The wrapped cause carries the HTTP status
    // and raw body.
    KindGateway Kind = "gateway"
    // KindReconciliation marks the one category that must never be silently
    // dropped: the gateway call succeeded but the local write failed, so
    // money moved while the record did not.
    KindReconciliation Kind = "reconciliation"
    // KindUnexpected marks everything else.
    KindUnexpected Kind = "unexpected"
)

// Error is the unified failure value returned by every coordinator.
type Error struct {
    Kind    Kind   // category, stable across endpoints
    Message string // human-readable description
    Cause   error  // underlying error, when any
}

func (e *Error) Error() string {
    if e.Cause != nil {
        return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
    }
    return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// errf builds an Error with a formatted message.
func errf(kind Kind, format string, args ...interface{}) *Error {
    return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrap builds an Error around a cause.
func wrap(kind Kind, cause error, message string) *Error {
    return &Error{Kind: kind, Message: message, Cause: cause}
}
