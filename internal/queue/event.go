// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer for the payment.reconciliation queue.
package queue

// ReconciliationEvent is published whenever a gateway operation succeeded
// but the matching local write did not: money moved, the record did not.
// This is the one failure category that must never be silently dropped, so
// it travels on a durable queue in addition to the process log.  Downstream
// consumers use it to drive manual follow-up without querying the primary
// database.
type ReconciliationEvent struct {
    OpID          string `json:"op_id"`
    Kind          string `json:"kind"` // capture | refund
    GatewayRef    string `json:"gateway_ref"`
    ReservationID uint64 `json:"reservation_id,omitempty"`
    Amount        int64  `json:"amount"`
    Detail        string `json:"detail"`
    OccurredAt    string `json:"occurred_at"`
}
