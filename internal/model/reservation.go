package model

import "time"

// Reservation records a guest's booking at a restaurant together with the
// payment bookkeeping that ties it to the external gateway.  It is the only
// entity this service persists.  Rows are created either eagerly as a
// pending/unpaid draft before any gateway interaction, or lazily at the
// moment a capture succeeds.  Rows are never deleted; cancellation is a
// status transition.
//
// Fields:
//  ID               – primary key identifier.
//  RestaurantID     – restaurant being booked.
//  GuestName        – contact name for the booking.
//  GuestEmail       – contact email.
//  GuestPhone       – contact phone (optional).
//  ReservedAt       – date and time of the booking.
//  PartySize        – number of guests.
//  Notes            – free-form notes from the guest.
//  Status           – reservation state (see Status* constants).
//  PaymentStatus    – payment state (see Pay* constants).
//  PaymentAmount    – captured amount in whole units of PaymentCurrency.
//  PaymentCurrency  – currency code of PaymentAmount.
//  GatewayOrderID   – gateway order id (unique when set).
//  GatewayCaptureID – gateway capture id (unique when set).
//  PaymentProvider  – provider label, e.g. "paypal".
//  PaidAt           – when the payment was captured or attached.
//  CancelReason     – reason recorded when the reservation is cancelled.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
    ID               uint64     `json:"id"`                // reservations.id
    RestaurantID     uint64     `json:"restaurant_id"`     // reservations.restaurant_id
    GuestName        string     `json:"guest_name"`        // reservations.guest_name
    GuestEmail       string     `json:"guest_email"`       // reservations.guest_email
    GuestPhone       string     `json:"guest_phone"`       // reservations.guest_phone
    ReservedAt       time.Time  `json:"reserved_at"`       // reservations.reserved_at
    PartySize        uint32     `json:"party_size"`        // reservations.party_size
    Notes            string     `json:"notes"`             // reservations.notes
    Status           string     `json:"status"`            // reservations.status
    PaymentStatus    string     `json:"payment_status"`    // reservations.payment_status
    PaymentAmount    int64      `json:"payment_amount"`    // reservations.payment_amount
    PaymentCurrency  string     `json:"payment_currency"`  // reservations.payment_currency
    GatewayOrderID   *string    `json:"gateway_order_id"`  // reservations.gateway_order_id (nullable)
    GatewayCaptureID *string    `json:"gateway_capture_id"` // reservations.gateway_capture_id (nullable)
    PaymentProvider  string     `json:"payment_provider"`  // reservations.payment_provider
    PaidAt           *time.Time `json:"paid_at"`           // reservations.paid_at (nullable)
    CancelReason     *string    `json:"cancel_reason"`     // reservations.cancel_reason (nullable)
    CreatedAt        time.Time  `json:"created_at"`        // reservations.created_at
    UpdatedAt        time.Time  `json:"updated_at"`        // reservations.updated_at
}

// Reservation status values.  Status moves only forward: pending to
// confirmed or cancelled, confirmed to completed or cancelled.  Nothing
// re-enters pending or leaves cancelled/completed.
const (
    StatusPending   = "pending"
    StatusConfirmed = "confirmed"
    StatusCancelled = "cancelled"
    StatusCompleted = "completed"
    StatusNoShow    = "no_show"
)

// Payment status values.  PayStatus never moves backward from paid or
// refunded.
const (
    PayUnpaid        = "unpaid"
    PayPaid          = "paid"
    PayRefunded      = "refunded"
    PayPartialRefund = "partial_refund"
)

// PaymentOp is one row of the per-operation saga log.  Every capture and
// refund writes an "attempted" row before calling the gateway, advances it
// to "gateway_succeeded" after the gateway settles, and to
// "store_succeeded" once the reservation row is written.  A row stuck at
// gateway_succeeded is reconciliation debt: money moved but the record did
// not, and a sweep job can find it.  Attach operations have no gateway
// step, so their rows move from attempted straight to store_succeeded.
//
// Fields:
//  ID            – uuid of the operation attempt.
//  Kind          – "capture", "refund" or "attach".
//  GatewayRef    – gateway order id (capture) or capture id (refund).
//  ReservationID – target reservation when known.
//  State         – attempted | gateway_succeeded | store_succeeded.
//  Detail        – human-readable context for manual follow-up.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last state change.
type PaymentOp struct {
    ID            string     `json:"id"`             // payment_ops.id
    Kind          string     `json:"kind"`           // payment_ops.kind
    GatewayRef    string     `json:"gateway_ref"`    // payment_ops.gateway_ref
    ReservationID *uint64    `json:"reservation_id"` // payment_ops.reservation_id (nullable)
    State         string     `json:"state"`          // payment_ops.state
    Detail        string     `json:"detail"`         // payment_ops.detail
    CreatedAt     time.Time  `json:"created_at"`     // payment_ops.created_at
    UpdatedAt     time.Time  `json:"updated_at"`     // payment_ops.updated_at
}

// Payment operation kinds and states.
const (
    OpKindCapture = "capture"
    OpKindRefund  = "refund"
    OpKindAttach  = "attach"

    OpAttempted        = "attempted"
    OpGatewaySucceeded = "gateway_succeeded"
    OpStoreSucceeded   = "store_succeeded"
)
