// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// payment service to distinguish between different failure scenarios
// without inspecting driver-specific errors. ErrDuplicateOrder and
// ErrDuplicateCapture back the uniqueness guard on the gateway ids: a
// second insert for an already-captured order must fail instead of
// producing a second reservation row.
package repository

import "errors"

// ErrReservationNotFound is returned when a keyed read or update matches
// no reservation row. Handlers translate it into an HTTP 404 response.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrDuplicateOrder is returned when an insert collides with the UNIQUE
// key on gateway_order_id. The order has already produced a reservation.
var ErrDuplicateOrder = errors.New("gateway order already recorded")

// ErrDuplicateCapture is returned when an insert or update collides with
// the UNIQUE key on gateway_capture_id.
var ErrDuplicateCapture = errors.New("gateway capture already recorded")
