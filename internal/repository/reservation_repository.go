package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/restaurant-reservation/internal/model"
)

// ReservationRepo provides keyed read, insert and update operations on the
// reservations table.  There is deliberately no delete: cancellation is a
// status transition performed by the coordinators.  All timestamp fields
// are stored in UTC.  Concurrency safety relies on single-row atomicity of
// the backing store; no transaction spans a gateway call and a row write.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, restaurant_id, guest_name, guest_email, guest_phone,
    reserved_at, party_size, notes, status, payment_status, payment_amount,
    payment_currency, gateway_order_id, gateway_capture_id, payment_provider,
    paid_at, cancel_reason, created_at, updated_at`

// scanReservation reads one row into a model.Reservation, converting the
// nullable columns.
func scanReservation(row *sql.Row) (model.Reservation, error) {
    var res model.Reservation
    var orderID, captureID, cancelReason sql.NullString
    var paidAt sql.NullTime
    err := row.Scan(
        &res.ID, &res.RestaurantID, &res.GuestName, &res.GuestEmail, &res.GuestPhone,
        &res.ReservedAt, &res.PartySize, &res.Notes, &res.Status, &res.PaymentStatus,
        &res.PaymentAmount, &res.PaymentCurrency, &orderID, &captureID,
        &res.PaymentProvider, &paidAt, &cancelReason, &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        return model.Reservation{}, err
    }
    if orderID.Valid {
        v := orderID.String
        res.GatewayOrderID = &v
    }
    if captureID.Valid {
        v := captureID.String
        res.GatewayCaptureID = &v
    }
    if paidAt.Valid {
        t := paidAt.Time
        res.PaidAt = &t
    }
    if cancelReason.Valid {
        v := cancelReason.String
        res.CancelReason = &v
    }
    return res, nil
}

// GetByID returns a single reservation.  When no row exists,
// ErrReservationNotFound is returned.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return model.Reservation{}, ErrReservationNotFound
    }
    return res, err
}

// CreateDraft inserts a new pending/unpaid reservation before any gateway
// interaction (the eager lifecycle).  It populates the generated ID and the
// database-assigned timestamps on the returned value.
func (r *ReservationRepo) CreateDraft(ctx context.Context, res model.Reservation) (model.Reservation, error) {
    const q = `INSERT INTO reservations
        (restaurant_id, guest_name, guest_email, guest_phone, reserved_at,
         party_size, notes, status, payment_status, payment_currency)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q,
        res.RestaurantID, res.GuestName, res.GuestEmail, res.GuestPhone, res.ReservedAt.UTC(),
        res.PartySize, res.Notes, model.StatusPending, model.PayUnpaid, res.PaymentCurrency)
    if err != nil {
        return model.Reservation{}, err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return model.Reservation{}, err
    }
    return r.GetByID(ctx, uint64(id))
}

// CreateFromCapture inserts a new reservation at the moment a capture
// succeeds (the lazy lifecycle).  The row is born pending/paid with the
// gateway order and capture ids set; confirmation is a separate staff
// action.  The UNIQUE keys on the gateway ids
// turn a duplicate insert for the same order into ErrDuplicateOrder instead
// of a second row.
func (r *ReservationRepo) CreateFromCapture(ctx context.Context, res model.Reservation) (model.Reservation, error) {
    const q = `INSERT INTO reservations
        (restaurant_id, guest_name, guest_email, guest_phone, reserved_at,
         party_size, notes, status, payment_status, payment_amount, payment_currency,
         gateway_order_id, gateway_capture_id, payment_provider, paid_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q,
        res.RestaurantID, res.GuestName, res.GuestEmail, res.GuestPhone, res.ReservedAt.UTC(),
        res.PartySize, res.Notes, model.StatusPending, model.PayPaid, res.PaymentAmount,
        res.PaymentCurrency, res.GatewayOrderID, res.GatewayCaptureID, res.PaymentProvider,
        time.Now().UTC())
    if err != nil {
        if isDuplicate(err) {
            return model.Reservation{}, ErrDuplicateOrder
        }
        return model.Reservation{}, err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return model.Reservation{}, err
    }
    return r.GetByID(ctx, uint64(id))
}

// MarkPaid updates an existing reservation's payment fields and promotes it
// to the given status.  It is used by the two-phase capture path and by the
// payment-attach coordinator.  Returns ErrReservationNotFound when the row
// does not exist and ErrDuplicateCapture when the capture id is already
// bound to another reservation.
func (r *ReservationRepo) MarkPaid(ctx context.Context, id uint64, status string, amount int64, currency, orderID, captureID, provider string) error {
    const q = `UPDATE reservations
        SET status = ?, payment_status = ?, payment_amount = ?, payment_currency = ?,
            gateway_order_id = ?, gateway_capture_id = ?, payment_provider = ?,
            paid_at = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?`
    result, err := r.db.ExecContext(ctx, q,
        status, model.PayPaid, amount, currency, orderID, captureID, provider,
        time.Now().UTC(), id)
    if err != nil {
        if isDuplicate(err) {
            return ErrDuplicateCapture
        }
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrReservationNotFound
    }
    return nil
}

// MarkCancelled flips a reservation to the given status/payment_status pair
// and records the cancellation reason.  It serves both the refund path
// (cancelled/refunded) and the pre-payment local cancel (cancelled/unpaid).
func (r *ReservationRepo) MarkCancelled(ctx context.Context, id uint64, status, payStatus, reason string) error {
    const q = `UPDATE reservations
        SET status = ?, payment_status = ?, cancel_reason = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?`
    result, err := r.db.ExecContext(ctx, q, status, payStatus, reason, id)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrReservationNotFound
    }
    return nil
}

// isDuplicate reports whether the driver error is a MySQL duplicate-key
// violation (error 1062).
func isDuplicate(err error) bool {
    return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
