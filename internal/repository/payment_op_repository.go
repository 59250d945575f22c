package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/restaurant-reservation/internal/model"
)

// PaymentOpRepo persists the per-operation saga log.  Each capture or
// refund writes a row before calling the gateway and advances its state as
// the steps succeed.  Because there is no transaction spanning the gateway
// call and the reservation write, a row left at gateway_succeeded is the
// durable record of reconciliation debt.
type PaymentOpRepo struct {
    db *sql.DB
}

// NewPaymentOpRepo returns a new PaymentOpRepo bound to the given database.
func NewPaymentOpRepo(db *sql.DB) *PaymentOpRepo { return &PaymentOpRepo{db: db} }

// Create inserts a new operation row in the attempted state.
func (r *PaymentOpRepo) Create(ctx context.Context, op model.PaymentOp) error {
    const q = `INSERT INTO payment_ops (id, kind, gateway_ref, reservation_id, state, detail)
               VALUES (?, ?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q,
        op.ID, op.Kind, op.GatewayRef, op.ReservationID, model.OpAttempted, op.Detail)
    return err
}

// Advance moves an operation to the given state and replaces its detail.
// Advancing is best effort from the caller's point of view; a failure to
// advance must never mask the outcome of the payment operation itself.
func (r *PaymentOpRepo) Advance(ctx context.Context, id, state, detail string) error {
    const q = `UPDATE payment_ops SET state = ?, detail = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
    _, err := r.db.ExecContext(ctx, q, state, detail, id)
    return err
}

// ListUnreconciled returns operations whose gateway step succeeded but
// whose store step did not: money moved, the record did not.  The sweep
// feeds the manual reconciliation job.
func (r *PaymentOpRepo) ListUnreconciled(ctx context.Context) ([]model.PaymentOp, error) {
    const q = `SELECT id, kind, gateway_ref, reservation_id, state, detail, created_at, updated_at
               FROM payment_ops WHERE state = ? ORDER BY created_at`
    rows, err := r.db.QueryContext(ctx, q, model.OpGatewaySucceeded)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    ops := make([]model.PaymentOp, 0)
    for rows.Next() {
        var op model.PaymentOp
        var resID sql.NullInt64
        if err := rows.Scan(&op.ID, &op.Kind, &op.GatewayRef, &resID, &op.State, &op.Detail, &op.CreatedAt, &op.UpdatedAt); err != nil {
            return nil, err
        }
        if resID.Valid {
            v := uint64(resID.Int64)
            op.ReservationID = &v
        }
        ops = append(ops, op)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ops, nil
}
