// Package service implements the reservation–payment coordinators: order
// orchestration, capture reconciliation, payment attachment and
// refund-driven cancellation.  Every operation is a stateless request
// handler; the only shared state lives in the backing store and, for the
// refund guard, in Redis.  There is no transaction spanning a gateway call
// and a row write, so each remote-then-local sequence is tracked in the
// payment_ops saga log and any divergence is published as a reconciliation
// event.
package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/restaurant-reservation/internal/gateway"
    "github.com/iliyamo/restaurant-reservation/internal/model"
    "github.com/iliyamo/restaurant-reservation/internal/queue"
    "github.com/iliyamo/restaurant-reservation/internal/repository"
)

// Gateway is the slice of the payment gateway client the coordinators use.
type Gateway interface {
    CreateOrder(ctx context.Context, amount int64, currency, referenceID string) (string, error)
    CaptureOrder(ctx context.Context, orderID string) (gateway.Capture, error)
    RefundCapture(ctx context.Context, captureID string, amount int64, currency, reason string) (string, error)
}

// ReservationStore is the slice of the reservation repository the
// coordinators use.
type ReservationStore interface {
    GetByID(ctx context.Context, id uint64) (model.Reservation, error)
    CreateDraft(ctx context.Context, res model.Reservation) (model.Reservation, error)
    CreateFromCapture(ctx context.Context, res model.Reservation) (model.Reservation, error)
    MarkPaid(ctx context.Context, id uint64, status string, amount int64, currency, orderID, captureID, provider string) error
    MarkCancelled(ctx context.Context, id uint64, status, payStatus, reason string) error
}

// OpLog records the saga state of each capture and refund attempt.
type OpLog interface {
    Create(ctx context.Context, op model.PaymentOp) error
    Advance(ctx context.Context, id, state, detail string) error
    ListUnreconciled(ctx context.Context) ([]model.PaymentOp, error)
}

// Publisher emits reconciliation events for manual follow-up.
type Publisher interface {
    PublishReconciliation(ctx context.Context, ev queue.ReconciliationEvent) error
}

// Locker guards a capture id against concurrent refund attempts.  Acquire
// returns false when another refund holds the lock.  Implementations may
// degrade to always-acquired when the lock backend is unavailable; the
// database state check remains as the second line of defence.
type Locker interface {
    Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
    Release(ctx context.Context, key string)
}

// PaymentService wires the coordinators to their collaborators.  Construct
// one per process with NewPaymentService and inject it into the handlers;
// it holds no per-request state.
type PaymentService struct {
    gw       Gateway
    store    ReservationStore
    ops      OpLog
    pub      Publisher
    lock     Locker
    currency string // default currency when the caller does not send one
    provider string // provider label recorded on paid reservations
}

// NewPaymentService constructs a PaymentService.  Gateway, store and op log
// must be non-nil; publisher and locker may be nil-behaving no-ops.
func NewPaymentService(gw Gateway, store ReservationStore, ops OpLog, pub Publisher, lock Locker, currency, provider string) *PaymentService {
    if gw == nil || store == nil || ops == nil {
        panic("nil dependency passed to NewPaymentService")
    }
    return &PaymentService{gw: gw, store: store, ops: ops, pub: pub, lock: lock, currency: currency, provider: provider}
}

// refundLockTTL bounds how long a crashed refund attempt can keep its
// capture id locked.
const refundLockTTL = 2 * time.Minute

// ---- order orchestrator ----

// CreateOrderInput carries the request to open a gateway order.
type CreateOrderInput struct {
    Amount      int64  // amount in whole units of Currency
    Currency    string // optional; defaults to the service currency
    ReferenceID string // restaurant/context reference embedded as custom_id
}

// CreateOrder validates the request and opens a CAPTURE-intent order at the
// gateway.  It performs no store writes: an order the guest abandons must
// not leave a dangling reservation.
func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (string, error) {
    if in.Amount <= 0 {
        return "", errf(KindValidation, "amount must be greater than zero")
    }
    if in.ReferenceID == "" {
        return "", errf(KindValidation, "reference id is required")
    }
    currency := in.Currency
    if currency == "" {
        currency = s.currency
    }
    orderID, err := s.gw.CreateOrder(ctx, in.Amount, currency, in.ReferenceID)
    if err != nil {
        return "", wrap(KindGateway, err, "create order failed")
    }
    return orderID, nil
}

// ---- capture reconciler ----

// ReservationDraft is the guest-side data for a reservation created at
// capture time.  Amount is the originally requested amount; the capture is
// rejected when the gateway settles a different figure.
type ReservationDraft struct {
    RestaurantID uint64    `json:"restaurant_id"`
    GuestName    string    `json:"guest_name"`
    GuestEmail   string    `json:"guest_email"`
    GuestPhone   string    `json:"guest_phone"`
    ReservedAt   time.Time `json:"reserved_at"`
    PartySize    uint32    `json:"party_size"`
    Notes        string    `json:"notes"`
    Amount       int64     `json:"amount"`
}

// CaptureInput identifies the order to settle and where its result lands:
// either a draft for a new row or the id of an existing draft reservation.
type CaptureInput struct {
    OrderID       string
    Draft         *ReservationDraft
    ReservationID uint64
}

// CaptureResult reports a settled capture.
type CaptureResult struct {
    CaptureID     string `json:"capture_id"`
    ReservationID uint64 `json:"reservation_id"`
    Amount        int64  `json:"amount"`
}

// CaptureOrder drives the gateway capture call and, only on success, creates
// or updates the reservation record.  Order of checks matters: nothing is
// written unless the gateway reports the order COMPLETED, and once the
// gateway has settled, any local failure is reconciliation debt, not an
// ordinary error.
func (s *PaymentService) CaptureOrder(ctx context.Context, in CaptureInput) (CaptureResult, error) {
    if in.OrderID == "" {
        return CaptureResult{}, errf(KindValidation, "order id is required")
    }
    if in.Draft == nil && in.ReservationID == 0 {
        return CaptureResult{}, errf(KindValidation, "reservation draft or reservation id is required")
    }
    if in.Draft != nil && in.ReservationID != 0 {
        return CaptureResult{}, errf(KindValidation, "supply either a reservation draft or a reservation id, not both")
    }

    opID := uuid.NewString()
    var resID *uint64
    if in.ReservationID != 0 {
        v := in.ReservationID
        resID = &v
    }
    if err := s.ops.Create(ctx, model.PaymentOp{
        ID: opID, Kind: model.OpKindCapture, GatewayRef: in.OrderID,
        ReservationID: resID, Detail: "capture requested",
    }); err != nil {
        return CaptureResult{}, wrap(KindUnexpected, err, "record capture attempt failed")
    }

    settled, err := s.gw.CaptureOrder(ctx, in.OrderID)
    if err != nil {
        return CaptureResult{}, wrap(KindGateway, err, "capture failed")
    }
    if settled.Status != gateway.OrderCompleted {
        // No money moved; the op row stays at attempted and the caller may
        // retry once the order is approved.
        return CaptureResult{}, errf(KindConflict, "order not completed: status %s", settled.Status)
    }
    s.advance(ctx, opID, model.OpGatewaySucceeded, "capture "+settled.CaptureID+" settled")

    if in.Draft != nil {
        if in.Draft.Amount > 0 && settled.Amount != in.Draft.Amount {
            // Money moved but for the wrong figure; deliberately do not
            // write a paid row for an amount nobody asked for.
            s.reportReconciliation(opID, model.OpKindCapture, in.OrderID, nil, settled.Amount,
                "captured amount does not match requested amount")
            return CaptureResult{}, errf(KindReconciliation,
                "captured amount %d does not match requested %d", settled.Amount, in.Draft.Amount)
        }
        res, err := s.store.CreateFromCapture(ctx, model.Reservation{
            RestaurantID:     in.Draft.RestaurantID,
            GuestName:        in.Draft.GuestName,
            GuestEmail:       in.Draft.GuestEmail,
            GuestPhone:       in.Draft.GuestPhone,
            ReservedAt:       in.Draft.ReservedAt,
            PartySize:        in.Draft.PartySize,
            Notes:            in.Draft.Notes,
            PaymentAmount:    settled.Amount,
            PaymentCurrency:  s.currency,
            GatewayOrderID:   &in.OrderID,
            GatewayCaptureID: &settled.CaptureID,
            PaymentProvider:  s.provider,
        })
        if err != nil {
            if errors.Is(err, repository.ErrDuplicateOrder) {
                // The uniqueness guard caught a re-capture of the same
                // order; settlement is idempotent at the gateway so no
                // extra money moved and no second row may exist.
                return CaptureResult{}, wrap(KindConflict, err, "order already captured")
            }
            s.reportReconciliation(opID, model.OpKindCapture, in.OrderID, nil, settled.Amount,
                "reservation insert failed after capture: "+err.Error())
            return CaptureResult{}, wrap(KindReconciliation, err, "capture settled but reservation insert failed")
        }
        s.advance(ctx, opID, model.OpStoreSucceeded, "reservation created")
        return CaptureResult{CaptureID: settled.CaptureID, ReservationID: res.ID, Amount: settled.Amount}, nil
    }

    // Two-phase flow: promote the draft reservation created before payment.
    res, err := s.store.GetByID(ctx, in.ReservationID)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            s.reportReconciliation(opID, model.OpKindCapture, in.OrderID, resID, settled.Amount,
                "capture settled but target reservation does not exist")
            return CaptureResult{}, wrap(KindReconciliation, err, "capture settled but reservation not found")
        }
        s.reportReconciliation(opID, model.OpKindCapture, in.OrderID, resID, settled.Amount,
            "reservation read failed after capture: "+err.Error())
        return CaptureResult{}, wrap(KindReconciliation, err, "capture settled but reservation read failed")
    }
    status, _, err := model.Apply(res.Status, res.PaymentStatus, model.EventPaymentCaptured)
    if err != nil {
        s.reportReconciliation(opID, model.OpKindCapture, in.OrderID, resID, settled.Amount,
            "capture settled but reservation is "+res.Status+"/"+res.PaymentStatus)
        return CaptureResult{}, wrap(KindReconciliation, err, "capture settled but reservation cannot be promoted")
    }
    if err := s.store.MarkPaid(ctx, res.ID, status, settled.Amount, s.currency, in.OrderID, settled.CaptureID, s.provider); err != nil {
        s.reportReconciliation(opID, model.OpKindCapture, in.OrderID, resID, settled.Amount,
            "reservation update failed after capture: "+err.Error())
        return CaptureResult{}, wrap(KindReconciliation, err, "capture settled but reservation update failed")
    }
    s.advance(ctx, opID, model.OpStoreSucceeded, "reservation promoted")
    return CaptureResult{CaptureID: settled.CaptureID, ReservationID: res.ID, Amount: settled.Amount}, nil
}

// ---- payment-attach coordinator ----

// AttachInput carries payment metadata produced outside this service for a
// reservation created before the payment step completed.
type AttachInput struct {
    ReservationID uint64
    OrderID       string
    CaptureID     string
    Amount        int64
    PaymentInfo   string // opaque blob from the client, recorded in the op log detail
}

// AttachPayment updates an existing draft reservation's payment fields,
// stamps paid_at and promotes it to confirmed.  A paid row must always
// carry a capture id and a positive amount, so both are enforced here even
// though the payment itself happened outside this service.
func (s *PaymentService) AttachPayment(ctx context.Context, in AttachInput) (model.Reservation, error) {
    if in.ReservationID == 0 {
        return model.Reservation{}, errf(KindValidation, "reservation id is required")
    }
    if in.OrderID == "" {
        return model.Reservation{}, errf(KindValidation, "order id is required")
    }
    if in.CaptureID == "" {
        return model.Reservation{}, errf(KindValidation, "capture id is required")
    }
    res, err := s.store.GetByID(ctx, in.ReservationID)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return model.Reservation{}, wrap(KindNotFound, err, "reservation not found")
        }
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation read failed")
    }
    status, _, err := model.Apply(res.Status, res.PaymentStatus, model.EventPaymentAttached)
    if err != nil {
        return model.Reservation{}, wrap(KindConflict, err, "reservation cannot accept a payment")
    }
    amount := in.Amount
    if amount <= 0 {
        amount = res.PaymentAmount
    }
    if amount <= 0 {
        return model.Reservation{}, errf(KindValidation, "amount must be greater than zero")
    }

    // No gateway step here, so the op row goes straight from attempted to
    // store_succeeded; the blob from the client survives in the detail.
    opID := uuid.NewString()
    detail := "payment attached"
    if in.PaymentInfo != "" {
        detail += ": " + in.PaymentInfo
    }
    if err := s.ops.Create(ctx, model.PaymentOp{
        ID: opID, Kind: model.OpKindAttach, GatewayRef: in.CaptureID,
        ReservationID: &res.ID, Detail: detail,
    }); err != nil {
        return model.Reservation{}, wrap(KindUnexpected, err, "record attach attempt failed")
    }

    if err := s.store.MarkPaid(ctx, res.ID, status, amount, s.currency, in.OrderID, in.CaptureID, s.provider); err != nil {
        if errors.Is(err, repository.ErrDuplicateCapture) {
            return model.Reservation{}, wrap(KindConflict, err, "capture already attached to another reservation")
        }
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation update failed")
    }
    s.advance(ctx, opID, model.OpStoreSucceeded, detail)
    updated, err := s.store.GetByID(ctx, res.ID)
    if err != nil {
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation re-read failed")
    }
    return updated, nil
}

// ---- refund/cancellation coordinator ----

// RefundInput carries an authorized refund request.  ActorID comes from the
// verified session; the handler rejects unauthenticated callers before the
// coordinator runs.
type RefundInput struct {
    CaptureID     string
    Amount        int64
    Reason        string
    ReservationID uint64
    ActorID       string
}

// RefundResult reports a refund.  ReconciliationPending is true when the
// gateway refund succeeded but the local record could not be updated; the
// refund itself is real and the divergence is queued for manual follow-up.
type RefundResult struct {
    RefundID              string `json:"refund_id"`
    ReconciliationPending bool   `json:"reconciliation_pending,omitempty"`
}

// Refund reverses a settled capture and flips the reservation to
// cancelled/refunded.  A gateway failure leaves everything untouched: the
// money is still held by the gateway and nothing changes locally.
func (s *PaymentService) Refund(ctx context.Context, in RefundInput) (RefundResult, error) {
    if in.ActorID == "" {
        return RefundResult{}, errf(KindAuth, "a verified session is required to refund")
    }
    if in.CaptureID == "" {
        return RefundResult{}, errf(KindValidation, "capture id is required")
    }
    if in.ReservationID == 0 {
        return RefundResult{}, errf(KindValidation, "reservation id is required")
    }
    if in.Amount <= 0 {
        return RefundResult{}, errf(KindValidation, "amount must be greater than zero")
    }
    if in.Reason == "" {
        return RefundResult{}, errf(KindValidation, "reason is required")
    }

    res, err := s.store.GetByID(ctx, in.ReservationID)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return RefundResult{}, wrap(KindNotFound, err, "reservation not found")
        }
        return RefundResult{}, wrap(KindUnexpected, err, "reservation read failed")
    }
    if !model.Refundable(res.PaymentStatus) {
        return RefundResult{}, errf(KindValidation, "nothing to refund: payment status is %s", res.PaymentStatus)
    }
    if res.GatewayCaptureID == nil || *res.GatewayCaptureID != in.CaptureID {
        return RefundResult{}, errf(KindValidation, "capture id does not belong to this reservation")
    }
    if in.Amount != res.PaymentAmount {
        return RefundResult{}, errf(KindValidation, "refund amount %d does not match captured amount %d", in.Amount, res.PaymentAmount)
    }

    // Local guard against two concurrent refunds of the same capture; the
    // gateway's own idempotency is the backstop, not the first line.
    if s.lock != nil {
        ok, err := s.lock.Acquire(ctx, "refund:"+in.CaptureID, refundLockTTL)
        if err == nil && !ok {
            return RefundResult{}, errf(KindConflict, "a refund for this capture is already in progress")
        }
    }

    opID := uuid.NewString()
    if err := s.ops.Create(ctx, model.PaymentOp{
        ID: opID, Kind: model.OpKindRefund, GatewayRef: in.CaptureID,
        ReservationID: &res.ID, Detail: "refund requested by " + in.ActorID,
    }); err != nil {
        s.release(ctx, in.CaptureID)
        return RefundResult{}, wrap(KindUnexpected, err, "record refund attempt failed")
    }

    refundID, err := s.gw.RefundCapture(ctx, in.CaptureID, in.Amount, res.PaymentCurrency, in.Reason)
    if err != nil {
        // Money is still held by the gateway; release the guard so the
        // caller can retry.
        s.release(ctx, in.CaptureID)
        return RefundResult{}, wrap(KindGateway, err, "refund failed")
    }
    s.advance(ctx, opID, model.OpGatewaySucceeded, "refund "+refundID+" issued")

    status, payStatus, err := model.Apply(res.Status, res.PaymentStatus, model.EventRefunded)
    if err == nil {
        err = s.store.MarkCancelled(ctx, res.ID, status, payStatus, in.Reason)
    }
    if err != nil {
        // The refund is real even though the record is now inconsistent;
        // report success to the caller and flag the debt for follow-up.
        s.reportReconciliation(opID, model.OpKindRefund, in.CaptureID, &res.ID, in.Amount,
            "reservation update failed after refund: "+err.Error())
        return RefundResult{RefundID: refundID, ReconciliationPending: true}, nil
    }
    s.advance(ctx, opID, model.OpStoreSucceeded, "reservation cancelled and refunded")
    return RefundResult{RefundID: refundID}, nil
}

// Cancel performs the pre-payment cancellation: a pure local transition
// from pending/unpaid to cancelled/unpaid.  It never calls the gateway; an
// un-captured order is simply left to expire there.
func (s *PaymentService) Cancel(ctx context.Context, reservationID uint64, reason string) (model.Reservation, error) {
    if reservationID == 0 {
        return model.Reservation{}, errf(KindValidation, "reservation id is required")
    }
    res, err := s.store.GetByID(ctx, reservationID)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return model.Reservation{}, wrap(KindNotFound, err, "reservation not found")
        }
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation read failed")
    }
    status, payStatus, err := model.Apply(res.Status, res.PaymentStatus, model.EventCancelledUnpaid)
    if err != nil {
        return model.Reservation{}, wrap(KindConflict, err, "reservation cannot be cancelled locally")
    }
    if err := s.store.MarkCancelled(ctx, res.ID, status, payStatus, reason); err != nil {
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation update failed")
    }
    updated, err := s.store.GetByID(ctx, res.ID)
    if err != nil {
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation re-read failed")
    }
    return updated, nil
}

// ---- reservation reads and drafts ----

// CreateReservation inserts an eager pending/unpaid draft ahead of any
// gateway interaction.
func (s *PaymentService) CreateReservation(ctx context.Context, draft ReservationDraft) (model.Reservation, error) {
    if draft.RestaurantID == 0 {
        return model.Reservation{}, errf(KindValidation, "restaurant id is required")
    }
    if draft.GuestName == "" {
        return model.Reservation{}, errf(KindValidation, "guest name is required")
    }
    if draft.PartySize == 0 {
        return model.Reservation{}, errf(KindValidation, "party size must be greater than zero")
    }
    res, err := s.store.CreateDraft(ctx, model.Reservation{
        RestaurantID:    draft.RestaurantID,
        GuestName:       draft.GuestName,
        GuestEmail:      draft.GuestEmail,
        GuestPhone:      draft.GuestPhone,
        ReservedAt:      draft.ReservedAt,
        PartySize:       draft.PartySize,
        Notes:           draft.Notes,
        PaymentCurrency: s.currency,
    })
    if err != nil {
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation insert failed")
    }
    return res, nil
}

// GetReservation returns a reservation by id.
func (s *PaymentService) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
    res, err := s.store.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return model.Reservation{}, wrap(KindNotFound, err, "reservation not found")
        }
        return model.Reservation{}, wrap(KindUnexpected, err, "reservation read failed")
    }
    return res, nil
}

// ListUnreconciled returns the saga-log rows whose gateway step succeeded
// but whose store step did not, for the manual reconciliation sweep.
func (s *PaymentService) ListUnreconciled(ctx context.Context) ([]model.PaymentOp, error) {
    ops, err := s.ops.ListUnreconciled(ctx)
    if err != nil {
        return nil, wrap(KindUnexpected, err, "reconciliation sweep failed")
    }
    return ops, nil
}

// ---- internal helpers ----

// advance moves an op-log row forward.  A failure here must never mask the
// payment outcome, so it is logged and swallowed.
func (s *PaymentService) advance(ctx context.Context, opID, state, detail string) {
    if err := s.ops.Advance(ctx, opID, state, detail); err != nil {
        log.Printf("payment: advance op %s to %s failed: %v", opID, state, err)
    }
}

// reportReconciliation emits the non-droppable signal for a gateway success
// paired with a local failure: a log line and a durable queue event.  It
// runs on a fresh context so the report survives a cancelled request.
func (s *PaymentService) reportReconciliation(opID, kind, gatewayRef string, reservationID *uint64, amount int64, detail string) {
    log.Printf("payment: RECONCILIATION %s op=%s ref=%s: %s", kind, opID, gatewayRef, detail)
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    s.advance(ctx, opID, model.OpGatewaySucceeded, detail)
    if s.pub == nil {
        return
    }
    ev := queue.ReconciliationEvent{
        OpID:       opID,
        Kind:       kind,
        GatewayRef: gatewayRef,
        Amount:     amount,
        Detail:     detail,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    }
    if reservationID != nil {
        ev.ReservationID = *reservationID
    }
    if err := s.pub.PublishReconciliation(ctx, ev); err != nil {
        log.Printf("payment: publish reconciliation event for op %s failed: %v", opID, err)
    }
}

// release frees the refund guard for a capture id.
func (s *PaymentService) release(ctx context.Context, captureID string) {
    if s.lock != nil {
        s.lock.Release(ctx, "refund:"+captureID)
    }
}
