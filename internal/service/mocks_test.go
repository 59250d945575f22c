package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/gateway"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// fakeGateway scripts the gateway responses per test and records what was
// asked of it.
type fakeGateway struct {
	createOrderID  string
	createErr      error
	capture        gateway.Capture
	captureErr     error
	refundID       string
	refundErr      error
	refundCalls    int
	capturedOrders []string
	refundedAmt    int64
	refundedCur    string
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ int64, _, _ string) (string, error) {
	return g.createOrderID, g.createErr
}

func (g *fakeGateway) CaptureOrder(_ context.Context, orderID string) (gateway.Capture, error) {
	g.capturedOrders = append(g.capturedOrders, orderID)
	return g.capture, g.captureErr
}

func (g *fakeGateway) RefundCapture(_ context.Context, _ string, amt int64, currency, _ string) (string, error) {
	g.refundCalls++
	g.refundedAmt = amt
	g.refundedCur = currency
	return g.refundID, g.refundErr
}

// fakeStore is an in-memory reservation table keyed by id.
type fakeStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Reservation

	createFromCaptureErr error
	markPaidErr          error
	markCancelledErr     error
	writes               int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, rows: map[uint64]model.Reservation{}}
}

func (s *fakeStore) seed(res model.Reservation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	res.ID = s.nextID
	s.nextID++
	s.rows[res.ID] = res
	return res.ID
}

func (s *fakeStore) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	return res, nil
}

func (s *fakeStore) CreateDraft(_ context.Context, res model.Reservation) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	res.ID = s.nextID
	s.nextID++
	res.Status = model.StatusPending
	res.PaymentStatus = model.PayUnpaid
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	s.rows[res.ID] = res
	return res, nil
}

func (s *fakeStore) CreateFromCapture(_ context.Context, res model.Reservation) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createFromCaptureErr != nil {
		return model.Reservation{}, s.createFromCaptureErr
	}
	for _, row := range s.rows {
		if row.GatewayOrderID != nil && res.GatewayOrderID != nil && *row.GatewayOrderID == *res.GatewayOrderID {
			return model.Reservation{}, repository.ErrDuplicateOrder
		}
	}
	s.writes++
	res.ID = s.nextID
	s.nextID++
	res.Status = model.StatusPending
	res.PaymentStatus = model.PayPaid
	now := time.Now().UTC()
	res.PaidAt = &now
	s.rows[res.ID] = res
	return res, nil
}

func (s *fakeStore) MarkPaid(_ context.Context, id uint64, status string, amount int64, currency, orderID, captureID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markPaidErr != nil {
		return s.markPaidErr
	}
	res, ok := s.rows[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	for otherID, row := range s.rows {
		if otherID != id && row.GatewayCaptureID != nil && *row.GatewayCaptureID == captureID {
			return repository.ErrDuplicateCapture
		}
	}
	s.writes++
	res.Status = status
	res.PaymentStatus = model.PayPaid
	res.PaymentAmount = amount
	res.PaymentCurrency = currency
	res.GatewayOrderID = &orderID
	res.GatewayCaptureID = &captureID
	res.PaymentProvider = provider
	now := time.Now().UTC()
	res.PaidAt = &now
	s.rows[id] = res
	return nil
}

func (s *fakeStore) MarkCancelled(_ context.Context, id uint64, status, payStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markCancelledErr != nil {
		return s.markCancelledErr
	}
	res, ok := s.rows[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	s.writes++
	res.Status = status
	res.PaymentStatus = payStatus
	res.CancelReason = &reason
	s.rows[id] = res
	return nil
}

// fakeOpLog keeps saga rows in memory.
type fakeOpLog struct {
	mu   sync.Mutex
	ops  map[string]model.PaymentOp
	errs struct{ create error }
}

func newFakeOpLog() *fakeOpLog {
	return &fakeOpLog{ops: map[string]model.PaymentOp{}}
}

func (l *fakeOpLog) Create(_ context.Context, op model.PaymentOp) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errs.create != nil {
		return l.errs.create
	}
	op.State = model.OpAttempted
	l.ops[op.ID] = op
	return nil
}

func (l *fakeOpLog) Advance(_ context.Context, id, state, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	op, ok := l.ops[id]
	if !ok {
		return errors.New("op not found")
	}
	op.State = state
	op.Detail = detail
	l.ops[id] = op
	return nil
}

func (l *fakeOpLog) ListUnreconciled(_ context.Context) ([]model.PaymentOp, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.PaymentOp
	for _, op := range l.ops {
		if op.State == model.OpGatewaySucceeded {
			out = append(out, op)
		}
	}
	return out, nil
}

// single returns the only op row; the caller's test fails elsewhere when the
// count is off.
func (l *fakeOpLog) single() model.PaymentOp {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, op := range l.ops {
		return op
	}
	return model.PaymentOp{}
}

func (l *fakeOpLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// fakePublisher records published reconciliation events.
type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ReconciliationEvent
}

func (p *fakePublisher) PublishReconciliation(_ context.Context, ev queue.ReconciliationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) published() []queue.ReconciliationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReconciliationEvent(nil), p.events...)
}

// fakeLocker simulates the refund guard.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	denyAll  bool
	releases []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denyAll || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.releases = append(l.releases, key)
}
