package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-reservation/internal/middleware"
    "github.com/iliyamo/restaurant-reservation/internal/service"
)

// PaymentHandler exposes the reservation–payment operations over HTTP.  The
// handlers do no business logic themselves: they bind the request, call the
// matching coordinator and translate the unified service.Error into an HTTP
// status and JSON envelope.  Session validation for the refund path is done
// by middleware before these handlers run.
type PaymentHandler struct {
    Svc *service.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.  The service must be
// non-nil.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
    if svc == nil {
        panic("nil service passed to NewPaymentHandler")
    }
    return &PaymentHandler{Svc: svc}
}

// ----- DTOs -----

type createOrderReq struct {
    Amount      int64  `json:"amount"`
    Currency    string `json:"currency"`
    ReferenceID string `json:"reference_id"`
}

type captureReq struct {
    ReservationDraft *service.ReservationDraft `json:"reservation_draft"`
    ReservationID    uint64                    `json:"reservation_id"`
}

type refundReq struct {
    CaptureID     string `json:"capture_id"`
    Amount        int64  `json:"amount"`
    Reason        string `json:"reason"`
    ReservationID uint64 `json:"reservation_id"`
}

type attachReq struct {
    OrderID     string `json:"order_id"`
    CaptureID   string `json:"capture_id"`
    Amount      int64  `json:"amount"`
    PaymentInfo string `json:"payment_info"`
}

type cancelReq struct {
    Reason string `json:"reason"`
}

// CreateOrder handles POST /v1/payments/orders.  It opens a CAPTURE-intent
// order at the gateway and returns its id.  No reservation row is touched:
// an abandoned order must not leave a dangling record.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
    var req createOrderReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    orderID, err := h.Svc.CreateOrder(c.Request().Context(), service.CreateOrderInput{
        Amount:      req.Amount,
        Currency:    req.Currency,
        ReferenceID: req.ReferenceID,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"order_id": orderID})
}

// CaptureOrder handles POST /v1/payments/orders/:id/capture.  The body
// carries either a reservation draft (lazy insert on settlement) or the id
// of an existing draft reservation (two-phase promote).
func (h *PaymentHandler) CaptureOrder(c echo.Context) error {
    orderID := c.Param("id")
    var req captureReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    result, err := h.Svc.CaptureOrder(c.Request().Context(), service.CaptureInput{
        OrderID:       orderID,
        Draft:         req.ReservationDraft,
        ReservationID: req.ReservationID,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "capture_id":     result.CaptureID,
        "reservation_id": result.ReservationID,
        "amount":         result.Amount,
    })
}

// Refund handles POST /v1/payments/refunds.  The route is wrapped in
// SessionAuth; the verified subject becomes the acting identity recorded in
// the op log.
func (h *PaymentHandler) Refund(c echo.Context) error {
    var req refundReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    result, err := h.Svc.Refund(c.Request().Context(), service.RefundInput{
        CaptureID:     req.CaptureID,
        Amount:        req.Amount,
        Reason:        req.Reason,
        ReservationID: req.ReservationID,
        ActorID:       middleware.ActorID(c),
    })
    if err != nil {
        return respondError(c, err)
    }
    resp := echo.Map{"refund_id": result.RefundID}
    if result.ReconciliationPending {
        // The refund is real; the record update is pending manual
        // reconciliation.  Surface the ambiguity instead of hiding it.
        resp["reconciliation_pending"] = true
    }
    return c.JSON(http.StatusOK, resp)
}

// AttachPayment handles POST /v1/reservations/:id/payment.  It promotes a
// draft reservation with payment metadata produced outside this service.
func (h *PaymentHandler) AttachPayment(c echo.Context) error {
    resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || resID == 0 {
        return respondError(c, &service.Error{Kind: service.KindValidation, Message: "invalid reservation id"})
    }
    var req attachReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    res, err := h.Svc.AttachPayment(c.Request().Context(), service.AttachInput{
        ReservationID: resID,
        OrderID:       req.OrderID,
        CaptureID:     req.CaptureID,
        Amount:        req.Amount,
        PaymentInfo:   req.PaymentInfo,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// CreateReservation handles POST /v1/reservations.  It inserts an eager
// pending/unpaid draft ahead of any gateway interaction.
func (h *PaymentHandler) CreateReservation(c echo.Context) error {
    var draft service.ReservationDraft
    if err := c.Bind(&draft); err != nil {
        return badBody(c)
    }
    if draft.ReservedAt.IsZero() {
        draft.ReservedAt = time.Now().UTC()
    }
    res, err := h.Svc.CreateReservation(c.Request().Context(), draft)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"reservation": res})
}

// GetReservation handles GET /v1/reservations/:id.
func (h *PaymentHandler) GetReservation(c echo.Context) error {
    resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || resID == 0 {
        return respondError(c, &service.Error{Kind: service.KindValidation, Message: "invalid reservation id"})
    }
    res, err := h.Svc.GetReservation(c.Request().Context(), resID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// CancelReservation handles POST /v1/reservations/:id/cancel: the
// pre-payment local cancellation.  Paid reservations must go through the
// refund path instead.
func (h *PaymentHandler) CancelReservation(c echo.Context) error {
    resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || resID == 0 {
        return respondError(c, &service.Error{Kind: service.KindValidation, Message: "invalid reservation id"})
    }
    var req cancelReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    res, err := h.Svc.Cancel(c.Request().Context(), resID, req.Reason)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// ListReconciliation handles GET /v1/payments/reconciliation.  It returns
// the saga-log rows still owing a local write, for the manual follow-up
// operator.
func (h *PaymentHandler) ListReconciliation(c echo.Context) error {
    ops, err := h.Svc.ListUnreconciled(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": ops})
}

// ----- error translation -----

// statusFor maps each error kind of the unified taxonomy onto an HTTP
// status.  ReconciliationError intentionally lands on 500: the external
// transaction is real but the caller must not treat the operation as a
// clean success.
func statusFor(kind service.Kind) int {
    switch kind {
    case service.KindValidation:
        return http.StatusBadRequest
    case service.KindAuth:
        return http.StatusUnauthorized
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindConflict:
        return http.StatusConflict
    case service.KindGateway:
        return http.StatusBadGateway
    default:
        return http.StatusInternalServerError
    }
}

// respondError writes the unified error envelope shared by all endpoints.
func respondError(c echo.Context, err error) error {
    var svcErr *service.Error
    if !errors.As(err, &svcErr) {
        svcErr = &service.Error{Kind: service.KindUnexpected, Message: "internal error", Cause: err}
    }
    body := echo.Map{"kind": string(svcErr.Kind), "message": svcErr.Message}
    if svcErr.Cause != nil {
        body["cause"] = svcErr.Cause.Error()
    }
    return c.JSON(statusFor(svcErr.Kind), echo.Map{"error": body})
}

// badBody is the shared response for an unreadable request body.
func badBody(c echo.Context) error {
    return respondError(c, &service.Error{Kind: service.KindValidation, Message: "invalid request body"})
}
