// Package gateway wraps the external payment service's HTTP API: token
// acquisition, order create/capture and capture refund.  The client is
// stateless per call; a token is obtained with the client-credentials grant
// for every operation and never cached across requests.  Endpoint selection
// (sandbox vs production) is decided by the base URL passed in from config,
// not by logic in this package.
package gateway

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "strings"

    "github.com/go-resty/resty/v2"
)

// OrderCompleted is the gateway status that marks an order as settled.
// Captures with any other status must not result in a store write.
const OrderCompleted = "COMPLETED"

// Error is returned for any non-success gateway response.  It carries the
// HTTP status and the raw response body for diagnosis.  Credentials are
// never included.
type Error struct {
    Op         string // which call failed: token, create_order, capture_order, refund_capture
    StatusCode int    // HTTP status returned by the gateway
    Body       string // raw response body
}

func (e *Error) Error() string {
    return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the payment gateway.  Construct one with New and inject
// it where needed; it is safe for concurrent use and holds no per-request
// state.
type Client struct {
    http      *resty.Client
    clientID  string
    secret    string
    brandName string
    returnURL string
    cancelURL string
}

// New returns a Client bound to the given base URL and credentials.  The
// brand name and redirect URLs are embedded into every created order's
// application context.
func New(baseURL, clientID, secret, brandName, returnURL, cancelURL string) *Client {
    return &Client{
        http:      resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
        clientID:  clientID,
        secret:    secret,
        brandName: brandName,
        returnURL: returnURL,
        cancelURL: cancelURL,
    }
}

type tokenResponse struct {
    AccessToken string `json:"access_token"`
}

// ObtainAccessToken performs the client-credentials grant against the token
// endpoint and returns a bearer token for subsequent calls.
func (c *Client) ObtainAccessToken(ctx context.Context) (string, error) {
    resp, err := c.http.R().
        SetContext(ctx).
        SetBasicAuth(c.clientID, c.secret).
        SetHeader("Content-Type", "application/x-www-form-urlencoded").
        SetFormData(map[string]string{"grant_type": "client_credentials"}).
        Post("/v1/oauth2/token")
    if err != nil {
        return "", fmt.Errorf("token request: %w", err)
    }
    if !resp.IsSuccess() {
        return "", &Error{Op: "token", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    var tok tokenResponse
    if err := json.Unmarshal(resp.Body(), &tok); err != nil {
        return "", fmt.Errorf("decode token response: %w", err)
    }
    if tok.AccessToken == "" {
        return "", &Error{Op: "token", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    return tok.AccessToken, nil
}

// Wire shapes for the order endpoints.  Amounts travel as strings in the
// gateway API; this service deals in whole units of the configured currency.
type amount struct {
    CurrencyCode string `json:"currency_code"`
    Value        string `json:"value"`
}

type purchaseUnit struct {
    ReferenceID string  `json:"reference_id,omitempty"`
    Description string  `json:"description,omitempty"`
    CustomID    string  `json:"custom_id,omitempty"`
    Amount      *amount `json:"amount,omitempty"`
    Payments    *struct {
        Captures []struct {
            ID     string `json:"id"`
            Amount amount `json:"amount"`
        } `json:"captures"`
    } `json:"payments,omitempty"`
}

type applicationContext struct {
    BrandName          string `json:"brand_name"`
    UserAction         string `json:"user_action"`
    ShippingPreference string `json:"shipping_preference"`
    ReturnURL          string `json:"return_url"`
    CancelURL          string `json:"cancel_url"`
}

type orderRequest struct {
    Intent             string             `json:"intent"`
    PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
    ApplicationContext applicationContext `json:"application_context"`
}

type orderResponse struct {
    ID            string         `json:"id"`
    Status        string         `json:"status"`
    PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

// CreateOrder opens a CAPTURE-intent order for the given amount and returns
// the gateway order id.  The reference id is embedded both as the purchase
// unit reference and as custom_id so the restaurant context survives the
// round trip through the gateway.  The application context pins a
// "pay now, no shipping" experience so the gateway skips address collection.
func (c *Client) CreateOrder(ctx context.Context, amt int64, currency, referenceID string) (string, error) {
    token, err := c.ObtainAccessToken(ctx)
    if err != nil {
        return "", err
    }
    body := orderRequest{
        Intent: "CAPTURE",
        PurchaseUnits: []purchaseUnit{{
            ReferenceID: referenceID,
            Description: "Restaurant reservation",
            CustomID:    referenceID,
            Amount:      &amount{CurrencyCode: currency, Value: formatAmount(amt)},
        }},
        ApplicationContext: applicationContext{
            BrandName:          c.brandName,
            UserAction:         "PAY_NOW",
            ShippingPreference: "NO_SHIPPING",
            ReturnURL:          c.returnURL,
            CancelURL:          c.cancelURL,
        },
    }
    resp, err := c.http.R().
        SetContext(ctx).
        SetAuthToken(token).
        SetHeader("Content-Type", "application/json").
        SetBody(body).
        Post("/v2/checkout/orders")
    if err != nil {
        return "", fmt.Errorf("create order request: %w", err)
    }
    if !resp.IsSuccess() {
        return "", &Error{Op: "create_order", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    var order orderResponse
    if err := json.Unmarshal(resp.Body(), &order); err != nil {
        return "", fmt.Errorf("decode create order response: %w", err)
    }
    if order.ID == "" {
        return "", &Error{Op: "create_order", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    return order.ID, nil
}

// Capture is the settlement result of a capture call.  Amount is the
// captured amount reported by the gateway, which is authoritative over
// whatever was originally requested.
type Capture struct {
    OrderID   string // gateway order id
    Status    string // order status after the capture call
    CaptureID string // capture id, set only when the order completed
    Amount    int64  // captured amount in whole currency units
}

// CaptureOrder settles an approved order.  A non-success HTTP response is
// returned as *Error.  When the response parses but the order status is not
// COMPLETED, the Capture is returned as-is with an empty CaptureID and the
// caller decides; settlement is idempotent on the gateway side.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
    token, err := c.ObtainAccessToken(ctx)
    if err != nil {
        return Capture{}, err
    }
    resp, err := c.http.R().
        SetContext(ctx).
        SetAuthToken(token).
        SetHeader("Content-Type", "application/json").
        Post("/v2/checkout/orders/" + orderID + "/capture")
    if err != nil {
        return Capture{}, fmt.Errorf("capture order request: %w", err)
    }
    if !resp.IsSuccess() {
        return Capture{}, &Error{Op: "capture_order", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    var order orderResponse
    if err := json.Unmarshal(resp.Body(), &order); err != nil {
        return Capture{}, fmt.Errorf("decode capture response: %w", err)
    }
    out := Capture{OrderID: order.ID, Status: order.Status}
    if out.OrderID == "" {
        out.OrderID = orderID
    }
    if order.Status != OrderCompleted {
        return out, nil
    }
    for _, pu := range order.PurchaseUnits {
        if pu.Payments == nil || len(pu.Payments.Captures) == 0 {
            continue
        }
        first := pu.Payments.Captures[0]
        out.CaptureID = first.ID
        amt, err := parseAmount(first.Amount.Value)
        if err != nil {
            return Capture{}, fmt.Errorf("parse captured amount %q: %w", first.Amount.Value, err)
        }
        out.Amount = amt
        break
    }
    if out.CaptureID == "" {
        return Capture{}, &Error{Op: "capture_order", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    return out, nil
}

type refundRequest struct {
    Amount      amount `json:"amount"`
    NoteToPayer string `json:"note_to_payer,omitempty"`
}

type refundResponse struct {
    ID string `json:"id"`
}

// RefundCapture reverses a settled capture for the given amount and returns
// the gateway refund id.  The reason travels to the payer as the refund
// note.  A second refund of the same capture fails at the gateway and is
// surfaced as *Error.
func (c *Client) RefundCapture(ctx context.Context, captureID string, amt int64, currency, reason string) (string, error) {
    token, err := c.ObtainAccessToken(ctx)
    if err != nil {
        return "", err
    }
    resp, err := c.http.R().
        SetContext(ctx).
        SetAuthToken(token).
        SetHeader("Content-Type", "application/json").
        SetBody(refundRequest{
            Amount:      amount{CurrencyCode: currency, Value: formatAmount(amt)},
            NoteToPayer: reason,
        }).
        Post("/v2/payments/captures/" + captureID + "/refund")
    if err != nil {
        return "", fmt.Errorf("refund request: %w", err)
    }
    if !resp.IsSuccess() {
        return "", &Error{Op: "refund_capture", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    var refund refundResponse
    if err := json.Unmarshal(resp.Body(), &refund); err != nil {
        return "", fmt.Errorf("decode refund response: %w", err)
    }
    if refund.ID == "" {
        return "", &Error{Op: "refund_capture", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
    }
    return refund.ID, nil
}

// formatAmount renders a whole-unit amount the way the gateway expects.
func formatAmount(v int64) string { return strconv.FormatInt(v, 10) }

// parseAmount reads a gateway amount string.  Values may come back with a
// fractional part ("1000.00"); anything after the point is ignored when it
// is all zeros and rejected otherwise, since this service only deals in
// whole units.
func parseAmount(s string) (int64, error) {
    whole, frac, found := strings.Cut(s, ".")
    if found && strings.Trim(frac, "0") != "" {
        return 0, fmt.Errorf("fractional amount not supported: %s", s)
    }
    return strconv.ParseInt(whole, 10, 64)
}
