package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestServer fakes the gateway: a token endpoint plus a mux the test
// fills in per case.  Every non-token route asserts the bearer token the
// client obtained.
func newTestServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	return httptest.NewServer(mux)
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("expected bearer token, got %q", got)
	}
}

func newTestClient(baseURL string) *Client {
	return New(baseURL, "client-id", "client-secret", "Test Brand",
		"https://example.com/return", "https://example.com/cancel")
}

func TestObtainAccessToken(t *testing.T) {
	t.Parallel()

	t.Run("returns token on success", func(t *testing.T) {
		srv := newTestServer(t, http.NewServeMux())
		defer srv.Close()

		tok, err := newTestClient(srv.URL).ObtainAccessToken(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok != "test-token" {
			t.Fatalf("expected test-token, got %q", tok)
		}
	})

	t.Run("non-success carries status and body, never credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).ObtainAccessToken(context.Background())
		var gwErr *Error
		if !errors.As(err, &gwErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if gwErr.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", gwErr.StatusCode)
		}
		if !strings.Contains(gwErr.Body, "invalid_client") {
			t.Fatalf("expected raw body, got %q", gwErr.Body)
		}
		if strings.Contains(gwErr.Error(), "client-secret") {
			t.Fatalf("error must not leak credentials: %q", gwErr.Error())
		}
	})
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	t.Run("sends capture intent and pay-now context", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
			requireBearer(t, r)
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode order request: %v", err)
			}
			if body["intent"] != "CAPTURE" {
				t.Errorf("expected intent CAPTURE, got %v", body["intent"])
			}
			units := body["purchase_units"].([]interface{})
			unit := units[0].(map[string]interface{})
			if unit["custom_id"] != "restaurant-7" {
				t.Errorf("expected custom_id restaurant-7, got %v", unit["custom_id"])
			}
			amount := unit["amount"].(map[string]interface{})
			if amount["currency_code"] != "JPY" || amount["value"] != "1000" {
				t.Errorf("unexpected amount %v", amount)
			}
			appCtx := body["application_context"].(map[string]interface{})
			if appCtx["user_action"] != "PAY_NOW" || appCtx["shipping_preference"] != "NO_SHIPPING" {
				t.Errorf("unexpected application context %v", appCtx)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "O1", "status": "CREATED"})
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		orderID, err := newTestClient(srv.URL).CreateOrder(context.Background(), 1000, "JPY", "restaurant-7")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if orderID != "O1" {
			t.Fatalf("expected O1, got %q", orderID)
		}
	})

	t.Run("gateway rejection surfaces as *Error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateOrder(context.Background(), 1000, "JPY", "restaurant-7")
		var gwErr *Error
		if !errors.As(err, &gwErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if gwErr.Op != "create_order" || gwErr.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("unexpected error %+v", gwErr)
		}
	})
}

func TestCaptureOrder(t *testing.T) {
	t.Parallel()

	t.Run("completed order yields capture id and amount", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders/O1/capture", func(w http.ResponseWriter, r *http.Request) {
			requireBearer(t, r)
			_, _ = w.Write([]byte(`{
				"id": "O1", "status": "COMPLETED",
				"purchase_units": [{"payments": {"captures": [{"id": "C1", "amount": {"currency_code": "JPY", "value": "1000"}}]}}]
			}`))
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		got, err := newTestClient(srv.URL).CaptureOrder(context.Background(), "O1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != OrderCompleted || got.CaptureID != "C1" || got.Amount != 1000 {
			t.Fatalf("unexpected capture %+v", got)
		}
	})

	t.Run("fractional zero amount is accepted", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders/O2/capture", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"id": "O2", "status": "COMPLETED",
				"purchase_units": [{"payments": {"captures": [{"id": "C2", "amount": {"currency_code": "JPY", "value": "1000.00"}}]}}]
			}`))
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		got, err := newTestClient(srv.URL).CaptureOrder(context.Background(), "O2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Amount != 1000 {
			t.Fatalf("expected 1000, got %d", got.Amount)
		}
	})

	t.Run("pending order returns status without capture id", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders/O3/capture", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id": "O3", "status": "PENDING"}`))
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		got, err := newTestClient(srv.URL).CaptureOrder(context.Background(), "O3")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != "PENDING" || got.CaptureID != "" {
			t.Fatalf("unexpected capture %+v", got)
		}
	})

	t.Run("http failure surfaces as *Error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders/O4/capture", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND"}`))
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		_, err := newTestClient(srv.URL).CaptureOrder(context.Background(), "O4")
		var gwErr *Error
		if !errors.As(err, &gwErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if gwErr.Op != "capture_order" || gwErr.StatusCode != http.StatusNotFound {
			t.Fatalf("unexpected error %+v", gwErr)
		}
	})
}

func TestRefundCapture(t *testing.T) {
	t.Parallel()

	t.Run("sends amount and payer note", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/payments/captures/C1/refund", func(w http.ResponseWriter, r *http.Request) {
			requireBearer(t, r)
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode refund request: %v", err)
			}
			amount := body["amount"].(map[string]interface{})
			if amount["value"] != "1000" || amount["currency_code"] != "JPY" {
				t.Errorf("unexpected amount %v", amount)
			}
			if body["note_to_payer"] != "guest request" {
				t.Errorf("unexpected note %v", body["note_to_payer"])
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "R1"})
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		refundID, err := newTestClient(srv.URL).RefundCapture(context.Background(), "C1", 1000, "JPY", "guest request")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if refundID != "R1" {
			t.Fatalf("expected R1, got %q", refundID)
		}
	})

	t.Run("second refund fails with the gateway's error body", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/payments/captures/C1/refund", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"CAPTURE_FULLY_REFUNDED"}]}`))
		})
		srv := newTestServer(t, mux)
		defer srv.Close()

		_, err := newTestClient(srv.URL).RefundCapture(context.Background(), "C1", 1000, "JPY", "again")
		var gwErr *Error
		if !errors.As(err, &gwErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if !strings.Contains(gwErr.Body, "CAPTURE_FULLY_REFUNDED") {
			t.Fatalf("expected gateway body, got %q", gwErr.Body)
		}
	})
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	if v, err := parseAmount("1000"); err != nil || v != 1000 {
		t.Fatalf("expected 1000, got %d (%v)", v, err)
	}
	if v, err := parseAmount("1000.00"); err != nil || v != 1000 {
		t.Fatalf("expected 1000, got %d (%v)", v, err)
	}
	if _, err := parseAmount("1000.50"); err == nil {
		t.Fatalf("expected error for fractional amount")
	}
}
