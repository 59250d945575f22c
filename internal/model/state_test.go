package model

import (
	"errors"
	"testing"
)

func TestApply(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    string
		payStatus string
		ev        Event
		wantSt    string
		wantPay   string
		wantErr   bool
	}{
		{"capture promotes pending draft", StatusPending, PayUnpaid, EventPaymentCaptured, StatusConfirmed, PayPaid, false},
		{"attach promotes pending draft", StatusPending, PayUnpaid, EventPaymentAttached, StatusConfirmed, PayPaid, false},
		{"local cancel before payment", StatusPending, PayUnpaid, EventCancelledUnpaid, StatusCancelled, PayUnpaid, false},
		{"refund cancels confirmed", StatusConfirmed, PayPaid, EventRefunded, StatusCancelled, PayRefunded, false},
		{"refund cancels a lazy pending paid row", StatusPending, PayPaid, EventRefunded, StatusCancelled, PayRefunded, false},
		{"visit completes confirmed", StatusConfirmed, PayPaid, EventCompleted, StatusCompleted, PayPaid, false},

		{"no second capture of confirmed", StatusConfirmed, PayPaid, EventPaymentCaptured, "", "", true},
		{"no attach to confirmed", StatusConfirmed, PayPaid, EventPaymentAttached, "", "", true},
		{"no local cancel once paid", StatusConfirmed, PayPaid, EventCancelledUnpaid, "", "", true},
		{"no refund of unpaid", StatusPending, PayUnpaid, EventRefunded, "", "", true},
		{"no refund of refunded", StatusCancelled, PayRefunded, EventRefunded, "", "", true},
		{"no return from cancelled", StatusCancelled, PayUnpaid, EventPaymentCaptured, "", "", true},
		{"no return from completed", StatusCompleted, PayPaid, EventRefunded, "", "", true},
		{"unknown event rejected", StatusPending, PayUnpaid, Event("bogus"), "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, pay, err := Apply(tc.status, tc.payStatus, tc.ev)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s/%s", st, pay)
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if st != tc.wantSt || pay != tc.wantPay {
				t.Fatalf("expected %s/%s, got %s/%s", tc.wantSt, tc.wantPay, st, pay)
			}
		})
	}
}

func TestRefundable(t *testing.T) {
	t.Parallel()

	if !Refundable(PayPaid) {
		t.Fatalf("paid must be refundable")
	}
	for _, pay := range []string{PayUnpaid, PayRefunded, PayPartialRefund} {
		if Refundable(pay) {
			t.Fatalf("%s must not be refundable", pay)
		}
	}
}
