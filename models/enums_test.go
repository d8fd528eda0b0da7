package models

import "testing"

func TestCanonicalSource(t *testing.T) {
	cases := map[string]OrderSource{
		"pos":         OrderSourcePos,
		"POS":         OrderSourcePos,
		"offline-pos": OrderSourcePos,
		"staff":       OrderSourcePos,
		"counter":     OrderSourcePos,
		"kiosk":       OrderSourceKiosk,
		"online":      OrderSourceOnline,
		"online-pos":  OrderSourceOnline,
		"qr_code":     OrderSourceOnline,
		"qr_order":    OrderSourceOnline,
		"web":         OrderSourceOnline,
		"":            OrderSourcePos,
		"unknown":     OrderSourcePos,
	}
	for raw, want := range cases {
		if got := CanonicalSource(raw); got != want {
			t.Errorf("CanonicalSource(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestIsPosRoute(t *testing.T) {
	if !OrderSourcePos.IsPosRoute() || !OrderSourceKiosk.IsPosRoute() {
		t.Fatal("pos and kiosk are pos routes")
	}
	if OrderSourceOnline.IsPosRoute() {
		t.Fatal("online is not a pos route")
	}
}

func TestPaymentMethodGroup(t *testing.T) {
	cases := map[PaymentMethod]string{
		PaymentMethodCard:       "card",
		PaymentMethodCreditCard: "card",
		PaymentMethodDebitCard:  "card",
		PaymentMethodUpi:        "online",
		PaymentMethodRazorpay:   "online",
		PaymentMethodNeft:       "online",
		PaymentMethodCash:       "cash",
		PaymentMethodCod:        "cod",
	}
	for method, want := range cases {
		if got := PaymentMethodGroup(method); got != want {
			t.Errorf("PaymentMethodGroup(%q) = %q, want %q", method, got, want)
		}
	}
}

func TestOrderStatusFamilies(t *testing.T) {
	confirmed := []OrderStatus{OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusServed, OrderStatusCompleted}
	for _, s := range confirmed {
		if !s.IsConfirmedFamily() {
			t.Errorf("%q should be in the confirmed family", s)
		}
	}
	if OrderStatusPending.IsConfirmedFamily() || OrderStatusCancelled.IsConfirmedFamily() {
		t.Fatal("pending and cancelled are outside the confirmed family")
	}

	if !OrderStatusCompleted.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("completed and cancelled are terminal")
	}
	if OrderStatusReady.IsTerminal() {
		t.Fatal("ready is not terminal")
	}
}

func TestPaymentStatusIsPaid(t *testing.T) {
	if !PaymentStatusPaid.IsPaid() || !PaymentStatusCompleted.IsPaid() {
		t.Fatal("paid and completed both report paid")
	}
	if PaymentStatusPending.IsPaid() || PaymentStatusRefunded.IsPaid() {
		t.Fatal("pending and refunded are not paid")
	}
}
