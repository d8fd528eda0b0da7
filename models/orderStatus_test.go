package models

import "testing"

func TestStatusUpdateNormalize(t *testing.T) {
	update := &OrderStatusUpdate{Status: "paid"}
	status, payment, err := update.normalize()
	if err != nil {
		t.Fatal(err)
	}
	if status != OrderStatusConfirmed {
		t.Fatalf("paid should fold to confirmed, got %q", status)
	}
	if payment == nil || *payment != PaymentStatusCompleted {
		t.Fatalf("paid should complete the payment facet, got %v", payment)
	}

	refunded := PaymentStatusRefunded
	update = &OrderStatusUpdate{Status: " Ready ", PaymentStatus: &refunded}
	status, payment, err = update.normalize()
	if err != nil {
		t.Fatal(err)
	}
	if status != OrderStatusReady {
		t.Fatalf("status = %q", status)
	}
	if payment == nil || *payment != PaymentStatusRefunded {
		t.Fatalf("explicit payment facet lost: %v", payment)
	}

	update = &OrderStatusUpdate{Status: "shipped"}
	if _, _, err := update.normalize(); err == nil {
		t.Fatal("unknown status must be rejected")
	}

	// empty status keeps the stored one; the caller resolves it
	update = &OrderStatusUpdate{}
	status, _, err = update.normalize()
	if err != nil || status != "" {
		t.Fatalf("empty status: %q, %v", status, err)
	}
}

func TestEventKindForStatus(t *testing.T) {
	kinds := map[OrderStatus]OrderEventKind{
		OrderStatusPreparing: OrderEventPreparing,
		OrderStatusReady:     OrderEventReady,
		OrderStatusCompleted: OrderEventCompleted,
		OrderStatusCancelled: OrderEventCancelled,
	}
	for status, want := range kinds {
		kind, ok := eventKindForStatus(status)
		if !ok || kind != want {
			t.Errorf("eventKindForStatus(%q) = %q, %v", status, kind, ok)
		}
	}
	if _, ok := eventKindForStatus(OrderStatusConfirmed); ok {
		t.Fatal("confirmed has no dispatch event")
	}
	if _, ok := eventKindForStatus(OrderStatusPending); ok {
		t.Fatal("pending has no dispatch event")
	}
}

func TestAmountOf(t *testing.T) {
	order := &Order{GrandTotal: dec("240")}
	decEq(t, amountOf(order), "240")

	// legacy rows without a grand total reconstruct from the components
	order = &Order{
		Subtotal:       dec("100"),
		TotalDiscount:  dec("10"),
		TotalTax:       dec("4.5"),
		DeliveryCharge: dec("20"),
	}
	decEq(t, amountOf(order), "114.5")
}
