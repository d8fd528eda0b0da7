package models

import (
	"encoding/json"
	"testing"
)

func TestBuildPrintJobProjection(t *testing.T) {
	comboId := 3
	order := &Order{
		TheaterId:     "t1",
		OrderNumber:   "GU0007",
		Source:        OrderSourcePos,
		OrderType:     "dine-in",
		Currency:      "INR",
		PaymentMethod: PaymentMethodCash,
		GrandTotal:    dec("540"),
		Items: []OrderItem{
			{ProductName: "Salted Popcorn", VariantLabel: "100 G", Quantity: 2, Total: dec("360"),
				IsFromCombo: true, ComboId: &comboId, ComboName: "Movie Night"},
			{ProductName: "Samosa", Quantity: 1, Total: dec("60")},
			{ProductName: "Cola", Quantity: 1, Cancelled: true},
		},
	}

	job := buildPrintJob(order, "Guild Cinema", OrderEventCreated)

	if job.TheaterName != "Guild Cinema" || job.OrderNumber != "GU0007" {
		t.Fatalf("header wrong: %+v", job)
	}
	if job.GrandTotal != "540.00" {
		t.Fatalf("grand total = %q", job.GrandTotal)
	}
	if len(job.Items) != 2 {
		t.Fatalf("cancelled lines must be dropped, items = %d", len(job.Items))
	}
	if job.Items[0].Combo != "Movie Night" {
		t.Fatalf("combo component should carry the combo name: %+v", job.Items[0])
	}
	if job.Items[1].Combo != "" {
		t.Fatalf("plain line must not carry a combo name: %+v", job.Items[1])
	}

	// the payload round-trips for the dispatcher
	raw, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	var decoded PrintJob
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.OrderNumber != job.OrderNumber || len(decoded.Items) != 2 {
		t.Fatalf("payload did not round-trip: %+v", decoded)
	}
}

func TestEnqueueOrderEventPrintRoute(t *testing.T) {
	db := newStockDB(t)
	if err := db.AutoMigrate(&OrderEventRecord{}); err != nil {
		t.Fatal(err)
	}

	posOrder := &Order{ID: 1, TheaterId: "t1", OrderNumber: "GU0001", Source: OrderSourcePos}
	onlineOrder := &Order{ID: 2, TheaterId: "t1", OrderNumber: "GU0002", Source: OrderSourceOnline}

	if err := EnqueueOrderEvent(db, posOrder, "Guild Cinema", OrderEventCreated, "corr-1"); err != nil {
		t.Fatal(err)
	}
	if err := EnqueueOrderEvent(db, onlineOrder, "Guild Cinema", OrderEventCreated, "corr-2"); err != nil {
		t.Fatal(err)
	}

	var records []OrderEventRecord
	if err := db.Order("order_id").Find(&records).Error; err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if !records[0].PrintRoute {
		t.Fatal("pos orders go to the printer")
	}
	if records[1].PrintRoute {
		t.Fatal("online orders skip the printer")
	}
	if records[0].Status != OutboxPublishStatusPending {
		t.Fatalf("status = %q", records[0].Status)
	}
	if records[0].CorrelationId != "corr-1" {
		t.Fatalf("correlation id = %q", records[0].CorrelationId)
	}
}
