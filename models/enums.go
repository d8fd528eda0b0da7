package models

import "strings"

/* order status */

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsConfirmedFamily reports whether the status has passed the confirmation
// boundary for stock-accounting purposes. preparing/ready/served are
// observable sub-states that do not change accounting relative to confirmed.
func (s OrderStatus) IsConfirmedFamily() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusServed, OrderStatusCompleted:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

/* payment */

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// IsPaid treats paid and completed as equivalent payment facets.
func (s PaymentStatus) IsPaid() bool {
	return s == PaymentStatusPaid || s == PaymentStatusCompleted
}

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCod        PaymentMethod = "cod"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodNeft       PaymentMethod = "neft"
	PaymentMethodUpi        PaymentMethod = "upi"
	PaymentMethodOnline     PaymentMethod = "online"
	PaymentMethodRazorpay   PaymentMethod = "razorpay"
	PaymentMethodPhonepe    PaymentMethod = "phonepe"
	PaymentMethodPaytm      PaymentMethod = "paytm"
)

// PaymentMethodGroup collapses the method vocabulary for aggregation:
// the card family and the online/UPI family each report as one bucket.
func PaymentMethodGroup(m PaymentMethod) string {
	switch m {
	case PaymentMethodCard, PaymentMethodCreditCard, PaymentMethodDebitCard:
		return "card"
	case PaymentMethodUpi, PaymentMethodOnline, PaymentMethodRazorpay, PaymentMethodPhonepe, PaymentMethodPaytm, PaymentMethodNeft:
		return "online"
	default:
		return string(m)
	}
}

// IsImmediateCashMethod reports whether the method settles at the counter.
func IsImmediateCashMethod(m PaymentMethod) bool {
	return m == PaymentMethodCash || m == PaymentMethodCod
}

/* order source channel */

type OrderSource string

const (
	OrderSourcePos    OrderSource = "pos"
	OrderSourceKiosk  OrderSource = "kiosk"
	OrderSourceOnline OrderSource = "online"
)

// CanonicalSource folds the channel aliases into pos | kiosk | online.
// online-pos historically flipped between the two; reporting settled on online.
func CanonicalSource(raw string) OrderSource {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pos", "offline-pos", "staff", "counter":
		return OrderSourcePos
	case "kiosk":
		return OrderSourceKiosk
	case "online", "online-pos", "qr_code", "qr_order", "web":
		return OrderSourceOnline
	default:
		return OrderSourcePos
	}
}

// IsPosRoute reports whether the channel is eligible for immediate cash
// confirmation and print dispatch.
func (s OrderSource) IsPosRoute() bool {
	return s == OrderSourcePos || s == OrderSourceKiosk
}

/* gst */

type GstType string

const (
	GstTypeInclude GstType = "INCLUDE"
	GstTypeExclude GstType = "EXCLUDE"
)

/* ledger */

// StockEntryType is retained for historical compatibility with exported
// ledgers; new writes tag ADDED unless the write path knows better.
type StockEntryType string

const (
	StockEntryTypeAdded      StockEntryType = "ADDED"
	StockEntryTypeSold       StockEntryType = "SOLD"
	StockEntryTypeExpired    StockEntryType = "EXPIRED"
	StockEntryTypeDamaged    StockEntryType = "DAMAGED"
	StockEntryTypeReturned   StockEntryType = "RETURNED"
	StockEntryTypeAdjustment StockEntryType = "ADJUSTMENT"
)

// CarryForwardNote marks auto-filled zero-contribution rows.
const CarryForwardNote = "carry-forward"

/* outbox */

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type OrderEventKind string

const (
	OrderEventCreated   OrderEventKind = "created"
	OrderEventPreparing OrderEventKind = "preparing"
	OrderEventReady     OrderEventKind = "ready"
	OrderEventCompleted OrderEventKind = "completed"
	OrderEventCancelled OrderEventKind = "cancelled"
)
