package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// OrderEventRecord is the transactional outbox row written in the same
// transaction as the order mutation it describes. The dispatcher claims
// rows after commit and fans them out to the print hub and the push topic,
// so a crashed process never loses an event and a rolled-back order never
// emits one.
type OrderEventRecord struct {
	ID          int            `gorm:"primary_key" json:"id"`
	TheaterId   string         `gorm:"size:36;index;not null" json:"theater_id"`
	OrderId     int            `gorm:"index;not null" json:"order_id"`
	OrderNumber string         `gorm:"size:16;not null" json:"order_number"`
	EventKind   OrderEventKind `gorm:"size:16;not null" json:"event_kind"`

	// PrintRoute is set for counter channels whose orders go to the
	// kitchen printer; push notifications go out for every kind.
	PrintRoute bool `gorm:"not null;default:false" json:"print_route"`

	// Payload is the print projection, serialized at write time so the
	// dispatcher never needs to re-read the order.
	Payload string `gorm:"type:text" json:"payload"`

	Status        string     `gorm:"size:16;default:'PENDING';index" json:"status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	LastError     *string    `gorm:"size:512;default:null" json:"last_error"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:64;default:null" json:"locked_by"`
	SentAt        *time.Time `json:"sent_at"`

	CorrelationId string `gorm:"size:64;default:null" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PrintJob is the minimal order projection a tenant's print worker needs.
type PrintJob struct {
	TheaterId   string         `json:"theater_id"`
	TheaterName string         `json:"theater_name"`
	OrderNumber string         `json:"order_number"`
	EventKind   OrderEventKind `json:"event_kind"`
	Source      string         `json:"source"`
	OrderType   string         `json:"order_type"`
	Items       []PrintJobItem `json:"items"`
	GrandTotal  string         `json:"grand_total"`
	Currency    string         `json:"currency"`
	Payment     string         `json:"payment"`
	PlacedAt    time.Time      `json:"placed_at"`
}

type PrintJobItem struct {
	Name     string `json:"name"`
	Variant  string `json:"variant,omitempty"`
	Quantity int64  `json:"quantity"`
	Total    string `json:"total"`
	Combo    string `json:"combo,omitempty"`
}

// buildPrintJob projects an order for the kitchen printer. Cancelled lines
// are dropped; combo components collapse under the combo name.
func buildPrintJob(order *Order, theaterName string, kind OrderEventKind) PrintJob {
	job := PrintJob{
		TheaterId:   order.TheaterId,
		TheaterName: theaterName,
		OrderNumber: order.OrderNumber,
		EventKind:   kind,
		Source:      string(order.Source),
		OrderType:   order.OrderType,
		GrandTotal:  order.GrandTotal.StringFixed(2),
		Currency:    order.Currency,
		Payment:     string(order.PaymentMethod),
		PlacedAt:    order.CreatedAt,
	}
	for _, item := range order.Items {
		if item.Cancelled {
			continue
		}
		pi := PrintJobItem{
			Name:     item.ProductName,
			Variant:  item.VariantLabel,
			Quantity: item.Quantity,
			Total:    item.Total.StringFixed(2),
		}
		if item.IsFromCombo {
			pi.Combo = item.ComboName
		}
		job.Items = append(job.Items, pi)
	}
	return job
}

// EnqueueOrderEvent writes the outbox row inside tx. Must be called before
// the surrounding transaction commits.
func EnqueueOrderEvent(tx *gorm.DB, order *Order, theaterName string, kind OrderEventKind, correlationId string) error {
	payload, err := json.Marshal(buildPrintJob(order, theaterName, kind))
	if err != nil {
		return err
	}
	record := OrderEventRecord{
		TheaterId:     order.TheaterId,
		OrderId:       order.ID,
		OrderNumber:   order.OrderNumber,
		EventKind:     kind,
		PrintRoute:    order.Source.IsPosRoute(),
		Payload:       string(payload),
		Status:        OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}
