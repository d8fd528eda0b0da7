package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/utils"
	"gorm.io/gorm"
)

const orderStatusModule = "orderStatus"

// OrderStatusUpdate is the patch accepted by the status endpoint. "paid" is
// accepted as a status for legacy clients and folded into the payment facet.
type OrderStatusUpdate struct {
	Status        string         `json:"status"`
	PaymentStatus *PaymentStatus `json:"payment_status"`
}

func (u *OrderStatusUpdate) normalize() (OrderStatus, *PaymentStatus, error) {
	payment := u.PaymentStatus
	raw := strings.ToLower(strings.TrimSpace(u.Status))
	if raw == "paid" {
		completed := PaymentStatusCompleted
		return OrderStatusConfirmed, &completed, nil
	}
	status := OrderStatus(raw)
	switch status {
	case "", OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusServed, OrderStatusCompleted, OrderStatusCancelled:
		return status, payment, nil
	}
	return "", nil, utils.NewError(utils.ErrInvalidInput, "unknown status %q", u.Status)
}

func eventKindForStatus(status OrderStatus) (OrderEventKind, bool) {
	switch status {
	case OrderStatusPreparing:
		return OrderEventPreparing, true
	case OrderStatusReady:
		return OrderEventReady, true
	case OrderStatusCompleted:
		return OrderEventCompleted, true
	case OrderStatusCancelled:
		return OrderEventCancelled, true
	}
	return "", false
}

// UpdateOrderStatus drives the state machine. Cancellation restores stock,
// confirmation of a previously pending order books it late, and repeating a
// terminal transition is a no-op.
func UpdateOrderStatus(ctx context.Context, orderId int, update *OrderStatusUpdate) (*Order, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	newStatus, newPayment, err := update.normalize()
	if err != nil {
		return nil, err
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "order", orderStatusModule, "UpdateOrderStatus")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	order, err := utils.FetchModel[Order](ctx, theaterId, orderId, "Items")
	if err != nil {
		return nil, err
	}

	if newStatus == "" {
		newStatus = order.Status
	}

	// repeated terminal transition is a no-op
	if order.Status.IsTerminal() && newStatus == order.Status {
		return order, nil
	}
	if order.Status == OrderStatusCancelled {
		return nil, utils.NewError(utils.ErrInvalidState, "order %s is cancelled", order.OrderNumber)
	}
	if order.Status == OrderStatusCompleted && newStatus != OrderStatusCompleted {
		return nil, utils.NewError(utils.ErrInvalidState, "order %s is completed", order.OrderNumber)
	}

	if newStatus == OrderStatusCancelled {
		return cancelOrder(ctx, order)
	}

	theater, err := GetTheaterById(ctx, theaterId)
	if err != nil {
		return nil, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	logger := config.GetLogger()

	paymentStatus := order.PaymentStatus
	if newPayment != nil {
		paymentStatus = *newPayment
	}
	lateDeduct := !order.StockRecorded &&
		newStatus.IsConfirmedFamily() &&
		paymentStatus != PaymentStatusPending && paymentStatus != PaymentStatusFailed

	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":         newStatus,
			"payment_status": paymentStatus,
		}
		if newStatus == OrderStatusCompleted {
			updates["completed_at"] = now
		}
		if lateDeduct {
			updates["stock_recorded"] = true
		}
		if err := tx.Model(order).Updates(updates).Error; err != nil {
			return err
		}
		order.Status = newStatus
		order.PaymentStatus = paymentStatus
		if lateDeduct {
			order.StockRecorded = true
			// booked on the transition date, not the original order date
			tx.SavePoint("late_stock")
			if err := LateRecordOrderStock(tx, order, DateOnlyUTCTime(now)); err != nil {
				tx.RollbackTo("late_stock")
				config.LogError(logger, orderStatusModule, "UpdateOrderStatus", "late stock record failed", order.OrderNumber, err)
				if err := tx.Model(order).Update("stock_synced", false).Error; err != nil {
					return err
				}
				order.StockSynced = false
			}
		}
		if kind, ok := eventKindForStatus(newStatus); ok {
			return EnqueueOrderEvent(tx, order, theater.Name, kind, correlationId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	InvalidateDailyStats(theaterId, order.CreatedAt)
	return order, nil
}

// cancelOrder performs the full-restore cancellation path. The caller has
// already verified the order is not terminal and holds the tenant lock.
func cancelOrder(ctx context.Context, order *Order) (*Order, error) {
	theater, err := GetTheaterById(ctx, order.TheaterId)
	if err != nil {
		return nil, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	logger := config.GetLogger()

	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Updates(map[string]interface{}{
			"status":       OrderStatusCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return err
		}
		order.Status = OrderStatusCancelled
		order.CancelledAt = &now

		switch {
		case order.StockRecorded && !order.StockSynced:
			// the deduction never landed, so cancelling nets to zero
			if err := tx.Model(order).Update("stock_synced", true).Error; err != nil {
				return err
			}
			order.StockSynced = true
			for i := range order.Items {
				if err := markItemRestored(tx, &order.Items[i]); err != nil {
					return err
				}
			}
		case order.StockRecorded:
			tx.SavePoint("restore_stock")
			if err := RestoreOrderStock(tx, order, DateOnlyUTCTime(now)); err != nil {
				tx.RollbackTo("restore_stock")
				config.LogError(logger, orderStatusModule, "cancelOrder", "stock restore failed", order.OrderNumber, err)
				if err := tx.Model(order).Update("stock_synced", false).Error; err != nil {
					return err
				}
				order.StockSynced = false
			}
		}
		return EnqueueOrderEvent(tx, order, theater.Name, OrderEventCancelled, correlationId)
	})
	if err != nil {
		return nil, err
	}
	InvalidateDailyStats(order.TheaterId, order.CreatedAt)
	return order, nil
}

// CancelOrderItem removes one line from a live order: restores its stock,
// marks it cancelled and reprices the order from the surviving lines.
func CancelOrderItem(ctx context.Context, orderId int, itemId int) (*Order, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "order", orderStatusModule, "CancelOrderItem")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	order, err := utils.FetchModel[Order](ctx, theaterId, orderId, "Items")
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, utils.NewError(utils.ErrInvalidState, "order %s is %s", order.OrderNumber, order.Status)
	}

	var item *OrderItem
	for i := range order.Items {
		if order.Items[i].ID == itemId {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, utils.NewError(utils.ErrNotFound, "order item %d not found", itemId)
	}
	if item.Cancelled {
		return order, nil
	}

	logger := config.GetLogger()
	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.StockRecorded {
			tx.SavePoint("restore_item")
			if err := cancelItemStock(tx, order, item, DateOnlyUTCTime(now)); err != nil {
				tx.RollbackTo("restore_item")
				config.LogError(logger, orderStatusModule, "CancelOrderItem", "item stock restore failed", order.OrderNumber, err)
				if err := tx.Model(order).Update("stock_synced", false).Error; err != nil {
					return err
				}
				order.StockSynced = false
			}
		}

		item.Cancelled = true
		item.CancelledAt = &now
		if err := tx.Model(item).Updates(map[string]interface{}{
			"cancelled":    true,
			"cancelled_at": now,
		}).Error; err != nil {
			return err
		}

		// reprice from surviving lines; a caller-supplied total no longer
		// describes the shrunk order
		priceOrder(order, nil, order.DeliveryCharge)
		for i := range order.Items {
			it := &order.Items[i]
			if it.Cancelled {
				continue
			}
			if err := tx.Model(it).Updates(map[string]interface{}{
				"line_subtotal": it.Subtotal,
				"line_discount": it.DiscountAmount,
				"line_tax":      it.TaxAmount,
				"line_total":    it.Total,
			}).Error; err != nil {
				return err
			}
		}
		return tx.Model(order).Updates(map[string]interface{}{
			"subtotal":       order.Subtotal,
			"total_discount": order.TotalDiscount,
			"total_tax":      order.TotalTax,
			"cgst":           order.Cgst,
			"sgst":           order.Sgst,
			"grand_total":    order.GrandTotal,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	InvalidateDailyStats(theaterId, order.CreatedAt)
	return order, nil
}

// CustomerCancelOrder is the self-service cancellation path. The caller
// proves ownership with the phone number stored on the order; numbers match
// on their last ten digits.
func CustomerCancelOrder(ctx context.Context, orderId int, phone string) (*Order, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "order", orderStatusModule, "CustomerCancelOrder")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	order, err := utils.FetchModel[Order](ctx, theaterId, orderId, "Items")
	if err != nil {
		return nil, err
	}
	if order.Status == OrderStatusCancelled {
		return order, nil
	}
	if order.Status == OrderStatusCompleted {
		return nil, utils.NewError(utils.ErrInvalidState, "order %s is completed", order.OrderNumber)
	}
	if !utils.PhonesMatch(order.CustomerPhone, phone) {
		return nil, utils.NewError(utils.ErrInvalidInput, "phone number does not match order %s", order.OrderNumber)
	}
	return cancelOrder(ctx, order)
}
