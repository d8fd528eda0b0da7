package models

import (
	"fmt"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock side effects of the order lifecycle. Each command runs inside the
// caller's transaction, mutates the cafe ledger day row for the given date
// and re-propagates the month chain. Callers decide whether a failure is
// fatal; the order pipeline treats these as recoverable and leaves
// convergence to the reconciler.

const stockCommandsModule = "stockCommands_order"

// itemConsumption resolves how much stock an item moves, preferring the
// snapshot taken at order time.
func itemConsumption(tx *gorm.DB, item *OrderItem) (decimal.Decimal, string) {
	logger := config.GetLogger()

	if item.StockQuantityConsumed.IsPositive() {
		return item.StockQuantityConsumed, NormalizeUnit(item.StockUnit)
	}

	var product Product
	if err := tx.Where("theater_id = ? AND id = ?", item.TheaterId, item.ProductId).First(&product).Error; err != nil {
		config.LogWarn(logger, stockCommandsModule, "itemConsumption",
			fmt.Sprintf("product %d missing, falling back to piece count", item.ProductId), item.ID)
		return decimal.NewFromInt(int64(item.NoQty) * item.Quantity), UnitNos
	}

	targetUnit := item.StockUnit
	if targetUnit == "" {
		targetUnit = UnitNos
	}
	// recompute with the noQty saved on the item; current product data is
	// the last resort and gets a warning
	if item.NoQty > 0 {
		product.NoQty = item.NoQty
	} else {
		config.LogWarn(logger, stockCommandsModule, "itemConsumption",
			"no saved noQty, using current product data", item.ID)
	}
	result := StockConsumption(&product, targetUnit, item.Quantity)
	for _, w := range result.Warnings {
		config.LogWarn(logger, stockCommandsModule, "itemConsumption", w, item.ID)
	}
	return result.Amount, result.Unit
}

func mutateCafeDayRow(tx *gorm.DB, theaterId string, productId int, date time.Time, unit string, mutate func(*CafeStockEntry)) error {
	date = DateOnlyUTCTime(date)
	ledger, err := GetOrCreateCafeLedger(tx, theaterId, productId, date.Year(), int(date.Month()))
	if err != nil {
		return err
	}
	row := getOrCreateCafeDayRow(tx, ledger, date)
	if row.Unit == "" && unit != "" {
		row.Unit = unit
	}
	mutate(row)
	if err := persistCafeLedger(tx, ledger); err != nil {
		return err
	}
	return propagateCafeOpeningChain(tx, theaterId, productId, ledger.Year, ledger.Month)
}

// RecordOrderStock adds each live item's consumption to the sales field of
// the order-date row.
func RecordOrderStock(tx *gorm.DB, order *Order, date time.Time) error {
	for i := range order.Items {
		item := &order.Items[i]
		if item.Cancelled {
			continue
		}
		if !itemTracksStock(tx, item) {
			continue
		}
		amount, unit := itemConsumption(tx, item)
		if !amount.IsPositive() {
			continue
		}
		err := mutateCafeDayRow(tx, order.TheaterId, item.ProductId, date, unit, func(row *CafeStockEntry) {
			row.Sales = row.Sales.Add(amount)
			if row.Type == StockEntryTypeAdded && row.Notes == "" {
				row.Type = StockEntryTypeSold
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RestoreOrderStock credits cancel_stock on the cancellation date for every
// live item. Sales on historical rows are never reduced; the restoration is
// a new credit so the audit stays linear.
func RestoreOrderStock(tx *gorm.DB, order *Order, date time.Time) error {
	for i := range order.Items {
		item := &order.Items[i]
		if item.Cancelled {
			continue
		}
		if err := RestoreOrderItemStock(tx, item, date); err != nil {
			return err
		}
	}
	return nil
}

// RestoreOrderItemStock credits one item's consumption back to the ledger
// and marks the line restored. Already-restored lines are a no-op, so the
// command is safe to replay.
func RestoreOrderItemStock(tx *gorm.DB, item *OrderItem, date time.Time) error {
	if item.StockRestored {
		return nil
	}
	if !itemTracksStock(tx, item) {
		return markItemRestored(tx, item)
	}
	amount, unit := itemConsumption(tx, item)
	if !amount.IsPositive() {
		return markItemRestored(tx, item)
	}
	err := mutateCafeDayRow(tx, item.TheaterId, item.ProductId, date, unit, func(row *CafeStockEntry) {
		row.CancelStock = row.CancelStock.Add(amount)
		if row.Type == StockEntryTypeAdded && row.Notes == "" {
			row.Type = StockEntryTypeReturned
		}
	})
	if err != nil {
		return err
	}
	return markItemRestored(tx, item)
}

// cancelItemStock releases one line's stock hold. When the create-time
// deduction never landed (stock_recorded set but stock_synced cleared) there
// is nothing to credit back: the line is only marked restored so later
// replays skip it and the cancellation nets to zero.
func cancelItemStock(tx *gorm.DB, order *Order, item *OrderItem, date time.Time) error {
	if !order.StockRecorded {
		return nil
	}
	if !order.StockSynced {
		return markItemRestored(tx, item)
	}
	return RestoreOrderItemStock(tx, item, date)
}

func markItemRestored(tx *gorm.DB, item *OrderItem) error {
	item.StockRestored = true
	if item.ID == 0 {
		return nil
	}
	return tx.Model(&OrderItem{}).Where("id = ?", item.ID).Update("stock_restored", true).Error
}

// LateRecordOrderStock books consumption for an order that confirmed after
// being pending. Sales land on the transition date, not the original order
// date, keeping stock movement aligned with the day revenue is realized.
func LateRecordOrderStock(tx *gorm.DB, order *Order, transitionDate time.Time) error {
	return RecordOrderStock(tx, order, transitionDate)
}

func itemTracksStock(tx *gorm.DB, item *OrderItem) bool {
	var product Product
	if err := tx.Where("theater_id = ? AND id = ?", item.TheaterId, item.ProductId).First(&product).Error; err != nil {
		// deleted products still consumed real stock; keep accounting
		return true
	}
	return product.StockTracked()
}
