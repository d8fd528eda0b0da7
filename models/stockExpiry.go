package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const expiredStockNote = "auto-expired"

// AutoExpireCafeStock writes off the remaining cafe balance of a product
// whose stock has sat past its shelf life with no inward movement. It runs
// as deferred background work and is safe to skip: nothing downstream
// depends on it having run, and replaying it after a write-off finds a zero
// balance and does nothing.
func AutoExpireCafeStock(tx *gorm.DB, theaterId string, product *Product, asOf time.Time) (bool, error) {
	if product.ShelfLifeDays <= 0 || !product.StockTracked() {
		return false, nil
	}
	asOf = DateOnlyUTCTime(asOf)

	ledger, err := GetOrCreateCafeLedger(tx, theaterId, product.ID, asOf.Year(), int(asOf.Month()))
	if err != nil {
		return false, err
	}
	balance := cafeBalanceOn(ledger, asOf)
	if !balance.IsPositive() {
		return false, nil
	}

	// freshness is the date stock last flowed in; replenishment resets the clock
	var lastInward CafeStockEntry
	err = tx.Where("theater_id = ? AND product_id = ?", theaterId, product.ID).
		Where("invord_stock > 0 OR direct_stock > 0 OR addon > 0 OR cancel_stock > 0").
		Order("date DESC").
		First(&lastInward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// balance carried in from before entry history; leave it alone
			return false, nil
		}
		return false, err
	}

	cutoff := asOf.AddDate(0, 0, -product.ShelfLifeDays)
	if !DateOnlyUTCTime(lastInward.Date).Before(cutoff) {
		return false, nil
	}

	err = mutateCafeDayRow(tx, theaterId, product.ID, asOf, ledger.CurrentUnit(), func(row *CafeStockEntry) {
		row.ExpiredStock = row.ExpiredStock.Add(balance)
		if row.Type == StockEntryTypeAdded && row.Notes == "" {
			row.Type = StockEntryTypeExpired
			row.Notes = expiredStockNote
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
