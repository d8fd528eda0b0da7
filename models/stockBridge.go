package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SyncTheaterTransfer makes the theater ledger's transfer for one day equal
// the cafe side's total inward stock for the same (theater, product, day).
// The cafe side is authoritative. A missing theater row is created with zero
// contributions; a cafe total of zero zeroes the theater transfer rather
// than deleting the row, so the audit trail survives. Idempotent under
// replay: re-running against unchanged cafe data writes nothing new.
func SyncTheaterTransfer(tx *gorm.DB, theaterId string, productId int, date time.Time) error {
	date = DateOnlyUTCTime(date)

	var cafeInvord decimal.NullDecimal
	err := tx.Model(&CafeStockEntry{}).
		Select("sum(invord_stock)").
		Where("theater_id = ? AND product_id = ? AND date = ?", theaterId, productId, date).
		Scan(&cafeInvord).Error
	if err != nil {
		return err
	}
	target := decimal.Zero
	if cafeInvord.Valid {
		target = cafeInvord.Decimal
	}

	ledger, err := GetOrCreateTheaterLedger(tx, theaterId, productId, date.Year(), int(date.Month()))
	if err != nil {
		return err
	}

	// one bridge-owned row per day; manual rows on the same day keep their
	// own contributions and never carry transfer
	var bridgeRow *TheaterStockEntry
	currentTotal := decimal.Zero
	for i := range ledger.Entries {
		e := &ledger.Entries[i]
		if !sameDay(e.Date, date) {
			continue
		}
		currentTotal = currentTotal.Add(e.Transfer)
		if bridgeRow == nil && e.Transfer.IsPositive() {
			bridgeRow = e
		}
	}
	if currentTotal.Equal(target) {
		return nil
	}

	if bridgeRow != nil {
		// collapse any duplicate transfer rows into the first
		for i := range ledger.Entries {
			e := &ledger.Entries[i]
			if sameDay(e.Date, date) && e != bridgeRow {
				e.Transfer = decimal.Zero
			}
		}
		bridgeRow.Transfer = target
	} else if target.IsPositive() {
		cafeUnit := ""
		var cafeRow CafeStockEntry
		if err := tx.Where("theater_id = ? AND product_id = ? AND date = ? AND invord_stock > 0",
			theaterId, productId, date).First(&cafeRow).Error; err == nil {
			cafeUnit = cafeRow.Unit
		}
		ledger.Entries = append(ledger.Entries, TheaterStockEntry{
			LedgerId:  ledger.ID,
			TheaterId: theaterId,
			ProductId: productId,
			Date:      date,
			Type:      StockEntryTypeAdded,
			Unit:      cafeUnit,
			Transfer:  target,
		})
	} else {
		return nil
	}

	if err := persistTheaterLedger(tx, ledger); err != nil {
		return err
	}
	return propagateTheaterOpeningChain(tx, theaterId, productId, ledger.Year, ledger.Month)
}
