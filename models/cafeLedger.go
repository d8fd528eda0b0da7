package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CafeMonthlyLedger tracks point-of-sale stock for one product over one
// month. Unique per (theater_id, product_id, year, month).
type CafeMonthlyLedger struct {
	ID        int    `gorm:"primary_key" json:"id"`
	TheaterId string `gorm:"size:36;uniqueIndex:idx_cafe_ledger_cell;not null" json:"theater_id"`
	ProductId int    `gorm:"uniqueIndex:idx_cafe_ledger_cell;not null" json:"product_id"`
	Year      int    `gorm:"uniqueIndex:idx_cafe_ledger_cell;not null" json:"year"`
	Month     int    `gorm:"uniqueIndex:idx_cafe_ledger_cell;not null" json:"month"`

	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"opening_balance"`
	ClosingBalance decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"closing_balance"`

	TotalInvordStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_invord_stock"`
	TotalDirectStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_direct_stock"`
	TotalAddon           decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_addon"`
	TotalCancelStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_cancel_stock"`
	TotalStockAdjustment decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_stock_adjustment"`
	TotalSales           decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_sales"`
	TotalExpiredStock    decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_expired_stock"`
	TotalDamageStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_damage_stock"`

	Entries []CafeStockEntry `gorm:"foreignKey:LedgerId" json:"entries"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CafeStockEntry is one day's row. Contributions are stored non-negative
// except StockAdjustment, which carries its sign.
type CafeStockEntry struct {
	ID        int       `gorm:"primary_key" json:"id"`
	LedgerId  int       `gorm:"index;not null" json:"ledger_id"`
	TheaterId string    `gorm:"size:36;index;not null" json:"theater_id"`
	ProductId int       `gorm:"index;not null" json:"product_id"`
	Date      time.Time `gorm:"type:date;not null" json:"date"`

	Type StockEntryType `gorm:"size:16;default:'ADDED'" json:"type"`
	Unit string         `gorm:"size:16;default:null" json:"unit"`

	InvordStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"invord_stock"`
	DirectStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"direct_stock"`
	Addon           decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"addon"`
	CancelStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"cancel_stock"`
	StockAdjustment decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"stock_adjustment"`
	Sales           decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"sales"`
	ExpiredStock    decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"expired_stock"`
	DamageStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"damage_stock"`

	Balance decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"balance"`
	Notes   string          `gorm:"size:255;default:null" json:"notes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewCafeStockEntry is the append input for a manual ledger mutation.
type NewCafeStockEntry struct {
	ProductId int             `json:"product_id" binding:"required"`
	Date      time.Time       `json:"date" binding:"required"`
	Type      StockEntryType  `json:"type"`
	Unit      string          `json:"unit"`
	InvordStock     decimal.Decimal `json:"invord_stock"`
	DirectStock     decimal.Decimal `json:"direct_stock"`
	Addon           decimal.Decimal `json:"addon"`
	CancelStock     decimal.Decimal `json:"cancel_stock"`
	StockAdjustment decimal.Decimal `json:"stock_adjustment"`
	Sales           decimal.Decimal `json:"sales"`
	ExpiredStock    decimal.Decimal `json:"expired_stock"`
	DamageStock     decimal.Decimal `json:"damage_stock"`
	Notes           string          `json:"notes"`
}

func (e CafeStockEntry) netContribution() decimal.Decimal {
	return e.InvordStock.
		Add(e.DirectStock).
		Add(e.Addon).
		Add(e.CancelStock).
		Add(e.StockAdjustment).
		Sub(e.Sales).
		Sub(e.ExpiredStock).
		Sub(e.DamageStock)
}

// CurrentUnit is the most recent non-empty unit across this ledger's
// entries, NOS when no entry ever carried one.
func (l *CafeMonthlyLedger) CurrentUnit() string {
	for i := len(l.Entries) - 1; i >= 0; i-- {
		if l.Entries[i].Unit != "" {
			return NormalizeUnit(l.Entries[i].Unit)
		}
	}
	return UnitNos
}

// Recompute re-derives every running balance, fills carry-forward rows for
// missing days, and refreshes the monthly totals and closing balance. Pure
// in-memory; persistence is the caller's job. New carry-forward rows have
// ID zero.
func (l *CafeMonthlyLedger) Recompute(now time.Time) {
	for i := range l.Entries {
		l.Entries[i].Date = DateOnlyUTCTime(l.Entries[i].Date)
	}
	sort.SliceStable(l.Entries, func(i, j int) bool {
		if !l.Entries[i].Date.Equal(l.Entries[j].Date) {
			return l.Entries[i].Date.Before(l.Entries[j].Date)
		}
		return l.Entries[i].ID < l.Entries[j].ID
	})

	// fill interior gaps; carry-forward stops at today
	if len(l.Entries) > 0 {
		fillEnd := l.Entries[len(l.Entries)-1].Date
		if todayEnd := gapFillEnd(l.Year, l.Month, now); fillEnd.After(todayEnd) {
			fillEnd = todayEnd
		}
		have := make(map[time.Time]bool, len(l.Entries))
		unit := ""
		for _, e := range l.Entries {
			have[e.Date] = true
		}
		filled := make([]CafeStockEntry, 0, len(l.Entries))
		for day := l.Entries[0].Date; !day.After(fillEnd); day = day.AddDate(0, 0, 1) {
			if !have[day] {
				filled = append(filled, CafeStockEntry{
					LedgerId:  l.ID,
					TheaterId: l.TheaterId,
					ProductId: l.ProductId,
					Date:      day,
					Type:      StockEntryTypeAdded,
					Unit:      unit,
					Notes:     CarryForwardNote,
				})
			}
		}
		// keep units flowing into the filled rows
		l.Entries = append(l.Entries, filled...)
		sort.SliceStable(l.Entries, func(i, j int) bool {
			if !l.Entries[i].Date.Equal(l.Entries[j].Date) {
				return l.Entries[i].Date.Before(l.Entries[j].Date)
			}
			return l.Entries[i].ID < l.Entries[j].ID
		})
		for i := range l.Entries {
			if l.Entries[i].Unit != "" {
				unit = l.Entries[i].Unit
			} else if l.Entries[i].Notes == CarryForwardNote {
				l.Entries[i].Unit = unit
			}
		}
	}

	running := l.OpeningBalance
	totals := CafeMonthlyLedger{}
	for i := range l.Entries {
		e := &l.Entries[i]
		running = clampNonNegative(running.Add(e.netContribution()))
		e.Balance = running

		totals.TotalInvordStock = totals.TotalInvordStock.Add(e.InvordStock)
		totals.TotalDirectStock = totals.TotalDirectStock.Add(e.DirectStock)
		totals.TotalAddon = totals.TotalAddon.Add(e.Addon)
		totals.TotalCancelStock = totals.TotalCancelStock.Add(e.CancelStock)
		totals.TotalStockAdjustment = totals.TotalStockAdjustment.Add(e.StockAdjustment)
		totals.TotalSales = totals.TotalSales.Add(e.Sales)
		totals.TotalExpiredStock = totals.TotalExpiredStock.Add(e.ExpiredStock)
		totals.TotalDamageStock = totals.TotalDamageStock.Add(e.DamageStock)
	}
	l.TotalInvordStock = totals.TotalInvordStock
	l.TotalDirectStock = totals.TotalDirectStock
	l.TotalAddon = totals.TotalAddon
	l.TotalCancelStock = totals.TotalCancelStock
	l.TotalStockAdjustment = totals.TotalStockAdjustment
	l.TotalSales = totals.TotalSales
	l.TotalExpiredStock = totals.TotalExpiredStock
	l.TotalDamageStock = totals.TotalDamageStock
	l.ClosingBalance = running
}

/* persistence */

func loadCafeLedger(tx *gorm.DB, theaterId string, productId int, year int, month int) (*CafeMonthlyLedger, error) {
	var ledger CafeMonthlyLedger
	err := tx.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("date, id")
	}).Where("theater_id = ? AND product_id = ? AND year = ? AND month = ?",
		theaterId, productId, year, month).First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ledger, nil
}

// GetPreviousCafeMonthClosing returns the prior month's closing balance,
// zero when no prior ledger exists.
func GetPreviousCafeMonthClosing(tx *gorm.DB, theaterId string, productId int, year int, month int) (decimal.Decimal, error) {
	prevYear, prevMonth := prevYearMonth(year, month)
	prev, err := loadCafeLedger(tx, theaterId, productId, prevYear, prevMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if prev == nil {
		return decimal.Zero, nil
	}
	return prev.ClosingBalance, nil
}

func persistCafeLedger(tx *gorm.DB, ledger *CafeMonthlyLedger) error {
	ledger.Recompute(time.Now())
	for i := range ledger.Entries {
		e := &ledger.Entries[i]
		e.LedgerId = ledger.ID
		if e.ID == 0 {
			if err := tx.Create(e).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Save(e).Error; err != nil {
				return err
			}
		}
	}
	return tx.Model(ledger).Updates(map[string]interface{}{
		"opening_balance":        ledger.OpeningBalance,
		"closing_balance":        ledger.ClosingBalance,
		"total_invord_stock":     ledger.TotalInvordStock,
		"total_direct_stock":     ledger.TotalDirectStock,
		"total_addon":            ledger.TotalAddon,
		"total_cancel_stock":     ledger.TotalCancelStock,
		"total_stock_adjustment": ledger.TotalStockAdjustment,
		"total_sales":            ledger.TotalSales,
		"total_expired_stock":    ledger.TotalExpiredStock,
		"total_damage_stock":     ledger.TotalDamageStock,
	}).Error
}

// GetOrCreateCafeLedger returns the month's ledger, creating it seeded with
// the prior month's closing. A stored opening that disagrees with the
// recomputed prior closing is patched and the ledger recomputed.
func GetOrCreateCafeLedger(tx *gorm.DB, theaterId string, productId int, year int, month int) (*CafeMonthlyLedger, error) {
	ledger, err := loadCafeLedger(tx, theaterId, productId, year, month)
	if err != nil {
		return nil, err
	}
	opening, err := GetPreviousCafeMonthClosing(tx, theaterId, productId, year, month)
	if err != nil {
		return nil, err
	}

	if ledger == nil {
		ledger = &CafeMonthlyLedger{
			TheaterId:      theaterId,
			ProductId:      productId,
			Year:           year,
			Month:          month,
			OpeningBalance: opening,
			ClosingBalance: opening,
		}
		if err := tx.Create(ledger).Error; err != nil {
			return nil, err
		}
		return ledger, nil
	}

	if !ledger.OpeningBalance.Equal(opening) {
		ledger.OpeningBalance = opening
		if err := persistCafeLedger(tx, ledger); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// propagateCafeOpeningChain pushes a changed closing into every successor
// month that already exists.
func propagateCafeOpeningChain(tx *gorm.DB, theaterId string, productId int, year int, month int) error {
	closing, err := func() (decimal.Decimal, error) {
		l, err := loadCafeLedger(tx, theaterId, productId, year, month)
		if err != nil || l == nil {
			return decimal.Zero, err
		}
		return l.ClosingBalance, nil
	}()
	if err != nil {
		return err
	}

	y, m := year, month
	for {
		if m == 12 {
			y, m = y+1, 1
		} else {
			m++
		}
		next, err := loadCafeLedger(tx, theaterId, productId, y, m)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		next.OpeningBalance = closing
		if err := persistCafeLedger(tx, next); err != nil {
			return err
		}
		closing = next.ClosingBalance
	}
}

// RebuildCafeChain recomputes the given month from its stored entries and
// pushes the resulting closing through every successor month.
func RebuildCafeChain(tx *gorm.DB, theaterId string, productId int, year int, month int) error {
	ledger, err := loadCafeLedger(tx, theaterId, productId, year, month)
	if err != nil {
		return err
	}
	if ledger == nil {
		return nil
	}
	if err := persistCafeLedger(tx, ledger); err != nil {
		return err
	}
	return propagateCafeOpeningChain(tx, theaterId, productId, year, month)
}

// getOrCreateCafeDayRow finds the single row for the given day, creating a
// zero-contribution row in the ledger's current unit when missing.
func getOrCreateCafeDayRow(tx *gorm.DB, ledger *CafeMonthlyLedger, date time.Time) *CafeStockEntry {
	date = DateOnlyUTCTime(date)
	for i := range ledger.Entries {
		if sameDay(ledger.Entries[i].Date, date) {
			return &ledger.Entries[i]
		}
	}
	ledger.Entries = append(ledger.Entries, CafeStockEntry{
		LedgerId:  ledger.ID,
		TheaterId: ledger.TheaterId,
		ProductId: ledger.ProductId,
		Date:      date,
		Type:      StockEntryTypeAdded,
		Unit:      ledger.CurrentUnit(),
	})
	return &ledger.Entries[len(ledger.Entries)-1]
}

/* exported operations */

// GetCafeLedger is the read path: the returned ledger's balances always
// reflect its stored entries.
func GetCafeLedger(ctx context.Context, productId int, year int, month int) (*CafeMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	db := config.GetDB()

	var result *CafeMonthlyLedger
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := GetOrCreateCafeLedger(tx, theaterId, productId, year, month)
		if err != nil {
			return err
		}
		// self-heal drifted balances before returning
		snapshot := ledger.ClosingBalance
		ledger.Recompute(time.Now())
		if !ledger.ClosingBalance.Equal(snapshot) || hasUnsavedEntries(ledger) {
			if err := persistCafeLedger(tx, ledger); err != nil {
				return err
			}
		}
		result = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func hasUnsavedEntries(ledger *CafeMonthlyLedger) bool {
	for i := range ledger.Entries {
		if ledger.Entries[i].ID == 0 {
			return true
		}
	}
	return false
}

// AppendCafeEntry inserts a manual row and runs the theater bridge when the
// row carries inward transfer stock.
func AppendCafeEntry(ctx context.Context, input *NewCafeStockEntry) (*CafeMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	if err := utils.ValidateResourceId[Product](ctx, theaterId, input.ProductId); err != nil {
		return nil, utils.NewError(utils.ErrNotFound, "product %d not found", input.ProductId)
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "ledger", "cafeLedger", "AppendCafeEntry")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	date := DateOnlyUTCTime(input.Date)
	db := config.GetDB()

	var result *CafeMonthlyLedger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := GetOrCreateCafeLedger(tx, theaterId, input.ProductId, date.Year(), int(date.Month()))
		if err != nil {
			return err
		}
		entryType := input.Type
		if entryType == "" {
			entryType = StockEntryTypeAdded
		}
		ledger.Entries = append(ledger.Entries, CafeStockEntry{
			LedgerId:        ledger.ID,
			TheaterId:       theaterId,
			ProductId:       input.ProductId,
			Date:            date,
			Type:            entryType,
			Unit:            NormalizeUnit(input.Unit),
			InvordStock:     input.InvordStock,
			DirectStock:     input.DirectStock,
			Addon:           input.Addon,
			CancelStock:     input.CancelStock,
			StockAdjustment: input.StockAdjustment,
			Sales:           input.Sales,
			ExpiredStock:    input.ExpiredStock,
			DamageStock:     input.DamageStock,
			Notes:           input.Notes,
		})
		if err := persistCafeLedger(tx, ledger); err != nil {
			return err
		}
		if err := propagateCafeOpeningChain(tx, theaterId, input.ProductId, ledger.Year, ledger.Month); err != nil {
			return err
		}
		if err := SyncTheaterTransfer(tx, theaterId, input.ProductId, date); err != nil {
			return err
		}
		result = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateCafeEntry applies a partial patch to one row. Zero-valued fields in
// the patch are honored; absent fields keep their stored value.
func UpdateCafeEntry(ctx context.Context, entryId int, patch *StockEntryPatch) (*CafeMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "ledger", "cafeLedger", "UpdateCafeEntry")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	db := config.GetDB()
	var result *CafeMonthlyLedger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err = updateCafeEntryTx(tx, theaterId, entryId, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func updateCafeEntryTx(tx *gorm.DB, theaterId string, entryId int, patch *StockEntryPatch) (*CafeMonthlyLedger, error) {
	var stored CafeStockEntry
	if err := tx.Where("theater_id = ? AND id = ?", theaterId, entryId).First(&stored).Error; err != nil {
		return nil, utils.NewError(utils.ErrNotFound, "ledger entry %d not found", entryId)
	}
	date := DateOnlyUTCTime(stored.Date)
	// entry rows are partitioned by month; a date patch may move the day
	// but never the ledger the row belongs to
	if patch.Date != nil && !sameMonth(date, *patch.Date) {
		return nil, utils.NewError(utils.ErrInvalidInput,
			"date cannot move entry %d out of %04d-%02d", entryId, date.Year(), int(date.Month()))
	}
	ledger, err := GetOrCreateCafeLedger(tx, theaterId, stored.ProductId, date.Year(), int(date.Month()))
	if err != nil {
		return nil, err
	}

	var entry *CafeStockEntry
	for i := range ledger.Entries {
		if ledger.Entries[i].ID == entryId {
			entry = &ledger.Entries[i]
			break
		}
	}
	if entry == nil {
		return nil, utils.NewError(utils.ErrNotFound, "ledger entry %d not found", entryId)
	}

	applyCafePatch(entry, patch)
	if err := persistCafeLedger(tx, ledger); err != nil {
		return nil, err
	}
	if err := propagateCafeOpeningChain(tx, theaterId, stored.ProductId, ledger.Year, ledger.Month); err != nil {
		return nil, err
	}
	if err := SyncTheaterTransfer(tx, theaterId, stored.ProductId, entry.Date); err != nil {
		return nil, err
	}
	// a moved date leaves the old day without its invord share
	if patch.Date != nil && !sameDay(date, *patch.Date) {
		if err := SyncTheaterTransfer(tx, theaterId, stored.ProductId, date); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

func applyCafePatch(entry *CafeStockEntry, patch *StockEntryPatch) {
	if patch.Date != nil {
		entry.Date = DateOnlyUTCTime(*patch.Date)
	}
	if patch.Type != nil {
		entry.Type = *patch.Type
	}
	if patch.Unit != nil {
		entry.Unit = NormalizeUnit(*patch.Unit)
	}
	if patch.InvordStock != nil {
		entry.InvordStock = *patch.InvordStock
	}
	if patch.DirectStock != nil {
		entry.DirectStock = *patch.DirectStock
	}
	if patch.Addon != nil {
		entry.Addon = *patch.Addon
	}
	if patch.CancelStock != nil {
		entry.CancelStock = *patch.CancelStock
	}
	if patch.StockAdjustment != nil {
		entry.StockAdjustment = *patch.StockAdjustment
	}
	if patch.Sales != nil {
		entry.Sales = *patch.Sales
	}
	if patch.ExpiredStock != nil {
		entry.ExpiredStock = *patch.ExpiredStock
	}
	if patch.DamageStock != nil {
		entry.DamageStock = *patch.DamageStock
	}
	if patch.Notes != nil {
		entry.Notes = *patch.Notes
	}
}

// DeleteCafeEntry removes a row; the theater side's transfer for that day
// is re-synced (falling to zero when no invord remains).
func DeleteCafeEntry(ctx context.Context, entryId int) (*CafeMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "ledger", "cafeLedger", "DeleteCafeEntry")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	db := config.GetDB()
	var result *CafeMonthlyLedger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored CafeStockEntry
		if err := tx.Where("theater_id = ? AND id = ?", theaterId, entryId).First(&stored).Error; err != nil {
			return utils.NewError(utils.ErrNotFound, "ledger entry %d not found", entryId)
		}
		if err := tx.Delete(&CafeStockEntry{}, entryId).Error; err != nil {
			return err
		}

		date := DateOnlyUTCTime(stored.Date)
		ledger, err := GetOrCreateCafeLedger(tx, theaterId, stored.ProductId, date.Year(), int(date.Month()))
		if err != nil {
			return err
		}
		if err := persistCafeLedger(tx, ledger); err != nil {
			return err
		}
		if err := propagateCafeOpeningChain(tx, theaterId, stored.ProductId, ledger.Year, ledger.Month); err != nil {
			return err
		}
		if err := SyncTheaterTransfer(tx, theaterId, stored.ProductId, date); err != nil {
			return err
		}
		result = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// cafeBalanceOn is the available balance the order pipeline validates
// against: the running balance of the last row on or before date, or the
// opening balance when the month has no such row.
func cafeBalanceOn(ledger *CafeMonthlyLedger, date time.Time) decimal.Decimal {
	date = DateOnlyUTCTime(date)
	balance := ledger.OpeningBalance
	for i := range ledger.Entries {
		if ledger.Entries[i].Date.After(date) {
			break
		}
		balance = ledger.Entries[i].Balance
	}
	return balance
}

// isFreshCafeLedger reports a ledger that has never seen stock: no entries
// and a zero opening. Orders against fresh products pass validation.
func isFreshCafeLedger(ledger *CafeMonthlyLedger) bool {
	return len(ledger.Entries) == 0 && ledger.OpeningBalance.IsZero()
}
