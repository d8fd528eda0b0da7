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

// TheaterMonthlyLedger is the upstream warehouse ledger. Same shape as the
// cafe family but with transfer instead of sales; there is no sales concept
// on the theater side.
type TheaterMonthlyLedger struct {
	ID        int    `gorm:"primary_key" json:"id"`
	TheaterId string `gorm:"size:36;uniqueIndex:idx_theater_ledger_cell;not null" json:"theater_id"`
	ProductId int    `gorm:"uniqueIndex:idx_theater_ledger_cell;not null" json:"product_id"`
	Year      int    `gorm:"uniqueIndex:idx_theater_ledger_cell;not null" json:"year"`
	Month     int    `gorm:"uniqueIndex:idx_theater_ledger_cell;not null" json:"month"`

	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"opening_balance"`
	ClosingBalance decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"closing_balance"`

	TotalInvordStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_invord_stock"`
	TotalStockAdjustment decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_stock_adjustment"`
	TotalTransfer        decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_transfer"`
	TotalExpiredStock    decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_expired_stock"`
	TotalDamageStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"total_damage_stock"`

	Entries []TheaterStockEntry `gorm:"foreignKey:LedgerId" json:"entries"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type TheaterStockEntry struct {
	ID        int       `gorm:"primary_key" json:"id"`
	LedgerId  int       `gorm:"index;not null" json:"ledger_id"`
	TheaterId string    `gorm:"size:36;index;not null" json:"theater_id"`
	ProductId int       `gorm:"index;not null" json:"product_id"`
	Date      time.Time `gorm:"type:date;not null" json:"date"`

	Type StockEntryType `gorm:"size:16;default:'ADDED'" json:"type"`
	Unit string         `gorm:"size:16;default:null" json:"unit"`

	InvordStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"invord_stock"`
	StockAdjustment decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"stock_adjustment"`
	Transfer        decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"transfer"`
	ExpiredStock    decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"expired_stock"`
	DamageStock     decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"damage_stock"`

	Balance decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"balance"`
	Notes   string          `gorm:"size:255;default:null" json:"notes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTheaterStockEntry struct {
	ProductId int            `json:"product_id" binding:"required"`
	Date      time.Time      `json:"date" binding:"required"`
	Type      StockEntryType `json:"type"`
	Unit      string         `json:"unit"`
	InvordStock     decimal.Decimal `json:"invord_stock"`
	StockAdjustment decimal.Decimal `json:"stock_adjustment"`
	ExpiredStock    decimal.Decimal `json:"expired_stock"`
	DamageStock     decimal.Decimal `json:"damage_stock"`
	Notes           string          `json:"notes"`
}

func (e TheaterStockEntry) netContribution() decimal.Decimal {
	return e.InvordStock.
		Add(e.StockAdjustment).
		Sub(e.Transfer).
		Sub(e.ExpiredStock).
		Sub(e.DamageStock)
}

func (l *TheaterMonthlyLedger) CurrentUnit() string {
	for i := len(l.Entries) - 1; i >= 0; i-- {
		if l.Entries[i].Unit != "" {
			return NormalizeUnit(l.Entries[i].Unit)
		}
	}
	return UnitNos
}

// Recompute mirrors the cafe family's recomputation under the theater
// balance equation.
func (l *TheaterMonthlyLedger) Recompute(now time.Time) {
	for i := range l.Entries {
		l.Entries[i].Date = DateOnlyUTCTime(l.Entries[i].Date)
	}
	sortTheaterEntries(l.Entries)

	if len(l.Entries) > 0 {
		fillEnd := l.Entries[len(l.Entries)-1].Date
		if todayEnd := gapFillEnd(l.Year, l.Month, now); fillEnd.After(todayEnd) {
			fillEnd = todayEnd
		}
		have := make(map[time.Time]bool, len(l.Entries))
		for _, e := range l.Entries {
			have[e.Date] = true
		}
		for day := l.Entries[0].Date; !day.After(fillEnd); day = day.AddDate(0, 0, 1) {
			if !have[day] {
				l.Entries = append(l.Entries, TheaterStockEntry{
					LedgerId:  l.ID,
					TheaterId: l.TheaterId,
					ProductId: l.ProductId,
					Date:      day,
					Type:      StockEntryTypeAdded,
					Notes:     CarryForwardNote,
				})
			}
		}
		sortTheaterEntries(l.Entries)
		unit := ""
		for i := range l.Entries {
			if l.Entries[i].Unit != "" {
				unit = l.Entries[i].Unit
			} else if l.Entries[i].Notes == CarryForwardNote {
				l.Entries[i].Unit = unit
			}
		}
	}

	running := l.OpeningBalance
	totals := TheaterMonthlyLedger{}
	for i := range l.Entries {
		e := &l.Entries[i]
		running = clampNonNegative(running.Add(e.netContribution()))
		e.Balance = running

		totals.TotalInvordStock = totals.TotalInvordStock.Add(e.InvordStock)
		totals.TotalStockAdjustment = totals.TotalStockAdjustment.Add(e.StockAdjustment)
		totals.TotalTransfer = totals.TotalTransfer.Add(e.Transfer)
		totals.TotalExpiredStock = totals.TotalExpiredStock.Add(e.ExpiredStock)
		totals.TotalDamageStock = totals.TotalDamageStock.Add(e.DamageStock)
	}
	l.TotalInvordStock = totals.TotalInvordStock
	l.TotalStockAdjustment = totals.TotalStockAdjustment
	l.TotalTransfer = totals.TotalTransfer
	l.TotalExpiredStock = totals.TotalExpiredStock
	l.TotalDamageStock = totals.TotalDamageStock
	l.ClosingBalance = running
}

func sortTheaterEntries(entries []TheaterStockEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}

/* persistence */

func loadTheaterLedger(tx *gorm.DB, theaterId string, productId int, year int, month int) (*TheaterMonthlyLedger, error) {
	var ledger TheaterMonthlyLedger
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

func GetPreviousTheaterMonthClosing(tx *gorm.DB, theaterId string, productId int, year int, month int) (decimal.Decimal, error) {
	prevYear, prevMonth := prevYearMonth(year, month)
	prev, err := loadTheaterLedger(tx, theaterId, productId, prevYear, prevMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if prev == nil {
		return decimal.Zero, nil
	}
	return prev.ClosingBalance, nil
}

func persistTheaterLedger(tx *gorm.DB, ledger *TheaterMonthlyLedger) error {
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
		"total_stock_adjustment": ledger.TotalStockAdjustment,
		"total_transfer":         ledger.TotalTransfer,
		"total_expired_stock":    ledger.TotalExpiredStock,
		"total_damage_stock":     ledger.TotalDamageStock,
	}).Error
}

func GetOrCreateTheaterLedger(tx *gorm.DB, theaterId string, productId int, year int, month int) (*TheaterMonthlyLedger, error) {
	ledger, err := loadTheaterLedger(tx, theaterId, productId, year, month)
	if err != nil {
		return nil, err
	}
	opening, err := GetPreviousTheaterMonthClosing(tx, theaterId, productId, year, month)
	if err != nil {
		return nil, err
	}

	if ledger == nil {
		ledger = &TheaterMonthlyLedger{
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
		if err := persistTheaterLedger(tx, ledger); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

func propagateTheaterOpeningChain(tx *gorm.DB, theaterId string, productId int, year int, month int) error {
	closing, err := func() (decimal.Decimal, error) {
		l, err := loadTheaterLedger(tx, theaterId, productId, year, month)
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
		next, err := loadTheaterLedger(tx, theaterId, productId, y, m)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		next.OpeningBalance = closing
		if err := persistTheaterLedger(tx, next); err != nil {
			return err
		}
		closing = next.ClosingBalance
	}
}

// RebuildTheaterChain recomputes the given month from its stored entries
// and pushes the resulting closing through every successor month.
func RebuildTheaterChain(tx *gorm.DB, theaterId string, productId int, year int, month int) error {
	ledger, err := loadTheaterLedger(tx, theaterId, productId, year, month)
	if err != nil {
		return err
	}
	if ledger == nil {
		return nil
	}
	if err := persistTheaterLedger(tx, ledger); err != nil {
		return err
	}
	return propagateTheaterOpeningChain(tx, theaterId, productId, year, month)
}

/* exported operations */

func GetTheaterLedger(ctx context.Context, productId int, year int, month int) (*TheaterMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	db := config.GetDB()

	var result *TheaterMonthlyLedger
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := GetOrCreateTheaterLedger(tx, theaterId, productId, year, month)
		if err != nil {
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

func AppendTheaterEntry(ctx context.Context, input *NewTheaterStockEntry) (*TheaterMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	if err := utils.ValidateResourceId[Product](ctx, theaterId, input.ProductId); err != nil {
		return nil, utils.NewError(utils.ErrNotFound, "product %d not found", input.ProductId)
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "ledger", "theaterLedger", "AppendTheaterEntry")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	date := DateOnlyUTCTime(input.Date)
	db := config.GetDB()

	var result *TheaterMonthlyLedger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := GetOrCreateTheaterLedger(tx, theaterId, input.ProductId, date.Year(), int(date.Month()))
		if err != nil {
			return err
		}
		entryType := input.Type
		if entryType == "" {
			entryType = StockEntryTypeAdded
		}
		ledger.Entries = append(ledger.Entries, TheaterStockEntry{
			LedgerId:        ledger.ID,
			TheaterId:       theaterId,
			ProductId:       input.ProductId,
			Date:            date,
			Type:            entryType,
			Unit:            NormalizeUnit(input.Unit),
			InvordStock:     input.InvordStock,
			StockAdjustment: input.StockAdjustment,
			ExpiredStock:    input.ExpiredStock,
			DamageStock:     input.DamageStock,
			Notes:           input.Notes,
		})
		if err := persistTheaterLedger(tx, ledger); err != nil {
			return err
		}
		if err := propagateTheaterOpeningChain(tx, theaterId, input.ProductId, ledger.Year, ledger.Month); err != nil {
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

// UpdateTheaterEntry patches a row. The transfer field is bridge-owned and
// cannot be set here; the cafe side is authoritative for it.
func UpdateTheaterEntry(ctx context.Context, entryId int, patch *StockEntryPatch) (*TheaterMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	if patch.Transfer != nil {
		return nil, utils.NewError(utils.ErrInvalidInput, "transfer is derived from cafe inward stock and cannot be set directly")
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "ledger", "theaterLedger", "UpdateTheaterEntry")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	db := config.GetDB()
	var result *TheaterMonthlyLedger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err = updateTheaterEntryTx(tx, theaterId, entryId, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func updateTheaterEntryTx(tx *gorm.DB, theaterId string, entryId int, patch *StockEntryPatch) (*TheaterMonthlyLedger, error) {
	var stored TheaterStockEntry
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
	ledger, err := GetOrCreateTheaterLedger(tx, theaterId, stored.ProductId, date.Year(), int(date.Month()))
	if err != nil {
		return nil, err
	}

	var entry *TheaterStockEntry
	for i := range ledger.Entries {
		if ledger.Entries[i].ID == entryId {
			entry = &ledger.Entries[i]
			break
		}
	}
	if entry == nil {
		return nil, utils.NewError(utils.ErrNotFound, "ledger entry %d not found", entryId)
	}

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
	if patch.StockAdjustment != nil {
		entry.StockAdjustment = *patch.StockAdjustment
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

	if err := persistTheaterLedger(tx, ledger); err != nil {
		return nil, err
	}
	if err := propagateTheaterOpeningChain(tx, theaterId, stored.ProductId, ledger.Year, ledger.Month); err != nil {
		return nil, err
	}
	return ledger, nil
}

func DeleteTheaterEntry(ctx context.Context, entryId int) (*TheaterMonthlyLedger, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "ledger", "theaterLedger", "DeleteTheaterEntry")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	db := config.GetDB()
	var result *TheaterMonthlyLedger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored TheaterStockEntry
		if err := tx.Where("theater_id = ? AND id = ?", theaterId, entryId).First(&stored).Error; err != nil {
			return utils.NewError(utils.ErrNotFound, "ledger entry %d not found", entryId)
		}
		if stored.Transfer.IsPositive() {
			return utils.NewError(utils.ErrInvalidState, "entry carries a cafe transfer; delete the cafe entry instead")
		}
		if err := tx.Delete(&TheaterStockEntry{}, entryId).Error; err != nil {
			return err
		}

		date := DateOnlyUTCTime(stored.Date)
		ledger, err := GetOrCreateTheaterLedger(tx, theaterId, stored.ProductId, date.Year(), int(date.Month()))
		if err != nil {
			return err
		}
		if err := persistTheaterLedger(tx, ledger); err != nil {
			return err
		}
		if err := propagateTheaterOpeningChain(tx, theaterId, stored.ProductId, ledger.Year, ledger.Month); err != nil {
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
