package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shared pieces of the two monthly ledger families. Cafe and theater
// ledgers have the same shape but different balance equations; the
// per-family code lives in cafeLedger.go and theaterLedger.go.

// StockEntryPatch is a partial update for a ledger row. Nil means keep the
// stored value; a pointer to zero means set the field to zero.
type StockEntryPatch struct {
	Date            *time.Time       `json:"date"`
	Type            *StockEntryType  `json:"type"`
	Unit            *string          `json:"unit"`
	InvordStock     *decimal.Decimal `json:"invord_stock"`
	DirectStock     *decimal.Decimal `json:"direct_stock"`
	Addon           *decimal.Decimal `json:"addon"`
	CancelStock     *decimal.Decimal `json:"cancel_stock"`
	StockAdjustment *decimal.Decimal `json:"stock_adjustment"`
	Sales           *decimal.Decimal `json:"sales"`
	ExpiredStock    *decimal.Decimal `json:"expired_stock"`
	DamageStock     *decimal.Decimal `json:"damage_stock"`
	Transfer        *decimal.Decimal `json:"transfer"`
	Notes           *string          `json:"notes"`
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// prevYearMonth steps one month back from (year, month).
func prevYearMonth(year int, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// monthBounds returns the first day of (year, month) and the first day of
// the next month, both at UTC day precision.
func monthBounds(year int, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// gapFillEnd is the last day auto-fill may extend to: never past today,
// never past the ledger's month.
func gapFillEnd(year int, month int, now time.Time) time.Time {
	_, nextMonth := monthBounds(year, month)
	end := DateOnlyUTCTime(now)
	if lastDay := nextMonth.AddDate(0, 0, -1); end.After(lastDay) {
		end = lastDay
	}
	return end
}

// DateOnlyUTCTime truncates to UTC day precision. Duplicated from utils to
// keep the recompute path import-free of the utils package.
func DateOnlyUTCTime(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return DateOnlyUTCTime(a).Equal(DateOnlyUTCTime(b))
}

func sameMonth(a, b time.Time) bool {
	a, b = DateOnlyUTCTime(a), DateOnlyUTCTime(b)
	return a.Year() == b.Year() && a.Month() == b.Month()
}
