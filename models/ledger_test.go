package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// recompute uses a now well past the ledger month so gap-fill reaches the
// last entry
var afterMonth = day(2026, time.August, 25)

func TestCafeRecomputeBalancesAndGapFill(t *testing.T) {
	ledger := &CafeMonthlyLedger{
		TheaterId:      "t1",
		ProductId:      7,
		Year:           2026,
		Month:          3,
		OpeningBalance: dec("10"),
		Entries: []CafeStockEntry{
			{ID: 2, Date: day(2026, time.March, 5), Sales: dec("4")},
			{ID: 1, Date: day(2026, time.March, 3), Unit: UnitKg, InvordStock: dec("5"), Sales: dec("2")},
		},
	}
	ledger.Recompute(afterMonth)

	if len(ledger.Entries) != 3 {
		t.Fatalf("entries = %d, want 3 (one carry-forward)", len(ledger.Entries))
	}
	if !ledger.Entries[0].Date.Equal(day(2026, time.March, 3)) {
		t.Fatalf("entries not sorted by date: first is %s", ledger.Entries[0].Date)
	}
	decEq(t, ledger.Entries[0].Balance, "13")

	gap := ledger.Entries[1]
	if gap.Notes != CarryForwardNote || gap.ID != 0 {
		t.Fatalf("middle row should be an unsaved carry-forward, got id=%d notes=%q", gap.ID, gap.Notes)
	}
	if !gap.Date.Equal(day(2026, time.March, 4)) {
		t.Fatalf("carry-forward date = %s", gap.Date)
	}
	if gap.Unit != UnitKg {
		t.Fatalf("carry-forward should inherit the flowing unit, got %q", gap.Unit)
	}
	decEq(t, gap.Balance, "13")

	decEq(t, ledger.Entries[2].Balance, "9")
	decEq(t, ledger.ClosingBalance, "9")
	decEq(t, ledger.TotalInvordStock, "5")
	decEq(t, ledger.TotalSales, "6")
}

func TestCafeRecomputeClampsNegative(t *testing.T) {
	ledger := &CafeMonthlyLedger{
		Year: 2026, Month: 3,
		Entries: []CafeStockEntry{
			{ID: 1, Date: day(2026, time.March, 1), Sales: dec("5")},
			{ID: 2, Date: day(2026, time.March, 2), InvordStock: dec("10")},
		},
	}
	ledger.Recompute(afterMonth)

	decEq(t, ledger.Entries[0].Balance, "0")
	decEq(t, ledger.Entries[1].Balance, "10")
	decEq(t, ledger.ClosingBalance, "10")
}

func TestCafeRecomputeIdempotent(t *testing.T) {
	ledger := &CafeMonthlyLedger{
		Year: 2026, Month: 3,
		OpeningBalance: dec("2"),
		Entries: []CafeStockEntry{
			{ID: 1, Date: day(2026, time.March, 1), Unit: UnitL, InvordStock: dec("8")},
			{ID: 2, Date: day(2026, time.March, 4), Sales: dec("3")},
		},
	}
	ledger.Recompute(afterMonth)
	count := len(ledger.Entries)
	closing := ledger.ClosingBalance

	ledger.Recompute(afterMonth)
	if len(ledger.Entries) != count {
		t.Fatalf("second recompute changed entry count %d -> %d", count, len(ledger.Entries))
	}
	if !ledger.ClosingBalance.Equal(closing) {
		t.Fatalf("second recompute changed closing %s -> %s", closing, ledger.ClosingBalance)
	}
}

func TestCafeRecomputeGapFillStopsAtToday(t *testing.T) {
	// entry dated past "today" stays, but fill never runs ahead of today
	ledger := &CafeMonthlyLedger{
		Year: 2026, Month: 8,
		Entries: []CafeStockEntry{
			{ID: 1, Date: day(2026, time.August, 1), InvordStock: dec("5")},
			{ID: 2, Date: day(2026, time.August, 20), Sales: dec("1")},
		},
	}
	now := day(2026, time.August, 10)
	ledger.Recompute(now)

	for _, e := range ledger.Entries {
		if e.Notes == CarryForwardNote && e.Date.After(now) {
			t.Fatalf("carry-forward row %s is past today", e.Date)
		}
	}
	// Aug 2 through Aug 10 filled, Aug 11 through Aug 19 not
	if len(ledger.Entries) != 11 {
		t.Fatalf("entries = %d, want 11", len(ledger.Entries))
	}
}

func TestCafeCurrentUnit(t *testing.T) {
	ledger := &CafeMonthlyLedger{Entries: []CafeStockEntry{
		{Unit: UnitKg},
		{Unit: ""},
		{Unit: UnitL},
		{Unit: ""},
	}}
	if got := ledger.CurrentUnit(); got != UnitL {
		t.Fatalf("CurrentUnit = %q, want L", got)
	}
	empty := &CafeMonthlyLedger{}
	if got := empty.CurrentUnit(); got != UnitNos {
		t.Fatalf("CurrentUnit on empty ledger = %q, want NOS", got)
	}
}

func TestCafeBalanceOn(t *testing.T) {
	ledger := &CafeMonthlyLedger{
		Year: 2026, Month: 3,
		OpeningBalance: dec("7"),
		Entries: []CafeStockEntry{
			{ID: 1, Date: day(2026, time.March, 3), InvordStock: dec("3")},
			{ID: 2, Date: day(2026, time.March, 6), Sales: dec("4")},
		},
	}
	ledger.Recompute(afterMonth)

	decEq(t, cafeBalanceOn(ledger, day(2026, time.March, 1)), "7")
	decEq(t, cafeBalanceOn(ledger, day(2026, time.March, 3)), "10")
	decEq(t, cafeBalanceOn(ledger, day(2026, time.March, 4)), "10")
	decEq(t, cafeBalanceOn(ledger, day(2026, time.March, 31)), "6")
}

func TestApplyCafePatchZeroVersusAbsent(t *testing.T) {
	entry := &CafeStockEntry{
		Date:        day(2026, time.March, 3),
		Unit:        UnitKg,
		InvordStock: dec("5"),
		Sales:       dec("2"),
		Notes:       "delivery",
	}

	zero := decimal.Zero
	applyCafePatch(entry, &StockEntryPatch{InvordStock: &zero})

	decEq(t, entry.InvordStock, "0")
	decEq(t, entry.Sales, "2")
	if entry.Unit != UnitKg || entry.Notes != "delivery" {
		t.Fatalf("absent patch fields must keep stored values: %+v", entry)
	}

	newDate := day(2026, time.March, 9)
	newUnit := "ltr"
	applyCafePatch(entry, &StockEntryPatch{Date: &newDate, Unit: &newUnit})
	if !entry.Date.Equal(newDate) {
		t.Fatalf("date = %s", entry.Date)
	}
	if entry.Unit != UnitL {
		t.Fatalf("patched unit should normalize, got %q", entry.Unit)
	}
}

func TestTheaterRecomputeEquation(t *testing.T) {
	ledger := &TheaterMonthlyLedger{
		Year: 2026, Month: 3,
		OpeningBalance: dec("1"),
		Entries: []TheaterStockEntry{
			{ID: 1, Date: day(2026, time.March, 2), Unit: UnitKg, InvordStock: dec("20")},
			{ID: 2, Date: day(2026, time.March, 3), Transfer: dec("10")},
			{ID: 3, Date: day(2026, time.March, 4), StockAdjustment: dec("-2"), DamageStock: dec("1")},
		},
	}
	ledger.Recompute(afterMonth)

	decEq(t, ledger.Entries[0].Balance, "21")
	decEq(t, ledger.Entries[1].Balance, "11")
	decEq(t, ledger.Entries[2].Balance, "8")
	decEq(t, ledger.ClosingBalance, "8")
	decEq(t, ledger.TotalInvordStock, "20")
	decEq(t, ledger.TotalTransfer, "10")
	decEq(t, ledger.TotalStockAdjustment, "-2")
	decEq(t, ledger.TotalDamageStock, "1")
}

func TestTheaterRecomputeClampsNegative(t *testing.T) {
	ledger := &TheaterMonthlyLedger{
		Year: 2026, Month: 3,
		Entries: []TheaterStockEntry{
			{ID: 1, Date: day(2026, time.March, 1), Transfer: dec("4")},
		},
	}
	ledger.Recompute(afterMonth)
	decEq(t, ledger.Entries[0].Balance, "0")
	decEq(t, ledger.ClosingBalance, "0")
}

func TestPrevYearMonth(t *testing.T) {
	y, m := prevYearMonth(2026, 1)
	if y != 2025 || m != 12 {
		t.Fatalf("prevYearMonth(2026, 1) = %d, %d", y, m)
	}
	y, m = prevYearMonth(2026, 7)
	if y != 2026 || m != 6 {
		t.Fatalf("prevYearMonth(2026, 7) = %d, %d", y, m)
	}
}
