package models

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/screenbites/canteen_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newStockDB gives each test its own in-memory database with the stock
// tables migrated. Tx-level functions take the handle directly, so the
// global DB and the tenant lock never come into play here.
func newStockDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&Product{}, &Order{}, &OrderItem{},
		&CafeMonthlyLedger{}, &CafeStockEntry{},
		&TheaterMonthlyLedger{}, &TheaterStockEntry{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustAppendCafe(t *testing.T, tx *gorm.DB, theaterId string, productId int, entry CafeStockEntry) {
	t.Helper()
	ledger, err := GetOrCreateCafeLedger(tx, theaterId, productId, entry.Date.Year(), int(entry.Date.Month()))
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	entry.TheaterId = theaterId
	entry.ProductId = productId
	ledger.Entries = append(ledger.Entries, entry)
	if err := persistCafeLedger(tx, ledger); err != nil {
		t.Fatalf("persist ledger: %v", err)
	}
}

func TestGetOrCreateCafeLedgerSeedsOpeningFromPriorClosing(t *testing.T) {
	db := newStockDB(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", 1, CafeStockEntry{
			Date: day(2026, time.February, 10), Unit: UnitKg, InvordStock: dec("12"),
		})

		next, err := GetOrCreateCafeLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, next.OpeningBalance, "12")
		decEq(t, next.ClosingBalance, "12")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGetOrCreateCafeLedgerPatchesDriftedOpening(t *testing.T) {
	db := newStockDB(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", 1, CafeStockEntry{
			Date: day(2026, time.February, 10), Unit: UnitKg, InvordStock: dec("12"),
		})
		if _, err := GetOrCreateCafeLedger(tx, "t1", 1, 2026, 3); err != nil {
			return err
		}

		// february changes after march was opened
		mustAppendCafe(t, tx, "t1", 1, CafeStockEntry{
			Date: day(2026, time.February, 20), InvordStock: dec("3"),
		})
		march, err := GetOrCreateCafeLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, march.OpeningBalance, "15")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSyncTheaterTransferLifecycle(t *testing.T) {
	db := newStockDB(t)
	d := day(2026, time.March, 5)
	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", 1, CafeStockEntry{
			Date: d, Unit: UnitKg, InvordStock: dec("10"),
		})
		if err := SyncTheaterTransfer(tx, "t1", 1, d); err != nil {
			return err
		}

		theater, err := GetOrCreateTheaterLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		if len(theater.Entries) != 1 {
			t.Fatalf("theater entries = %d, want 1 bridge row", len(theater.Entries))
		}
		decEq(t, theater.Entries[0].Transfer, "10")
		if theater.Entries[0].Unit != UnitKg {
			t.Fatalf("bridge row unit = %q, want cafe unit", theater.Entries[0].Unit)
		}
		decEq(t, theater.TotalTransfer, "10")

		// replay against unchanged cafe data writes nothing
		if err := SyncTheaterTransfer(tx, "t1", 1, d); err != nil {
			return err
		}
		theater, err = GetOrCreateTheaterLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		if len(theater.Entries) != 1 {
			t.Fatalf("replay grew the theater ledger to %d entries", len(theater.Entries))
		}

		// cafe inward drops to zero; the transfer follows but the row survives
		cafe, err := GetOrCreateCafeLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		cafe.Entries[0].InvordStock = dec("0")
		if err := persistCafeLedger(tx, cafe); err != nil {
			return err
		}
		if err := SyncTheaterTransfer(tx, "t1", 1, d); err != nil {
			return err
		}
		theater, err = GetOrCreateTheaterLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		if len(theater.Entries) != 1 {
			t.Fatalf("zeroing must keep the audit row, entries = %d", len(theater.Entries))
		}
		decEq(t, theater.Entries[0].Transfer, "0")
		decEq(t, theater.TotalTransfer, "0")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRecordAndRestoreOrderStock(t *testing.T) {
	db := newStockDB(t)
	d := day(2026, time.March, 5)
	tracked := true
	product := Product{
		TheaterId: "t1", Name: "Cola", BasePrice: dec("120"),
		Quantity: "750 ML", NoQty: 1, TrackStock: &tracked,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", product.ID, CafeStockEntry{
			Date: d, Unit: UnitKg, InvordStock: dec("10"),
		})

		order := Order{
			TheaterId: "t1", OrderNumber: "GU0001", Source: OrderSourcePos,
			PaymentMethod: PaymentMethodCash, PaymentStatus: PaymentStatusCompleted,
			Status: OrderStatusConfirmed,
			Items: []OrderItem{{
				TheaterId: "t1", ProductId: product.ID, ProductName: product.Name,
				Quantity: 2, NoQty: 1,
				StockQuantityConsumed: dec("1.5"), StockUnit: UnitKg,
			}},
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if err := RecordOrderStock(tx, &order, d); err != nil {
			return err
		}
		ledger, err := GetOrCreateCafeLedger(tx, "t1", product.ID, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, ledger.ClosingBalance, "8.5")
		decEq(t, ledger.TotalSales, "1.5")

		if err := RestoreOrderItemStock(tx, &order.Items[0], d); err != nil {
			return err
		}
		if !order.Items[0].StockRestored {
			t.Fatal("restore must mark the item")
		}
		ledger, err = GetOrCreateCafeLedger(tx, "t1", product.ID, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, ledger.ClosingBalance, "10")
		decEq(t, ledger.TotalCancelStock, "1.5")

		// replaying the restore must not double-credit
		var stored OrderItem
		if err := tx.First(&stored, order.Items[0].ID).Error; err != nil {
			return err
		}
		if !stored.StockRestored {
			t.Fatal("stock_restored flag must persist")
		}
		if err := RestoreOrderItemStock(tx, &stored, d); err != nil {
			return err
		}
		ledger, err = GetOrCreateCafeLedger(tx, "t1", product.ID, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, ledger.ClosingBalance, "10")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRecordOrderStockSkipsCancelledAndUntracked(t *testing.T) {
	db := newStockDB(t)
	d := day(2026, time.March, 5)
	tracked := true
	untracked := false
	cola := Product{TheaterId: "t1", Name: "Cola", BasePrice: dec("120"), Quantity: "750 ML", NoQty: 1, TrackStock: &tracked}
	voucher := Product{TheaterId: "t1", Name: "Voucher", BasePrice: dec("50"), NoQty: 1, TrackStock: &untracked}
	if err := db.Create(&cola).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&voucher).Error; err != nil {
		t.Fatal(err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", cola.ID, CafeStockEntry{Date: d, Unit: UnitKg, InvordStock: dec("10")})

		order := Order{
			TheaterId: "t1", OrderNumber: "GU0002", Source: OrderSourcePos,
			PaymentMethod: PaymentMethodCash, PaymentStatus: PaymentStatusCompleted,
			Status: OrderStatusConfirmed,
			Items: []OrderItem{
				{TheaterId: "t1", ProductId: cola.ID, Quantity: 1, NoQty: 1, Cancelled: true,
					StockQuantityConsumed: dec("0.75"), StockUnit: UnitKg},
				{TheaterId: "t1", ProductId: voucher.ID, Quantity: 3, NoQty: 1, StockUnit: UnitNos},
			},
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		if err := RecordOrderStock(tx, &order, d); err != nil {
			return err
		}

		ledger, err := GetOrCreateCafeLedger(tx, "t1", cola.ID, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, ledger.TotalSales, "0")
		decEq(t, ledger.ClosingBalance, "10")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateOrderTxAllocatesSequenceAfterValidation(t *testing.T) {
	db := newStockDB(t)
	if err := db.AutoMigrate(&OrderEventRecord{}); err != nil {
		t.Fatal(err)
	}
	tracked := true
	product := Product{TheaterId: "t1", Name: "Samosa", BasePrice: dec("40"), NoQty: 1, TrackStock: &tracked}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}
	theater := &Theater{ID: "t1", Name: "Guild Cinema"}
	orderDate := DateOnlyUTCTime(time.Now())

	allocations := 0
	nextSeq := func() (int64, error) {
		allocations++
		return 21, nil
	}
	newExpanded := func() []expandedLine {
		return []expandedLine{{
			product: &product,
			item: OrderItem{
				TheaterId: "t1", ProductId: product.ID, ProductName: product.Name,
				Quantity: 2, NoQty: 1, UnitPrice: dec("40"), PriceCarrier: true,
			},
		}}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", product.ID, CafeStockEntry{Date: orderDate, Unit: UnitNos, InvordStock: dec("1")})

		rejected := Order{TheaterId: "t1", Status: OrderStatusPending, PaymentStatus: PaymentStatusPending, StockSynced: true}
		err := createOrderTx(tx, theater, &rejected, newExpanded(), &NewOrder{}, orderDate, "", nextSeq)
		if !utils.IsKind(err, utils.ErrInsufficientStock) {
			t.Fatalf("want insufficient stock rejection, got %v", err)
		}
		if allocations != 0 {
			t.Fatalf("rejected create consumed a sequence number (%d allocations)", allocations)
		}
		if rejected.SequenceNo != 0 || rejected.OrderNumber != "" {
			t.Fatalf("rejected order must stay unnumbered, got %q / %d", rejected.OrderNumber, rejected.SequenceNo)
		}

		mustAppendCafe(t, tx, "t1", product.ID, CafeStockEntry{Date: orderDate, Unit: UnitNos, InvordStock: dec("10")})

		accepted := Order{TheaterId: "t1", Status: OrderStatusPending, PaymentStatus: PaymentStatusPending, StockSynced: true}
		if err := createOrderTx(tx, theater, &accepted, newExpanded(), &NewOrder{}, orderDate, "", nextSeq); err != nil {
			return err
		}
		if allocations != 1 {
			t.Fatalf("want exactly one allocation, got %d", allocations)
		}
		if accepted.OrderNumber != "GU0021" || accepted.SequenceNo != 21 {
			t.Fatalf("unexpected numbering: %q / %d", accepted.OrderNumber, accepted.SequenceNo)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCancelItemStockOnUnsyncedOrderNetsToZero(t *testing.T) {
	db := newStockDB(t)
	d := day(2026, time.March, 12)

	err := db.Transaction(func(tx *gorm.DB) error {
		order := Order{
			TheaterId: "t1", OrderNumber: "GU0005", Status: OrderStatusConfirmed,
			StockRecorded: true, StockSynced: false,
			Items: []OrderItem{
				{TheaterId: "t1", ProductId: 1, Quantity: 1, NoQty: 1,
					StockQuantityConsumed: dec("1.5"), StockUnit: UnitKg},
			},
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if err := cancelItemStock(tx, &order, &order.Items[0], d); err != nil {
			return err
		}

		// the deduction never landed, so nothing may be credited back
		var rows int64
		if err := tx.Model(&CafeStockEntry{}).Where("theater_id = ?", "t1").Count(&rows).Error; err != nil {
			return err
		}
		if rows != 0 {
			t.Fatalf("unsynced cancel wrote %d ledger rows", rows)
		}

		var item OrderItem
		if err := tx.First(&item, order.Items[0].ID).Error; err != nil {
			return err
		}
		if !item.StockRestored {
			t.Fatal("item must be marked restored so replays skip it")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCancelItemStockOnSyncedOrderCreditsCancelStock(t *testing.T) {
	db := newStockDB(t)
	d := day(2026, time.March, 12)

	err := db.Transaction(func(tx *gorm.DB) error {
		order := Order{
			TheaterId: "t1", OrderNumber: "GU0006", Status: OrderStatusConfirmed,
			StockRecorded: true, StockSynced: true,
			Items: []OrderItem{
				{TheaterId: "t1", ProductId: 1, Quantity: 1, NoQty: 1,
					StockQuantityConsumed: dec("1.5"), StockUnit: UnitKg},
			},
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if err := cancelItemStock(tx, &order, &order.Items[0], d); err != nil {
			return err
		}

		var row CafeStockEntry
		if err := tx.Where("theater_id = ? AND product_id = ? AND date = ?", "t1", 1, d).First(&row).Error; err != nil {
			return err
		}
		decEq(t, row.CancelStock, "1.5")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateCafeEntryRejectsCrossMonthDatePatch(t *testing.T) {
	db := newStockDB(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", 1, CafeStockEntry{
			Date: day(2026, time.March, 5), Unit: UnitKg, InvordStock: dec("10"),
		})
		var stored CafeStockEntry
		if err := tx.Where("theater_id = ? AND product_id = ?", "t1", 1).First(&stored).Error; err != nil {
			return err
		}

		april := day(2026, time.April, 2)
		_, err := updateCafeEntryTx(tx, "t1", stored.ID, &StockEntryPatch{Date: &april})
		if !utils.IsKind(err, utils.ErrInvalidInput) {
			t.Fatalf("cross-month date patch must be rejected, got %v", err)
		}

		// moving within the month is fine and re-syncs both days' transfers
		moved := day(2026, time.March, 15)
		ledger, err := updateCafeEntryTx(tx, "t1", stored.ID, &StockEntryPatch{Date: &moved})
		if err != nil {
			return err
		}
		decEq(t, ledger.ClosingBalance, "10")

		var reloaded CafeStockEntry
		if err := tx.First(&reloaded, stored.ID).Error; err != nil {
			return err
		}
		if !sameDay(reloaded.Date, moved) {
			t.Fatalf("entry date not moved: %v", reloaded.Date)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateTheaterEntryRejectsCrossMonthDatePatch(t *testing.T) {
	db := newStockDB(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		ledger, err := GetOrCreateTheaterLedger(tx, "t1", 1, 2026, 3)
		if err != nil {
			return err
		}
		ledger.Entries = append(ledger.Entries, TheaterStockEntry{
			TheaterId: "t1", ProductId: 1,
			Date: day(2026, time.March, 5), Unit: UnitKg, InvordStock: dec("20"),
		})
		if err := persistTheaterLedger(tx, ledger); err != nil {
			return err
		}
		var stored TheaterStockEntry
		if err := tx.Where("theater_id = ? AND product_id = ?", "t1", 1).First(&stored).Error; err != nil {
			return err
		}

		april := day(2026, time.April, 2)
		_, err = updateTheaterEntryTx(tx, "t1", stored.ID, &StockEntryPatch{Date: &april})
		if !utils.IsKind(err, utils.ErrInvalidInput) {
			t.Fatalf("cross-month date patch must be rejected, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
