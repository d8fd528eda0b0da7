package models

import (
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestAutoExpireCafeStock(t *testing.T) {
	db := newStockDB(t)
	tracked := true
	product := Product{
		TheaterId: "t1", Name: "Popcorn", BasePrice: dec("180"),
		Quantity: "100 G", NoQty: 1, TrackStock: &tracked, ShelfLifeDays: 7,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		mustAppendCafe(t, tx, "t1", product.ID, CafeStockEntry{
			Date: day(2026, time.March, 5), Unit: UnitKg, InvordStock: dec("10"),
		})

		// inside the shelf life nothing happens
		expired, err := AutoExpireCafeStock(tx, "t1", &product, day(2026, time.March, 10))
		if err != nil {
			return err
		}
		if expired {
			t.Fatal("fresh stock must not expire")
		}

		expired, err = AutoExpireCafeStock(tx, "t1", &product, day(2026, time.March, 20))
		if err != nil {
			return err
		}
		if !expired {
			t.Fatal("stale stock should be written off")
		}

		ledger, err := GetOrCreateCafeLedger(tx, "t1", product.ID, 2026, 3)
		if err != nil {
			return err
		}
		decEq(t, ledger.ClosingBalance, "0")
		decEq(t, ledger.TotalExpiredStock, "10")

		var row CafeStockEntry
		err = tx.Where("theater_id = ? AND product_id = ? AND date = ?",
			"t1", product.ID, day(2026, time.March, 20)).First(&row).Error
		if err != nil {
			return err
		}
		decEq(t, row.ExpiredStock, "10")
		if row.Type != StockEntryTypeExpired || row.Notes != expiredStockNote {
			t.Fatalf("write-off row mislabeled: type=%q notes=%q", row.Type, row.Notes)
		}

		// replay finds nothing left
		expired, err = AutoExpireCafeStock(tx, "t1", &product, day(2026, time.March, 21))
		if err != nil {
			return err
		}
		if expired {
			t.Fatal("write-off must be idempotent")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAutoExpireSkipsProductsWithoutShelfLife(t *testing.T) {
	db := newStockDB(t)
	tracked := true
	product := Product{TheaterId: "t1", Name: "Cola", BasePrice: dec("120"), NoQty: 1, TrackStock: &tracked}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		expired, err := AutoExpireCafeStock(tx, "t1", &product, day(2026, time.March, 20))
		if err != nil {
			return err
		}
		if expired {
			t.Fatal("no shelf life, no expiry")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
