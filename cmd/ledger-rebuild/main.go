// ledger-rebuild recomputes every monthly ledger for one theater (or all
// theaters) from its stored entries, repairing running balances, totals and
// the month-to-month opening chain. Run it after manual data surgery or a
// bad deploy; recomputation is idempotent so re-running is safe.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/models"
	"github.com/screenbites/canteen_backend/utils"
	"gorm.io/gorm"
)

func main() {
	theaterId := flag.String("theater", "", "theater id to rebuild (empty = all theaters)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var theaters []string
	if *theaterId != "" {
		theaters = []string{*theaterId}
	} else {
		if err := db.WithContext(ctx).Model(&models.Theater{}).Pluck("id", &theaters).Error; err != nil {
			log.Fatalf("list theaters: %v", err)
		}
	}

	for _, id := range theaters {
		if err := rebuildTheater(ctx, db, id); err != nil {
			log.Printf("theater %s: rebuild failed: %v", id, err)
			continue
		}
		log.Printf("theater %s: rebuilt", id)
	}
}

func rebuildTheater(ctx context.Context, db *gorm.DB, theaterId string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rebuildCafe(tx, theaterId); err != nil {
			return err
		}
		return rebuildTheaterSide(tx, theaterId)
	})
}

// cell identifies the earliest ledger month per product; the opening chain
// is rebuilt forward from there. Ym packs year*100+month so min() picks the
// true earliest month.
type cell struct {
	ProductId int
	Ym        int
}

func rebuildCafe(tx *gorm.DB, theaterId string) error {
	var cells []cell
	err := tx.Model(&models.CafeMonthlyLedger{}).
		Select("product_id, min(year * 100 + month) as ym").
		Where("theater_id = ?", theaterId).
		Group("product_id").
		Scan(&cells).Error
	if err != nil {
		return err
	}
	for _, c := range cells {
		if err := models.RebuildCafeChain(tx, theaterId, c.ProductId, c.Ym/100, c.Ym%100); err != nil {
			return err
		}
	}
	return nil
}

func rebuildTheaterSide(tx *gorm.DB, theaterId string) error {
	var cells []cell
	err := tx.Model(&models.TheaterMonthlyLedger{}).
		Select("product_id, min(year * 100 + month) as ym").
		Where("theater_id = ?", theaterId).
		Group("product_id").
		Scan(&cells).Error
	if err != nil {
		return err
	}
	for _, c := range cells {
		if err := models.RebuildTheaterChain(tx, theaterId, c.ProductId, c.Ym/100, c.Ym%100); err != nil {
			return err
		}
	}
	return nil
}
