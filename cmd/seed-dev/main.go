// seed-dev loads a small working data set for local development: one
// theater, a handful of products, a combo and opening stock in both
// ledgers. Safe to re-run; it skips seeding when the theater already
// exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/models"
	"github.com/screenbites/canteen_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if err := models.MigrateTable(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := config.GetDB()
	var existing models.Theater
	if err := db.WithContext(ctx).Where("name = ?", "Guild Cinema").First(&existing).Error; err == nil {
		log.Printf("seed data already present (theater %s), nothing to do", existing.ID)
		return
	}

	theater, err := models.CreateTheater(ctx, &models.NewTheater{
		Name:     "Guild Cinema",
		Timezone: "Asia/Kolkata",
	})
	if err != nil {
		log.Fatalf("create theater: %v", err)
	}
	ctx = utils.SetTheaterIdInContext(ctx, theater.ID)
	log.Printf("theater %s (%s)", theater.Name, theater.ID)

	popcorn, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Salted Popcorn",
		BasePrice: decimal.NewFromInt(180),
		TaxRate:   ptr(decimal.NewFromInt(5)),
		GstType:   models.GstTypeInclude,
		Quantity:  "100 G",
		NoQty:     1,
	})
	if err != nil {
		log.Fatalf("create product: %v", err)
	}
	cola, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Cola",
		BasePrice: decimal.NewFromInt(120),
		TaxRate:   ptr(decimal.NewFromInt(12)),
		GstType:   models.GstTypeInclude,
		Quantity:  "750 ML",
		NoQty:     1,
	})
	if err != nil {
		log.Fatalf("create product: %v", err)
	}
	samosa, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Samosa",
		BasePrice: decimal.NewFromInt(60),
		GstType:   models.GstTypeInclude,
		NoQty:     2,
	})
	if err != nil {
		log.Fatalf("create product: %v", err)
	}

	_, err = models.CreateComboOffer(ctx, &models.NewComboOffer{
		Name:          "Movie Night",
		PriceOverride: decimal.NewFromInt(300),
		TaxRate:       ptr(decimal.NewFromInt(5)),
		GstType:       models.GstTypeInclude,
		Items: []models.NewComboOfferItem{
			{ProductId: popcorn.ID, QuantityPerCombo: 2},
			{ProductId: cola.ID, QuantityPerCombo: 1},
		},
	})
	if err != nil {
		log.Fatalf("create combo: %v", err)
	}

	today := time.Now().UTC()
	seedStock := []struct {
		product *models.Product
		unit    string
		amount  int64
	}{
		{popcorn, models.UnitKg, 25},
		{cola, models.UnitL, 40},
		{samosa, models.UnitNos, 200},
	}
	for _, s := range seedStock {
		// theater side receives, cafe side takes delivery via invord; the
		// bridge keeps both ledgers consistent
		if _, err := models.AppendTheaterEntry(ctx, &models.NewTheaterStockEntry{
			ProductId:   s.product.ID,
			Date:        today,
			Unit:        s.unit,
			InvordStock: decimal.NewFromInt(s.amount * 2),
		}); err != nil {
			log.Fatalf("seed theater stock: %v", err)
		}
		if _, err := models.AppendCafeEntry(ctx, &models.NewCafeStockEntry{
			ProductId:   s.product.ID,
			Date:        today,
			Unit:        s.unit,
			InvordStock: decimal.NewFromInt(s.amount),
		}); err != nil {
			log.Fatalf("seed cafe stock: %v", err)
		}
	}

	log.Printf("seeded %d products with opening stock for theater %s", len(seedStock), theater.ID)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
