package workflow

import (
	"context"
	"time"

	"github.com/screenbites/canteen_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockReconciler converges orders whose ledger writes were skipped during
// commit. stock_synced=false is the work queue: confirmed orders get their
// deduction replayed, cancelled orders get their restorations replayed.
// Every command it runs is idempotent so a crash mid-batch is harmless.
type StockReconciler struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	BatchSize    int
	PollInterval time.Duration
}

func NewStockReconciler(db *gorm.DB, logger *logrus.Logger) *StockReconciler {
	return &StockReconciler{
		DB:           db,
		Logger:       logger,
		BatchSize:    20,
		PollInterval: 30 * time.Second,
	}
}

func (r *StockReconciler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.reconcileOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.PollInterval):
		}
	}
}

func (r *StockReconciler) reconcileOnce(ctx context.Context) {
	db := r.DB
	if db == nil {
		return
	}

	var pending []models.Order
	err := db.WithContext(ctx).Preload("Items").
		Where("stock_synced = false").
		Order("id ASC").
		Limit(r.BatchSize).
		Find(&pending).Error
	if err != nil {
		r.logError("reconcileOnce", "", err)
		return
	}

	today := models.DateOnlyUTCTime(time.Now())
	for i := range pending {
		order := &pending[i]
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			switch {
			case order.Status == models.OrderStatusCancelled:
				for j := range order.Items {
					if err := models.RestoreOrderItemStock(tx, &order.Items[j], today); err != nil {
						return err
					}
				}
			case order.StockRecorded:
				if err := models.RecordOrderStock(tx, order, today); err != nil {
					return err
				}
			}
			return tx.Model(order).Update("stock_synced", true).Error
		})
		if err != nil {
			r.logError("reconcileOnce", order.OrderNumber, err)
			continue
		}
	}
}

func (r *StockReconciler) logError(funcName string, orderNumber string, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.WithFields(logrus.Fields{
		"field":        "StockReconciler",
		"funcName":     funcName,
		"order_number": orderNumber,
	}).Error(err.Error())
}
