package workflow

import (
	"context"
	"time"

	"github.com/screenbites/canteen_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExpirySweeper writes off stale stock for products carrying a shelf life.
// Deferred, best-effort work: a skipped sweep only delays the write-off and
// the next run picks it up.
type ExpirySweeper struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	BatchSize    int
	PollInterval time.Duration
}

func NewExpirySweeper(db *gorm.DB, logger *logrus.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		DB:           db,
		Logger:       logger,
		BatchSize:    200,
		PollInterval: 6 * time.Hour,
	}
}

func (s *ExpirySweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval):
		}
	}
}

func (s *ExpirySweeper) sweepOnce(ctx context.Context) {
	db := s.DB
	if db == nil {
		return
	}

	var products []models.Product
	err := db.WithContext(ctx).
		Where("shelf_life_days > 0").
		Order("id ASC").
		Limit(s.BatchSize).
		Find(&products).Error
	if err != nil {
		s.logError("sweepOnce", 0, err)
		return
	}

	now := time.Now()
	for i := range products {
		product := &products[i]
		var expired bool
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			expired, err = models.AutoExpireCafeStock(tx, product.TheaterId, product, now)
			return err
		})
		if err != nil {
			s.logError("sweepOnce", product.ID, err)
			continue
		}
		if expired && s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"field":      "ExpirySweeper",
				"theater_id": product.TheaterId,
				"product_id": product.ID,
			}).Info("stale stock written off as expired")
		}
	}
}

func (s *ExpirySweeper) logError(funcName string, productId int, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"field":      "ExpirySweeper",
		"funcName":   funcName,
		"product_id": productId,
	}).Error(err.Error())
}
