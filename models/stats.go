package models

import (
	"context"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/utils"
	"github.com/shopspring/decimal"
)

const statsModule = "stats"

// SourceBucket is one channel's slice of the rollup.
type SourceBucket struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// TheaterStats is one tenant's aggregate over the window.
type TheaterStats struct {
	TheaterId   string `json:"theater_id"`
	TheaterName string `json:"theater_name"`

	TotalOrders     int64           `json:"total_orders"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CancelledOrders int64           `json:"cancelled_orders"`
	CancelledAmount decimal.Decimal `json:"cancelled_amount"`

	BySource  map[string]*SourceBucket `json:"by_source"`
	ByPayment map[string]*SourceBucket `json:"by_payment"`
}

// GlobalStats is the cross-tenant rollup. Failed is the list of tenants
// whose scan errored; their numbers are absent, everyone else's stand.
type GlobalStats struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	TotalOrders     int64           `json:"total_orders"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CancelledOrders int64           `json:"cancelled_orders"`
	CancelledAmount decimal.Decimal `json:"cancelled_amount"`

	BySource map[string]*SourceBucket `json:"by_source"`
	Theaters []*TheaterStats          `json:"theaters"`
	Failed   []string                 `json:"failed,omitempty"`
}

// amountOf picks the order's revenue figure: the grand total when present,
// otherwise reassembled from the pricing snapshot.
func amountOf(order *Order) decimal.Decimal {
	if order.GrandTotal.IsPositive() {
		return order.GrandTotal
	}
	return order.Subtotal.
		Sub(order.TotalDiscount).
		Add(order.TotalTax).
		Add(order.DeliveryCharge)
}

func bucket(m map[string]*SourceBucket, key string) *SourceBucket {
	b, ok := m[key]
	if !ok {
		b = &SourceBucket{}
		m[key] = b
	}
	return b
}

// ComputeTheaterStats aggregates one tenant's orders in [start, end].
// Boundaries are inclusive UTC instants exactly as supplied.
func ComputeTheaterStats(ctx context.Context, theater *Theater, start time.Time, end time.Time) (*TheaterStats, error) {
	db := config.GetDB()
	stats := &TheaterStats{
		TheaterId:   theater.ID,
		TheaterName: theater.Name,
		BySource:    map[string]*SourceBucket{},
		ByPayment:   map[string]*SourceBucket{},
	}

	// filtering by source aliases and payment grouping happens in memory;
	// the scan itself is one indexed range query
	var orders []*Order
	err := db.WithContext(ctx).
		Where("theater_id = ? AND created_at >= ? AND created_at <= ?", theater.ID, start, end).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		amount := amountOf(order)
		if order.Status == OrderStatusCancelled {
			stats.CancelledOrders++
			stats.CancelledAmount = stats.CancelledAmount.Add(amount)
			continue
		}
		stats.TotalOrders++
		stats.TotalAmount = stats.TotalAmount.Add(amount)

		src := bucket(stats.BySource, string(CanonicalSource(string(order.Source))))
		src.Count++
		src.Amount = src.Amount.Add(amount)

		pay := bucket(stats.ByPayment, PaymentMethodGroup(order.PaymentMethod))
		pay.Count++
		pay.Amount = pay.Amount.Add(amount)
	}
	return stats, nil
}

func dailyStatsKey(theaterId string, day time.Time) string {
	return "DailyStats:" + theaterId + ":" + day.Format("2006-01-02")
}

// dailyStatsWindow is the inclusive instant pair covering one UTC day.
func dailyStatsWindow(day time.Time) (time.Time, time.Time) {
	day = DateOnlyUTCTime(day)
	return day, day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ComputeTheaterDailyStats serves a single UTC day from redis when it can.
// Order writes drop the key, so a cache hit is read-after-write consistent
// within the tenant lock.
func ComputeTheaterDailyStats(ctx context.Context, theater *Theater, day time.Time) (*TheaterStats, error) {
	day = DateOnlyUTCTime(day)
	key := dailyStatsKey(theater.ID, day)

	var cached *TheaterStats
	exists, err := config.GetRedisObject(key, &cached)
	if err == nil && exists && cached != nil {
		return cached, nil
	}

	start, end := dailyStatsWindow(day)
	stats, err := ComputeTheaterStats(ctx, theater, start, end)
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(key, stats, utils.GetCacheLifespan())
	return stats, nil
}

// InvalidateDailyStats drops the cached rollup for the order's day. Best
// effort: losing the delete only costs a stale read until the key expires.
func InvalidateDailyStats(theaterId string, day time.Time) {
	_ = config.RemoveRedisKey(dailyStatsKey(theaterId, DateOnlyUTCTime(day)))
}

// ComputeGlobalStats rolls up every active tenant. One tenant failing never
// fails the rollup; it is reported in Failed and logged.
func ComputeGlobalStats(ctx context.Context, start time.Time, end time.Time) (*GlobalStats, error) {
	logger := config.GetLogger()

	// the scan crosses tenant boundaries on purpose
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	theaters, err := GetAllTheaters(ctx)
	if err != nil {
		return nil, err
	}

	global := &GlobalStats{
		Start:    start,
		End:      end,
		BySource: map[string]*SourceBucket{},
	}
	for _, theater := range theaters {
		stats, err := ComputeTheaterStats(ctx, theater, start, end)
		if err != nil {
			config.LogError(logger, statsModule, "ComputeGlobalStats", "theater scan failed", theater.ID, err)
			global.Failed = append(global.Failed, theater.ID)
			continue
		}
		global.Theaters = append(global.Theaters, stats)
		global.TotalOrders += stats.TotalOrders
		global.TotalAmount = global.TotalAmount.Add(stats.TotalAmount)
		global.CancelledOrders += stats.CancelledOrders
		global.CancelledAmount = global.CancelledAmount.Add(stats.CancelledAmount)
		for key, b := range stats.BySource {
			g := bucket(global.BySource, key)
			g.Count += b.Count
			g.Amount = g.Amount.Add(b.Amount)
		}
	}
	return global, nil
}
