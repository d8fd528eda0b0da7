package models

import (
	"context"
	"errors"
	"time"

	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const orderModule = "order"

// Order is the tenant-scoped sales document. Pricing and stock figures are
// snapshotted at creation; later product or combo edits never change them.
type Order struct {
	ID          int    `gorm:"primary_key" json:"id"`
	TheaterId   string `gorm:"size:36;index;not null" json:"theater_id"`
	OrderNumber string `gorm:"size:16;index;not null" json:"order_number"`
	SequenceNo  int64  `gorm:"index;not null" json:"sequence_no"`

	Source    OrderSource `gorm:"size:16;not null" json:"source"`
	OrderType string      `gorm:"size:32;default:null" json:"order_type"`

	CustomerName  string `gorm:"size:255;default:null" json:"customer_name"`
	CustomerPhone string `gorm:"size:32;default:null" json:"customer_phone"`
	CustomerEmail string `gorm:"size:255;default:null" json:"customer_email"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"subtotal"`
	TotalDiscount  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_discount"`
	TotalTax       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_tax"`
	Cgst           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"cgst"`
	Sgst           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"sgst"`
	DeliveryCharge decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"delivery_charge"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"grand_total"`
	Currency       string          `gorm:"size:8;default:'INR'" json:"currency"`

	PaymentMethod PaymentMethod `gorm:"size:16;not null" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"size:16;not null" json:"payment_status"`
	Status        OrderStatus   `gorm:"size:16;index;not null" json:"status"`

	StaffId   int    `gorm:"default:0" json:"staff_id"`
	StaffName string `gorm:"size:255;default:null" json:"staff_name"`

	// StockRecorded is the intended accounting state; StockSynced reports
	// whether the ledger writes actually landed. The reconciler converges
	// the two.
	StockRecorded bool `gorm:"not null;default:false" json:"stock_recorded"`
	StockSynced   bool `gorm:"not null;default:true" json:"stock_synced"`

	Items []OrderItem `gorm:"foreignKey:OrderId" json:"items"`

	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

// OrderItem is one expanded line. Combo lines are stored per component for
// stock accounting; the first component of each combo carries the combo's
// pricing so totals never double-count.
type OrderItem struct {
	ID        int    `gorm:"primary_key" json:"id"`
	OrderId   int    `gorm:"index;not null" json:"order_id"`
	TheaterId string `gorm:"size:36;index;not null" json:"theater_id"`
	ProductId int    `gorm:"not null" json:"product_id"`

	ProductName  string `gorm:"size:255;not null" json:"product_name"`
	VariantLabel string `gorm:"size:64;default:null" json:"variant_label"`

	// Quantity counts sellable items of the underlying product.
	Quantity int64 `gorm:"not null" json:"quantity"`
	NoQty    int   `gorm:"not null;default:1" json:"no_qty"`

	StockQuantityConsumed decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"stock_quantity_consumed"`
	StockUnit             string          `gorm:"size:16;default:null" json:"stock_unit"`

	UnitPrice          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TaxRate            decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	GstType            GstType         `gorm:"size:8;default:'INCLUDE'" json:"gst_type"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"discount_percentage"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"line_subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"line_discount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"line_tax"`
	Total          decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"line_total"`

	IsFromCombo          bool   `gorm:"not null;default:false" json:"is_from_combo"`
	ComboId              *int   `json:"combo_id"`
	ComboName            string `gorm:"size:255;default:null" json:"combo_name"`
	ComboQuantity        int64  `gorm:"default:0" json:"combo_quantity"`
	ComboProductQuantity int    `gorm:"default:0" json:"combo_product_quantity"`
	PriceCarrier         bool   `gorm:"not null;default:true" json:"price_carrier"`

	Cancelled   bool       `gorm:"not null;default:false" json:"cancelled"`
	CancelledAt *time.Time `json:"cancelled_at"`

	// StockRestored marks that this line's consumption has been credited
	// back; the reconciler uses it to replay missed restorations.
	StockRestored bool `gorm:"not null;default:false" json:"stock_restored"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrderLine struct {
	ProductId *int  `json:"product_id"`
	ComboId   *int  `json:"combo_id"`
	Quantity  int64 `json:"quantity" binding:"required"`
}

type NewOrder struct {
	Lines []NewOrderLine `json:"lines" binding:"required"`

	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`

	Source    string `json:"source"`
	OrderType string `json:"order_type"`

	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	// Total, when positive, is trusted over the recomputed sum.
	Total          *decimal.Decimal `json:"total"`
	DeliveryCharge decimal.Decimal  `json:"delivery_charge"`
}

// expandedLine is an order line after combo expansion, before persistence.
type expandedLine struct {
	product *Product
	item    OrderItem
}

func expandOrderLines(ctx context.Context, theaterId string, lines []NewOrderLine) ([]expandedLine, error) {
	var expanded []expandedLine
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, utils.NewError(utils.ErrInvalidInput, "line quantity must be positive")
		}
		switch {
		case line.ProductId != nil:
			product, err := utils.FetchModel[Product](ctx, theaterId, *line.ProductId)
			if err != nil {
				return nil, utils.NewError(utils.ErrNotFound, "product %d not found", *line.ProductId)
			}
			expanded = append(expanded, expandedLine{
				product: product,
				item: OrderItem{
					TheaterId:          theaterId,
					ProductId:          product.ID,
					ProductName:        product.Name,
					VariantLabel:       product.VariantLabel,
					Quantity:           line.Quantity,
					NoQty:              product.NoQty,
					UnitPrice:          product.EffectiveUnitPrice(),
					TaxRate:            product.TaxRate,
					GstType:            product.GstType,
					DiscountPercentage: product.DiscountPercentage,
					PriceCarrier:       true,
				},
			})
		case line.ComboId != nil:
			combo, err := utils.FetchModel[ComboOffer](ctx, theaterId, *line.ComboId, "Items", "Items.Product")
			if err != nil {
				return nil, utils.NewError(utils.ErrNotFound, "combo %d not found", *line.ComboId)
			}
			if len(combo.Items) == 0 {
				return nil, utils.NewError(utils.ErrInvalidInput, "combo %q has no components", combo.Name)
			}
			for i, component := range combo.Items {
				if component.Product == nil {
					return nil, utils.NewError(utils.ErrNotFound, "combo %q references missing product %d", combo.Name, component.ProductId)
				}
				comboId := combo.ID
				item := OrderItem{
					TheaterId:            theaterId,
					ProductId:            component.ProductId,
					ProductName:          component.Product.Name,
					VariantLabel:         component.Product.VariantLabel,
					Quantity:             line.Quantity * int64(component.QuantityPerCombo),
					NoQty:                component.Product.NoQty,
					IsFromCombo:          true,
					ComboId:              &comboId,
					ComboName:            combo.Name,
					ComboQuantity:        line.Quantity,
					ComboProductQuantity: component.QuantityPerCombo,
					PriceCarrier:         i == 0,
				}
				if i == 0 {
					// combo is priced once, on its first component line
					item.UnitPrice = combo.PriceOverride
					item.TaxRate = combo.TaxRate
					item.GstType = combo.GstType
				}
				expanded = append(expanded, expandedLine{product: component.Product, item: item})
			}
		default:
			return nil, utils.NewError(utils.ErrInvalidInput, "line must reference a product or a combo")
		}
	}
	if len(expanded) == 0 {
		return nil, utils.NewError(utils.ErrInvalidInput, "order has no lines")
	}
	return expanded, nil
}

// validateStock checks every expanded line against today's cafe balance and
// fills in the consumption snapshot the line will deduct if confirmed.
func validateStock(tx *gorm.DB, theaterId string, expanded []expandedLine, orderDate time.Time) error {
	logger := config.GetLogger()
	for i := range expanded {
		line := &expanded[i]
		product := line.product

		if !product.StockTracked() {
			line.item.StockUnit = UnitNos
			continue
		}

		ledger, err := GetOrCreateCafeLedger(tx, theaterId, product.ID, orderDate.Year(), int(orderDate.Month()))
		if err != nil {
			return err
		}
		unit := ledger.CurrentUnit()

		perItem := StockConsumption(product, unit, 1)
		required := StockConsumption(product, unit, line.item.Quantity)
		for _, w := range required.Warnings {
			config.LogWarn(logger, orderModule, "validateStock", w, product.ID)
		}
		line.item.StockQuantityConsumed = required.Amount
		line.item.StockUnit = required.Unit

		if isFreshCafeLedger(ledger) {
			continue
		}
		available := cafeBalanceOn(ledger, orderDate)
		if available.GreaterThanOrEqual(required.Amount) {
			continue
		}

		maxOrderable := int64(0)
		if perItem.Amount.IsPositive() {
			maxOrderable = available.Div(perItem.Amount).IntPart()
		}
		return utils.NewInsufficientStockError(product.Name, required.Amount, available, maxOrderable)
	}
	return nil
}

// priceOrder computes line and order totals. callerTotal, when positive,
// wins over the computed sum; deliveryCharge is added either way.
func priceOrder(order *Order, callerTotal *decimal.Decimal, deliveryCharge decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	var subtotal, discount, tax, total decimal.Decimal

	for i := range order.Items {
		item := &order.Items[i]
		if !item.PriceCarrier || item.Cancelled {
			continue
		}
		qty := decimal.NewFromInt(item.Quantity)
		if item.IsFromCombo {
			qty = decimal.NewFromInt(item.ComboQuantity)
		}
		item.Subtotal = item.UnitPrice.Mul(qty).Round(2)
		item.DiscountAmount = item.Subtotal.Mul(item.DiscountPercentage).Div(hundred).Round(2)
		afterDiscount := item.Subtotal.Sub(item.DiscountAmount)
		if item.GstType == GstTypeExclude {
			item.TaxAmount = afterDiscount.Mul(item.TaxRate).Div(hundred).Round(2)
			item.Total = afterDiscount.Add(item.TaxAmount)
		} else {
			item.TaxAmount = afterDiscount.Mul(item.TaxRate).Div(hundred.Add(item.TaxRate)).Round(2)
			item.Total = afterDiscount
		}

		subtotal = subtotal.Add(item.Subtotal)
		discount = discount.Add(item.DiscountAmount)
		tax = tax.Add(item.TaxAmount)
		total = total.Add(item.Total)
	}

	order.Subtotal = subtotal
	order.TotalDiscount = discount
	order.TotalTax = tax
	order.Cgst = tax.Div(decimal.NewFromInt(2)).Round(2)
	order.Sgst = order.TotalTax.Sub(order.Cgst)
	order.DeliveryCharge = deliveryCharge

	if callerTotal != nil && callerTotal.IsPositive() {
		total = callerTotal.Round(2)
	}
	order.GrandTotal = total.Add(deliveryCharge)
}

// CreateOrder runs the whole commit pipeline: expand, validate, price,
// number, persist, deduct stock, enqueue dispatch. Order creates are
// serialized per tenant so numbering stays gap-free.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	logger := config.GetLogger()

	theater, err := GetTheaterById(ctx, theaterId)
	if err != nil {
		return nil, err
	}

	lock, err := utils.TheaterLock(ctx, theaterId, "order", orderModule, "CreateOrder")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTheaterLock(ctx, lock)

	expanded, err := expandOrderLines(ctx, theaterId, input.Lines)
	if err != nil {
		return nil, err
	}

	staffId, _ := utils.GetStaffIdFromContext(ctx)
	staffName, _ := utils.GetStaffNameFromContext(ctx)

	source := CanonicalSource(input.Source)
	order := Order{
		TheaterId:     theaterId,
		Source:        source,
		OrderType:     input.OrderType,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		CustomerEmail: input.CustomerEmail,
		Currency:      "INR",
		PaymentMethod: input.PaymentMethod,
		StaffId:       staffId,
		StaffName:     staffName,
	}

	// counter channels paying at the till confirm immediately
	if source.IsPosRoute() && IsImmediateCashMethod(input.PaymentMethod) {
		order.Status = OrderStatusConfirmed
		order.PaymentStatus = PaymentStatusCompleted
	} else {
		order.Status = OrderStatusPending
		order.PaymentStatus = input.PaymentStatus
		if order.PaymentStatus == "" {
			order.PaymentStatus = PaymentStatusPending
		}
	}
	deductNow := order.Status.IsConfirmedFamily() &&
		order.PaymentStatus != PaymentStatusPending && order.PaymentStatus != PaymentStatusFailed
	order.StockRecorded = deductNow
	order.StockSynced = true

	orderDate := DateOnlyUTCTime(time.Now())
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createOrderTx(tx, theater, &order, expanded, input, orderDate, correlationId, func() (int64, error) {
			return utils.GetSequence[Order](ctx, theaterId)
		})
	})
	if err != nil {
		// a number issued for a row that never landed would leave a hole in
		// the sequence; hand it back while the tenant lock is still held
		if order.SequenceNo > 0 {
			if relErr := utils.ReleaseSequence[Order](ctx, theaterId, order.SequenceNo); relErr != nil {
				config.LogError(logger, orderModule, "CreateOrder", "sequence release failed", order.OrderNumber, relErr)
			}
		}
		return nil, err
	}
	InvalidateDailyStats(theaterId, order.CreatedAt)
	return &order, nil
}

// createOrderTx is the inside-transaction half of the pipeline. The sequence
// number is allocated only after stock validation passes, so a rejected
// create never consumes one.
func createOrderTx(tx *gorm.DB, theater *Theater, order *Order, expanded []expandedLine, input *NewOrder, orderDate time.Time, correlationId string, nextSeq func() (int64, error)) error {
	logger := config.GetLogger()

	if err := validateStock(tx, theater.ID, expanded, orderDate); err != nil {
		return err
	}

	seqNo, err := nextSeq()
	if err != nil {
		return err
	}
	order.SequenceNo = seqNo
	order.OrderNumber = theater.OrderNumberPrefix() + utils.ZeroPad(seqNo, 4)

	for _, line := range expanded {
		order.Items = append(order.Items, line.item)
	}
	priceOrder(order, input.Total, input.DeliveryCharge)

	if err := tx.Create(order).Error; err != nil {
		return err
	}

	if order.StockRecorded {
		// ledger failure must not lose the order; the reconciler
		// replays deductions for stock_synced=false rows
		tx.SavePoint("stock_deduct")
		if err := RecordOrderStock(tx, order, orderDate); err != nil {
			tx.RollbackTo("stock_deduct")
			config.LogError(logger, orderModule, "CreateOrder", "stock deduction failed, order kept", order.OrderNumber, err)
			if err := tx.Model(order).Update("stock_synced", false).Error; err != nil {
				return err
			}
			order.StockSynced = false
		}
	}

	return EnqueueOrderEvent(tx, order, theater.Name, OrderEventCreated, correlationId)
}

/* read path */

type OrderFilter struct {
	Status        OrderStatus   `json:"status"`
	Source        string        `json:"source"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	From          *time.Time    `json:"from"`
	To            *time.Time    `json:"to"`
	Page          int           `json:"page"`
	PageSize      int           `json:"page_size"`
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	return utils.FetchModel[Order](ctx, theaterId, id, "Items")
}

func GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).Preload("Items").
		Where("theater_id = ? AND order_number = ?", theaterId, orderNumber).
		First(&order).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &order, nil
}

func ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, 0, errors.New("theater id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Order{}).Where("theater_id = ?", theaterId)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", CanonicalSource(filter.Source))
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = config.SearchLimit
	}

	var orders []*Order
	err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
