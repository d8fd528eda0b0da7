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

// Product is an admin-managed catalog row. The order pipeline only reads it;
// per-order pricing and stock figures are snapshotted onto OrderItem so later
// catalog edits cannot rewrite history.
type Product struct {
	ID        int    `gorm:"primary_key" json:"id"`
	TheaterId string `gorm:"size:36;index;not null" json:"theater_id" binding:"required"`
	Name      string `gorm:"size:255;not null" json:"name" binding:"required"`

	// pricing
	BasePrice          decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"base_price"`
	SalePrice          *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"sale_price"`
	DiscountPercentage decimal.Decimal  `gorm:"type:decimal(5,2);default:0" json:"discount_percentage"`
	TaxRate            decimal.Decimal  `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	GstType            GstType          `gorm:"size:8;default:'INCLUDE'" json:"gst_type"`
	Currency           string           `gorm:"size:8;default:'INR'" json:"currency"`

	// quantity descriptor: either a free-form string ("100 ML", "1 kg") or
	// an explicit value+unit pair; the unit kernel tries both.
	Quantity      string           `gorm:"size:64;default:null" json:"quantity"`
	QuantityValue *decimal.Decimal `gorm:"type:decimal(20,3);default:null" json:"quantity_value"`
	QuantityUnit  string           `gorm:"size:16;default:null" json:"quantity_unit"`
	Unit          string           `gorm:"size:16;default:null" json:"unit"`
	InventoryUnit string           `gorm:"size:16;default:null" json:"inventory_unit"`
	VariantLabel  string           `gorm:"size:64;default:null" json:"variant_label"`

	// NoQty is how many base units make one sellable item.
	NoQty      int   `gorm:"not null;default:1" json:"no_qty"`
	TrackStock *bool `gorm:"not null;default:true" json:"track_stock"`

	// ShelfLifeDays drives the auto-expiry sweep; zero means never expires.
	ShelfLifeDays int `gorm:"not null;default:0" json:"shelf_life_days"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type NewProduct struct {
	Name               string           `json:"name" binding:"required"`
	BasePrice          decimal.Decimal  `json:"base_price" binding:"required"`
	SalePrice          *decimal.Decimal `json:"sale_price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
	GstType            GstType          `json:"gst_type"`
	Currency           string           `json:"currency"`
	Quantity           string           `json:"quantity"`
	QuantityValue      *decimal.Decimal `json:"quantity_value"`
	QuantityUnit       string           `json:"quantity_unit"`
	Unit               string           `json:"unit"`
	InventoryUnit      string           `json:"inventory_unit"`
	VariantLabel       string           `json:"variant_label"`
	NoQty              int              `json:"no_qty"`
	TrackStock         *bool            `json:"track_stock"`
	ShelfLifeDays      *int             `json:"shelf_life_days"`
}

// EffectiveUnitPrice is the sale price when set, otherwise the base price.
func (p Product) EffectiveUnitPrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.GreaterThan(decimal.Zero) {
		return *p.SalePrice
	}
	return p.BasePrice
}

// StockTracked defaults to true when the flag was never stored.
func (p Product) StockTracked() bool {
	return p.TrackStock == nil || *p.TrackStock
}

func (input *NewProduct) validate() error {
	if input.NoQty < 0 {
		return utils.NewError(utils.ErrInvalidInput, "no_qty must be >= 1")
	}
	if input.DiscountPercentage != nil &&
		(input.DiscountPercentage.IsNegative() || input.DiscountPercentage.GreaterThan(decimal.NewFromInt(100))) {
		return utils.NewError(utils.ErrInvalidInput, "discount_percentage must be within [0, 100]")
	}
	if input.TaxRate != nil &&
		(input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(100))) {
		return utils.NewError(utils.ErrInvalidInput, "tax_rate must be within [0, 100]")
	}
	if input.GstType != "" && input.GstType != GstTypeInclude && input.GstType != GstTypeExclude {
		return utils.NewError(utils.ErrInvalidInput, "gst_type must be INCLUDE or EXCLUDE")
	}
	if input.ShelfLifeDays != nil && *input.ShelfLifeDays < 0 {
		return utils.NewError(utils.ErrInvalidInput, "shelf_life_days must be >= 0")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	product := Product{
		TheaterId:     theaterId,
		Name:          input.Name,
		BasePrice:     input.BasePrice,
		SalePrice:     input.SalePrice,
		GstType:       input.GstType,
		Currency:      input.Currency,
		Quantity:      input.Quantity,
		QuantityValue: input.QuantityValue,
		QuantityUnit:  input.QuantityUnit,
		Unit:          input.Unit,
		InventoryUnit: input.InventoryUnit,
		VariantLabel:  input.VariantLabel,
		NoQty:         input.NoQty,
		TrackStock:    input.TrackStock,
	}
	if product.GstType == "" {
		product.GstType = GstTypeInclude
	}
	if product.Currency == "" {
		product.Currency = "INR"
	}
	if product.NoQty == 0 {
		product.NoQty = 1
	}
	if input.DiscountPercentage != nil {
		product.DiscountPercentage = *input.DiscountPercentage
	}
	if input.TaxRate != nil {
		product.TaxRate = *input.TaxRate
	}
	if input.ShelfLifeDays != nil && *input.ShelfLifeDays > 0 {
		product.ShelfLifeDays = *input.ShelfLifeDays
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisList[Product](theaterId)
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, theaterId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":           input.Name,
		"base_price":     input.BasePrice,
		"sale_price":     input.SalePrice,
		"gst_type":       input.GstType,
		"quantity":       input.Quantity,
		"quantity_value": input.QuantityValue,
		"quantity_unit":  input.QuantityUnit,
		"unit":           input.Unit,
		"inventory_unit": input.InventoryUnit,
		"variant_label":  input.VariantLabel,
	}
	// zero-valued patches are meaningful here; absent fields keep their value
	if input.DiscountPercentage != nil {
		updates["discount_percentage"] = *input.DiscountPercentage
	}
	if input.TaxRate != nil {
		updates["tax_rate"] = *input.TaxRate
	}
	if input.NoQty > 0 {
		updates["no_qty"] = input.NoQty
	}
	if input.TrackStock != nil {
		updates["track_stock"] = *input.TrackStock
	}
	if input.ShelfLifeDays != nil {
		updates["shelf_life_days"] = *input.ShelfLifeDays
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Product](id)
	_ = utils.RemoveRedisList[Product](theaterId)
	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	product, err := utils.FetchModel[Product](ctx, theaterId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// soft delete; ledgers and order snapshots keep referencing the id
	if err := db.WithContext(ctx).Delete(product).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Product](id)
	_ = utils.RemoveRedisList[Product](theaterId)
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	return utils.FetchModel[Product](ctx, theaterId, id)
}

func GetAllProducts(ctx context.Context) ([]*Product, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	db := config.GetDB()
	var results []*Product
	err := db.WithContext(ctx).Where("theater_id = ?", theaterId).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
