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

// ComboOffer bundles several products into one sellable line. The offer has
// its own price and tax profile; for stock accounting it is always expanded
// into its component products.
type ComboOffer struct {
	ID        int    `gorm:"primary_key" json:"id"`
	TheaterId string `gorm:"size:36;index;not null" json:"theater_id" binding:"required"`
	Name      string `gorm:"size:255;not null" json:"name" binding:"required"`

	PriceOverride decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_override"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	GstType       GstType         `gorm:"type:enum('INCLUDE','EXCLUDE');default:'INCLUDE'" json:"gst_type"`

	Active *bool `gorm:"not null;default:true" json:"active"`

	Items []ComboOfferItem `gorm:"foreignKey:ComboOfferId" json:"items"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type ComboOfferItem struct {
	ID               int    `gorm:"primary_key" json:"id"`
	ComboOfferId     int    `gorm:"index;not null" json:"combo_offer_id"`
	ProductId        int    `gorm:"not null" json:"product_id"`
	QuantityPerCombo int    `gorm:"not null;default:1" json:"quantity_per_combo"`
	Product          *Product `gorm:"foreignKey:ProductId" json:"product,omitempty"`
}

type NewComboOffer struct {
	Name          string             `json:"name" binding:"required"`
	PriceOverride decimal.Decimal    `json:"price_override" binding:"required"`
	TaxRate       *decimal.Decimal   `json:"tax_rate"`
	GstType       GstType            `json:"gst_type"`
	Items         []NewComboOfferItem `json:"items" binding:"required"`
}

type NewComboOfferItem struct {
	ProductId        int `json:"product_id" binding:"required"`
	QuantityPerCombo int `json:"quantity_per_combo"`
}

func (input *NewComboOffer) validate(ctx context.Context, theaterId string) error {
	if len(input.Items) == 0 {
		return utils.NewError(utils.ErrInvalidInput, "combo offer requires at least one component")
	}
	for _, item := range input.Items {
		if item.QuantityPerCombo < 0 {
			return utils.NewError(utils.ErrInvalidInput, "quantity_per_combo must be >= 1")
		}
		if err := utils.ValidateResourceId[Product](ctx, theaterId, item.ProductId); err != nil {
			return utils.NewError(utils.ErrNotFound, "product %d not found", item.ProductId)
		}
	}
	if input.TaxRate != nil &&
		(input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(100))) {
		return utils.NewError(utils.ErrInvalidInput, "tax_rate must be within [0, 100]")
	}
	if input.GstType != "" && input.GstType != GstTypeInclude && input.GstType != GstTypeExclude {
		return utils.NewError(utils.ErrInvalidInput, "gst_type must be INCLUDE or EXCLUDE")
	}
	return nil
}

func CreateComboOffer(ctx context.Context, input *NewComboOffer) (*ComboOffer, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	if err := input.validate(ctx, theaterId); err != nil {
		return nil, err
	}

	combo := ComboOffer{
		TheaterId:     theaterId,
		Name:          input.Name,
		PriceOverride: input.PriceOverride,
		GstType:       input.GstType,
		Active:        utils.NewTrue(),
	}
	if combo.GstType == "" {
		combo.GstType = GstTypeInclude
	}
	if input.TaxRate != nil {
		combo.TaxRate = *input.TaxRate
	}
	for _, item := range input.Items {
		qty := item.QuantityPerCombo
		if qty == 0 {
			qty = 1
		}
		combo.Items = append(combo.Items, ComboOfferItem{
			ProductId:        item.ProductId,
			QuantityPerCombo: qty,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&combo).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisList[ComboOffer](theaterId)
	return &combo, nil
}

func UpdateComboOffer(ctx context.Context, id int, input *NewComboOffer) (*ComboOffer, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	if err := input.validate(ctx, theaterId); err != nil {
		return nil, err
	}

	combo, err := utils.FetchModel[ComboOffer](ctx, theaterId, id, "Items")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	updates := map[string]interface{}{
		"name":           input.Name,
		"price_override": input.PriceOverride,
		"gst_type":       input.GstType,
	}
	if input.TaxRate != nil {
		updates["tax_rate"] = *input.TaxRate
	}
	if err := tx.Model(combo).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// components are replaced wholesale on update
	if err := tx.Where("combo_offer_id = ?", combo.ID).Delete(&ComboOfferItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	newItems := make([]ComboOfferItem, 0, len(input.Items))
	for _, item := range input.Items {
		qty := item.QuantityPerCombo
		if qty == 0 {
			qty = 1
		}
		newItems = append(newItems, ComboOfferItem{
			ComboOfferId:     combo.ID,
			ProductId:        item.ProductId,
			QuantityPerCombo: qty,
		})
	}
	if err := tx.Create(&newItems).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	combo.Items = newItems
	_ = utils.RemoveRedisItem[ComboOffer](id)
	_ = utils.RemoveRedisList[ComboOffer](theaterId)
	return combo, nil
}

func DeleteComboOffer(ctx context.Context, id int) (*ComboOffer, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	combo, err := utils.FetchModel[ComboOffer](ctx, theaterId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(combo).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[ComboOffer](id)
	_ = utils.RemoveRedisList[ComboOffer](theaterId)
	return combo, nil
}

func GetComboOffer(ctx context.Context, id int) (*ComboOffer, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	return utils.FetchModel[ComboOffer](ctx, theaterId, id, "Items", "Items.Product")
}

func GetAllComboOffers(ctx context.Context) ([]*ComboOffer, error) {
	theaterId, ok := utils.GetTheaterIdFromContext(ctx)
	if !ok || theaterId == "" {
		return nil, errors.New("theater id is required")
	}
	return utils.FetchAllModels[ComboOffer](ctx, theaterId, "Items", "Items.Product")
}
