package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceOrderGstInclude(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{PriceCarrier: true, Quantity: 2, UnitPrice: dec("120"), TaxRate: dec("12"), GstType: GstTypeInclude},
	}}
	priceOrder(order, nil, decimal.Zero)

	decEq(t, order.Subtotal, "240")
	decEq(t, order.TotalDiscount, "0")
	// inclusive tax is carved out of the price, never added on top
	decEq(t, order.TotalTax, "25.71")
	decEq(t, order.GrandTotal, "240")
	if !order.Cgst.Add(order.Sgst).Equal(order.TotalTax) {
		t.Fatalf("cgst %s + sgst %s != tax %s", order.Cgst, order.Sgst, order.TotalTax)
	}
}

func TestPriceOrderGstExclude(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{PriceCarrier: true, Quantity: 1, UnitPrice: dec("100"), TaxRate: dec("5"),
			GstType: GstTypeExclude, DiscountPercentage: dec("10")},
	}}
	priceOrder(order, nil, decimal.Zero)

	decEq(t, order.Subtotal, "100")
	decEq(t, order.TotalDiscount, "10")
	decEq(t, order.TotalTax, "4.5")
	decEq(t, order.GrandTotal, "94.5")
}

func TestPriceOrderComboPricedOnce(t *testing.T) {
	comboId := 3
	order := &Order{Items: []OrderItem{
		// carrier holds the combo price; quantity counts components, combo
		// quantity counts combos
		{PriceCarrier: true, IsFromCombo: true, ComboId: &comboId, ComboQuantity: 2,
			Quantity: 4, UnitPrice: dec("300"), TaxRate: dec("5"), GstType: GstTypeInclude},
		{PriceCarrier: false, IsFromCombo: true, ComboId: &comboId, ComboQuantity: 2,
			Quantity: 2, UnitPrice: dec("120")},
	}}
	priceOrder(order, nil, decimal.Zero)

	decEq(t, order.Subtotal, "600")
	decEq(t, order.GrandTotal, "600")
	decEq(t, order.Items[1].Subtotal, "0")
	decEq(t, order.Items[1].Total, "0")
}

func TestPriceOrderCallerTotalWins(t *testing.T) {
	caller := dec("555.555")
	order := &Order{Items: []OrderItem{
		{PriceCarrier: true, Quantity: 1, UnitPrice: dec("100"), GstType: GstTypeInclude},
	}}
	priceOrder(order, &caller, dec("20"))

	decEq(t, order.Subtotal, "100")
	decEq(t, order.DeliveryCharge, "20")
	decEq(t, order.GrandTotal, "575.56")
}

func TestPriceOrderIgnoresCancelledLines(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{PriceCarrier: true, Quantity: 1, UnitPrice: dec("100"), GstType: GstTypeInclude},
		{PriceCarrier: true, Cancelled: true, Quantity: 5, UnitPrice: dec("999"), GstType: GstTypeInclude},
	}}
	priceOrder(order, nil, decimal.Zero)

	decEq(t, order.Subtotal, "100")
	decEq(t, order.GrandTotal, "100")
}

func TestPriceOrderZeroCallerTotalIgnored(t *testing.T) {
	zero := decimal.Zero
	order := &Order{Items: []OrderItem{
		{PriceCarrier: true, Quantity: 1, UnitPrice: dec("80"), GstType: GstTypeInclude},
	}}
	priceOrder(order, &zero, decimal.Zero)
	decEq(t, order.GrandTotal, "80")
}
