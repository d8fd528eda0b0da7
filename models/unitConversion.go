package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Stock units after normalization.
const (
	UnitNos = "NOS"
	UnitMl  = "ML"
	UnitL   = "L"
	UnitG   = "G"
	UnitKg  = "KG"
)

var quantityRe = regexp.MustCompile(`^([0-9.]+)\s*([A-Za-z%]+)$`)

// ConsumptionResult is what one sold line costs the cafe ledger.
type ConsumptionResult struct {
	Amount   decimal.Decimal
	Unit     string
	Warnings []string
}

// NormalizeUnit folds the unit spellings seen in product data into the
// canonical vocabulary. Unknown units come back upper-cased as-is.
func NormalizeUnit(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	u = strings.ReplaceAll(u, ".", "")
	switch u {
	case "l", "lt", "ltr", "ltrs", "liter", "liters", "litre", "litres":
		return UnitL
	case "ml", "mls", "milli", "millilitre", "millilitres", "milliliter", "milliliters":
		return UnitMl
	case "g", "gm", "gms", "gram", "grams":
		return UnitG
	case "kg", "kgs", "kilo", "kilos", "kilogram", "kilograms":
		return UnitKg
	case "no", "nos", "num", "pc", "pcs", "piece", "pieces", "unit", "units", "":
		return UnitNos
	default:
		return strings.ToUpper(u)
	}
}

func isMassOrVolume(unit string) bool {
	switch unit {
	case UnitMl, UnitL, UnitG, UnitKg:
		return true
	}
	return false
}

// ParseQuantity extracts a magnitude and normalized unit from a free-form
// quantity string such as "750 ML" or "1kg". ok is false when the string
// does not carry a parsable number+unit pair.
func ParseQuantity(raw string) (decimal.Decimal, string, bool) {
	m := quantityRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return decimal.Zero, "", false
	}
	magnitude, err := decimal.NewFromString(m[1])
	if err != nil || !magnitude.IsPositive() {
		return decimal.Zero, "", false
	}
	return magnitude, NormalizeUnit(m[2]), true
}

// ConversionFactor returns the multiplier taking one `from` unit into the
// `to` unit. Liquid density is taken as 1, so L and KG interconvert at 1.
// ok is false for pairs with no defined conversion.
func ConversionFactor(from, to string) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	type pair struct{ from, to string }
	factors := map[pair]decimal.Decimal{
		{UnitMl, UnitL}:  decimal.NewFromFloat(0.001),
		{UnitL, UnitMl}:  decimal.NewFromInt(1000),
		{UnitG, UnitKg}:  decimal.NewFromFloat(0.001),
		{UnitKg, UnitG}:  decimal.NewFromInt(1000),
		{UnitMl, UnitKg}: decimal.NewFromFloat(0.001),
		{UnitKg, UnitMl}: decimal.NewFromInt(1000),
		{UnitL, UnitKg}:  decimal.NewFromInt(1),
		{UnitKg, UnitL}:  decimal.NewFromInt(1),
		{UnitL, UnitG}:   decimal.NewFromInt(1000),
		{UnitG, UnitL}:   decimal.NewFromFloat(0.001),
		{UnitMl, UnitG}:  decimal.NewFromInt(1),
		{UnitG, UnitMl}:  decimal.NewFromInt(1),
	}
	f, ok := factors[pair{from, to}]
	return f, ok
}

// detectQuantity resolves the product's magnitude and unit, trying the
// quantity string, then the explicit unit fields, then the variant label.
// The bool result reports whether a unit was actually found; false means
// the heuristics below get to guess.
func detectQuantity(product *Product) (decimal.Decimal, string, bool, []string) {
	var warnings []string

	if magnitude, unit, ok := ParseQuantity(product.Quantity); ok {
		return magnitude, unit, true, warnings
	}

	magnitude := decimal.NewFromInt(1)
	if product.QuantityValue != nil && product.QuantityValue.IsPositive() {
		magnitude = *product.QuantityValue
	}
	for _, raw := range []string{product.QuantityUnit, product.Unit, product.InventoryUnit} {
		if strings.TrimSpace(raw) != "" {
			return magnitude, NormalizeUnit(raw), true, warnings
		}
	}

	if m, unit, ok := ParseQuantity(product.VariantLabel); ok {
		return m, unit, true, warnings
	}

	if product.QuantityValue != nil && product.QuantityValue.IsPositive() {
		// magnitude known, unit unknown
		return magnitude, "", false, warnings
	}
	warnings = append(warnings, fmt.Sprintf("product %q has no parsable quantity, assuming 1 NOS", product.Name))
	return decimal.NewFromInt(1), UnitNos, true, warnings
}

var (
	heuristicLow  = decimal.NewFromInt(50)
	heuristicHigh = decimal.NewFromInt(2000)
)

// StockConsumption computes how much stock one order line consumes in the
// ledger's current unit. It never fails: unresolvable units degrade to
// counting pieces and every guess is reported in Warnings.
func StockConsumption(product *Product, targetUnit string, soldItemCount int64) ConsumptionResult {
	target := NormalizeUnit(targetUnit)
	magnitude, unit, unitKnown, warnings := detectQuantity(product)

	noQty := int64(product.NoQty)
	if noQty < 1 {
		noQty = 1
	}
	multiplier := decimal.NewFromInt(noQty * soldItemCount)

	if !unitKnown {
		// magnitude without a unit; guess by range when the ledger counts mass/volume
		if target == UnitKg || target == UnitL {
			switch {
			case magnitude.GreaterThanOrEqual(heuristicLow) && magnitude.LessThanOrEqual(heuristicHigh):
				warnings = append(warnings, fmt.Sprintf("product %q has magnitude %s without unit, treating as ML", product.Name, magnitude.String()))
				unit = UnitMl
			case magnitude.GreaterThan(heuristicHigh):
				warnings = append(warnings, fmt.Sprintf("product %q has magnitude %s without unit, treating as G", product.Name, magnitude.String()))
				unit = UnitG
			default:
				warnings = append(warnings, fmt.Sprintf("product %q has magnitude %s without unit, treating as %s", product.Name, magnitude.String(), target))
				unit = target
			}
		} else {
			unit = target
		}
	}

	if unit == UnitNos || target == UnitNos {
		if unit != target {
			warnings = append(warnings, fmt.Sprintf("product %q unit %s has no conversion to %s, counting pieces", product.Name, unit, target))
			return ConsumptionResult{
				Amount:   decimal.NewFromInt(noQty * soldItemCount),
				Unit:     UnitNos,
				Warnings: warnings,
			}
		}
		return ConsumptionResult{Amount: multiplier, Unit: UnitNos, Warnings: warnings}
	}

	factor, ok := ConversionFactor(unit, target)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("no conversion from %s to %s for product %q, counting pieces", unit, target, product.Name))
		return ConsumptionResult{
			Amount:   decimal.NewFromInt(noQty * soldItemCount),
			Unit:     UnitNos,
			Warnings: warnings,
		}
	}

	amount := magnitude.Mul(factor).Mul(multiplier)

	// A 750 "ML" product landing as 750 KG is a mislabeled unit, not a real
	// conversion. Retry with the milli factor when the result dwarfs the
	// plausible bound for the magnitude.
	if (target == UnitKg || target == UnitL) && factor.Equal(decimal.NewFromInt(1)) {
		bound := magnitude.Mul(decimal.NewFromFloat(0.01)).Mul(multiplier)
		if magnitude.GreaterThanOrEqual(heuristicLow) && amount.GreaterThan(bound) {
			warnings = append(warnings, fmt.Sprintf("consumption %s %s for product %q fails sanity bound, retrying with factor 0.001", amount.String(), target, product.Name))
			amount = magnitude.Mul(decimal.NewFromFloat(0.001)).Mul(multiplier)
		}
	}

	if isMassOrVolume(target) {
		amount = amount.Round(3)
	}
	return ConsumptionResult{Amount: amount, Unit: target, Warnings: warnings}
}
