package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decEq(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	w, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("bad want %q: %v", want, err)
	}
	if !got.Equal(w) {
		t.Fatalf("got %s, want %s", got.String(), want)
	}
}

func TestNormalizeUnit(t *testing.T) {
	cases := map[string]string{
		"ml": UnitMl, "ML": UnitMl, "Ml.": UnitMl,
		"l": UnitL, "ltr": UnitL, "liters": UnitL, "Litre": UnitL,
		"g": UnitG, "gm": UnitG, "grams": UnitG,
		"kg": UnitKg, "Kgs": UnitKg, "kilo": UnitKg,
		"nos": UnitNos, "pcs": UnitNos, "piece": UnitNos, "": UnitNos,
		"box": "BOX",
	}
	for in, want := range cases {
		if got := NormalizeUnit(in); got != want {
			t.Errorf("NormalizeUnit(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	m, unit, ok := ParseQuantity("750 ML")
	if !ok || unit != UnitMl {
		t.Fatalf("ParseQuantity(750 ML) = %v %q %v", m, unit, ok)
	}
	decEq(t, m, "750")

	m, unit, ok = ParseQuantity("1kg")
	if !ok || unit != UnitKg {
		t.Fatalf("ParseQuantity(1kg) = %v %q %v", m, unit, ok)
	}
	decEq(t, m, "1")

	if _, _, ok := ParseQuantity("large"); ok {
		t.Fatal("ParseQuantity(large) should not parse")
	}
	if _, _, ok := ParseQuantity(""); ok {
		t.Fatal("ParseQuantity(empty) should not parse")
	}
	if _, _, ok := ParseQuantity("0 ml"); ok {
		t.Fatal("zero magnitude should not parse")
	}
}

func TestConversionFactor(t *testing.T) {
	f, ok := ConversionFactor(UnitMl, UnitL)
	if !ok {
		t.Fatal("ML->L missing")
	}
	decEq(t, f, "0.001")

	f, ok = ConversionFactor(UnitKg, UnitG)
	if !ok {
		t.Fatal("KG->G missing")
	}
	decEq(t, f, "1000")

	f, ok = ConversionFactor(UnitL, UnitKg)
	if !ok {
		t.Fatal("L->KG missing")
	}
	decEq(t, f, "1")

	if _, ok := ConversionFactor(UnitNos, UnitKg); ok {
		t.Fatal("NOS->KG should be undefined")
	}
}

func TestStockConsumptionMlToKg(t *testing.T) {
	product := &Product{Name: "Cola", Quantity: "750 ML", NoQty: 1}
	got := StockConsumption(product, UnitKg, 2)
	decEq(t, got.Amount, "1.5")
	if got.Unit != UnitKg {
		t.Fatalf("unit = %q, want KG", got.Unit)
	}
}

func TestStockConsumptionCountUnits(t *testing.T) {
	product := &Product{Name: "Samosa", NoQty: 2}
	got := StockConsumption(product, UnitNos, 3)
	decEq(t, got.Amount, "6")
	if got.Unit != UnitNos {
		t.Fatalf("unit = %q, want NOS", got.Unit)
	}
}

func TestStockConsumptionUnitFieldFallback(t *testing.T) {
	qv := decimal.NewFromInt(200)
	product := &Product{Name: "Fries", QuantityValue: &qv, QuantityUnit: "g", NoQty: 1}
	got := StockConsumption(product, UnitKg, 5)
	decEq(t, got.Amount, "1")
}

func TestStockConsumptionVariantLabel(t *testing.T) {
	product := &Product{Name: "Popcorn", VariantLabel: "100 G", NoQty: 1}
	got := StockConsumption(product, UnitKg, 3)
	decEq(t, got.Amount, "0.3")
}

func TestStockConsumptionMissingUnitHeuristic(t *testing.T) {
	// magnitude in [50, 2000] without a unit is treated as ML
	qv := decimal.NewFromInt(500)
	product := &Product{Name: "Juice", QuantityValue: &qv, NoQty: 1}
	got := StockConsumption(product, UnitL, 2)
	decEq(t, got.Amount, "1")
	if len(got.Warnings) == 0 {
		t.Fatal("expected a heuristic warning")
	}

	// > 2000 is grams
	qv2 := decimal.NewFromInt(5000)
	product = &Product{Name: "Bulk", QuantityValue: &qv2, NoQty: 1}
	got = StockConsumption(product, UnitKg, 1)
	decEq(t, got.Amount, "5")

	// < 50 is already the target unit
	qv3 := decimal.NewFromInt(2)
	product = &Product{Name: "Tub", QuantityValue: &qv3, NoQty: 1}
	got = StockConsumption(product, UnitKg, 1)
	decEq(t, got.Amount, "2")
}

func TestStockConsumptionSanityClamp(t *testing.T) {
	// mislabeled "750 L" against a KG ledger would book 750 kg per item;
	// the clamp retries with the milli factor
	product := &Product{Name: "Cola", Quantity: "750 L", NoQty: 1}
	got := StockConsumption(product, UnitKg, 1)
	decEq(t, got.Amount, "0.75")
	if len(got.Warnings) == 0 {
		t.Fatal("expected a clamp warning")
	}
}

func TestStockConsumptionNosFallback(t *testing.T) {
	product := &Product{Name: "Voucher", Quantity: "1 BOX", NoQty: 1}
	got := StockConsumption(product, UnitKg, 4)
	decEq(t, got.Amount, "4")
	if got.Unit != UnitNos {
		t.Fatalf("unit = %q, want NOS fallback", got.Unit)
	}
	if len(got.Warnings) == 0 {
		t.Fatal("expected an unresolvable-unit warning")
	}
}

func TestStockConsumptionPure(t *testing.T) {
	product := &Product{Name: "Cola", Quantity: "750 ML", NoQty: 1}
	first := StockConsumption(product, UnitKg, 2)
	for i := 0; i < 10; i++ {
		again := StockConsumption(product, UnitKg, 2)
		if !again.Amount.Equal(first.Amount) || again.Unit != first.Unit {
			t.Fatalf("iteration %d: %s %s != %s %s", i, again.Amount, again.Unit, first.Amount, first.Unit)
		}
	}
}
