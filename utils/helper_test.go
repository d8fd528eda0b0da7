package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestZeroPad(t *testing.T) {
	if got := ZeroPad(21, 4); got != "0021" {
		t.Fatalf("ZeroPad(21, 4) = %q", got)
	}
	if got := ZeroPad(12345, 4); got != "12345" {
		t.Fatalf("counts above the width must widen, got %q", got)
	}
	if got := ZeroPad(0, 4); got != "0000" {
		t.Fatalf("ZeroPad(0, 4) = %q", got)
	}
}

func TestPhonesMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"+91 98765 43210", "9876543210", true},
		{"09876543210", "91-98765-43210", true},
		{"9876543210", "9876543211", false},
		{"12345", "12345", true},
		{"12345", "12346", false},
		{"", "", false},
		{"", "9876543210", false},
	}
	for _, c := range cases {
		if got := PhonesMatch(c.a, c.b); got != c.want {
			t.Errorf("PhonesMatch(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestParseBoolLoose(t *testing.T) {
	trues := []string{"true", "TRUE", "1", "yes", "on", " y "}
	for _, v := range trues {
		if !ParseBoolLoose(v, false) {
			t.Errorf("ParseBoolLoose(%q) should be true", v)
		}
	}
	falses := []string{"false", "0", "no", "off", "N"}
	for _, v := range falses {
		if ParseBoolLoose(v, true) {
			t.Errorf("ParseBoolLoose(%q) should be false", v)
		}
	}
	if !ParseBoolLoose("", true) || ParseBoolLoose("maybe", false) {
		t.Fatal("unparsable values must fall back to the default")
	}
}

func TestDateOnlyUTC(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 01:30 IST is still the previous day in UTC
	local := time.Date(2026, time.March, 5, 1, 30, 0, 0, ist)
	got := DateOnlyUTC(local)
	want := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DateOnlyUTC = %s, want %s", got, want)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewError(ErrInvalidState, "order %s is cancelled", "GU0001")
	if KindOf(err) != ErrInvalidState {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if !IsKind(err, ErrInvalidState) || IsKind(err, ErrNotFound) {
		t.Fatal("IsKind mismatch")
	}
	if err.Error() != "order GU0001 is cancelled" {
		t.Fatalf("message = %q", err.Error())
	}

	if KindOf(ErrorRecordNotFound) != ErrNotFound {
		t.Fatal("legacy not-found error must classify as NOT_FOUND")
	}
	if KindOf(errors.New("boom")) != ErrInternal {
		t.Fatal("plain errors classify as INTERNAL")
	}
	if KindOf(nil) != "" {
		t.Fatal("nil has no kind")
	}
}

func TestInsufficientStockError(t *testing.T) {
	err := NewInsufficientStockError("Cola", decimal.RequireFromString("1.5"), decimal.RequireFromString("0.75"), 1)
	if KindOf(err) != ErrInsufficientStock {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if err.ProductName != "Cola" || err.MaxOrderable != 1 {
		t.Fatalf("shortfall details lost: %+v", err)
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("must unwrap to AppError")
	}
}
