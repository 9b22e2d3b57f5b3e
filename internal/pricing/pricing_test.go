package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
)

func money(t *testing.T, raw string) *decimal.Decimal {
	t.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("bad test amount %q: %v", raw, err)
	}
	return &value
}

func item(t *testing.T, salePrice, costPrice string, qty int) domain.SaleLineItem {
	t.Helper()
	return domain.SaleLineItem{
		ProductID: "prod-test",
		Quantity:  qty,
		SalePrice: money(t, salePrice),
		CostPrice: money(t, costPrice),
	}
}

func TestParseMoneyRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "  ", "abc", "12.3.4", "-5"} {
		if _, err := ParseMoney(raw); !errors.Is(err, store.ErrInvalidAmount) {
			t.Fatalf("ParseMoney(%q): expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestParseOptionalMoneyEmptyIsAbsent(t *testing.T) {
	value, err := ParseOptionalMoney("")
	if err != nil || value != nil {
		t.Fatalf("expected nil value and nil error, got %v, %v", value, err)
	}
}

func TestSummarizePercentageOrdering(t *testing.T) {
	discount := money(t, "10")
	tax := money(t, "10")
	shipping := money(t, "5")
	sale := domain.Sale{
		LineItems:     []domain.SaleLineItem{item(t, "100", "60", 1)},
		DiscountType:  domain.DeductionPercentage,
		DiscountValue: discount,
		TaxType:       domain.DeductionPercentage,
		TaxValue:      tax,
		Shipping:      shipping,
	}

	summary := Summarize(sale)
	if !summary.Subtotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("subtotal: got %s, want 100", summary.Subtotal)
	}
	if !summary.DiscountDeduction.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("discount: got %s, want 10", summary.DiscountDeduction)
	}
	// Tax applies to the post-discount base of 90, not the raw subtotal.
	if !summary.TaxDeduction.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("tax: got %s, want 9", summary.TaxDeduction)
	}
	if !summary.Total.Equal(decimal.NewFromInt(104)) {
		t.Fatalf("total: got %s, want 104", summary.Total)
	}
}

func TestSummarizeFlatDeductions(t *testing.T) {
	discount := money(t, "5")
	shipping := money(t, "2")
	sale := domain.Sale{
		LineItems:     []domain.SaleLineItem{item(t, "25", "20", 2)},
		DiscountType:  domain.DeductionFlat,
		DiscountValue: discount,
		Shipping:      shipping,
	}

	summary := Summarize(sale)
	if !summary.Total.Equal(decimal.NewFromInt(47)) {
		t.Fatalf("total: got %s, want 47", summary.Total)
	}
}

func TestSummarizeMissingValuesAreZero(t *testing.T) {
	sale := domain.Sale{LineItems: []domain.SaleLineItem{item(t, "10", "7", 3)}}

	summary := Summarize(sale)
	if !summary.DiscountDeduction.IsZero() || !summary.TaxDeduction.IsZero() || !summary.Shipping.IsZero() {
		t.Fatalf("expected zero deductions, got %+v", summary)
	}
	if !summary.Total.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("total: got %s, want 30", summary.Total)
	}
}

func TestProfitRoundsPerLine(t *testing.T) {
	items := []domain.SaleLineItem{item(t, "10.005", "9.001", 3)}

	profit := Profit(items)
	want := money(t, "3.012")
	if !profit.Equal(*want) {
		t.Fatalf("profit: got %s, want %s", profit, want)
	}
}

func TestNilPricesContributeZero(t *testing.T) {
	sale := domain.Sale{LineItems: []domain.SaleLineItem{
		{ProductID: "prod-a", Quantity: 2, SalePrice: money(t, "10"), CostPrice: money(t, "6")},
		{ProductID: "prod-b", Quantity: 5},
	}}

	summary := Summarize(sale)
	if !summary.Subtotal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("subtotal: got %s, want 20", summary.Subtotal)
	}
	if !summary.Profit.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("profit: got %s, want 8", summary.Profit)
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	discount := money(t, "12.5")
	tax := money(t, "7.25")
	sale := domain.Sale{
		LineItems: []domain.SaleLineItem{
			item(t, "19.999", "12.345", 4),
			item(t, "3.5", "2.25", 10),
		},
		DiscountType:  domain.DeductionPercentage,
		DiscountValue: discount,
		TaxType:       domain.DeductionPercentage,
		TaxValue:      tax,
	}

	first := Summarize(sale)
	second := Summarize(sale)
	if !first.Total.Equal(second.Total) || !first.Profit.Equal(second.Profit) {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
}
