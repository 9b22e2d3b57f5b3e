// Package pricing holds the money parsing and deduction arithmetic for
// sales. Everything here is pure: no storage, no context, no side effects.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
)

// ParseMoney parses a non-negative money string into a 3-decimal value.
func ParseMoney(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", store.ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", store.ErrInvalidAmount, raw)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %q", store.ErrInvalidAmount, raw)
	}
	return Round3(value), nil
}

// ParseOptionalMoney treats an empty string as absent.
func ParseOptionalMoney(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	value, err := ParseMoney(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// ParseDeductionType accepts FLAT or PERCENTAGE; empty means no deduction.
func ParseDeductionType(raw string) (domain.DeductionType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case string(domain.DeductionFlat):
		return domain.DeductionFlat, nil
	case string(domain.DeductionPercentage):
		return domain.DeductionPercentage, nil
	default:
		return "", fmt.Errorf("%w: unknown deduction type %q", store.ErrInvalidInput, raw)
	}
}

func Round3(value decimal.Decimal) decimal.Decimal {
	return value.Round(3)
}

// Subtotal sums salePrice × quantity over the line items. An item with no
// captured sale price contributes nothing.
func Subtotal(items []domain.SaleLineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.SalePrice == nil {
			continue
		}
		subtotal = subtotal.Add(item.SalePrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return Round3(subtotal)
}

// Profit sums the per-item margin. The per-unit margin is rounded to 3
// decimals before multiplying by the quantity, and the line result is rounded
// again, so each line lands on an exact 3-decimal figure before summing.
func Profit(items []domain.SaleLineItem) decimal.Decimal {
	profit := decimal.Zero
	for _, item := range items {
		if item.SalePrice == nil || item.CostPrice == nil {
			continue
		}
		perUnit := Round3(item.SalePrice.Sub(*item.CostPrice))
		profit = profit.Add(Round3(perUnit.Mul(decimal.NewFromInt(int64(item.Quantity)))))
	}
	return Round3(profit)
}

// Summarize computes the full financial summary of a sale. The order is
// fixed: the discount comes off the subtotal first, tax applies to the
// post-discount base, and shipping is added last. Shipping is never
// discounted or taxed.
func Summarize(sale domain.Sale) domain.SaleSummary {
	subtotal := Subtotal(sale.LineItems)

	discount := deduction(sale.DiscountType, sale.DiscountValue, subtotal)
	afterDiscount := subtotal.Sub(discount)

	tax := deduction(sale.TaxType, sale.TaxValue, afterDiscount)

	shipping := decimal.Zero
	if sale.Shipping != nil {
		shipping = Round3(*sale.Shipping)
	}

	total := afterDiscount.Add(tax).Add(shipping)

	return domain.SaleSummary{
		Subtotal:          subtotal,
		DiscountDeduction: discount,
		TaxDeduction:      tax,
		Shipping:          shipping,
		Total:             Round3(total),
		Profit:            Profit(sale.LineItems),
	}
}

var hundred = decimal.NewFromInt(100)

func deduction(kind domain.DeductionType, value *decimal.Decimal, base decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	switch kind {
	case domain.DeductionFlat:
		return Round3(*value)
	case domain.DeductionPercentage:
		return Round3(base.Mul(*value).Div(hundred))
	default:
		return decimal.Zero
	}
}
