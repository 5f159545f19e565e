// Package pricing holds the single order/cart totals formula.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(50)
	// ShippingFlatFee is charged when the subtotal does not exceed the threshold.
	ShippingFlatFee = decimal.NewFromInt(10)
	// TaxRate is applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.10")
	// Tolerance is the largest accepted gap between a client-declared total
	// and the computed one.
	Tolerance = decimal.RequireFromString("0.01")
)

// ErrTotalMismatch is returned when a declared total differs from the computed
// total by more than Tolerance.
var ErrTotalMismatch = apperr.BadRequest("Total amount does not match calculated total")

// Line is a single priced line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Summary is the result of pricing a set of lines.
type Summary struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// Calculate returns subtotal, shipping, tax and total for the given lines.
// The threshold and tax use the exact subtotal; reported values are rounded
// to cents.
func Calculate(lines []Line) Summary {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}

	shipping := ShippingFlatFee
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	rounded := subtotal.Round(2)

	return Summary{
		Subtotal:  rounded,
		Shipping:  shipping,
		Tax:       tax,
		Total:     rounded.Add(shipping).Add(tax),
		ItemCount: count,
	}
}

// VerifyTotal checks a client-declared total against the computed summary.
func VerifyTotal(s Summary, declared decimal.Decimal) error {
	if s.Total.Sub(declared).Abs().GreaterThan(Tolerance) {
		return ErrTotalMismatch
	}
	return nil
}
