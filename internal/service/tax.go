package service

import (
	"github.com/shopspring/decimal"
)

// TaxLine is one billed line as seen by the tax calculation.
type TaxLine struct {
	LineTotal decimal.Decimal
	// TaxRate is a percentage. Zero or negative means "not configured".
	TaxRate decimal.Decimal
}

// Buyer carries the customer's GST registration; a nil *Buyer is a walk-in.
type Buyer struct {
	StateCode string
	GSTIN     string
}

// BillTotals is the computed money side of a bill.
type BillTotals struct {
	TotalAmount    decimal.Decimal
	Cgst           decimal.Decimal
	Sgst           decimal.Decimal
	Igst           decimal.Decimal
	DiscountAmount decimal.Decimal
	GrandTotal     decimal.Decimal
	IsInterState   bool
	PlaceOfSupply  string
	CompanyGstin   string
	CustomerGstin  string
}

// TaxCalculator splits GST between CGST/SGST and IGST according to where the
// buyer is registered relative to the restaurant.
type TaxCalculator struct {
	RestaurantState string
	RestaurantGSTIN string
	DefaultRate     decimal.Decimal
}

// NewTaxCalculator creates a TaxCalculator. A non-positive defaultRate falls back to 5%.
func NewTaxCalculator(restaurantState, restaurantGSTIN string, defaultRate decimal.Decimal) TaxCalculator {
	if !defaultRate.IsPositive() {
		defaultRate = decimal.NewFromInt(5)
	}
	return TaxCalculator{
		RestaurantState: restaurantState,
		RestaurantGSTIN: restaurantGSTIN,
		DefaultRate:     defaultRate,
	}
}

// Compute returns bill totals for lines. Tax is accumulated unrounded and
// rounded to two places once, so the same lines carry the same tax in either
// regime. Intra-state, CGST is half of it rounded and SGST takes the rest;
// the two differ by at most 0.01.
func (c TaxCalculator) Compute(lines []TaxLine, buyer *Buyer, discount decimal.Decimal) (BillTotals, error) {
	if discount.IsNegative() {
		return BillTotals{}, ErrInvalidDiscount
	}

	interState := buyer != nil && buyer.StateCode != "" && buyer.StateCode != c.RestaurantState

	total := decimal.Zero
	tax := decimal.Zero
	for _, l := range lines {
		rate := l.TaxRate
		if !rate.IsPositive() {
			rate = c.DefaultRate
		}
		total = total.Add(l.LineTotal)
		tax = tax.Add(l.LineTotal.Mul(rate).Div(hundred))
	}

	out := BillTotals{
		TotalAmount:    total.Round(2),
		Cgst:           decimal.Zero,
		Sgst:           decimal.Zero,
		Igst:           decimal.Zero,
		DiscountAmount: discount.Round(2),
		IsInterState:   interState,
		PlaceOfSupply:  c.RestaurantState,
		CompanyGstin:   c.RestaurantGSTIN,
	}
	if buyer != nil {
		out.CustomerGstin = buyer.GSTIN
	}

	tax = tax.Round(2)
	if interState {
		out.Igst = tax
		out.PlaceOfSupply = buyer.StateCode
	} else {
		out.Cgst = tax.Div(decimal.NewFromInt(2)).Round(2)
		out.Sgst = tax.Sub(out.Cgst)
	}

	gross := out.TotalAmount.Add(out.Cgst).Add(out.Sgst).Add(out.Igst)
	if out.DiscountAmount.GreaterThan(gross) {
		return BillTotals{}, ErrInvalidDiscount
	}
	out.GrandTotal = gross.Sub(out.DiscountAmount)
	return out, nil
}
