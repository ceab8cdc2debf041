// Package pricing derives cart totals and recurring plan figures on the
// client. The backend remains authoritative for anything it charges.
package pricing

import "math"

// CalculateLineTotals applies a percentage discount to quantity*unitPrice and
// then a percentage tax to the discounted amount.
func CalculateLineTotals(quantity, unitPrice, discountPercent, taxPercent float64) (discountAmount, taxAmount, lineTotal float64) {
	grossAmount := quantity * unitPrice
	discountAmount = grossAmount * (discountPercent / 100)
	netAmount := grossAmount - discountAmount
	taxAmount = netAmount * (taxPercent / 100)
	lineTotal = netAmount + taxAmount
	return
}

// Line is one priced cart line.
type Line struct {
	Quantity        int
	UnitPrice       float64
	DiscountPercent float64
	TaxPercent      float64
}

// Totals summarises a set of lines. Every figure is rounded to cents.
type Totals struct {
	Items    int
	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64
}

// CartTotals sums lines. Lines with a non-positive quantity are ignored.
func CartTotals(lines []Line) Totals {
	var t Totals
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		discount, tax, total := CalculateLineTotals(float64(l.Quantity), l.UnitPrice, clampPercent(l.DiscountPercent), clampPercent(l.TaxPercent))
		t.Items += l.Quantity
		t.Subtotal += float64(l.Quantity) * l.UnitPrice
		t.Discount += discount
		t.Tax += tax
		t.Total += total
	}
	t.Subtotal = Round(t.Subtotal)
	t.Discount = Round(t.Discount)
	t.Tax = Round(t.Tax)
	t.Total = Round(t.Total)
	return t
}

// Round rounds to cents, half away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
