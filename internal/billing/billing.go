// Package billing derives the bill breakdown for a receipt: total, inclusive
// VAT split and the paid/change/balance position. All arithmetic is decimal;
// rounding to two places happens only at presentation time.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/mkamau/receiptgen/internal/domain"
)

// vatDivisor backs out the net amount from a VAT-inclusive total at the
// fixed 16% rate.
var vatDivisor = decimal.RequireFromString("1.16")

// Breakdown is the computed money position of one receipt.
type Breakdown struct {
	ItemsTotal decimal.Decimal
	BillTotal  decimal.Decimal
	Net        decimal.Decimal
	VAT        decimal.Decimal
	Paid       decimal.Decimal
	Change     decimal.Decimal
	BalanceDue decimal.Decimal
	VATEnabled bool
}

// Compute derives the breakdown for a transaction. paid is the amount
// actually received via the provider; items must be non-empty (a synthetic
// payment item always exists, see domain.EnsureLineItems). When the items
// sum to zero or negative the raw paid amount becomes the bill total, which
// protects against a business entering items that cancel out.
//
// Exactly one of Change and BalanceDue is positive, unless paid equals the
// bill total in which case both are zero.
func Compute(paid decimal.Decimal, items []domain.LineItem, vatEnabled bool) Breakdown {
	itemsTotal := decimal.Zero
	for _, it := range items {
		itemsTotal = itemsTotal.Add(it.Cost)
	}

	billTotal := itemsTotal
	if billTotal.Sign() <= 0 {
		billTotal = paid
	}

	b := Breakdown{
		ItemsTotal: itemsTotal,
		BillTotal:  billTotal,
		Net:        billTotal,
		VAT:        decimal.Zero,
		Paid:       paid,
		Change:     decimal.Zero,
		BalanceDue: decimal.Zero,
		VATEnabled: vatEnabled,
	}

	if vatEnabled {
		b.Net = billTotal.Div(vatDivisor)
		b.VAT = billTotal.Sub(b.Net)
	}

	switch diff := paid.Sub(billTotal); diff.Sign() {
	case 1:
		b.Change = diff
	case -1:
		b.BalanceDue = diff.Neg()
	}

	return b
}
