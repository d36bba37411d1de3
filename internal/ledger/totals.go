package ledger

import "github.com/shopspring/decimal"

// Totals are the global amounts shown under the recap table.
type Totals struct {
	TotalAmountDue      decimal.Decimal `json:"total_amount_due"`
	TotalAmountReceived decimal.Decimal `json:"total_amount_received"`
	TotalVariance       decimal.Decimal `json:"total_variance"`
}

// Consistent reports whether TotalVariance equals received minus due.
func (t Totals) Consistent() bool {
	return t.TotalVariance.Equal(t.TotalAmountReceived.Sub(t.TotalAmountDue))
}

func (t Totals) add(due, received decimal.Decimal) Totals {
	return Totals{
		TotalAmountDue:      t.TotalAmountDue.Add(due),
		TotalAmountReceived: t.TotalAmountReceived.Add(received),
		TotalVariance:       t.TotalVariance.Add(received.Sub(due)),
	}
}

// GlobalTotals reduces situations and invoices into due, received and
// variance totals. A missing received amount counts as zero, and an invoice
// counts as received in full only once it is paid.
func GlobalTotals(situations []Situation, invoices []Invoice) Totals {
	var fromSituations Totals
	for _, s := range situations {
		fromSituations = fromSituations.add(s.AmountAfterDeductions, orZero(s.AmountReceived))
	}
	var fromInvoices Totals
	for _, inv := range invoices {
		fromInvoices = fromInvoices.add(inv.AmountBeforeTax, inv.Received())
	}
	return Totals{
		TotalAmountDue:      fromSituations.TotalAmountDue.Add(fromInvoices.TotalAmountDue),
		TotalAmountReceived: fromSituations.TotalAmountReceived.Add(fromInvoices.TotalAmountReceived),
		TotalVariance:       fromSituations.TotalVariance.Add(fromInvoices.TotalVariance),
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
