package ledger

import (
	"slices"

	"github.com/shopspring/decimal"
)

// RowKind discriminates the rows emitted by GroupByMonth.
type RowKind string

const (
	RowSituation RowKind = "situation"
	RowInvoice   RowKind = "invoice"
	RowSubtotal  RowKind = "subtotal"
)

// MonthSubtotal closes a month bucket. CumulativeGrandTotal only carries
// situation amounts, summed from the first bucket up to this one.
type MonthSubtotal struct {
	Month                int             `json:"month"`
	Year                 int             `json:"year"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	SituationSubtotal    decimal.Decimal `json:"situation_subtotal"`
	CumulativeGrandTotal decimal.Decimal `json:"cumulative_grand_total"`
}

// MonthRow is one line of the month-grouped listing.
type MonthRow struct {
	Kind      RowKind        `json:"kind"`
	Situation *Situation     `json:"situation,omitempty"`
	Invoice   *Invoice       `json:"invoice,omitempty"`
	Subtotal  *MonthSubtotal `json:"subtotal,omitempty"`
}

type groupConfig struct {
	monthOnly bool
}

// GroupOption tunes GroupByMonth.
type GroupOption func(*groupConfig)

// WithMonthOnlyBuckets keys buckets by month number alone, merging the same
// month of different years. It reproduces the legacy recap display and should
// only be used when that parity is required.
func WithMonthOnlyBuckets() GroupOption {
	return func(c *groupConfig) { c.monthOnly = true }
}

type bucket struct {
	key        BucketKey
	situations []Situation
	invoices   []Invoice
}

// GroupByMonth buckets situations and invoices by calendar month and emits,
// per bucket in chronological order, the situations, then the invoices, then
// one subtotal row. Invoices without any date are left out.
func GroupByMonth(situations []Situation, invoices []Invoice, opts ...GroupOption) []MonthRow {
	var cfg groupConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	keyOf := func(k BucketKey) BucketKey {
		if cfg.monthOnly {
			return BucketKey{Month: k.Month}
		}
		return k
	}

	buckets := make(map[BucketKey]*bucket)
	lookup := func(k BucketKey) *bucket {
		id := keyOf(k)
		b, ok := buckets[id]
		if !ok {
			// In month-only mode the first record seen names the year.
			b = &bucket{key: k}
			buckets[id] = b
		}
		return b
	}

	for _, s := range situations {
		b := lookup(s.Bucket())
		b.situations = append(b.situations, s)
	}
	for _, inv := range invoices {
		k, ok := inv.Bucket()
		if !ok {
			continue
		}
		b := lookup(k)
		b.invoices = append(b.invoices, inv)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	slices.SortFunc(ordered, func(a, b *bucket) int {
		ka, kb := keyOf(a.key), keyOf(b.key)
		switch {
		case ka.Before(kb):
			return -1
		case kb.Before(ka):
			return 1
		}
		return 0
	})

	rows := make([]MonthRow, 0, len(situations)+len(invoices)+len(ordered))
	grand := decimal.Zero
	for _, b := range ordered {
		situationSum := decimal.Zero
		for i := range b.situations {
			s := b.situations[i]
			situationSum = situationSum.Add(s.AmountAfterDeductions)
			rows = append(rows, MonthRow{Kind: RowSituation, Situation: &s})
		}
		invoiceSum := decimal.Zero
		for i := range b.invoices {
			inv := b.invoices[i]
			invoiceSum = invoiceSum.Add(inv.AmountBeforeTax)
			rows = append(rows, MonthRow{Kind: RowInvoice, Invoice: &inv})
		}
		grand = grand.Add(situationSum)
		rows = append(rows, MonthRow{
			Kind: RowSubtotal,
			Subtotal: &MonthSubtotal{
				Month:                b.key.Month,
				Year:                 b.key.Year,
				Subtotal:             situationSum.Add(invoiceSum),
				SituationSubtotal:    situationSum,
				CumulativeGrandTotal: grand,
			},
		})
	}
	return rows
}

// DroppedInvoices counts the invoices GroupByMonth leaves out for lack of a date.
func DroppedInvoices(invoices []Invoice) int {
	n := 0
	for _, inv := range invoices {
		if _, ok := inv.Bucket(); !ok {
			n++
		}
	}
	return n
}
