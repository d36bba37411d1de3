package ledger

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// CumulativeTotals returns, for every situation, the running sum of
// AmountAfterDeductions within its chantier. Each chantier is walked in
// (year, month, sequence) order and starts from zero; labels without a
// sequence number are walked last.
func CumulativeTotals(situations []Situation, extract SequenceExtractor) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal, len(situations))

	groups := make(map[int64][]Situation)
	for _, s := range situations {
		groups[s.ChantierID] = append(groups[s.ChantierID], s)
	}

	for _, group := range groups {
		slices.SortStableFunc(group, func(a, b Situation) int {
			if c := cmp.Compare(a.Year, b.Year); c != 0 {
				return c
			}
			if c := cmp.Compare(a.Month, b.Month); c != 0 {
				return c
			}
			return compareSequence(extract, a.SequenceLabel, b.SequenceLabel)
		})
		running := decimal.Zero
		for _, s := range group {
			running = running.Add(s.AmountAfterDeductions)
			totals[s.ID] = running
		}
	}
	return totals
}
