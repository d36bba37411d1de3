package ledger

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SupplierPayment is one amount owed to a supplier, usually against a bon de
// commande. AmountPaid is null until a payment is recorded.
type SupplierPayment struct {
	ID            int64               `json:"id"`
	SupplierID    int64               `json:"supplier_id"`
	SupplierName  string              `json:"supplier_name"`
	ChantierID    int64               `json:"chantier_id"`
	ChantierName  string              `json:"chantier_name"`
	PurchaseOrder string              `json:"purchase_order"`
	AmountDue     decimal.Decimal     `json:"amount_due"`
	AmountPaid    decimal.NullDecimal `json:"amount_paid"`
	DueDate       time.Time           `json:"due_date"`
	DatePaid      time.Time           `json:"date_paid"`
}

// Late reports whether the payment was made after its due date, or is still
// unpaid at asOf while past due.
func (p SupplierPayment) Late(asOf time.Time) bool {
	if p.DueDate.IsZero() {
		return false
	}
	if !p.DatePaid.IsZero() {
		days, _ := DelayDays(p.DueDate, p.DatePaid)
		return days > 0
	}
	if p.AmountPaid.Valid && p.AmountPaid.Decimal.GreaterThanOrEqual(p.AmountDue) {
		return false
	}
	days, ok := DelayDays(p.DueDate, asOf)
	return ok && days > 0
}

// SupplierRow is a supplier payment with its display fields.
type SupplierRow struct {
	SupplierPayment
	Delay    string `json:"delay"`
	Variance string `json:"variance"`
}

// SupplierBalance aggregates the payments owed to one supplier.
type SupplierBalance struct {
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	TotalDue     decimal.Decimal `json:"total_due"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Payments     int             `json:"payments"`
	LateCount    int             `json:"late_count"`
}

// SupplierRows sorts payments by supplier name (French collation), then due
// date, and attaches the delay and variance labels.
func SupplierRows(payments []SupplierPayment) []SupplierRow {
	return SupplierRowsIn(DefaultLocale, payments)
}

// SupplierRowsIn is SupplierRows with an explicit collation locale.
func SupplierRowsIn(tag language.Tag, payments []SupplierPayment) []SupplierRow {
	sorted := slices.Clone(payments)
	col := collate.New(tag)
	slices.SortStableFunc(sorted, func(a, b SupplierPayment) int {
		if c := col.CompareString(a.SupplierName, b.SupplierName); c != 0 {
			return c
		}
		return a.DueDate.Compare(b.DueDate)
	})

	rows := make([]SupplierRow, len(sorted))
	for i, p := range sorted {
		rows[i] = SupplierRow{
			SupplierPayment: p,
			Delay:           PaymentDelay(p.DueDate, p.DatePaid),
			Variance:        VarianceLabel(orZero(p.AmountPaid), p.AmountDue),
		}
	}
	return rows
}

// SupplierBalances groups payments per supplier, in collated name order.
func SupplierBalances(payments []SupplierPayment, asOf time.Time) []SupplierBalance {
	return SupplierBalancesIn(DefaultLocale, payments, asOf)
}

// SupplierBalancesIn is SupplierBalances with an explicit collation locale.
func SupplierBalancesIn(tag language.Tag, payments []SupplierPayment, asOf time.Time) []SupplierBalance {
	index := make(map[int64]int)
	var balances []SupplierBalance
	for _, p := range payments {
		i, ok := index[p.SupplierID]
		if !ok {
			i = len(balances)
			index[p.SupplierID] = i
			balances = append(balances, SupplierBalance{SupplierID: p.SupplierID, SupplierName: p.SupplierName})
		}
		b := &balances[i]
		paid := orZero(p.AmountPaid)
		b.TotalDue = b.TotalDue.Add(p.AmountDue)
		b.TotalPaid = b.TotalPaid.Add(paid)
		b.Payments++
		if p.Late(asOf) {
			b.LateCount++
		}
	}
	for i := range balances {
		balances[i].Outstanding = balances[i].TotalDue.Sub(balances[i].TotalPaid)
	}

	col := collate.New(tag)
	slices.SortStableFunc(balances, func(a, b SupplierBalance) int {
		if c := col.CompareString(a.SupplierName, b.SupplierName); c != 0 {
			return c
		}
		return cmp.Compare(a.SupplierID, b.SupplierID)
	})
	return balances
}
