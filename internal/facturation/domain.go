// Package facturation builds the invoicing recap of the chantiers: situations
// and invoices grouped by month, with cumulative totals, global totals and
// receivable aging.
package facturation

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/httpx"
)

var (
	// ErrInvalidFilter is returned for out-of-range recap filters.
	ErrInvalidFilter = fmt.Errorf("facturation: invalid filter: %w", httpx.ErrValidation)
	// ErrChantierNotFound is returned when the filtered chantier does not exist.
	ErrChantierNotFound = fmt.Errorf("facturation: chantier: %w", httpx.ErrNotFound)
)

// RecapFilter selects the records of a recap. Zero Year or ChantierID means
// every year or every chantier.
type RecapFilter struct {
	Year       int       `json:"year,omitempty"`
	ChantierID int64     `json:"chantier_id,omitempty"`
	MonthOnly  bool      `json:"month_only,omitempty"`
	AsOf       time.Time `json:"as_of"`
}

// Validate checks the filter bounds.
func (f RecapFilter) Validate() error {
	if f.Year != 0 && (f.Year < 2000 || f.Year > 2100) {
		return fmt.Errorf("%w: year %d", ErrInvalidFilter, f.Year)
	}
	if f.ChantierID < 0 {
		return fmt.Errorf("%w: chantier %d", ErrInvalidFilter, f.ChantierID)
	}
	return nil
}

func (f RecapFilter) cacheParts() []string {
	return []string{
		"y" + strconv.Itoa(f.Year),
		"c" + strconv.FormatInt(f.ChantierID, 10),
		strconv.FormatBool(f.MonthOnly),
		f.AsOf.Format("2006-01-02"),
	}
}

// SituationView is a situation with its display fields.
type SituationView struct {
	ledger.Situation
	CumulativeTotal     decimal.Decimal `json:"cumulative_total"`
	ExpectedPaymentDate string          `json:"expected_payment_date"`
	PaymentDelay        string          `json:"payment_delay"`
	Variance            string          `json:"variance"`
}

// InvoiceView is an invoice with its display fields.
type InvoiceView struct {
	ledger.Invoice
	ExpectedPaymentDate string `json:"expected_payment_date"`
	PaymentDelay        string `json:"payment_delay"`
	Variance            string `json:"variance"`
}

// Row is one line of the recap. Exactly one pointer is set, as Kind indicates.
type Row struct {
	Kind      ledger.RowKind        `json:"kind"`
	Situation *SituationView        `json:"situation,omitempty"`
	Invoice   *InvoiceView          `json:"invoice,omitempty"`
	Subtotal  *ledger.MonthSubtotal `json:"subtotal,omitempty"`
}

// Recap is the month-grouped invoicing recap.
type Recap struct {
	Filter          RecapFilter        `json:"filter"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Rows            []Row              `json:"rows"`
	Totals          ledger.Totals      `json:"totals"`
	Aging           ledger.AgingReport `json:"aging"`
	DroppedInvoices int                `json:"dropped_invoices"`
}

func situationView(s ledger.Situation, cumulative decimal.Decimal) *SituationView {
	expected, _ := ledger.ExpectedPaymentDate(s.DateSent, s.PaymentDelayDays)
	received := decimal.Zero
	if s.AmountReceived.Valid {
		received = s.AmountReceived.Decimal
	}
	return &SituationView{
		Situation:           s,
		CumulativeTotal:     cumulative,
		ExpectedPaymentDate: ledger.ExpectedPaymentLabel(s.DateSent, s.PaymentDelayDays),
		PaymentDelay:        ledger.PaymentDelay(expected, s.DateReceived),
		Variance:            ledger.VarianceLabel(received, s.AmountAfterDeductions),
	}
}

func invoiceView(inv ledger.Invoice) *InvoiceView {
	expected, _ := ledger.ExpectedPaymentDate(inv.DateSent, inv.PaymentDelayDays)
	return &InvoiceView{
		Invoice:             inv,
		ExpectedPaymentDate: ledger.ExpectedPaymentLabel(inv.DateSent, inv.PaymentDelayDays),
		PaymentDelay:        ledger.PaymentDelay(expected, inv.DatePaid),
		Variance:            ledger.VarianceLabel(inv.Received(), inv.AmountBeforeTax),
	}
}
