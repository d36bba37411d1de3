// Package ledger aggregates chantier financial records (situations, invoices
// and supplier payments) into the running totals, month buckets and derived
// display fields used by the invoicing recap.
//
// Every function is pure: inputs are never mutated and each call returns
// freshly allocated results.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the variants of Record.
type Kind string

const (
	KindSituation Kind = "situation"
	KindInvoice   Kind = "invoice"
)

// Situation is a periodic progress-billing statement issued against a chantier.
type Situation struct {
	ID                    int64               `json:"id"`
	ChantierID            int64               `json:"chantier_id"`
	ChantierName          string              `json:"chantier_name"`
	Month                 int                 `json:"month"`
	Year                  int                 `json:"year"`
	SequenceLabel         string              `json:"sequence_label"`
	AmountAfterDeductions decimal.Decimal     `json:"amount_after_deductions"`
	AmountReceived        decimal.NullDecimal `json:"amount_received"`
	DateSent              time.Time           `json:"date_sent"`
	PaymentDelayDays      *int                `json:"payment_delay_days,omitempty"`
	DateReceived          time.Time           `json:"date_received"`
}

// Bucket returns the calendar month the situation is billed for.
func (s Situation) Bucket() BucketKey {
	return BucketKey{Year: s.Year, Month: s.Month}
}

// Invoice is a plain invoice raised against a chantier.
type Invoice struct {
	ID               int64           `json:"id"`
	ChantierID       int64           `json:"chantier_id"`
	ChantierName     string          `json:"chantier_name"`
	Number           string          `json:"number"`
	AmountBeforeTax  decimal.Decimal `json:"amount_before_tax"`
	IsPaid           bool            `json:"is_paid"`
	DateSent         time.Time       `json:"date_sent"`
	DateCreated      time.Time       `json:"date_created"`
	PaymentDelayDays *int            `json:"payment_delay_days,omitempty"`
	DatePaid         time.Time       `json:"date_paid"`
}

// Bucket derives the invoice month from DateSent, falling back to DateCreated.
// The second value is false when the invoice carries neither date.
func (inv Invoice) Bucket() (BucketKey, bool) {
	d := inv.DateSent
	if d.IsZero() {
		d = inv.DateCreated
	}
	if d.IsZero() {
		return BucketKey{}, false
	}
	return BucketKey{Year: d.Year(), Month: int(d.Month())}, true
}

// Received is the amount counted as collected for the invoice.
func (inv Invoice) Received() decimal.Decimal {
	if inv.IsPaid {
		return inv.AmountBeforeTax
	}
	return decimal.Zero
}

// Record is the tagged union of Situation and Invoice. Exactly one of the
// pointers is set, as indicated by Kind.
type Record struct {
	Kind      Kind       `json:"kind"`
	Situation *Situation `json:"situation,omitempty"`
	Invoice   *Invoice   `json:"invoice,omitempty"`
}

// SituationRecord wraps a situation.
func SituationRecord(s Situation) Record {
	return Record{Kind: KindSituation, Situation: &s}
}

// InvoiceRecord wraps an invoice.
func InvoiceRecord(inv Invoice) Record {
	return Record{Kind: KindInvoice, Invoice: &inv}
}

// ID returns the identifier of the wrapped record.
func (r Record) ID() int64 {
	switch r.Kind {
	case KindSituation:
		return r.Situation.ID
	case KindInvoice:
		return r.Invoice.ID
	}
	return 0
}

// ChantierID returns the chantier the record belongs to.
func (r Record) ChantierID() int64 {
	switch r.Kind {
	case KindSituation:
		return r.Situation.ChantierID
	case KindInvoice:
		return r.Invoice.ChantierID
	}
	return 0
}

// ChantierName returns the display name of the record's chantier.
func (r Record) ChantierName() string {
	switch r.Kind {
	case KindSituation:
		return r.Situation.ChantierName
	case KindInvoice:
		return r.Invoice.ChantierName
	}
	return ""
}

// Label is the free-text label the sequence number is extracted from.
func (r Record) Label() string {
	switch r.Kind {
	case KindSituation:
		return r.Situation.SequenceLabel
	case KindInvoice:
		return r.Invoice.Number
	}
	return ""
}

// Bucket returns the record's month bucket. Dateless invoices report false.
func (r Record) Bucket() (BucketKey, bool) {
	switch r.Kind {
	case KindSituation:
		return r.Situation.Bucket(), true
	case KindInvoice:
		return r.Invoice.Bucket()
	}
	return BucketKey{}, false
}

// Amount is the amount the record contributes to a month subtotal.
func (r Record) Amount() decimal.Decimal {
	switch r.Kind {
	case KindSituation:
		return r.Situation.AmountAfterDeductions
	case KindInvoice:
		return r.Invoice.AmountBeforeTax
	}
	return decimal.Zero
}

// BucketKey identifies a calendar month.
type BucketKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Before reports whether k is chronologically earlier than other.
func (k BucketKey) Before(other BucketKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}
