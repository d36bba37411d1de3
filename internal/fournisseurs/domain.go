// Package fournisseurs tracks the amounts owed to suppliers against bons de
// commande, and how late they are paid.
package fournisseurs

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/httpx"
)

var (
	// ErrInvalidFilter is returned for out-of-range filters.
	ErrInvalidFilter = fmt.Errorf("fournisseurs: invalid filter: %w", httpx.ErrValidation)
	// ErrSupplierNotFound is returned when the filtered supplier does not exist.
	ErrSupplierNotFound = fmt.Errorf("fournisseurs: supplier: %w", httpx.ErrNotFound)
)

// Filter selects supplier payments by due year and supplier. Zero means all.
type Filter struct {
	Year       int       `json:"year,omitempty"`
	SupplierID int64     `json:"supplier_id,omitempty"`
	AsOf       time.Time `json:"as_of"`
}

// Validate checks the filter bounds.
func (f Filter) Validate() error {
	if f.Year != 0 && (f.Year < 2000 || f.Year > 2100) {
		return fmt.Errorf("%w: year %d", ErrInvalidFilter, f.Year)
	}
	if f.SupplierID < 0 {
		return fmt.Errorf("%w: supplier %d", ErrInvalidFilter, f.SupplierID)
	}
	return nil
}

func (f Filter) cacheParts() []string {
	return []string{
		"y" + strconv.Itoa(f.Year),
		"s" + strconv.FormatInt(f.SupplierID, 10),
		f.AsOf.Format("2006-01-02"),
	}
}

// Summary totals every supplier payment of the recap.
type Summary struct {
	TotalDue    decimal.Decimal `json:"total_due"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	LateCount   int             `json:"late_count"`
}

// Recap lists supplier payments and per-supplier balances.
type Recap struct {
	Filter   Filter                   `json:"filter"`
	Rows     []ledger.SupplierRow     `json:"rows"`
	Balances []ledger.SupplierBalance `json:"balances"`
	Summary  Summary                  `json:"summary"`
}

func summarize(balances []ledger.SupplierBalance) Summary {
	var s Summary
	for _, b := range balances {
		s.TotalDue = s.TotalDue.Add(b.TotalDue)
		s.TotalPaid = s.TotalPaid.Add(b.TotalPaid)
		s.Outstanding = s.Outstanding.Add(b.Outstanding)
		s.LateCount += b.LateCount
	}
	return s
}
