// Package export renders facturation recaps as spreadsheets and PDF documents.
package export

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/chantier-erp/chantier-erp/internal/facturation"
	"github.com/chantier-erp/chantier-erp/internal/ledger"
)

var recapHeader = []string{
	"Chantier", "Libellé", "Période", "Montant", "Reçu", "Cumul",
	"Paiement prévu", "Retard", "Écart",
}

// line is a recap row flattened to display strings.
type line struct {
	cells    []string
	subtotal bool
}

func lines(recap facturation.Recap) []line {
	out := make([]line, 0, len(recap.Rows))
	for _, row := range recap.Rows {
		switch row.Kind {
		case ledger.RowSituation:
			s := row.Situation
			out = append(out, line{cells: []string{
				s.ChantierName, s.SequenceLabel, period(s.Month, s.Year),
				s.AmountAfterDeductions.StringFixed(2), nullAmount(s), s.CumulativeTotal.StringFixed(2),
				s.ExpectedPaymentDate, s.PaymentDelay, s.Variance,
			}})
		case ledger.RowInvoice:
			inv := row.Invoice
			paid := ledger.Sentinel
			if inv.IsPaid {
				paid = inv.AmountBeforeTax.StringFixed(2)
			}
			out = append(out, line{cells: []string{
				inv.ChantierName, inv.Number, invoicePeriod(inv.Invoice),
				inv.AmountBeforeTax.StringFixed(2), paid, "",
				inv.ExpectedPaymentDate, inv.PaymentDelay, inv.Variance,
			}})
		case ledger.RowSubtotal:
			st := row.Subtotal
			out = append(out, line{subtotal: true, cells: []string{
				"Sous-total", "", period(st.Month, st.Year),
				st.Subtotal.StringFixed(2), "", st.CumulativeGrandTotal.StringFixed(2),
				"", "", "",
			}})
		}
	}
	return out
}

func period(month, year int) string {
	return fmt.Sprintf("%02d/%d", month, year)
}

func invoicePeriod(inv ledger.Invoice) string {
	k, ok := inv.Bucket()
	if !ok {
		return ledger.Sentinel
	}
	return period(k.Month, k.Year)
}

func nullAmount(s *facturation.SituationView) string {
	if !s.AmountReceived.Valid {
		return ledger.Sentinel
	}
	return s.AmountReceived.Decimal.StringFixed(2)
}

func title(recap facturation.Recap) string {
	t := "Récapitulatif facturation"
	if recap.Filter.Year != 0 {
		t += " " + strconv.Itoa(recap.Filter.Year)
	}
	return t
}

// RecapXLSX renders the recap rows and the totals on two sheets.
func RecapXLSX(recap facturation.Recap) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	rowsSheet := "recap"
	totalsSheet := "totaux"
	if err := f.SetSheetName("Sheet1", rowsSheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(totalsSheet); err != nil {
		return nil, fmt.Errorf("export: new sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("export: style: %w", err)
	}

	_ = f.SetCellValue(rowsSheet, "A1", title(recap))
	_ = f.SetCellStyle(rowsSheet, "A1", "A1", bold)
	if err := f.SetSheetRow(rowsSheet, "A3", &recapHeader); err != nil {
		return nil, fmt.Errorf("export: header: %w", err)
	}
	_ = f.SetCellStyle(rowsSheet, "A3", "I3", bold)

	for i, l := range lines(recap) {
		cell := "A" + strconv.Itoa(i+4)
		cells := l.cells
		if err := f.SetSheetRow(rowsSheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("export: row %d: %w", i, err)
		}
		if l.subtotal {
			_ = f.SetCellStyle(rowsSheet, cell, "I"+strconv.Itoa(i+4), bold)
		}
	}

	totals := [][2]string{
		{"Total dû", recap.Totals.TotalAmountDue.StringFixed(2)},
		{"Total reçu", recap.Totals.TotalAmountReceived.StringFixed(2)},
		{"Écart total", recap.Totals.TotalVariance.StringFixed(2)},
		{"Reste à encaisser", recap.Aging.Outstanding.StringFixed(2)},
		{"Factures sans date", strconv.Itoa(recap.DroppedInvoices)},
		{"Généré le", recap.GeneratedAt.Format(time.RFC3339)},
	}
	for i, kv := range totals {
		row := strconv.Itoa(i + 1)
		_ = f.SetCellValue(totalsSheet, "A"+row, kv[0])
		_ = f.SetCellValue(totalsSheet, "B"+row, kv[1])
	}
	base := len(totals) + 2
	_ = f.SetCellValue(totalsSheet, "A"+strconv.Itoa(base), "Ancienneté")
	_ = f.SetCellStyle(totalsSheet, "A"+strconv.Itoa(base), "A"+strconv.Itoa(base), bold)
	for i, b := range slices.Concat(recap.Aging.Buckets, []ledger.AgingBucket{recap.Aging.Unscheduled}) {
		row := strconv.Itoa(base + 1 + i)
		_ = f.SetCellValue(totalsSheet, "A"+row, b.Label)
		_ = f.SetCellValue(totalsSheet, "B"+row, b.Amount.StringFixed(2))
		_ = f.SetCellValue(totalsSheet, "C"+row, b.Count)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

var pdfWidths = []float64{48, 40, 20, 26, 26, 28, 28, 34, 22}

// RecapPDF renders the recap as a landscape A4 table followed by the totals.
func RecapPDF(recap facturation.Recap) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, tr(title(recap)))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, tr("Situation au "+recap.Filter.AsOf.Format(ledger.DisplayDateLayout)))
	pdf.Ln(8)

	header := func() {
		pdf.SetFont("Arial", "B", 8)
		for i, h := range recapHeader {
			pdf.CellFormat(pdfWidths[i], 6, tr(h), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	header()
	for _, l := range lines(recap) {
		if pdf.GetY() > 190 {
			pdf.AddPage()
			header()
		}
		style, fill := "", false
		if l.subtotal {
			style, fill = "B", true
			pdf.SetFillColor(230, 230, 230)
		}
		pdf.SetFont("Arial", style, 8)
		for i, c := range l.cells {
			align := "L"
			if i >= 3 && i <= 5 {
				align = "R"
			}
			pdf.CellFormat(pdfWidths[i], 5, tr(c), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, tr("Total dû : "+recap.Totals.TotalAmountDue.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr("Total reçu : "+recap.Totals.TotalAmountReceived.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr("Écart total : "+recap.Totals.TotalVariance.StringFixed(2)))
	pdf.Ln(5)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
