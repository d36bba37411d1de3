package facturation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
)

// Repository provides PostgreSQL backed access to situations and invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectSituations = `
	SELECT s.id, s.chantier_id, c.nom, s.mois, s.annee, s.numero,
	       COALESCE(s.montant_apres_retenues, 0)::text, s.montant_recu::text,
	       s.date_envoi, s.delai_paiement, s.date_reception
	FROM situations s
	JOIN chantiers c ON c.id = s.chantier_id
	WHERE ($1 = 0 OR s.annee = $1)
	  AND ($2 = 0 OR s.chantier_id = $2)
	ORDER BY s.id`

// ListSituations returns the situations matching the filter.
func (r *Repository) ListSituations(ctx context.Context, f RecapFilter) ([]ledger.Situation, error) {
	rows, err := r.pool.Query(ctx, selectSituations, f.Year, f.ChantierID)
	if err != nil {
		return nil, fmt.Errorf("facturation: list situations: %w", err)
	}
	defer rows.Close()

	var out []ledger.Situation
	for rows.Next() {
		var (
			s                ledger.Situation
			amount           string
			received         pgtype.Text
			sent, receivedOn pgtype.Date
			delay            pgtype.Int4
		)
		if err := rows.Scan(&s.ID, &s.ChantierID, &s.ChantierName, &s.Month, &s.Year, &s.SequenceLabel,
			&amount, &received, &sent, &delay, &receivedOn); err != nil {
			return nil, fmt.Errorf("facturation: scan situation: %w", err)
		}
		s.AmountAfterDeductions = parseAmount(amount)
		if received.Valid {
			s.AmountReceived = decimal.NewNullDecimal(parseAmount(received.String))
		}
		s.DateSent = dateValue(sent)
		s.DateReceived = dateValue(receivedOn)
		s.PaymentDelayDays = intPtr(delay)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facturation: list situations: %w", err)
	}
	return out, nil
}

const selectInvoices = `
	SELECT f.id, f.chantier_id, c.nom, f.numero_facture,
	       COALESCE(f.montant_ht, 0)::text, f.payer,
	       f.date_envoi, f.date_creation, f.delai_paiement, f.date_paiement
	FROM factures f
	JOIN chantiers c ON c.id = f.chantier_id
	WHERE ($1 = 0 OR EXTRACT(YEAR FROM COALESCE(f.date_envoi, f.date_creation))::int = $1)
	  AND ($2 = 0 OR f.chantier_id = $2)
	ORDER BY f.id`

// ListInvoices returns the invoices matching the filter. With a year filter,
// invoices carrying no date cannot match.
func (r *Repository) ListInvoices(ctx context.Context, f RecapFilter) ([]ledger.Invoice, error) {
	rows, err := r.pool.Query(ctx, selectInvoices, f.Year, f.ChantierID)
	if err != nil {
		return nil, fmt.Errorf("facturation: list invoices: %w", err)
	}
	defer rows.Close()

	var out []ledger.Invoice
	for rows.Next() {
		var (
			inv                 ledger.Invoice
			amount              string
			sent, created, paid pgtype.Date
			delay               pgtype.Int4
		)
		if err := rows.Scan(&inv.ID, &inv.ChantierID, &inv.ChantierName, &inv.Number,
			&amount, &inv.IsPaid, &sent, &created, &delay, &paid); err != nil {
			return nil, fmt.Errorf("facturation: scan invoice: %w", err)
		}
		inv.AmountBeforeTax = parseAmount(amount)
		inv.DateSent = dateValue(sent)
		inv.DateCreated = dateValue(created)
		inv.DatePaid = dateValue(paid)
		inv.PaymentDelayDays = intPtr(delay)
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facturation: list invoices: %w", err)
	}
	return out, nil
}

// ChantierExists reports whether the chantier is known.
func (r *Repository) ChantierExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM chantiers WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("facturation: chantier exists: %w", err)
	}
	return true, nil
}

// ListYears returns the years holding at least one situation or dated invoice.
func (r *Repository) ListYears(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT annee FROM situations
		UNION
		SELECT EXTRACT(YEAR FROM COALESCE(date_envoi, date_creation))::int FROM factures
		WHERE COALESCE(date_envoi, date_creation) IS NOT NULL
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("facturation: list years: %w", err)
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("facturation: list years: %w", err)
	}
	return years, nil
}

// parseAmount reads a NUMERIC rendered as text. Malformed input counts as zero.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func dateValue(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return d.Time
}

func intPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}
