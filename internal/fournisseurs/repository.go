package fournisseurs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed access to supplier payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectPayments = `
	SELECT p.id, f.id, f.nom, COALESCE(b.chantier_id, 0), COALESCE(c.nom, ''), b.numero,
	       COALESCE(p.montant_du, 0)::text, p.montant_paye::text,
	       p.date_echeance, p.date_paiement
	FROM paiements_fournisseurs p
	JOIN bons_de_commande b ON b.id = p.bon_de_commande_id
	JOIN fournisseurs f ON f.id = b.fournisseur_id
	LEFT JOIN chantiers c ON c.id = b.chantier_id
	WHERE ($1 = 0 OR EXTRACT(YEAR FROM p.date_echeance)::int = $1)
	  AND ($2 = 0 OR f.id = $2)
	ORDER BY p.id`

// LoadPayments checks the supplier and lists its payments within one
// read-only snapshot. It returns ErrSupplierNotFound for unknown suppliers.
func (r *Repository) LoadPayments(ctx context.Context, f Filter) ([]ledger.SupplierPayment, error) {
	var out []ledger.SupplierPayment
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		if f.SupplierID > 0 {
			var one int
			err := tx.QueryRow(ctx, `SELECT 1 FROM fournisseurs WHERE id = $1`, f.SupplierID).Scan(&one)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSupplierNotFound
			}
			if err != nil {
				return fmt.Errorf("fournisseurs: supplier exists: %w", err)
			}
		}

		rows, err := tx.Query(ctx, selectPayments, f.Year, f.SupplierID)
		if err != nil {
			return fmt.Errorf("fournisseurs: list payments: %w", err)
		}
		out, err = pgx.CollectRows(rows, scanPayment)
		if err != nil {
			return fmt.Errorf("fournisseurs: list payments: %w", err)
		}
		return nil
	})
	return out, err
}

func scanPayment(row pgx.CollectableRow) (ledger.SupplierPayment, error) {
	var (
		p        ledger.SupplierPayment
		due      string
		paid     pgtype.Text
		dueDate  pgtype.Date
		datePaid pgtype.Date
	)
	if err := row.Scan(&p.ID, &p.SupplierID, &p.SupplierName, &p.ChantierID, &p.ChantierName, &p.PurchaseOrder,
		&due, &paid, &dueDate, &datePaid); err != nil {
		return ledger.SupplierPayment{}, err
	}
	p.AmountDue = amount(due)
	if paid.Valid {
		p.AmountPaid = decimal.NewNullDecimal(amount(paid.String))
	}
	if dueDate.Valid {
		p.DueDate = dueDate.Time
	}
	if datePaid.Valid {
		p.DatePaid = datePaid.Time
	}
	return p, nil
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
