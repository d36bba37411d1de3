package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSupplierPaymentLate(t *testing.T) {
	asOf := date(2024, time.March, 1)
	due := date(2024, time.February, 1)

	require.True(t, SupplierPayment{AmountDue: dec("10"), DueDate: due, DatePaid: date(2024, time.February, 3)}.Late(asOf))
	require.False(t, SupplierPayment{AmountDue: dec("10"), DueDate: due, DatePaid: due}.Late(asOf))
	require.True(t, SupplierPayment{AmountDue: dec("10"), DueDate: due}.Late(asOf))
	require.False(t, SupplierPayment{AmountDue: dec("10"), DueDate: due}.Late(date(2024, time.January, 15)))
	require.False(t, SupplierPayment{AmountDue: dec("10"), AmountPaid: received("10"), DueDate: due}.Late(asOf))
	require.False(t, SupplierPayment{AmountDue: dec("10")}.Late(asOf))
}

func TestSupplierBalances(t *testing.T) {
	asOf := date(2024, time.March, 1)
	payments := []SupplierPayment{
		{ID: 1, SupplierID: 2, SupplierName: "Point P", AmountDue: dec("100"), AmountPaid: received("100"), DueDate: date(2024, time.January, 10), DatePaid: date(2024, time.January, 20)},
		{ID: 2, SupplierID: 1, SupplierName: "Béton Sud", AmountDue: dec("500"), DueDate: date(2024, time.April, 1)},
		{ID: 3, SupplierID: 2, SupplierName: "Point P", AmountDue: dec("50"), AmountPaid: received("20"), DueDate: date(2024, time.February, 1)},
		{ID: 4, SupplierID: 3, SupplierName: "acier plus", AmountDue: dec("5"), AmountPaid: received("5"), DueDate: date(2024, time.January, 1), DatePaid: date(2023, time.December, 30)},
	}

	balances := SupplierBalances(payments, asOf)
	require.Len(t, balances, 3)
	require.Equal(t, []string{"acier plus", "Béton Sud", "Point P"},
		[]string{balances[0].SupplierName, balances[1].SupplierName, balances[2].SupplierName})

	point := balances[2]
	require.Equal(t, int64(2), point.SupplierID)
	requireDecimal(t, "150", point.TotalDue)
	requireDecimal(t, "120", point.TotalPaid)
	requireDecimal(t, "30", point.Outstanding)
	require.Equal(t, 2, point.Payments)
	require.Equal(t, 2, point.LateCount)

	beton := balances[1]
	requireDecimal(t, "500", beton.Outstanding)
	require.Zero(t, beton.LateCount)
}

func TestSupplierRows(t *testing.T) {
	payments := []SupplierPayment{
		{ID: 1, SupplierName: "Zinc", AmountDue: dec("10"), DueDate: date(2024, time.January, 1)},
		{ID: 2, SupplierName: "Alu", AmountDue: dec("30"), AmountPaid: received("30"), DueDate: date(2024, time.February, 1), DatePaid: date(2024, time.February, 4)},
		{ID: 3, SupplierName: "Alu", AmountDue: dec("20"), AmountPaid: decimal.NewNullDecimal(dec("15")), DueDate: date(2024, time.January, 1), DatePaid: date(2023, time.December, 29)},
	}

	rows := SupplierRows(payments)
	require.Equal(t, []int64{3, 2, 1}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})
	require.Equal(t, "3 jours d'avance", rows[0].Delay)
	require.Equal(t, "-5.00", rows[0].Variance)
	require.Equal(t, "3 jours de retard", rows[1].Delay)
	require.Equal(t, Sentinel, rows[1].Variance)
	require.Equal(t, Sentinel, rows[2].Delay)
	require.Equal(t, "-10.00", rows[2].Variance)
}
