package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAgingBuckets(t *testing.T) {
	asOf := date(2024, time.June, 30)
	situations := []Situation{
		{ID: 1, AmountAfterDeductions: dec("999"), AmountReceived: received("999"), DateSent: date(2024, time.January, 1), PaymentDelayDays: days(30)},
		{ID: 2, AmountAfterDeductions: dec("10"), DateSent: date(2024, time.June, 1), PaymentDelayDays: days(30)},
		{ID: 3, AmountAfterDeductions: dec("20"), DateSent: date(2024, time.May, 1), PaymentDelayDays: days(30)},
		{ID: 4, AmountAfterDeductions: dec("40"), DateSent: date(2024, time.April, 1), PaymentDelayDays: days(30)},
		{ID: 5, AmountAfterDeductions: dec("80"), DateSent: date(2024, time.January, 1), PaymentDelayDays: days(30)},
		{ID: 6, AmountAfterDeductions: dec("160"), DateSent: date(2024, time.March, 1)},
	}

	report := Aging(situations, asOf, DefaultAgingPolicy())
	require.Equal(t, asOf, report.AsOf)
	require.Len(t, report.Buckets, 5)

	want := []struct {
		label  string
		amount string
		count  int
	}{
		{"current", "10", 1},
		{"1-30", "20", 1},
		{"31-60", "40", 1},
		{"61-90", "0", 0},
		{"90+", "80", 1},
	}
	for i, w := range want {
		require.Equal(t, w.label, report.Buckets[i].Label)
		requireDecimal(t, w.amount, report.Buckets[i].Amount)
		require.Equal(t, w.count, report.Buckets[i].Count)
	}
	requireDecimal(t, "160", report.Unscheduled.Amount)
	require.Equal(t, 1, report.Unscheduled.Count)
	requireDecimal(t, "310", report.Outstanding)
}

func TestAgingInvalidPolicyFallsBackToDefault(t *testing.T) {
	report := Aging(nil, date(2024, time.January, 1), AgingPolicy{Bounds: []int{10, 5}})
	require.Len(t, report.Buckets, 5)
	require.Equal(t, "61-90", report.Buckets[3].Label)
}

func TestParseAgingPolicy(t *testing.T) {
	p, err := ParseAgingPolicy([]byte("bounds: [15, 45]\n"))
	require.NoError(t, err)
	require.Equal(t, []int{15, 45}, p.Bounds)
	require.Equal(t, []string{"current", "1-15", "16-45", "45+"}, p.Labels())

	_, err = ParseAgingPolicy([]byte("bounds: [60, 30]\n"))
	require.ErrorIs(t, err, ErrInvalidAgingPolicy)

	_, err = ParseAgingPolicy([]byte("bounds: []\n"))
	require.ErrorIs(t, err, ErrInvalidAgingPolicy)

	_, err = ParseAgingPolicy([]byte("bounds: {"))
	require.Error(t, err)
}
