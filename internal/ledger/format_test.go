package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPaymentDelaySentinel(t *testing.T) {
	at := date(2024, time.March, 1)
	require.Equal(t, Sentinel, PaymentDelay(time.Time{}, at))
	require.Equal(t, Sentinel, PaymentDelay(at, time.Time{}))
	require.Equal(t, Sentinel, PaymentDelay(time.Time{}, time.Time{}))
}

func TestPaymentDelay(t *testing.T) {
	expected := date(2024, time.January, 1)
	cases := []struct {
		name   string
		actual time.Time
		want   string
	}{
		{"late", date(2024, time.January, 11), "10 jours de retard"},
		{"early", date(2023, time.December, 27), "5 jours d'avance"},
		{"same day", expected, "À jour"},
		{"partial day rounds up", expected.Add(25 * time.Hour), "2 jours de retard"},
		{"half day early rounds to zero", expected.Add(-12 * time.Hour), "À jour"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, PaymentDelay(expected, tc.actual))
		})
	}
}

func TestExpectedPaymentDate(t *testing.T) {
	got, ok := ExpectedPaymentDate(date(2024, time.January, 15), days(30))
	require.True(t, ok)
	require.Equal(t, date(2024, time.February, 14), got)
	require.Equal(t, "14/02/2024", ExpectedPaymentLabel(date(2024, time.January, 15), days(30)))

	_, ok = ExpectedPaymentDate(time.Time{}, days(30))
	require.False(t, ok)
	require.Equal(t, Sentinel, ExpectedPaymentLabel(date(2024, time.January, 15), nil))
}

func TestVarianceLabel(t *testing.T) {
	require.Equal(t, Sentinel, VarianceLabel(dec("100"), dec("100.00")))
	require.Equal(t, "-200.00", VarianceLabel(dec("800"), dec("1000")))
	require.Equal(t, "12.35", VarianceLabel(dec("112.345"), dec("100")))

	v, ok := Variance(dec("5"), dec("2"))
	require.True(t, ok)
	requireDecimal(t, "3", v)
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-05-17")
	require.True(t, ok)
	require.Equal(t, date(2024, time.May, 17), got)

	got, ok = ParseDate("2024-05-17T10:30:00Z")
	require.True(t, ok)
	require.Equal(t, 10, got.Hour())

	for _, s := range []string{"", "  ", "17/05/2024", "not a date"} {
		_, ok := ParseDate(s)
		require.Falsef(t, ok, "%q", s)
	}
}
