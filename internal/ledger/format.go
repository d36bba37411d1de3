package ledger

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel is rendered in place of a value that cannot be computed.
const Sentinel = "-"

// DisplayDateLayout is the day/month/year layout used in the recap.
const DisplayDateLayout = "02/01/2006"

const day = 24 * time.Hour

// ParseDate accepts ISO dates and RFC 3339 timestamps. Anything else,
// including the empty string, is reported as missing.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DelayDays returns ceil((actual - expected) / 1 day). Positive values mean
// the payment is late. It reports false when either date is missing.
func DelayDays(expected, actual time.Time) (int, bool) {
	if expected.IsZero() || actual.IsZero() {
		return 0, false
	}
	days := math.Ceil(float64(actual.Sub(expected)) / float64(day))
	return int(days), true
}

// PaymentDelay renders the delay between the expected and the actual payment.
func PaymentDelay(expected, actual time.Time) string {
	days, ok := DelayDays(expected, actual)
	if !ok {
		return Sentinel
	}
	switch {
	case days > 0:
		return strconv.Itoa(days) + " jours de retard"
	case days < 0:
		return strconv.Itoa(-days) + " jours d'avance"
	}
	return "À jour"
}

// ExpectedPaymentDate adds the agreed payment delay, in calendar days, to the
// date the document was sent.
func ExpectedPaymentDate(dateSent time.Time, delayDays *int) (time.Time, bool) {
	if dateSent.IsZero() || delayDays == nil {
		return time.Time{}, false
	}
	return dateSent.AddDate(0, 0, *delayDays), true
}

// ExpectedPaymentLabel is ExpectedPaymentDate formatted for display.
func ExpectedPaymentLabel(dateSent time.Time, delayDays *int) string {
	d, ok := ExpectedPaymentDate(dateSent, delayDays)
	if !ok {
		return Sentinel
	}
	return d.Format(DisplayDateLayout)
}

// Variance returns received minus due. A zero difference reports false: the
// recap shows "no variance" rather than 0.00.
func Variance(received, due decimal.Decimal) (decimal.Decimal, bool) {
	v := received.Sub(due)
	if v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}

// VarianceLabel is Variance rendered with two decimals, or Sentinel.
func VarianceLabel(received, due decimal.Decimal) string {
	v, ok := Variance(received, due)
	if !ok {
		return Sentinel
	}
	return v.StringFixed(2)
}
