package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AgingPolicy holds the upper bounds, in days past due, of the aging buckets.
type AgingPolicy struct {
	Bounds []int `yaml:"bounds" json:"bounds"`
}

// DefaultAgingPolicy buckets receivables at 30, 60 and 90 days.
func DefaultAgingPolicy() AgingPolicy {
	return AgingPolicy{Bounds: []int{30, 60, 90}}
}

// ErrInvalidAgingPolicy is returned for empty or unordered bounds.
var ErrInvalidAgingPolicy = errors.New("ledger: invalid aging policy")

// ParseAgingPolicy decodes a YAML policy such as "bounds: [30, 60, 90]".
func ParseAgingPolicy(data []byte) (AgingPolicy, error) {
	var p AgingPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return AgingPolicy{}, fmt.Errorf("ledger: decode aging policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return AgingPolicy{}, err
	}
	return p, nil
}

// Validate requires strictly increasing positive bounds.
func (p AgingPolicy) Validate() error {
	if len(p.Bounds) == 0 {
		return ErrInvalidAgingPolicy
	}
	prev := 0
	for _, b := range p.Bounds {
		if b <= prev {
			return ErrInvalidAgingPolicy
		}
		prev = b
	}
	return nil
}

// Labels names the buckets: "current", one "a-b" per bound, then "n+".
func (p AgingPolicy) Labels() []string {
	labels := make([]string, 0, len(p.Bounds)+2)
	labels = append(labels, "current")
	lo := 1
	for _, b := range p.Bounds {
		labels = append(labels, strconv.Itoa(lo)+"-"+strconv.Itoa(b))
		lo = b + 1
	}
	return append(labels, strconv.Itoa(p.Bounds[len(p.Bounds)-1])+"+")
}

// AgingBucket sums outstanding amounts falling in one age range.
type AgingBucket struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// AgingReport groups unpaid situations by how far past due they are.
// Situations without an expected payment date land in Unscheduled.
type AgingReport struct {
	AsOf        time.Time       `json:"as_of"`
	Buckets     []AgingBucket   `json:"buckets"`
	Unscheduled AgingBucket     `json:"unscheduled"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// Aging buckets the situations that have not been paid yet (no received
// amount) by days elapsed since their expected payment date at asOf.
func Aging(situations []Situation, asOf time.Time, policy AgingPolicy) AgingReport {
	if policy.Validate() != nil {
		policy = DefaultAgingPolicy()
	}
	labels := policy.Labels()
	report := AgingReport{
		AsOf:        asOf,
		Buckets:     make([]AgingBucket, len(labels)),
		Unscheduled: AgingBucket{Label: "unscheduled"},
	}
	for i, l := range labels {
		report.Buckets[i] = AgingBucket{Label: l}
	}

	for _, s := range situations {
		if s.AmountReceived.Valid {
			continue
		}
		report.Outstanding = report.Outstanding.Add(s.AmountAfterDeductions)
		expected, ok := ExpectedPaymentDate(s.DateSent, s.PaymentDelayDays)
		if !ok {
			report.Unscheduled.Amount = report.Unscheduled.Amount.Add(s.AmountAfterDeductions)
			report.Unscheduled.Count++
			continue
		}
		days, _ := DelayDays(expected, asOf)
		idx := bucketIndex(policy.Bounds, days)
		report.Buckets[idx].Amount = report.Buckets[idx].Amount.Add(s.AmountAfterDeductions)
		report.Buckets[idx].Count++
	}
	return report
}

func bucketIndex(bounds []int, days int) int {
	if days <= 0 {
		return 0
	}
	i, _ := slices.BinarySearch(bounds, days)
	return i + 1
}
