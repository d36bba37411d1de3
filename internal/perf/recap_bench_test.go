package perf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chantier-erp/chantier-erp/internal/facturation"
	facturationhttp "github.com/chantier-erp/chantier-erp/internal/facturation/http"
	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/cache"
)

var chantierNames = []string{"Écoles Jules Ferry", "Résidence Les Tilleuls", "Gymnase Est", "Crèche Bellevue", "Zac Nord"}

func fixture(chantiers, months int) ([]ledger.Situation, []ledger.Invoice) {
	situations := make([]ledger.Situation, 0, chantiers*months)
	invoices := make([]ledger.Invoice, 0, chantiers*months)
	delay := 45
	var id int64
	for c := 0; c < chantiers; c++ {
		name := chantierNames[c%len(chantierNames)] + fmt.Sprintf(" %d", c)
		for m := 0; m < months; m++ {
			id++
			year := 2020 + m/12
			month := m%12 + 1
			sent := time.Date(year, time.Month(month), 28, 0, 0, 0, 0, time.UTC)
			situations = append(situations, ledger.Situation{
				ID:                    id,
				ChantierID:            int64(c + 1),
				ChantierName:          name,
				Month:                 month,
				Year:                  year,
				SequenceLabel:         fmt.Sprintf("Situation n°%d", m+1),
				AmountAfterDeductions: decimal.NewFromInt(int64(1000 + m*10)),
				DateSent:              sent,
				PaymentDelayDays:      &delay,
			})
			invoices = append(invoices, ledger.Invoice{
				ID:              id,
				ChantierID:      int64(c + 1),
				ChantierName:    name,
				Number:          fmt.Sprintf("FA-%d", id),
				AmountBeforeTax: decimal.NewFromInt(250),
				IsPaid:          m%2 == 0,
				DateSent:        sent,
			})
		}
	}
	return situations, invoices
}

func pipeline(situations []ledger.Situation, invoices []ledger.Invoice) {
	records := make([]ledger.Record, 0, len(situations)+len(invoices))
	for _, s := range situations {
		records = append(records, ledger.SituationRecord(s))
	}
	for _, inv := range invoices {
		records = append(records, ledger.InvoiceRecord(inv))
	}
	_ = ledger.Sort(records, nil)
	_ = ledger.CumulativeTotals(situations, nil)
	_ = ledger.GroupByMonth(situations, invoices)
	_ = ledger.GlobalTotals(situations, invoices)
	_ = ledger.Aging(situations, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), ledger.DefaultAgingPolicy())
}

func BenchmarkRecapPipeline(b *testing.B) {
	situations, invoices := fixture(20, 48)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pipeline(situations, invoices)
	}
}

type staticStore struct {
	situations []ledger.Situation
	invoices   []ledger.Invoice
}

func (s staticStore) ListSituations(context.Context, facturation.RecapFilter) ([]ledger.Situation, error) {
	return s.situations, nil
}

func (s staticStore) ListInvoices(context.Context, facturation.RecapFilter) ([]ledger.Invoice, error) {
	return s.invoices, nil
}

func (staticStore) ChantierExists(context.Context, int64) (bool, error) { return true, nil }

func (staticStore) ListYears(context.Context) ([]int, error) { return []int{2020, 2021, 2022, 2023}, nil }

func BenchmarkRecapHTTPCached(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })

	situations, invoices := fixture(10, 24)
	service := facturation.NewService(staticStore{situations: situations, invoices: invoices}, facturation.Options{
		Cache: cache.NewVersioned(client, "recap", time.Minute, nil),
	})
	r := chi.NewRouter()
	r.Route("/api/facturation", facturationhttp.NewHandler(nil, service, nil).MountRoutes)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facturation/recap?as_of=2024-06-30", nil))
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func TestRecapPipelineLatencyTarget(t *testing.T) {
	situations, invoices := fixture(20, 48)
	samples := make([]time.Duration, 0, 10)
	for i := 0; i < 10; i++ {
		start := time.Now()
		pipeline(situations, invoices)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 2*time.Second {
		t.Fatalf("recap pipeline latency regression: p95=%s threshold=%s", p95, 2*time.Second)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
