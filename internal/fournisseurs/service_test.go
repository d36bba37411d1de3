package fournisseurs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/cache"
)

type memoryStore struct {
	payments []ledger.SupplierPayment
	loads    int
	err      error
}

func (m *memoryStore) LoadPayments(_ context.Context, f Filter) ([]ledger.SupplierPayment, error) {
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	if f.SupplierID == 404 {
		return nil, ErrSupplierNotFound
	}
	var out []ledger.SupplierPayment
	for _, p := range m.payments {
		if (f.Year == 0 || p.DueDate.Year() == f.Year) && (f.SupplierID == 0 || p.SupplierID == f.SupplierID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() *memoryStore {
	d := decimal.RequireFromString
	return &memoryStore{payments: []ledger.SupplierPayment{
		{ID: 1, SupplierID: 1, SupplierName: "Point P", PurchaseOrder: "BC-001", AmountDue: d("1200"),
			AmountPaid: decimal.NewNullDecimal(d("1200")), DueDate: day(2024, 2, 1), DatePaid: day(2024, 2, 11)},
		{ID: 2, SupplierID: 2, SupplierName: "Béton Sud", PurchaseOrder: "BC-002", AmountDue: d("800"), DueDate: day(2024, 5, 1)},
		{ID: 3, SupplierID: 1, SupplierName: "Point P", PurchaseOrder: "BC-003", AmountDue: d("300"), DueDate: day(2024, 7, 15)},
	}}
}

func newService(t *testing.T, store Store, withCache bool) *Service {
	t.Helper()
	var c *cache.Versioned
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		c = cache.NewVersioned(client, "fournisseurs", time.Minute, nil)
	}
	svc := NewService(store, c, nil, language.Und)
	svc.WithNow(func() time.Time { return day(2024, 6, 1) })
	return svc
}

func TestServiceRecap(t *testing.T) {
	svc := newService(t, fixture(), false)

	recap, err := svc.Recap(context.Background(), Filter{Year: 2024})
	require.NoError(t, err)
	require.Equal(t, day(2024, 6, 1), recap.Filter.AsOf)

	require.Len(t, recap.Rows, 3)
	require.Equal(t, "Béton Sud", recap.Rows[0].SupplierName)
	require.Equal(t, "10 jours de retard", recap.Rows[1].Delay)
	require.Equal(t, "-300.00", recap.Rows[2].Variance)

	require.Len(t, recap.Balances, 2)
	require.Equal(t, 1, recap.Balances[0].LateCount, "unpaid after due date")
	require.True(t, decimal.RequireFromString("300").Equal(recap.Balances[1].Outstanding))

	require.True(t, decimal.RequireFromString("2300").Equal(recap.Summary.TotalDue))
	require.True(t, decimal.RequireFromString("1100").Equal(recap.Summary.Outstanding))
	require.Equal(t, 2, recap.Summary.LateCount)
}

func TestServiceRecapCached(t *testing.T) {
	store := fixture()
	svc := newService(t, store, true)
	ctx := context.Background()

	_, err := svc.Recap(ctx, Filter{})
	require.NoError(t, err)
	_, err = svc.Recap(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, store.loads)
}

func TestServiceRecapErrors(t *testing.T) {
	store := fixture()
	svc := newService(t, store, false)
	ctx := context.Background()

	_, err := svc.Recap(ctx, Filter{Year: 3000})
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.Recap(ctx, Filter{SupplierID: 404})
	require.ErrorIs(t, err, ErrSupplierNotFound)

	store.err = errors.New("db down")
	_, err = svc.Recap(ctx, Filter{})
	require.ErrorIs(t, err, store.err)
}

func TestHandlerRecap(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api/fournisseurs", NewHandler(nil, newService(t, fixture(), false)).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/fournisseurs/recap?supplier_id=1&as_of=2024-08-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body Recap
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Rows, 2)
	require.Len(t, body.Balances, 1)
	require.Equal(t, 2, body.Balances[0].LateCount)

	for query, status := range map[string]int{
		"supplier_id=404": http.StatusNotFound,
		"supplier_id=x":   http.StatusBadRequest,
		"year=1999":       http.StatusBadRequest,
	} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/fournisseurs/recap?"+query, nil))
		require.Equal(t, status, rr.Code, query)
	}
}
