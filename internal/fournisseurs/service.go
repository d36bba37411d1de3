package fournisseurs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/cache"
)

// Store loads supplier payments.
type Store interface {
	LoadPayments(ctx context.Context, f Filter) ([]ledger.SupplierPayment, error)
}

// Service builds supplier recaps.
type Service struct {
	store  Store
	cache  *cache.Versioned
	logger *slog.Logger
	locale language.Tag
	now    func() time.Time
}

// NewService wires the store with an optional cache. A zero locale means French.
func NewService(store Store, c *cache.Versioned, logger *slog.Logger, locale language.Tag) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locale == language.Und {
		locale = ledger.DefaultLocale
	}
	return &Service{store: store, cache: c, logger: logger, locale: locale, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Recap lists payments and balances. A zero AsOf means today.
func (s *Service) Recap(ctx context.Context, f Filter) (Recap, error) {
	if err := f.Validate(); err != nil {
		return Recap{}, err
	}
	if f.AsOf.IsZero() {
		f.AsOf = s.now()
	}
	y, m, d := f.AsOf.UTC().Date()
	f.AsOf = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	key, err := s.cache.BuildKey(ctx, f.cacheParts()...)
	if err != nil {
		s.logger.Warn("supplier cache unavailable", slog.Any("error", err))
		return s.build(ctx, f)
	}
	var recap Recap
	err = s.cache.FetchJSON(ctx, key, &recap, func(ctx context.Context) (any, error) {
		return s.build(ctx, f)
	})
	if errors.Is(err, cache.ErrStoreFailed) {
		s.logger.Warn("supplier recap not cached", slog.String("key", key), slog.Any("error", err))
		return recap, nil
	}
	if err != nil {
		return Recap{}, err
	}
	return recap, nil
}

func (s *Service) build(ctx context.Context, f Filter) (Recap, error) {
	payments, err := s.store.LoadPayments(ctx, f)
	if err != nil {
		return Recap{}, err
	}
	balances := ledger.SupplierBalancesIn(s.locale, payments, f.AsOf)
	return Recap{
		Filter:   f,
		Rows:     ledger.SupplierRowsIn(s.locale, payments),
		Balances: balances,
		Summary:  summarize(balances),
	}, nil
}
