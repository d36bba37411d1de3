package facturation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/chantier-erp/chantier-erp/internal/events"
	"github.com/chantier-erp/chantier-erp/internal/ledger"
	"github.com/chantier-erp/chantier-erp/internal/platform/cache"
)

// recapBuildTimeout bounds a shared recap build once it is detached from the
// requesting context.
const recapBuildTimeout = time.Minute

// Store is the persistence contract of the recap service.
type Store interface {
	ListSituations(ctx context.Context, f RecapFilter) ([]ledger.Situation, error)
	ListInvoices(ctx context.Context, f RecapFilter) ([]ledger.Invoice, error)
	ChantierExists(ctx context.Context, id int64) (bool, error)
	ListYears(ctx context.Context) ([]int, error)
}

// Metrics receives recap build instrumentation.
type Metrics interface {
	ObserveRecapBuild(elapsed time.Duration, err error)
	AddDroppedInvoices(n int)
}

// Options configures a Service. Every field is optional.
type Options struct {
	Cache       *cache.Versioned
	Logger      *slog.Logger
	Metrics     Metrics
	AgingPolicy ledger.AgingPolicy
	Locale      language.Tag
	// MonthOnlyBuckets makes every recap group by month number alone.
	MonthOnlyBuckets bool
	Now              func() time.Time
}

// Service assembles recaps from the store, memoised in the versioned cache.
type Service struct {
	store     Store
	cache     *cache.Versioned
	logger    *slog.Logger
	metrics   Metrics
	policy    ledger.AgingPolicy
	locale    language.Tag
	monthOnly bool
	now       func() time.Time
	group     singleflight.Group
}

// NewService wires a store with the cache and instrumentation.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:     store,
		cache:     opts.Cache,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		policy:    opts.AgingPolicy,
		locale:    opts.Locale,
		monthOnly: opts.MonthOnlyBuckets,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.policy.Validate() != nil {
		s.policy = ledger.DefaultAgingPolicy()
	}
	if s.locale == language.Und {
		s.locale = ledger.DefaultLocale
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Recap returns the recap for the filter. A zero AsOf means today.
func (s *Service) Recap(ctx context.Context, f RecapFilter) (Recap, error) {
	if err := f.Validate(); err != nil {
		return Recap{}, err
	}
	if f.AsOf.IsZero() {
		f.AsOf = s.now()
	}
	f.AsOf = truncateDay(f.AsOf)
	f.MonthOnly = f.MonthOnly || s.monthOnly

	if f.ChantierID > 0 {
		ok, err := s.store.ChantierExists(ctx, f.ChantierID)
		if err != nil {
			return Recap{}, err
		}
		if !ok {
			return Recap{}, ErrChantierNotFound
		}
	}

	key, err := s.cache.BuildKey(ctx, f.cacheParts()...)
	if err != nil {
		s.logger.Warn("recap cache unavailable", slog.Any("error", err))
		return s.build(ctx, f)
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// Waiters share this build, so one caller cancelling must not abort it.
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recapBuildTimeout)
		defer cancel()
		var recap Recap
		err := s.cache.FetchJSON(bctx, key, &recap, func(ctx context.Context) (any, error) {
			return s.build(ctx, f)
		})
		if errors.Is(err, cache.ErrStoreFailed) {
			s.logger.Warn("recap not cached", slog.String("key", key), slog.Any("error", err))
			return recap, nil
		}
		if err != nil {
			return Recap{}, err
		}
		return recap, nil
	})
	select {
	case <-ctx.Done():
		return Recap{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Recap{}, res.Err
		}
		return res.Val.(Recap), nil
	}
}

// Totals returns the global totals of the filtered records.
func (s *Service) Totals(ctx context.Context, f RecapFilter) (ledger.Totals, error) {
	recap, err := s.Recap(ctx, f)
	if err != nil {
		return ledger.Totals{}, err
	}
	return recap.Totals, nil
}

// Invalidate orphans every cached recap.
func (s *Service) Invalidate(ctx context.Context) error {
	ver, err := s.cache.Bump(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("recap cache invalidated", slog.Int64("version", ver))
	return nil
}

// HandleEvent invalidates the cache when records change. It is meant to be
// subscribed on the event bus.
func (s *Service) HandleEvent(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicRecordsChanged {
		return nil
	}
	return s.Invalidate(ctx)
}

// Years lists the years that hold records.
func (s *Service) Years(ctx context.Context) ([]int, error) {
	return s.store.ListYears(ctx)
}

func (s *Service) build(ctx context.Context, f RecapFilter) (Recap, error) {
	start := time.Now()
	recap, err := s.assemble(ctx, f)
	if s.metrics != nil {
		s.metrics.ObserveRecapBuild(time.Since(start), err)
	}
	return recap, err
}

func (s *Service) assemble(ctx context.Context, f RecapFilter) (Recap, error) {
	var (
		situations []ledger.Situation
		invoices   []ledger.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		situations, err = s.store.ListSituations(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.store.ListInvoices(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return Recap{}, err
	}

	situations, invoices = s.order(situations, invoices)

	dropped := ledger.DroppedInvoices(invoices)
	if dropped > 0 {
		s.logger.Warn("invoices without date left out of month grouping",
			slog.Int("count", dropped), slog.Int("year", f.Year), slog.Int64("chantier_id", f.ChantierID))
		if s.metrics != nil {
			s.metrics.AddDroppedInvoices(dropped)
		}
	}

	var opts []ledger.GroupOption
	if f.MonthOnly {
		opts = append(opts, ledger.WithMonthOnlyBuckets())
	}
	cumulative := ledger.CumulativeTotals(situations, ledger.ExtractSequenceNumber)
	grouped := ledger.GroupByMonth(situations, invoices, opts...)

	rows := make([]Row, 0, len(grouped))
	for _, mr := range grouped {
		row := Row{Kind: mr.Kind, Subtotal: mr.Subtotal}
		switch mr.Kind {
		case ledger.RowSituation:
			row.Situation = situationView(*mr.Situation, cumulative[mr.Situation.ID])
		case ledger.RowInvoice:
			row.Invoice = invoiceView(*mr.Invoice)
		}
		rows = append(rows, row)
	}

	return Recap{
		Filter:          f,
		GeneratedAt:     s.now().UTC(),
		Rows:            rows,
		Totals:          ledger.GlobalTotals(situations, invoices),
		Aging:           ledger.Aging(situations, f.AsOf, s.policy),
		DroppedInvoices: dropped,
	}, nil
}

// order sorts both record kinds together so each month bucket lists its
// records by chantier name and sequence number.
func (s *Service) order(situations []ledger.Situation, invoices []ledger.Invoice) ([]ledger.Situation, []ledger.Invoice) {
	records := make([]ledger.Record, 0, len(situations)+len(invoices))
	for _, sit := range situations {
		records = append(records, ledger.SituationRecord(sit))
	}
	for _, inv := range invoices {
		records = append(records, ledger.InvoiceRecord(inv))
	}

	sortedSituations := make([]ledger.Situation, 0, len(situations))
	sortedInvoices := make([]ledger.Invoice, 0, len(invoices))
	for _, r := range ledger.SortIn(s.locale, records, ledger.ExtractSequenceNumber) {
		switch r.Kind {
		case ledger.KindSituation:
			sortedSituations = append(sortedSituations, *r.Situation)
		case ledger.KindInvoice:
			sortedInvoices = append(sortedInvoices, *r.Invoice)
		}
	}
	return sortedSituations, sortedInvoices
}

// truncateDay keeps the UTC calendar day, so cache keys do not depend on the
// server time zone.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
