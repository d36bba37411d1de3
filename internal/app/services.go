package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chantier-erp/chantier-erp/internal/events"
	"github.com/chantier-erp/chantier-erp/internal/facturation"
	"github.com/chantier-erp/chantier-erp/internal/fournisseurs"
	"github.com/chantier-erp/chantier-erp/internal/observability"
	"github.com/chantier-erp/chantier-erp/internal/platform/cache"
)

const (
	recapNamespace    = "recap"
	supplierNamespace = "fournisseurs"
)

// Services are the domain services shared by the API and the worker.
type Services struct {
	Facturation   *facturation.Service
	Fournisseurs  *fournisseurs.Service
	Bus           *events.Bus
	supplierCache *cache.Versioned
	logger        *slog.Logger
}

// BuildServices wires repositories, caches and the event bus. A nil Redis
// client disables caching and keeps events in process.
func BuildServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := cfg.AgingPolicy()
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	if redisClient != nil {
		client = redisClient
	}
	recapCache := cache.NewVersioned(client, recapNamespace, cfg.CacheTTL, metrics)
	supplierCache := cache.NewVersioned(client, supplierNamespace, cfg.CacheTTL, metrics)

	factService := facturation.NewService(facturation.NewRepository(pool), facturation.Options{
		Cache:            recapCache,
		Logger:           logger.With(slog.String("component", "facturation")),
		Metrics:          metrics,
		AgingPolicy:      policy,
		Locale:           cfg.Locale(),
		MonthOnlyBuckets: cfg.MonthOnlyBuckets,
	})
	supplierService := fournisseurs.NewService(
		fournisseurs.NewRepository(pool),
		supplierCache,
		logger.With(slog.String("component", "fournisseurs")),
		cfg.Locale(),
	)

	return &Services{
		Facturation:   factService,
		Fournisseurs:  supplierService,
		Bus:           events.NewBus(client, logger, metrics),
		supplierCache: supplierCache,
		logger:        logger,
	}, nil
}

// HandleEvent invalidates the caches touched by a records change.
func (s *Services) HandleEvent(ctx context.Context, ev events.Event) error {
	if err := s.Facturation.HandleEvent(ctx, ev); err != nil {
		return err
	}
	if ev.Topic != events.TopicRecordsChanged {
		return nil
	}
	if _, err := s.supplierCache.Bump(ctx); err != nil {
		return fmt.Errorf("app: bump supplier cache: %w", err)
	}
	return nil
}

// SubscribeInvalidation routes records-changed events to HandleEvent.
func (s *Services) SubscribeInvalidation(ctx context.Context) (*events.Subscription, error) {
	return s.Bus.Subscribe(ctx, s.HandleEvent, events.TopicRecordsChanged)
}
