package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/chantier-erp/chantier-erp/internal/facturation"
	jobmetrics "github.com/chantier-erp/chantier-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RecapBuilder is the part of the facturation service the warmup drives.
type RecapBuilder interface {
	Years(ctx context.Context) ([]int, error)
	Recap(ctx context.Context, f facturation.RecapFilter) (facturation.Recap, error)
}

// RecapWarmupJob rebuilds the recaps most likely to be requested so the
// first reader after an invalidation hits the cache.
type RecapWarmupJob struct {
	Recaps  RecapBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
	clock   func() time.Time
}

// NewRecapWarmupJob wires dependencies for the warmup handler.
func NewRecapWarmupJob(recaps RecapBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecapWarmupJob {
	return &RecapWarmupJob{
		Recaps:  recaps,
		Logger:  logger,
		Metrics: metrics,
		Timeout: 20 * time.Second,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes recap warmup tasks.
func (j *RecapWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Recaps == nil {
		return errors.New("recap warmup: handler not configured")
	}
	var payload RecapWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskRecapWarmup)
	warmed, err := j.run(ctx, payload)
	j.metrics().AddRecapsWarmed(warmed)
	return tracker.End(err)
}

func (j *RecapWarmupJob) run(ctx context.Context, payload RecapWarmupPayload) (int, error) {
	logger := j.logger().With(slog.Int64("chantier_id", payload.ChantierID))
	start := j.now()
	logger.Info("starting recap warmup")

	years := payload.Years
	if len(years) == 0 {
		found, err := j.Recaps.Years(ctx)
		if err != nil {
			logger.Error("load warmup years", slog.Any("error", err))
			return 0, err
		}
		years = found
	}

	// Year zero is the all-years recap served by default.
	filters := make([]facturation.RecapFilter, 0, len(years)+1)
	filters = append(filters, facturation.RecapFilter{ChantierID: payload.ChantierID, AsOf: start})
	for _, year := range years {
		filters = append(filters, facturation.RecapFilter{Year: year, ChantierID: payload.ChantierID, AsOf: start})
	}

	warmed := 0
	for _, f := range filters {
		if err := j.warm(ctx, f); err != nil {
			logger.Error("warm recap", slog.Int("year", f.Year), slog.Any("error", err))
			return warmed, err
		}
		warmed++
	}
	logger.Info("completed recap warmup", slog.Int("recaps", warmed), slog.Duration("duration", j.now().Sub(start)))
	return warmed, nil
}

func (j *RecapWarmupJob) warm(ctx context.Context, f facturation.RecapFilter) error {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	_, err := j.Recaps.Recap(ctx, f)
	return err
}

func (j *RecapWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRecapWarmup))
	}
	return slog.Default().With(slog.String("job", TaskRecapWarmup))
}

func (j *RecapWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RecapWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
