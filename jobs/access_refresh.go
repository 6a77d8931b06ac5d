package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	jobmetrics "github.com/odyssey-pm/odyssey-pm/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Refresher rebuilds and stores a principal snapshot.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (*access.Principal, error)
}

// AccessRefreshJob rebuilds principal snapshots after membership changes.
type AccessRefreshJob struct {
	Cache   Refresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAccessRefreshJob wires dependencies for the refresh handler.
func NewAccessRefreshJob(cache Refresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *AccessRefreshJob {
	return &AccessRefreshJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes access refresh tasks.
func (j *AccessRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("access refresh: handler not configured")
	}
	var payload AccessRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID == "" {
		j.metrics().Skip(TaskAccessRefresh, "payload")
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAccessRefresh)
	logger := j.logger().With(slog.String("user_id", payload.UserID))

	p, err := j.Cache.Refresh(ctx, payload.UserID)
	if err != nil {
		logger.Error("refresh principal", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("principal refreshed",
		slog.String("role", string(p.Role)),
		slog.Int("projects", len(p.ProjectIDs)),
		slog.Int("tasks", len(p.Tasks)),
	)
	return tracker.End(nil)
}

func (j *AccessRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAccessRefresh))
	}
	return slog.Default().With(slog.String("job", TaskAccessRefresh))
}

func (j *AccessRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
