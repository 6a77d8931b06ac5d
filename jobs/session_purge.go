package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	jobmetrics "github.com/odyssey-pm/odyssey-pm/internal/jobs"
)

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SessionPurgeJob removes session records past their expiry.
type SessionPurgeJob struct {
	DB      Execer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionPurgeJob wires dependencies for the purge handler.
func NewSessionPurgeJob(db Execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{DB: db, Logger: logger, Metrics: metrics}
}

// Handle processes session purge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.DB == nil {
		return errors.New("session purge: handler not configured")
	}
	tracker := j.metrics().Track(TaskSessionPurge)
	tag, err := j.DB.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		j.logger().Error("purge sessions", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("purged expired sessions", slog.Int64("rows", tag.RowsAffected()))
	return tracker.End(nil)
}

func (j *SessionPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionPurge))
	}
	return slog.Default().With(slog.String("job", TaskSessionPurge))
}

func (j *SessionPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
