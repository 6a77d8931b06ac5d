package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/odyssey-pm/odyssey-pm/internal/jobs"
)

// Notification is a message stored for a user's inbox.
type Notification struct {
	UserID  string
	Kind    string
	Payload json.RawMessage
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PGNotifier writes notifications to the notifications table.
type PGNotifier struct {
	pool *pgxpool.Pool
}

// NewPGNotifier constructs a PGNotifier.
func NewPGNotifier(pool *pgxpool.Pool) *PGNotifier {
	return &PGNotifier{pool: pool}
}

// Notify inserts the notification.
func (n *PGNotifier) Notify(ctx context.Context, note Notification) error {
	_, err := n.pool.Exec(ctx, `INSERT INTO notifications (user_id, kind, payload) VALUES ($1, $2, $3)`,
		note.UserID, note.Kind, []byte(note.Payload))
	if err != nil {
		return fmt.Errorf("notify %s: %w", note.UserID, err)
	}
	return nil
}

// AssignmentNotifyJob tells assignees about new work.
type AssignmentNotifyJob struct {
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewAssignmentNotifyJob wires dependencies for the notification handler.
func NewAssignmentNotifyJob(notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *AssignmentNotifyJob {
	return &AssignmentNotifyJob{Notifier: notifier, Logger: logger, Metrics: metrics}
}

// Handle processes assignment notification tasks.
func (j *AssignmentNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Notifier == nil {
		return errors.New("assignment notify: handler not configured")
	}
	var payload AssignmentNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID == "" {
		j.metrics().Skip(TaskAssignmentNotify, "payload")
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAssignmentNotify)
	err := j.Notifier.Notify(ctx, Notification{
		UserID:  payload.UserID,
		Kind:    TaskAssignmentNotify,
		Payload: t.Payload(),
	})
	if err != nil {
		j.logger().Error("deliver notification",
			slog.String("assignment_id", payload.AssignmentID),
			slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *AssignmentNotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAssignmentNotify))
	}
	return slog.Default().With(slog.String("job", TaskAssignmentNotify))
}

func (j *AssignmentNotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
