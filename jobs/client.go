package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue.
type Client struct {
	client Enqueuer
	now    func() time.Time
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return NewClientWith(asynq.NewClient(redisOpts)), nil
}

// NewClientWith wraps an existing enqueuer.
func NewClientWith(enqueuer Enqueuer) *Client {
	return &Client{client: enqueuer, now: func() time.Time { return time.Now().UTC() }}
}

// EnqueueAccessRefresh schedules a snapshot rebuild for userID on the
// critical queue.
func (c *Client) EnqueueAccessRefresh(ctx context.Context, userID string) error {
	task, err := NewAccessRefreshTask(userID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueCritical), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	return err
}

// EnqueueAssignmentNotice schedules a notification for a new assignment.
func (c *Client) EnqueueAssignmentNotice(ctx context.Context, assignmentID, taskID, userID string) error {
	task, err := NewAssignmentNotifyTask(AssignmentNotifyPayload{
		AssignmentID: assignmentID,
		TaskID:       taskID,
		UserID:       userID,
		AssignedAt:   c.now(),
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
