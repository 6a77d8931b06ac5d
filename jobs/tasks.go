package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueCritical carries snapshot rebuilds, which gate authorization freshness.
	QueueCritical = "critical"
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessRefresh rebuilds a user's principal snapshot after a grant or revoke.
	TaskAccessRefresh = "access:refresh"
	// TaskAssignmentNotify tells an assignee about a new task assignment.
	TaskAssignmentNotify = "assignment:notify"
)

// Queues lists every queue with its processing weight.
func Queues() map[string]int {
	return map[string]int{QueueCritical: 6, QueueDefault: 3}
}

// QueueNames returns the queue names in priority order.
func QueueNames() []string {
	return []string{QueueCritical, QueueDefault}
}

// AccessRefreshPayload identifies the user whose snapshot is rebuilt.
type AccessRefreshPayload struct {
	UserID string `json:"user_id"`
}

// AssignmentNotifyPayload describes a new assignment.
type AssignmentNotifyPayload struct {
	AssignmentID string    `json:"assignment_id"`
	TaskID       string    `json:"task_id"`
	UserID       string    `json:"user_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

var errMissingUser = errors.New("jobs: user id required")

// NewAccessRefreshTask constructs an access refresh task.
func NewAccessRefreshTask(userID string) (*asynq.Task, error) {
	if userID == "" {
		return nil, errMissingUser
	}
	data, err := json.Marshal(AccessRefreshPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessRefresh, data), nil
}

// NewAssignmentNotifyTask constructs an assignment notification task.
func NewAssignmentNotifyTask(payload AssignmentNotifyPayload) (*asynq.Task, error) {
	if payload.UserID == "" {
		return nil, errMissingUser
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentNotify, data), nil
}

// TaskSessionPurge deletes expired rows from the sessions audit table.
const TaskSessionPurge = "sessions:purge"

// NewSessionPurgeTask constructs the periodic purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}
