package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/platform/db"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

const taskColumns = `id::text, project_id::text, COALESCE(assignee_id::text, ''), title, COALESCE(description, ''), status, priority, due_date, COALESCE(created_by::text, ''), created_at, updated_at`

// ListTasks returns tasks, optionally limited to one project.
func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	sql := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if projectID != "" {
		sql += ` WHERE project_id = $1`
		args = append(args, projectID)
	}
	sql += ` ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListRefsByProjects returns the access slice of every task in projectIDs.
func (r *Repository) ListRefsByProjects(ctx context.Context, projectIDs []string) ([]access.TaskRef, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id::text, project_id::text, COALESCE(assignee_id::text, '')
FROM tasks WHERE project_id::text = ANY($1) ORDER BY created_at, id`, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []access.TaskRef
	for rows.Next() {
		var ref access.TaskRef
		if err := rows.Scan(&ref.ID, &ref.ProjectID, &ref.AssigneeID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// GetTask fetches a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// CreateTask inserts a task and records the creation.
func (r *Repository) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var created Task
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanTask(tx.QueryRow(ctx, `INSERT INTO tasks (id, project_id, title, description, status, priority, due_date, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+taskColumns, t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.CreatedBy))
		if db.IsCode(err, db.ForeignKeyViolation) {
			return fmt.Errorf("%w: unknown project", ErrValidation)
		}
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return r.record(ctx, tx, shared.AuditLog{
			ActorID:  t.CreatedBy,
			Action:   shared.AuditTaskCreated,
			Entity:   "task",
			EntityID: created.ID,
			Meta:     map[string]any{"project_id": created.ProjectID},
		})
	})
	return created, err
}

// UpdateTask applies a column map to a task.
func (r *Repository) UpdateTask(ctx context.Context, id string, updates map[string]any) error {
	sql, args := db.UpdateSQL("tasks", id, updates)
	if sql == "" {
		return nil
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task together with its assignments.
func (r *Repository) DeleteTask(ctx context.Context, actorID, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM task_assignments WHERE task_id = $1`, id); err != nil {
			return fmt.Errorf("delete task assignments: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return r.record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.AuditTaskDeleted,
			Entity:   "task",
			EntityID: id,
		})
	})
}

func (r *Repository) record(ctx context.Context, tx pgx.Tx, log shared.AuditLog) error {
	if r.audit == nil {
		return nil
	}
	return r.audit.RecordWith(ctx, tx, log)
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var status, priority string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.AssigneeID, &t.Title, &t.Description, &status, &priority, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.Priority = Priority(priority)
	return t, nil
}
