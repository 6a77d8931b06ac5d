package membership

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-pm/odyssey-pm/internal/platform/db"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

// Repository exposes read access to memberships and assignments.
type Repository interface {
	FetchProjectMemberships(ctx context.Context, userID string) ([]ProjectMembership, error)
	FetchTaskAssignments(ctx context.Context, userID string) ([]TaskAssignment, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]ProjectMembership, error)
	GetMembership(ctx context.Context, id string) (ProjectMembership, error)
	GetAssignment(ctx context.Context, id string) (TaskAssignment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository holds the writes that run inside a transaction.
type TxRepository interface {
	AddProjectMember(ctx context.Context, m ProjectMembership) (ProjectMembership, error)
	RemoveProjectMember(ctx context.Context, id string) error
	// AssignTask makes a.AssignedTo the task's only assignee and returns the
	// users it displaced.
	AssignTask(ctx context.Context, a TaskAssignment) (TaskAssignment, []string, error)
	UnassignTask(ctx context.Context, a TaskAssignment) error
	UpdateAssignmentStatus(ctx context.Context, id string, status AssignmentStatus) (TaskAssignment, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *PGRepository {
	return &PGRepository{pool: pool, audit: audit}
}

const membershipColumns = `id::text, user_id::text, project_id::text, role, assigned_by::text, assigned_at`

const assignmentColumns = `a.id::text, a.task_id::text, t.project_id::text, a.assigned_to::text, a.assigned_by::text, a.assigned_at, a.status,
COALESCE(t.assignee_id::text, '')`

// FetchProjectMemberships returns every membership held by userID.
func (r *PGRepository) FetchProjectMemberships(ctx context.Context, userID string) ([]ProjectMembership, error) {
	return queryMemberships(ctx, r.pool, `SELECT `+membershipColumns+` FROM project_members WHERE user_id = $1 ORDER BY assigned_at, id`, userID)
}

// ListProjectMembers returns the memberships of a project.
func (r *PGRepository) ListProjectMembers(ctx context.Context, projectID string) ([]ProjectMembership, error) {
	return queryMemberships(ctx, r.pool, `SELECT `+membershipColumns+` FROM project_members WHERE project_id = $1 ORDER BY assigned_at, id`, projectID)
}

// FetchTaskAssignments returns the assignments held by userID on tasks they
// are still the assignee of.
func (r *PGRepository) FetchTaskAssignments(ctx context.Context, userID string) ([]TaskAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+`
FROM task_assignments a JOIN tasks t ON t.id = a.task_id
WHERE a.assigned_to = $1 AND t.assignee_id = a.assigned_to
ORDER BY a.assigned_at, a.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetMembership fetches a membership by ID.
func (r *PGRepository) GetMembership(ctx context.Context, id string) (ProjectMembership, error) {
	m, err := scanMembership(r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM project_members WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProjectMembership{}, ErrNotFound
	}
	return m, err
}

// GetAssignment fetches an assignment by ID.
func (r *PGRepository) GetAssignment(ctx context.Context, id string) (TaskAssignment, error) {
	return getAssignment(ctx, r.pool, id)
}

// WithTx runs fn inside a transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx, audit: r.audit})
	})
}

type pgTxRepository struct {
	tx    pgx.Tx
	audit *shared.AuditLogger
}

func (r *pgTxRepository) AddProjectMember(ctx context.Context, m ProjectMembership) (ProjectMembership, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO project_members (id, user_id, project_id, role, assigned_by, assigned_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING `+membershipColumns, m.ID, m.UserID, m.ProjectID, string(m.Role), m.AssignedBy)
	created, err := scanMembership(row)
	switch {
	case db.IsCode(err, db.UniqueViolation):
		return ProjectMembership{}, ErrAlreadyMember
	case db.IsCode(err, db.ForeignKeyViolation):
		return ProjectMembership{}, ErrNotFound
	case err != nil:
		return ProjectMembership{}, fmt.Errorf("insert project member: %w", err)
	}
	return created, nil
}

func (r *pgTxRepository) RemoveProjectMember(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM project_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) AssignTask(ctx context.Context, a TaskAssignment) (TaskAssignment, []string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var previous *string
	err := r.tx.QueryRow(ctx, `SELECT assignee_id::text FROM tasks WHERE id = $1 FOR UPDATE`, a.TaskID).Scan(&previous)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return TaskAssignment{}, nil, ErrNotFound
	case err != nil:
		return TaskAssignment{}, nil, fmt.Errorf("lock task: %w", err)
	}

	rows, err := r.tx.Query(ctx, `DELETE FROM task_assignments WHERE task_id = $1 AND assigned_to <> $2
RETURNING assigned_to::text`, a.TaskID, a.AssignedTo)
	if err != nil {
		return TaskAssignment{}, nil, fmt.Errorf("retire task assignments: %w", err)
	}
	retired, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return TaskAssignment{}, nil, fmt.Errorf("retire task assignments: %w", err)
	}
	if previous != nil {
		retired = append(retired, *previous)
	}
	displaced := make([]string, 0, len(retired))
	for _, id := range retired {
		if id != a.AssignedTo && !slices.Contains(displaced, id) {
			displaced = append(displaced, id)
		}
	}

	if _, err := r.tx.Exec(ctx, `UPDATE tasks SET assignee_id = $2, updated_at = NOW() WHERE id = $1`, a.TaskID, a.AssignedTo); err != nil {
		if db.IsCode(err, db.ForeignKeyViolation) {
			return TaskAssignment{}, nil, ErrNotFound
		}
		return TaskAssignment{}, nil, fmt.Errorf("update task assignee: %w", err)
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO task_assignments (id, task_id, assigned_to, assigned_by, assigned_at, status)
VALUES ($1, $2, $3, $4, NOW(), $5)`, a.ID, a.TaskID, a.AssignedTo, a.AssignedBy, string(StatusAssigned))
	switch {
	case db.IsCode(err, db.UniqueViolation):
		return TaskAssignment{}, nil, ErrAlreadyAssigned
	case db.IsCode(err, db.ForeignKeyViolation):
		return TaskAssignment{}, nil, ErrNotFound
	case err != nil:
		return TaskAssignment{}, nil, fmt.Errorf("insert task assignment: %w", err)
	}
	created, err := getAssignment(ctx, r.tx, a.ID)
	if err != nil {
		return TaskAssignment{}, nil, err
	}
	return created, displaced, nil
}

func (r *pgTxRepository) UnassignTask(ctx context.Context, a TaskAssignment) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM task_assignments WHERE id = $1`, a.ID)
	if err != nil {
		return fmt.Errorf("delete task assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := r.tx.Exec(ctx, `UPDATE tasks SET assignee_id = NULL, updated_at = NOW() WHERE id = $1 AND assignee_id = $2`, a.TaskID, a.AssignedTo); err != nil {
		return fmt.Errorf("clear task assignee: %w", err)
	}
	return nil
}

func (r *pgTxRepository) UpdateAssignmentStatus(ctx context.Context, id string, status AssignmentStatus) (TaskAssignment, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE task_assignments SET status = $2 WHERE id = $1 AND status = $3`, id, string(status), string(StatusAssigned))
	if err != nil {
		return TaskAssignment{}, fmt.Errorf("update assignment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := getAssignment(ctx, r.tx, id); err != nil {
			return TaskAssignment{}, err
		}
		return TaskAssignment{}, ErrInvalidTransition
	}
	return getAssignment(ctx, r.tx, id)
}

func (r *pgTxRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	if r.audit == nil {
		return nil
	}
	return r.audit.RecordWith(ctx, r.tx, log)
}

func getAssignment(ctx context.Context, q querier, id string) (TaskAssignment, error) {
	a, err := scanAssignment(q.QueryRow(ctx, `SELECT `+assignmentColumns+`
FROM task_assignments a JOIN tasks t ON t.id = a.task_id WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return TaskAssignment{}, ErrNotFound
	}
	return a, err
}

func queryMemberships(ctx context.Context, q querier, sql string, arg string) ([]ProjectMembership, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProjectMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMembership(row pgx.Row) (ProjectMembership, error) {
	var m ProjectMembership
	var role string
	if err := row.Scan(&m.ID, &m.UserID, &m.ProjectID, &role, &m.AssignedBy, &m.AssignedAt); err != nil {
		return ProjectMembership{}, err
	}
	m.Role = MemberRole(role)
	return m, nil
}

func scanAssignment(row pgx.Row) (TaskAssignment, error) {
	var a TaskAssignment
	var status string
	if err := row.Scan(&a.ID, &a.TaskID, &a.ProjectID, &a.AssignedTo, &a.AssignedBy, &a.AssignedAt, &status, &a.TaskAssignee); err != nil {
		return TaskAssignment{}, err
	}
	a.Status = AssignmentStatus(status)
	return a, nil
}

var _ Repository = (*PGRepository)(nil)
