package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const projectColumns = `id::text, client_id::text, name, COALESCE(description, ''), status, start_date, end_date, COALESCE(created_by::text, ''), created_at, updated_at`

// ListProjects returns projects matching filter, newest first.
func (r *Repository) ListProjects(ctx context.Context, filter ListFilter) ([]Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	sql := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject fetches a project by ID.
func (r *Repository) GetProject(ctx context.Context, id string) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

// CreateProject inserts a project. When managerID is set the creator is
// also recorded as the project's manager.
func (r *Repository) CreateProject(ctx context.Context, p Project, managerID string) (Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var created Project
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanProject(tx.QueryRow(ctx, `INSERT INTO projects (id, client_id, name, description, status, start_date, end_date, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+projectColumns, p.ID, p.ClientID, p.Name, p.Description, string(p.Status), p.StartDate, p.EndDate, p.CreatedBy))
		if db.IsCode(err, db.ForeignKeyViolation) {
			return fmt.Errorf("%w: unknown client", ErrValidation)
		}
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if managerID != "" {
			if _, err := tx.Exec(ctx, `INSERT INTO project_members (id, user_id, project_id, role, assigned_by, assigned_at)
VALUES ($1, $2, $3, 'manager', $2, NOW())`, uuid.NewString(), managerID, created.ID); err != nil {
				return fmt.Errorf("insert creator membership: %w", err)
			}
		}
		if r.audit == nil {
			return nil
		}
		return r.audit.RecordWith(ctx, tx, shared.AuditLog{
			ActorID:  p.CreatedBy,
			Action:   shared.AuditProjectCreated,
			Entity:   "project",
			EntityID: created.ID,
			Meta:     map[string]any{"name": created.Name},
		})
	})
	return created, err
}

// UpdateProject applies a column map to a project.
func (r *Repository) UpdateProject(ctx context.Context, id string, updates map[string]any) error {
	sql, args := db.UpdateSQL("projects", id, updates)
	if sql == "" {
		return nil
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	if err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Description, &status, &p.StartDate, &p.EndDate, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}
