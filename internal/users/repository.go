package users

import (
	"context"
	"errors"
	"fmt"

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

const userColumns = `id::text, email, name, role, COALESCE(permissions, '{}'::jsonb), is_active, created_at, updated_at`

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a single user.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

// UpdateRole stores a canonical role name and records the change.
func (r *Repository) UpdateRole(ctx context.Context, actorID, id, role string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx, `UPDATE users u SET role = $2, updated_at = NOW()
FROM (SELECT id, role FROM users WHERE id = $1 FOR UPDATE) old
WHERE u.id = old.id RETURNING old.role`, id, role).Scan(&previous)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return r.record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.AuditRoleChanged,
			Entity:   "user",
			EntityID: id,
			Meta:     map[string]any{"from": previous, "to": role},
		})
	})
}

// UpdatePermissions replaces the stored permissions object.
func (r *Repository) UpdatePermissions(ctx context.Context, actorID, id string, raw []byte) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET permissions = $2::jsonb, updated_at = NOW() WHERE id = $1`, id, string(raw))
		if err != nil {
			return fmt.Errorf("update permissions: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return r.record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.AuditGrantsChanged,
			Entity:   "user",
			EntityID: id,
			Meta:     map[string]any{"permissions": string(raw)},
		})
	})
}

func (r *Repository) record(ctx context.Context, tx pgx.Tx, log shared.AuditLog) error {
	if r.audit == nil {
		return nil
	}
	return r.audit.RecordWith(ctx, tx, log)
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var permissions []byte
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &permissions, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Permissions = permissions
	return user, nil
}
