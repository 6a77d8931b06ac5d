// Package principals builds and caches the per-user snapshots that the
// access resolver evaluates.
package principals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/membership"
	"github.com/odyssey-pm/odyssey-pm/internal/users"
)

// UserReader fetches the stored account.
type UserReader interface {
	GetUser(ctx context.Context, id string) (users.User, error)
}

// MembershipReader fetches membership and assignment records.
type MembershipReader interface {
	FetchProjectMemberships(ctx context.Context, userID string) ([]membership.ProjectMembership, error)
	FetchTaskAssignments(ctx context.Context, userID string) ([]membership.TaskAssignment, error)
}

// TaskReader fetches the tasks of a set of projects.
type TaskReader interface {
	ListRefsByProjects(ctx context.Context, projectIDs []string) ([]access.TaskRef, error)
}

// Loader assembles principal snapshots from the store.
type Loader struct {
	users       UserReader
	memberships MembershipReader
	tasks       TaskReader
	logger      *slog.Logger
	now         func() time.Time
}

// NewLoader constructs a Loader.
func NewLoader(u UserReader, m MembershipReader, t TaskReader, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{users: u, memberships: m, tasks: t, logger: logger, now: time.Now}
}

// Load builds a fresh snapshot for userID. Unknown or inactive users yield
// a role-less snapshot that every check denies.
func (l *Loader) Load(ctx context.Context, userID string) (*access.Principal, error) {
	var (
		user        users.User
		memberships []membership.ProjectMembership
		assignments []membership.TaskAssignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = l.users.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		memberships, err = l.memberships.FetchProjectMemberships(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = l.memberships.FetchTaskAssignments(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return &access.Principal{ID: userID, LoadedAt: l.now()}, nil
		}
		return nil, fmt.Errorf("load principal %s: %w", userID, err)
	}

	p := &access.Principal{ID: userID, LoadedAt: l.now()}
	if !user.IsActive {
		return p, nil
	}
	p.Role = user.AccessRole()
	grants, err := user.Grants()
	if err != nil {
		l.logger.Warn("ignoring malformed grants", slog.String("user_id", userID), slog.Any("error", err))
	}
	p.Grants = grants

	var ids []string
	for _, m := range memberships {
		ids = append(ids, m.ProjectID)
	}
	p.ProjectIDs = dedupe(append(ids, grants.ProjectIDs...))

	refs := make([]access.TaskRef, 0, len(assignments))
	for _, a := range assignments {
		// A row left behind by a reassignment grants nothing.
		if a.TaskAssignee != a.AssignedTo {
			continue
		}
		refs = append(refs, access.TaskRef{ID: a.TaskID, ProjectID: a.ProjectID, AssigneeID: a.TaskAssignee})
	}
	if usesMembership(p.Role) && len(p.ProjectIDs) > 0 {
		projectTasks, err := l.tasks.ListRefsByProjects(ctx, p.ProjectIDs)
		if err != nil {
			return nil, fmt.Errorf("load project tasks %s: %w", userID, err)
		}
		// Project rows carry the current assignee, so they take precedence.
		refs = append(projectTasks, refs...)
	}
	p.Tasks = dedupeTasks(refs)
	return p, nil
}

func usesMembership(role access.Role) bool {
	return role == access.RoleProjectManager || role == access.RoleTeamLead
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeTasks(refs []access.TaskRef) []access.TaskRef {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(refs))
	out := make([]access.TaskRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.ID]; ok {
			continue
		}
		seen[ref.ID] = struct{}{}
		out = append(out, ref)
	}
	return out
}
